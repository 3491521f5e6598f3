package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/academyhq/academy-api/internal/models"
	apperrors "github.com/academyhq/academy-api/pkg/errors"
)

type mockAuthRepo struct {
	usersByEmail      map[string]*models.User
	usersByID         map[string]*models.User
	sessions          map[string]*models.SessionToken
	resetTokens       map[string]*models.PasswordResetToken
	auditLogs         []*models.AuditLog
	createErr         error
	createSessionErr  error
	updatePasswordErr error
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[string]*models.User),
		sessions:     make(map[string]*models.SessionToken),
		resetTokens:  make(map[string]*models.PasswordResetToken),
	}
}

func (m *mockAuthRepo) addUser(user *models.User) {
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.usersByEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if user.ID == "" {
		user.ID = "u-" + user.Email
	}
	m.addUser(user)
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	if user, ok := m.usersByID[id]; ok {
		user.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) CreateSessionToken(ctx context.Context, token *models.SessionToken) error {
	if m.createSessionErr != nil {
		return m.createSessionErr
	}
	m.sessions[token.ID] = token
	return nil
}

func (m *mockAuthRepo) FindSessionToken(ctx context.Context, id string) (*models.SessionToken, error) {
	token, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return token, nil
}

func (m *mockAuthRepo) RevokeSessionToken(ctx context.Context, id string, revokedAt time.Time) error {
	if token, ok := m.sessions[id]; ok {
		token.Revoked = true
		token.RevokedAt = &revokedAt
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserSessionTokens(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	for _, token := range m.sessions {
		if token.UserID == userID {
			token.Revoked = true
			token.RevokedAt = &now
		}
	}
	return nil
}

func (m *mockAuthRepo) UpsertPasswordResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	m.resetTokens[token.Email] = token
	return nil
}

func (m *mockAuthRepo) FindPasswordResetToken(ctx context.Context, email string) (*models.PasswordResetToken, error) {
	token, ok := m.resetTokens[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return token, nil
}

func (m *mockAuthRepo) DeletePasswordResetToken(ctx context.Context, email string) error {
	delete(m.resetTokens, email)
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type captureMailer struct {
	email string
	token string
}

func (m *captureMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	m.email = email
	m.token = token
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		TokenSecret:   "secret",
		TokenExpiry:   time.Hour,
		ResetTokenTTL: time.Hour,
		Issuer:        "academy-api",
	}
}

func validRegisterRequest() models.RegisterRequest {
	return models.RegisterRequest{
		Firstname:            "Ada",
		Lastname:             "Obi",
		Middlename:           "Chidinma",
		Email:                "ada@example.com",
		Password:             "password",
		PasswordConfirmation: "password",
		DateOfBirth:          "1990-04-15",
		MaritalStatus:        "single",
		Phone:                "08030000000",
		Whatsapp:             "08030000000",
		Gender:               "female",
		Country:              "Nigeria",
		State:                "Lagos",
	}
}

func registeredUser(t *testing.T, repo *mockAuthRepo, email, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	user := &models.User{ID: "u-" + email, Email: email, PasswordHash: string(hash), Role: models.RoleUser}
	repo.addUser(user)
	return user
}

func TestAuthServiceRegisterHashesPassword(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Register(context.Background(), validRegisterRequest())
	require.NoError(t, err)
	require.NotNil(t, res.User)

	assert.NotEqual(t, "password", res.User.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(res.User.PasswordHash), []byte("password")))
	assert.Equal(t, models.RoleUser, res.User.Role)
	assert.True(t, strings.HasPrefix(res.User.MemberID, "MEM-"))
	assert.NotEmpty(t, res.Token)
	assert.Len(t, repo.sessions, 1)
	assert.Equal(t, "Registration successful", res.Message)
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	req := validRegisterRequest()
	req.PasswordConfirmation = "different"

	_, err := svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrValidation.Code, apperrors.FromError(err).Code)
	assert.Empty(t, repo.usersByEmail)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newMockAuthRepo()
	registeredUser(t, repo, "ada@example.com", "password")
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "Login successful", res.Message)
	assert.Len(t, repo.sessions, 1)
}

func TestAuthServiceLoginIssuesFreshTokens(t *testing.T) {
	repo := newMockAuthRepo()
	registeredUser(t, repo, "ada@example.com", "password")
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	first, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "password"})
	require.NoError(t, err)
	second, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "password"})
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)
	assert.Len(t, repo.sessions, 2)
}

func TestAuthServiceLoginIndistinguishableFailures(t *testing.T) {
	repo := newMockAuthRepo()
	registeredUser(t, repo, "ada@example.com", "password")
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	_, unknownErr := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "password"})
	_, wrongErr := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "wrong"})

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)

	unknown := apperrors.FromError(unknownErr)
	wrong := apperrors.FromError(wrongErr)
	assert.Equal(t, unknown.Code, wrong.Code)
	assert.Equal(t, unknown.Message, wrong.Message)
	assert.Equal(t, unknown.Status, wrong.Status)
}

func TestAuthServiceLogoutRevokesOnlyPresentedToken(t *testing.T) {
	repo := newMockAuthRepo()
	registeredUser(t, repo, "ada@example.com", "password")
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	first, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "password"})
	require.NoError(t, err)
	second, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "password"})
	require.NoError(t, err)

	claims, err := svc.Authenticate(context.Background(), first.Token)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), claims, "", ""))

	_, err = svc.Authenticate(context.Background(), first.Token)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnauthorized.Code, apperrors.FromError(err).Code)

	_, err = svc.Authenticate(context.Background(), second.Token)
	assert.NoError(t, err)
}

func TestAuthServiceLogoutWithoutClaims(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.Logout(context.Background(), nil, "", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnauthorized.Code, apperrors.FromError(err).Code)
}

func TestAuthServiceForgotPasswordKnownEmail(t *testing.T) {
	repo := newMockAuthRepo()
	registeredUser(t, repo, "ada@example.com", "password")
	mailer := &captureMailer{}
	svc := NewAuthService(repo, mailer, validator.New(), zap.NewNop(), testAuthConfig())

	sent, message, err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, "We have emailed your password reset link.", message)
	assert.Equal(t, "ada@example.com", mailer.email)
	assert.NotEmpty(t, mailer.token)

	// The stored record carries a hash, never the raw token.
	record := repo.resetTokens["ada@example.com"]
	require.NotNil(t, record)
	assert.NotEqual(t, mailer.token, record.TokenHash)
}

func TestAuthServiceForgotPasswordUnknownEmail(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	sent, message, err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Equal(t, "We can't find a user with that email address.", message)
	assert.Empty(t, repo.resetTokens)
}

func TestAuthServiceResetPasswordSuccess(t *testing.T) {
	repo := newMockAuthRepo()
	user := registeredUser(t, repo, "ada@example.com", "password")
	mailer := &captureMailer{}
	svc := NewAuthService(repo, mailer, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "password"})
	require.NoError(t, err)

	_, _, err = svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "ada@example.com"})
	require.NoError(t, err)

	err = svc.ResetPassword(context.Background(), models.ResetPasswordRequest{
		Token:                mailer.token,
		Email:                "ada@example.com",
		Password:             "newpassword",
		PasswordConfirmation: "newpassword",
	})
	require.NoError(t, err)

	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("newpassword")))

	// Every pre-reset session is revoked and the token is consumed.
	_, err = svc.Authenticate(context.Background(), res.Token)
	require.Error(t, err)
	assert.Empty(t, repo.resetTokens)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "newpassword"})
	assert.NoError(t, err)
}

func TestAuthServiceResetPasswordWrongToken(t *testing.T) {
	repo := newMockAuthRepo()
	registeredUser(t, repo, "ada@example.com", "password")
	mailer := &captureMailer{}
	svc := NewAuthService(repo, mailer, validator.New(), zap.NewNop(), testAuthConfig())

	_, _, err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "ada@example.com"})
	require.NoError(t, err)

	err = svc.ResetPassword(context.Background(), models.ResetPasswordRequest{
		Token:                "deadbeef",
		Email:                "ada@example.com",
		Password:             "newpassword",
		PasswordConfirmation: "newpassword",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrResetFailed.Code, apperrors.FromError(err).Code)
	assert.Equal(t, apperrors.ErrResetFailed.Message, apperrors.FromError(err).Message)
}

func TestAuthServiceResetPasswordExpiredToken(t *testing.T) {
	repo := newMockAuthRepo()
	registeredUser(t, repo, "ada@example.com", "password")
	mailer := &captureMailer{}
	svc := NewAuthService(repo, mailer, validator.New(), zap.NewNop(), testAuthConfig())

	_, _, err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "ada@example.com"})
	require.NoError(t, err)

	repo.resetTokens["ada@example.com"].ExpiresAt = time.Now().UTC().Add(-time.Minute)

	err = svc.ResetPassword(context.Background(), models.ResetPasswordRequest{
		Token:                mailer.token,
		Email:                "ada@example.com",
		Password:             "newpassword",
		PasswordConfirmation: "newpassword",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrResetFailed.Code, apperrors.FromError(err).Code)

	// Expired rows are dropped on sight.
	assert.Empty(t, repo.resetTokens)
}

func TestAuthServiceResetPasswordUnknownEmail(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{
		Token:                "deadbeef",
		Email:                "nobody@example.com",
		Password:             "newpassword",
		PasswordConfirmation: "newpassword",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrResetFailed.Code, apperrors.FromError(err).Code)
}

func TestAuthServiceAuthenticateRejectsGarbage(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Authenticate(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnauthorized.Code, apperrors.FromError(err).Code)
}

func TestAuthServiceAuthenticateRejectsForeignSignature(t *testing.T) {
	repo := newMockAuthRepo()
	registeredUser(t, repo, "ada@example.com", "password")
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "password"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, validator.New(), zap.NewNop(), AuthConfig{TokenSecret: "other", TokenExpiry: time.Hour, ResetTokenTTL: time.Hour})
	_, err = other.Authenticate(context.Background(), res.Token)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnauthorized.Code, apperrors.FromError(err).Code)
}

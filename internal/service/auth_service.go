package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/academyhq/academy-api/internal/models"
	apperrors "github.com/academyhq/academy-api/pkg/errors"
)

const (
	// Collaborator-style reset notifications; the sent message is safe to
	// pass through to clients.
	resetLinkSentMessage    = "We have emailed your password reset link."
	resetLinkNotSentMessage = "We can't find a user with that email address."
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	CreateSessionToken(ctx context.Context, token *models.SessionToken) error
	FindSessionToken(ctx context.Context, id string) (*models.SessionToken, error)
	RevokeSessionToken(ctx context.Context, id string, revokedAt time.Time) error
	RevokeUserSessionTokens(ctx context.Context, userID string) error
	UpsertPasswordResetToken(ctx context.Context, token *models.PasswordResetToken) error
	FindPasswordResetToken(ctx context.Context, email string) (*models.PasswordResetToken, error)
	DeletePasswordResetToken(ctx context.Context, email string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Mailer dispatches password reset notifications. Delivery itself is out of
// scope; the default implementation only logs.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer records reset dispatches through the logger.
type LogMailer struct {
	Logger *zap.Logger
}

// SendPasswordReset logs the dispatch instead of delivering it.
func (m *LogMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	if m.Logger != nil {
		m.Logger.Info("password reset link dispatched", zap.String("email", email))
	}
	return nil
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	TokenSecret   string
	TokenExpiry   time.Duration
	ResetTokenTTL time.Duration
	Issuer        string
}

// AuthService orchestrates registration, login, logout and the password
// reset lifecycle.
type AuthService struct {
	repo      authUserRepository
	mailer    Mailer
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, mailer Mailer, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if mailer == nil {
		mailer = &LogMailer{Logger: logger}
	}
	return &AuthService{repo: repo, mailer: mailer, validator: validate, logger: logger, config: config}
}

// Register creates a user with a hashed password and issues a bearer token.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid registration payload")
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "date_of_birth must be YYYY-MM-DD")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Firstname:             req.Firstname,
		Lastname:              req.Lastname,
		Middlename:            req.Middlename,
		MemberID:              newMemberID(),
		Email:                 req.Email,
		PasswordHash:          string(hash),
		Role:                  models.RoleUser,
		Phone:                 req.Phone,
		Whatsapp:              req.Whatsapp,
		DateOfBirth:           &dob,
		MaritalStatus:         req.MaritalStatus,
		Gender:                req.Gender,
		ResidentialAddress:    req.ResidentialAddress,
		Country:               req.Country,
		State:                 req.State,
		LGA:                   req.LGA,
		Occupation:            req.Occupation,
		OccupationName:        req.OccupationName,
		OccupationAddress:     req.OccupationAddress,
		NextOfKin:             req.NextOfKin,
		NextOfKinRelationship: req.NextOfKinRelationship,
		NextOfKinAddress:      req.NextOfKinAddress,
		NextOfKinPhoneNumber:  req.NextOfKinPhoneNumber,
		SubscriptionStatus:    models.SubscriptionInactive,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		// Unique email violations surface here; the store enforces them.
		return nil, apperrors.Wrap(err, apperrors.ErrConflict.Code, apperrors.ErrConflict.Status, "email already registered")
	}

	token, err := s.issueToken(ctx, user, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, &user.ID, models.AuditActionRegister, "auth", req.IP, req.UserAgent)

	return &models.AuthResult{Message: "Registration successful", User: user, Token: token}, nil
}

// Login authenticates a user and issues a fresh bearer token. Unknown email
// and wrong password produce the identical error.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrInvalidCredentials, "")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.Clone(apperrors.ErrInvalidCredentials, "")
	}

	token, err := s.issueToken(ctx, user, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, &user.ID, models.AuditActionLogin, "auth", req.IP, req.UserAgent)

	return &models.AuthResult{Message: "Login successful", User: user, Token: token}, nil
}

// Logout revokes exactly the session token presented with the request.
// Other tokens for the same user stay valid.
func (s *AuthService) Logout(ctx context.Context, claims *models.TokenClaims, ip, userAgent string) error {
	if claims == nil {
		return apperrors.Clone(apperrors.ErrUnauthorized, "user not authenticated")
	}

	token, err := s.repo.FindSessionToken(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Clone(apperrors.ErrUnauthorized, "session not found")
		}
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load session token")
	}

	if err := s.repo.RevokeSessionToken(ctx, token.ID, time.Now().UTC()); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to revoke session token")
	}

	s.audit(ctx, &claims.UserID, models.AuditActionLogout, "auth", ip, userAgent)

	return nil
}

// ForgotPassword issues a reset token and reports the collaborator-style
// sent/not-sent outcome.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) (bool, string, error) {
	if err := s.validator.Struct(req); err != nil {
		return false, "", apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid forgot password payload")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, resetLinkNotSentMessage, nil
		}
		return false, "", apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to fetch user")
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return false, "", apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to mint reset token")
	}
	token := hex.EncodeToString(raw)

	record := &models.PasswordResetToken{
		Email:     req.Email,
		TokenHash: hashResetToken(token),
		ExpiresAt: time.Now().UTC().Add(s.config.ResetTokenTTL),
	}
	if err := s.repo.UpsertPasswordResetToken(ctx, record); err != nil {
		return false, "", apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to persist reset token")
	}

	if err := s.mailer.SendPasswordReset(ctx, req.Email, token); err != nil {
		s.logger.Warn("failed to dispatch reset link", zap.Error(err))
	}

	return true, resetLinkSentMessage, nil
}

// ResetPassword consumes a reset token, rehashes the password and revokes
// every session token for the user. Failures share one generic error so the
// response never reveals which validation step rejected the token.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid reset password payload")
	}

	record, err := s.repo.FindPasswordResetToken(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Clone(apperrors.ErrResetFailed, "")
		}
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load reset token")
	}

	if !hmac.Equal([]byte(record.TokenHash), []byte(hashResetToken(req.Token))) {
		return apperrors.Clone(apperrors.ErrResetFailed, "")
	}
	if time.Now().UTC().After(record.ExpiresAt) {
		_ = s.repo.DeletePasswordResetToken(ctx, req.Email)
		return apperrors.Clone(apperrors.ErrResetFailed, "")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Clone(apperrors.ErrResetFailed, "")
		}
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to fetch user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, string(hash), time.Now().UTC()); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to update password")
	}

	// Force re-login everywhere.
	if err := s.repo.RevokeUserSessionTokens(ctx, user.ID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to revoke session tokens")
	}

	if err := s.repo.DeletePasswordResetToken(ctx, req.Email); err != nil {
		s.logger.Warn("failed to consume reset token", zap.Error(err))
	}

	s.audit(ctx, &user.ID, models.AuditActionPasswordReset, "auth", "", "")

	return nil
}

// Authenticate verifies a bearer token string and requires a live session
// row, returning the embedded claims.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*models.TokenClaims, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return nil, err
	}

	session, err := s.repo.FindSessionToken(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrUnauthorized, "invalid token")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load session token")
	}
	if !session.Live(time.Now().UTC()) {
		return nil, apperrors.Clone(apperrors.ErrUnauthorized, "invalid token")
	}

	return claims, nil
}

func (s *AuthService) parseToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnauthorized.Code, apperrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, apperrors.Clone(apperrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) issueToken(ctx context.Context, user *models.User, ip, userAgent string) (string, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.TokenExpiry)

	session := &models.SessionToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: expiresAt,
		CreatedAt: issuedAt,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.repo.CreateSessionToken(ctx, session); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to persist session token")
	}

	claims := &models.TokenClaims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.TokenSecret))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to sign token")
	}
	return signed, nil
}

func (s *AuthService) audit(ctx context.Context, userID *string, action, resource, ip, userAgent string) {
	err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: userID,
		IPAddress:  ip,
		UserAgent:  userAgent,
	})
	if err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newMemberID() string {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("MEM-%04d", time.Now().UnixNano()%10000)
	}
	return fmt.Sprintf("MEM-%04d", binary.BigEndian.Uint16(buf)%10000)
}

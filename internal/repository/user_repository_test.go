package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academyhq/academy-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func userRows(id, email string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "firstname", "lastname", "middlename", "member_id", "email", "password_hash", "role",
		"phone", "whatsapp", "date_of_birth", "marital_status", "gender", "residential_address",
		"country", "state", "lga", "occupation", "occupation_name", "occupation_address",
		"next_of_kin", "next_of_kin_relationship", "next_of_kin_address", "next_of_kin_phone_number",
		"subscription_status", "created_at", "updated_at",
	}).AddRow(
		id, "Ada", "Obi", "Chidinma", "MEM-0001", email, "hash", string(models.RoleUser),
		"08030000000", "08030000000", now, "single", "female", "12 Marina Rd",
		"Nigeria", "Lagos", "Ikeja", "Engineer", "", "",
		"", "", "", "",
		string(models.SubscriptionInactive), now, now,
	)
}

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1 LIMIT 1`).
		WithArgs("ada@example.com").
		WillReturnRows(userRows("u1", "ada@example.com"))

	user, err := repo.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "MEM-0001", user.MemberID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByEmailNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1 LIMIT 1`).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "nobody@example.com")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1 LIMIT 1`).
		WithArgs("u1").
		WillReturnRows(userRows("u1", "ada@example.com"))

	user, err := repo.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryExistsByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users WHERE email = $1 AND id <> $2`)).
		WithArgs("ada@example.com", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	taken, err := repo.ExistsByEmail(context.Background(), "ada@example.com", "u1")
	require.NoError(t, err)
	assert.True(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{Firstname: "Ada", Lastname: "Obi", Email: "ada@example.com", PasswordHash: "hash", Role: models.RoleUser}
	err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdatePassword(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE users SET password_hash = \$2, updated_at = \$3 WHERE id = \$1`).
		WithArgs("u1", "newhash", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdatePassword(context.Background(), "u1", "newhash", now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositorySessionTokenLifecycle(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO session_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	token := &models.SessionToken{UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.CreateSessionToken(context.Background(), token))
	assert.NotEmpty(t, token.ID)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "expires_at", "created_at", "revoked", "revoked_at", "ip_address", "user_agent"}).
		AddRow(token.ID, "u1", token.ExpiresAt, now, false, nil, "", "")
	mock.ExpectQuery(`SELECT (.+) FROM session_tokens WHERE id = \$1 LIMIT 1`).
		WithArgs(token.ID).
		WillReturnRows(rows)

	found, err := repo.FindSessionToken(context.Background(), token.ID)
	require.NoError(t, err)
	assert.True(t, found.Live(now))

	mock.ExpectExec(`UPDATE session_tokens SET revoked = TRUE, revoked_at = \$2 WHERE id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RevokeSessionToken(context.Background(), token.ID, now))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRevokeUserSessionTokens(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(`UPDATE session_tokens SET revoked = TRUE, revoked_at = \$2 WHERE user_id = \$1 AND revoked = FALSE`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := repo.RevokeUserSessionTokens(context.Background(), "u1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryPasswordResetTokenLifecycle(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO password_reset_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	token := &models.PasswordResetToken{Email: "ada@example.com", TokenHash: "hash", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.UpsertPasswordResetToken(context.Background(), token))

	now := time.Now()
	rows := sqlmock.NewRows([]string{"email", "token_hash", "expires_at", "created_at"}).
		AddRow("ada@example.com", "hash", token.ExpiresAt, now)
	mock.ExpectQuery(`SELECT (.+) FROM password_reset_tokens WHERE email = \$1 LIMIT 1`).
		WithArgs("ada@example.com").
		WillReturnRows(rows)

	found, err := repo.FindPasswordResetToken(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", found.TokenHash)

	mock.ExpectExec(`DELETE FROM password_reset_tokens WHERE email = \$1`).
		WithArgs("ada@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.DeletePasswordResetToken(context.Background(), "ada@example.com"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateAuditLog(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	log := &models.AuditLog{Action: models.AuditActionLogin, Resource: "auth"}
	err := repo.CreateAuditLog(context.Background(), log)
	require.NoError(t, err)
	assert.NotEmpty(t, log.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

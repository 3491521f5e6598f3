package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/academyhq/academy-api/internal/models"
)

const userColumns = `id, firstname, lastname, middlename, member_id, email, password_hash, role,
	phone, whatsapp, date_of_birth, marital_status, gender, residential_address,
	country, state, lga, occupation, occupation_name, occupation_address,
	next_of_kin, next_of_kin_relationship, next_of_kin_address, next_of_kin_phone_number,
	subscription_status, created_at, updated_at`

// UserRepository provides database access for users, session tokens,
// password reset tokens and the audit trail.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1 LIMIT 1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 LIMIT 1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// ExistsByEmail reports whether another user already holds the email.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM users WHERE email = $1 AND id <> $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, email, excludeID); err != nil {
		return false, fmt.Errorf("check email uniqueness: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new user. Email uniqueness is enforced by the store.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (
		id, firstname, lastname, middlename, member_id, email, password_hash, role,
		phone, whatsapp, date_of_birth, marital_status, gender, residential_address,
		country, state, lga, occupation, occupation_name, occupation_address,
		next_of_kin, next_of_kin_relationship, next_of_kin_address, next_of_kin_phone_number,
		subscription_status, created_at, updated_at
	) VALUES (
		:id, :firstname, :lastname, :middlename, :member_id, :email, :password_hash, :role,
		:phone, :whatsapp, :date_of_birth, :marital_status, :gender, :residential_address,
		:country, :state, :lga, :occupation, :occupation_name, :occupation_address,
		:next_of_kin, :next_of_kin_relationship, :next_of_kin_address, :next_of_kin_phone_number,
		:subscription_status, :created_at, :updated_at
	)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateProfile persists the mutable profile fields of a user.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET
		firstname = :firstname, lastname = :lastname, middlename = :middlename,
		phone = :phone, whatsapp = :whatsapp, date_of_birth = :date_of_birth,
		gender = :gender, next_of_kin = :next_of_kin, country = :country,
		state = :state, lga = :lga, occupation = :occupation,
		residential_address = :residential_address, email = :email,
		updated_at = :updated_at
	WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// CreateSessionToken persists the record backing an issued bearer token.
func (r *UserRepository) CreateSessionToken(ctx context.Context, token *models.SessionToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO session_tokens (id, user_id, expires_at, created_at, revoked, revoked_at, ip_address, user_agent)
		VALUES (:id, :user_id, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create session token: %w", err)
	}
	return nil
}

// FindSessionToken returns a session token by its identifier.
func (r *UserRepository) FindSessionToken(ctx context.Context, id string) (*models.SessionToken, error) {
	const query = `SELECT id, user_id, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM session_tokens WHERE id = $1 LIMIT 1`
	var token models.SessionToken
	if err := r.db.GetContext(ctx, &token, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session token: %w", err)
	}
	return &token, nil
}

// RevokeSessionToken marks a single token as revoked.
func (r *UserRepository) RevokeSessionToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE session_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke session token: %w", err)
	}
	return nil
}

// RevokeUserSessionTokens revokes every live token for a user.
func (r *UserRepository) RevokeUserSessionTokens(ctx context.Context, userID string) error {
	const query = `UPDATE session_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user session tokens: %w", err)
	}
	return nil
}

// UpsertPasswordResetToken replaces the reset token row for an email.
func (r *UserRepository) UpsertPasswordResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO password_reset_tokens (email, token_hash, expires_at, created_at)
		VALUES (:email, :token_hash, :expires_at, :created_at)
		ON CONFLICT (email) DO UPDATE SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("upsert password reset token: %w", err)
	}
	return nil
}

// FindPasswordResetToken returns the reset token row for an email.
func (r *UserRepository) FindPasswordResetToken(ctx context.Context, email string) (*models.PasswordResetToken, error) {
	const query = `SELECT email, token_hash, expires_at, created_at FROM password_reset_tokens WHERE email = $1 LIMIT 1`
	var token models.PasswordResetToken
	if err := r.db.GetContext(ctx, &token, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find password reset token: %w", err)
	}
	return &token, nil
}

// DeletePasswordResetToken consumes the reset token row for an email.
func (r *UserRepository) DeletePasswordResetToken(ctx context.Context, email string) error {
	const query = `DELETE FROM password_reset_tokens WHERE email = $1`
	if _, err := r.db.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("delete password reset token: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
		VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

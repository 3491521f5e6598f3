package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/academyhq/academy-api/internal/models"
	apperrors "github.com/academyhq/academy-api/pkg/errors"
)

// Self-only rejections share one message so a caller cannot tell a foreign
// profile from a missing one.
const unauthorizedProfileMessage = "Unauthorized User or User Not Found"

type profileUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ProfileService handles profile self-service workflows.
type ProfileService struct {
	repo      profileUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService creates a new profile service.
func NewProfileService(repo profileUserRepository, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{repo: repo, validator: validate, logger: logger}
}

// Profile returns the authenticated user's record.
func (s *ProfileService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrNotFound, "user not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// UpdateProfile applies partial profile mutations. Only the owning identity
// may mutate; there is no elevated-role bypass.
func (s *ProfileService) UpdateProfile(ctx context.Context, actorID, targetID string, req models.UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrForbidden, unauthorizedProfileMessage)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load user")
	}
	if user.ID != actorID {
		return nil, apperrors.Clone(apperrors.ErrForbidden, unauthorizedProfileMessage)
	}

	if req.Email != nil && *req.Email != user.Email {
		taken, err := s.repo.ExistsByEmail(ctx, *req.Email, user.ID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to check email uniqueness")
		}
		if taken {
			return nil, apperrors.Clone(apperrors.ErrConflict, "email already in use")
		}
		user.Email = *req.Email
	}

	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	applyString(&user.Firstname, req.Firstname)
	applyString(&user.Lastname, req.Lastname)
	applyString(&user.Middlename, req.Middlename)
	applyString(&user.Phone, req.Phone)
	applyString(&user.Whatsapp, req.Whatsapp)
	applyString(&user.Gender, req.Gender)
	applyString(&user.NextOfKin, req.NextOfKin)
	applyString(&user.Country, req.Country)
	applyString(&user.State, req.State)
	applyString(&user.LGA, req.LGA)
	applyString(&user.Occupation, req.Occupation)
	applyString(&user.ResidentialAddress, req.ResidentialAddress)

	if req.DateOfBirth != nil {
		dob, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "date_of_birth must be YYYY-MM-DD")
		}
		user.DateOfBirth = &dob
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to update profile")
	}

	return user, nil
}

// UpdatePassword changes the password after checking the current one. The
// self-only rule applies; existing sessions are left untouched.
func (s *ProfileService) UpdatePassword(ctx context.Context, actorID, targetID string, req models.UpdatePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid password payload")
	}

	user, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Clone(apperrors.ErrForbidden, unauthorizedProfileMessage)
		}
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load user")
	}
	if user.ID != actorID {
		return apperrors.Clone(apperrors.ErrForbidden, unauthorizedProfileMessage)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return apperrors.New(apperrors.ErrValidation.Code, 400, "Current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, string(hash), time.Now().UTC()); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to update password")
	}

	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionPasswordChange,
		Resource:   "profile",
		ResourceID: &user.ID,
	}); err != nil {
		s.logger.Warn("failed to record password change audit log", zap.Error(err))
	}

	return nil
}

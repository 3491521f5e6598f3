package models

import "github.com/golang-jwt/jwt/v5"

// RegisterRequest holds the registration payload and profile fields.
type RegisterRequest struct {
	Firstname             string `json:"firstname" validate:"required,max=100"`
	Lastname              string `json:"lastname" validate:"required,max=100"`
	Middlename            string `json:"middlename" validate:"required,max=100"`
	Email                 string `json:"email" validate:"required,email,max=255"`
	Password              string `json:"password" validate:"required,min=6"`
	PasswordConfirmation  string `json:"password_confirmation" validate:"required,eqfield=Password"`
	DateOfBirth           string `json:"date_of_birth" validate:"required"`
	MaritalStatus         string `json:"marital_status" validate:"required,max=100"`
	Phone                 string `json:"phone" validate:"required,e164|numeric,max=15"`
	Whatsapp              string `json:"whatsapp" validate:"required,e164|numeric,max=15"`
	Gender                string `json:"gender" validate:"required,max=100"`
	Country               string `json:"country" validate:"required,max=100"`
	State                 string `json:"state" validate:"required,max=100"`
	ResidentialAddress    string `json:"residential_address" validate:"omitempty,max=100"`
	LGA                   string `json:"lga" validate:"omitempty,max=100"`
	Occupation            string `json:"occupation" validate:"omitempty,max=100"`
	OccupationName        string `json:"occupation_name" validate:"omitempty,max=100"`
	OccupationAddress     string `json:"occupation_address" validate:"omitempty,max=500"`
	NextOfKin             string `json:"next_of_kin" validate:"omitempty,max=100"`
	NextOfKinRelationship string `json:"next_of_kin_relationship" validate:"omitempty,max=100"`
	NextOfKinAddress      string `json:"next_of_kin_address" validate:"omitempty,max=100"`
	NextOfKinPhoneNumber  string `json:"next_of_kin_phone_number" validate:"omitempty,max=100"`
	IP                    string `json:"-"`
	UserAgent             string `json:"-"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// AuthResult returns the authenticated user and the issued bearer token.
type AuthResult struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
	Token   string `json:"token"`
}

// ForgotPasswordRequest initiates the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest completes the reset flow.
type ResetPasswordRequest struct {
	Token                string `json:"token" validate:"required"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=6"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// UpdateProfileRequest carries partial profile mutations; nil fields are
// left untouched.
type UpdateProfileRequest struct {
	Firstname             *string `json:"firstname" validate:"omitempty,max=100"`
	Lastname              *string `json:"lastname" validate:"omitempty,max=100"`
	Middlename            *string `json:"middlename" validate:"omitempty,max=100"`
	Phone                 *string `json:"phone" validate:"omitempty,max=15"`
	Whatsapp              *string `json:"whatsapp" validate:"omitempty,max=15"`
	DateOfBirth           *string `json:"date_of_birth" validate:"omitempty"`
	Gender                *string `json:"gender" validate:"omitempty,max=100"`
	NextOfKin             *string `json:"next_of_kin" validate:"omitempty,max=100"`
	Country               *string `json:"country" validate:"omitempty,max=100"`
	State                 *string `json:"state" validate:"omitempty,max=100"`
	LGA                   *string `json:"lga" validate:"omitempty,max=100"`
	Occupation            *string `json:"occupation" validate:"omitempty,max=100"`
	ResidentialAddress    *string `json:"residential_address" validate:"omitempty,max=100"`
	Email                 *string `json:"email" validate:"omitempty,email,max=255"`
}

// UpdatePasswordRequest changes the password for a profile owner.
type UpdatePasswordRequest struct {
	CurrentPassword         string `json:"current_password" validate:"required"`
	NewPassword             string `json:"new_password" validate:"required,min=8"`
	NewPasswordConfirmation string `json:"new_password_confirmation" validate:"required,eqfield=NewPassword"`
}

// TokenClaims represents the JWT payload for issued bearer tokens. The
// registered ID field carries the session token row ID.
type TokenClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}

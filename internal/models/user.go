package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleUser       UserRole = "user"
	RoleInstructor UserRole = "instructor"
)

// Valid reports whether the role is one of the enumerated values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleInstructor:
		return true
	}
	return false
}

// SubscriptionStatus enumerates member subscription states.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionInactive SubscriptionStatus = "inactive"
	SubscriptionExpired  SubscriptionStatus = "expired"
)

// User represents an application user stored in the users table.
// The password hash never leaves the server.
type User struct {
	ID                    string             `db:"id" json:"id"`
	Firstname             string             `db:"firstname" json:"firstname"`
	Lastname              string             `db:"lastname" json:"lastname"`
	Middlename            string             `db:"middlename" json:"middlename"`
	MemberID              string             `db:"member_id" json:"member_id"`
	Email                 string             `db:"email" json:"email"`
	PasswordHash          string             `db:"password_hash" json:"-"`
	Role                  UserRole           `db:"role" json:"role"`
	Phone                 string             `db:"phone" json:"phone,omitempty"`
	Whatsapp              string             `db:"whatsapp" json:"whatsapp,omitempty"`
	DateOfBirth           *time.Time         `db:"date_of_birth" json:"date_of_birth,omitempty"`
	MaritalStatus         string             `db:"marital_status" json:"marital_status,omitempty"`
	Gender                string             `db:"gender" json:"gender,omitempty"`
	ResidentialAddress    string             `db:"residential_address" json:"residential_address,omitempty"`
	Country               string             `db:"country" json:"country,omitempty"`
	State                 string             `db:"state" json:"state,omitempty"`
	LGA                   string             `db:"lga" json:"lga,omitempty"`
	Occupation            string             `db:"occupation" json:"occupation,omitempty"`
	OccupationName        string             `db:"occupation_name" json:"occupation_name,omitempty"`
	OccupationAddress     string             `db:"occupation_address" json:"occupation_address,omitempty"`
	NextOfKin             string             `db:"next_of_kin" json:"next_of_kin,omitempty"`
	NextOfKinRelationship string             `db:"next_of_kin_relationship" json:"next_of_kin_relationship,omitempty"`
	NextOfKinAddress      string             `db:"next_of_kin_address" json:"next_of_kin_address,omitempty"`
	NextOfKinPhoneNumber  string             `db:"next_of_kin_phone_number" json:"next_of_kin_phone_number,omitempty"`
	SubscriptionStatus    SubscriptionStatus `db:"subscription_status" json:"subscription_status"`
	CreatedAt             time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time          `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

package models

import "time"

// CourseStatus enumerates course publication states.
type CourseStatus string

const (
	CoursePublished   CourseStatus = "published"
	CourseUnpublished CourseStatus = "unpublished"
)

// Course is owned by exactly one instructor-role user. Courses are managed
// by admins on instructors' behalf.
type Course struct {
	ID           string       `db:"id" json:"id"`
	InstructorID string       `db:"instructor_id" json:"instructor_id"`
	Title        string       `db:"title" json:"title"`
	Description  *string      `db:"description" json:"description,omitempty"`
	Price        float64      `db:"price" json:"price"`
	Status       CourseStatus `db:"status" json:"status"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseWithInstructor joins the owning instructor's display fields onto a
// course row for list/detail responses.
type CourseWithInstructor struct {
	Course
	InstructorFirstname string `db:"instructor_firstname" json:"instructor_firstname"`
	InstructorLastname  string `db:"instructor_lastname" json:"instructor_lastname"`
	InstructorEmail     string `db:"instructor_email" json:"instructor_email"`
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	Status       *CourseStatus
	InstructorID string
	Search       string
	Page         int
	PageSize     int
}

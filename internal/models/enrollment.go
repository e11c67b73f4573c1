package models

import "time"

// Enrollment links one user to one class.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	ClassID    string    `db:"class_id" json:"class_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentDetail enriches Enrollment with user and class info for the
// per-class report view.
type EnrollmentDetail struct {
	Enrollment
	UserLogin     string    `db:"user_login" json:"user_login"`
	ClassName     string    `db:"class_name" json:"class_name"`
	ClassStartsAt time.Time `db:"class_starts_at" json:"class_starts_at"`
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aulafit/checkin-api/internal/models"
)

// Guard failures surfaced by the transactional enrollment flow. Services
// map these onto the HTTP error taxonomy.
var (
	ErrNoSeats       = errors.New("no remaining classes on account")
	ErrClassCapacity = errors.New("class capacity reached")
	ErrDuplicate     = errors.New("already enrolled in class")
)

// EnrollmentRepository handles persistence of the enrollment ledger.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListByUser returns all enrollments held by a user, newest first.
func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID string) ([]models.Enrollment, error) {
	const query = `SELECT id, user_id, class_id, enrolled_at FROM enrollments WHERE user_id = $1 ORDER BY enrolled_at DESC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, userID); err != nil {
		return nil, fmt.Errorf("list user enrollments: %w", err)
	}
	return enrollments, nil
}

// ListDetailByClass returns enrollments for a class joined with user logins
// and class info, for the admin report.
func (r *EnrollmentRepository) ListDetailByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.user_id, e.class_id, e.enrolled_at,
        u.login AS user_login, c.name AS class_name, c.starts_at AS class_starts_at
        FROM enrollments e
        JOIN users u ON u.id = e.user_id
        JOIN classes c ON c.id = e.class_id
        WHERE e.class_id = $1
        ORDER BY e.enrolled_at ASC`
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, classID); err != nil {
		return nil, fmt.Errorf("list class enrollments: %w", err)
	}
	return details, nil
}

// FindByIDForUser returns an enrollment by id scoped to its owner.
func (r *EnrollmentRepository) FindByIDForUser(ctx context.Context, id, userID string) (*models.Enrollment, error) {
	const query = `SELECT id, user_id, class_id, enrolled_at FROM enrollments WHERE id = $1 AND user_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id, userID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// CountByClass returns the number of enrollments held against a class.
func (r *EnrollmentRepository) CountByClass(ctx context.Context, classID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE class_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID); err != nil {
		return 0, fmt.Errorf("count class enrollments: %w", err)
	}
	return count, nil
}

// Enroll runs the whole guard-then-write sequence in one transaction so the
// class capacity and the per-user quota hold under concurrent requests. The
// user row is locked first, then the class row, keeping lock order stable
// across callers.
func (r *EnrollmentRepository) Enroll(ctx context.Context, userID, classID string, maxPerClass int) (*models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enroll tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var remaining int
	if err := tx.GetContext(ctx, &remaining, `SELECT remaining_classes FROM users WHERE id = $1 FOR UPDATE`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock user row: %w", err)
	}
	if remaining <= 0 {
		return nil, ErrNoSeats
	}

	var lockedClassID string
	if err := tx.GetContext(ctx, &lockedClassID, `SELECT id FROM classes WHERE id = $1 AND active FOR UPDATE`, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock class row: %w", err)
	}

	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollments WHERE class_id = $1`, classID); err != nil {
		return nil, fmt.Errorf("count class enrollments: %w", err)
	}
	if count >= maxPerClass {
		return nil, ErrClassCapacity
	}

	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT 1 FROM enrollments WHERE user_id = $1 AND class_id = $2 LIMIT 1`, userID, classID)
	if err == nil {
		return nil, ErrDuplicate
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check duplicate enrollment: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE users SET remaining_classes = remaining_classes - 1, updated_at = NOW() WHERE id = $1 AND remaining_classes > 0`, userID)
	if err != nil {
		return nil, fmt.Errorf("decrement remaining classes: %w", err)
	}
	if rows, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("decrement remaining classes: %w", err)
	} else if rows == 0 {
		return nil, ErrNoSeats
	}

	enrollment := &models.Enrollment{
		ID:         uuid.NewString(),
		UserID:     userID,
		ClassID:    classID,
		EnrolledAt: time.Now().UTC(),
	}
	const insert = `INSERT INTO enrollments (id, user_id, class_id, enrolled_at) VALUES (:id, :user_id, :class_id, :enrolled_at)`
	if _, err := tx.NamedExecContext(ctx, insert, enrollment); err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enroll tx: %w", err)
	}
	return enrollment, nil
}

// Unenroll deletes the enrollment and gives the seat back in one
// transaction. The cutoff rule is enforced by the service before calling.
func (r *EnrollmentRepository) Unenroll(ctx context.Context, id, userID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unenroll tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if rows, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	} else if rows == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET remaining_classes = remaining_classes + 1, updated_at = NOW() WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("restore remaining classes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unenroll tx: %w", err)
	}
	return nil
}

// ClearByClass bulk-deletes all enrollments for a class. When restoreSeats
// is set each affected user gets one seat back in the same transaction.
func (r *EnrollmentRepository) ClearByClass(ctx context.Context, classID string, restoreSeats bool) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin clear tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if restoreSeats {
		const restore = `UPDATE users u SET remaining_classes = u.remaining_classes + 1, updated_at = NOW()
            FROM enrollments e WHERE e.user_id = u.id AND e.class_id = $1`
		if _, err := tx.ExecContext(ctx, restore, classID); err != nil {
			return 0, fmt.Errorf("restore seats: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE class_id = $1`, classID)
	if err != nil {
		return 0, fmt.Errorf("clear enrollments: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear enrollments: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear tx: %w", err)
	}
	return deleted, nil
}

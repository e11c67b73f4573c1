package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aulafit/checkin-api/internal/models"
)

// ClassRepository manages persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns active classes matching the filter, newest schedule first.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, error) {
	base := `SELECT id, name, starts_at, image, active, created_at, updated_at FROM classes WHERE active`
	var conditions []string
	var args []interface{}

	if !filter.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("starts_at >= $%d", len(args)+1))
		args = append(args, filter.From)
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, fmt.Sprintf("starts_at < $%d", len(args)+1))
		args = append(args, filter.Until)
	}

	query := base
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY starts_at DESC"

	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// FindByID returns a class by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, starts_at, image, active, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, name, starts_at, image, active, created_at, updated_at) VALUES (:id, :name, :starts_at, :image, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update replaces name and schedule, and the image when provided.
func (r *ClassRepository) Update(ctx context.Context, id, name string, startsAt time.Time, image []byte) error {
	var (
		res sql.Result
		err error
	)
	if image != nil {
		const query = `UPDATE classes SET name = $2, starts_at = $3, image = $4, updated_at = $5 WHERE id = $1`
		res, err = r.db.ExecContext(ctx, query, id, name, startsAt, image, time.Now().UTC())
	} else {
		const query = `UPDATE classes SET name = $2, starts_at = $3, updated_at = $4 WHERE id = $1`
		res, err = r.db.ExecContext(ctx, query, id, name, startsAt, time.Now().UTC())
	}
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

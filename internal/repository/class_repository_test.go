package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/aulafit/checkin-api/internal/models"
)

func TestClassRepositoryListWithWindow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	until := from.AddDate(0, 0, 6)

	rows := sqlmock.NewRows([]string{"id", "name", "starts_at", "image", "active", "created_at", "updated_at"}).
		AddRow("cls-1", "Spinning", from.Add(24*time.Hour), []byte{0x1}, true, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, name, starts_at, image, active, created_at, updated_at FROM classes WHERE active AND starts_at").
		WithArgs(from, until).
		WillReturnRows(rows)

	classes, err := repo.List(context.Background(), models.ClassFilter{From: from, Until: until})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	require.Equal(t, "Spinning", classes[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "starts_at", "image", "active", "created_at", "updated_at"}).
		AddRow("cls-1", "Spinning", time.Now(), nil, true, time.Now(), time.Now()).
		AddRow("cls-2", "Yoga", time.Now(), nil, true, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, name, starts_at, image, active, created_at, updated_at FROM classes WHERE active ORDER BY starts_at DESC").
		WillReturnRows(rows)

	classes, err := repo.List(context.Background(), models.ClassFilter{})
	require.NoError(t, err)
	require.Len(t, classes, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec("INSERT INTO classes").
		WillReturnResult(sqlmock.NewResult(0, 1))

	class := &models.Class{Name: "Spinning", StartsAt: time.Now().UTC(), Image: []byte{0x1}, Active: true}
	err := repo.Create(context.Background(), class)
	require.NoError(t, err)
	require.NotEmpty(t, class.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryUpdateKeepsImageWhenNil(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	startsAt := time.Now().UTC()
	mock.ExpectExec("UPDATE classes SET name = \\$2, starts_at = \\$3, updated_at = \\$4 WHERE id = \\$1").
		WithArgs("cls-1", "Yoga", startsAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "cls-1", "Yoga", startsAt, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryUpdateNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec("UPDATE classes SET name").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), "missing", "Yoga", time.Now().UTC(), nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

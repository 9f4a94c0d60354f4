package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-dept-api/internal/models"
)

func newDepartmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestDepartmentRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newDepartmentRepoMock(t)
	defer cleanup()

	repo := NewDepartmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO departments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	department := &models.Department{Name: "Computer Science", Chair: "Dr. Grace"}
	require.NoError(t, repo.Create(context.Background(), department))
	require.NotEmpty(t, department.ID)

	rows := sqlmock.NewRows([]string{"id", "name", "chair", "created_at", "updated_at"}).
		AddRow(department.ID, "Computer Science", "Dr. Grace", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, chair, created_at, updated_at FROM departments WHERE id = $1")).
		WithArgs(department.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), department.ID)
	require.NoError(t, err)
	require.Equal(t, "Computer Science", found.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryListWithSearch(t *testing.T) {
	db, mock, cleanup := newDepartmentRepoMock(t)
	defer cleanup()

	repo := NewDepartmentRepository(db)
	rows := sqlmock.NewRows([]string{"id", "name", "chair", "created_at", "updated_at"}).
		AddRow("dept-1", "Mathematics", "Dr. Emmy", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("LOWER(name) LIKE $1")).
		WithArgs("%math%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM departments")).
		WithArgs("%math%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	departments, total, err := repo.List(context.Background(), "Math", 1, 20)
	require.NoError(t, err)
	require.Len(t, departments, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryDependencies(t *testing.T) {
	db, mock, cleanup := newDepartmentRepoMock(t)
	defer cleanup()

	repo := NewDepartmentRepository(db)
	rows := sqlmock.NewRows([]string{"staff_count", "course_count"}).AddRow(2, 5)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM teaching_staff WHERE department_id = $1")).
		WithArgs("dept-1").
		WillReturnRows(rows)

	deps, err := repo.Dependencies(context.Background(), "dept-1")
	require.NoError(t, err)
	require.Equal(t, 2, deps.StaffCount)
	require.Equal(t, 5, deps.CourseCount)
	require.False(t, deps.Empty())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newDepartmentRepoMock(t)
	defer cleanup()

	repo := NewDepartmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM departments WHERE id = $1")).
		WithArgs("dept-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "dept-404")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

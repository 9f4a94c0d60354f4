package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-dept-api/internal/models"
)

func newCourseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func courseRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "code", "name", "credits", "department_id", "teaching_staff_id", "schedule_day", "schedule_time", "room", "capacity", "current_enrollment", "semester", "version", "created_at", "updated_at"})
	for _, id := range ids {
		rows.AddRow(id, "CS101", "Algorithms", 3, "dept-1", nil, nil, nil, nil, 30, 0, nil, 1, time.Now(), time.Now())
	}
	return rows
}

func TestCourseRepositoryListUnassigned(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("AND department_id = $1 AND teaching_staff_id IS NULL")).
		WithArgs("dept-1").
		WillReturnRows(courseRows("course-1", "course-2"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses")).
		WithArgs("dept-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	courses, total, err := repo.List(context.Background(), models.CourseFilter{DepartmentID: "dept-1", Unassigned: true})
	require.NoError(t, err)
	require.Len(t, courses, 2)
	require.Equal(t, 2, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListByDepartmentHasNoPageLimit(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("course-%d", i+1)
	}

	repo := NewCourseRepository(db)
	// Anchored at the end of the statement: the department read must not
	// carry a LIMIT clause.
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE department_id = $1 ORDER BY code ASC") + "$").
		WithArgs("dept-1").
		WillReturnRows(courseRows(ids...))

	courses, err := repo.ListByDepartment(context.Background(), "dept-1")
	require.NoError(t, err)
	require.Len(t, courses, 25)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListUnassignedByDepartmentHasNoPageLimit(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	ids := make([]string, 101)
	for i := range ids {
		ids[i] = fmt.Sprintf("course-%d", i+1)
	}

	repo := NewCourseRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE department_id = $1 AND teaching_staff_id IS NULL ORDER BY code ASC") + "$").
		WithArgs("dept-1").
		WillReturnRows(courseRows(ids...))

	courses, err := repo.ListUnassignedByDepartment(context.Background(), "dept-1")
	require.NoError(t, err)
	require.Len(t, courses, 101)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindBySlot(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE teaching_staff_id = $1 AND schedule_day = $2 AND schedule_time = $3")).
		WithArgs("staff-1", "Monday", "08:00-10:00").
		WillReturnRows(courseRows("course-1"))

	courses, err := repo.FindBySlot(context.Background(), models.SlotQuery{
		TeachingStaffID: "staff-1",
		Day:             "Monday",
		TimeSlot:        "08:00-10:00",
	})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindBySlotExcludesCourse(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("AND id <> $4")).
		WithArgs("staff-1", "Monday", "08:00-10:00", "course-1").
		WillReturnRows(courseRows())

	courses, err := repo.FindBySlot(context.Background(), models.SlotQuery{
		TeachingStaffID: "staff-1",
		Day:             "Monday",
		TimeSlot:        "08:00-10:00",
		ExcludeCourseID: "course-1",
	})
	require.NoError(t, err)
	require.Empty(t, courses)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryAssignStaff(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET teaching_staff_id = $2")).
		WithArgs("course-1", "staff-1", sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AssignStaff(context.Background(), AssignStaffParams{
		CourseID:        "course-1",
		TeachingStaffID: "staff-1",
		ExpectedVersion: 3,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryAssignStaffArmsOccupancyGuard(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("AND NOT EXISTS (SELECT 1 FROM courses c2 WHERE c2.teaching_staff_id = $2 AND c2.schedule_day = $5 AND c2.schedule_time = $6 AND c2.id <> $1)")).
		WithArgs("course-1", "staff-1", sqlmock.AnyArg(), int64(1), "Monday", "08:00-10:00").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AssignStaff(context.Background(), AssignStaffParams{
		CourseID:        "course-1",
		TeachingStaffID: "staff-1",
		Day:             "Monday",
		TimeSlot:        "08:00-10:00",
		ExpectedVersion: 1,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryAssignStaffStaleVersion(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET teaching_staff_id = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AssignStaff(context.Background(), AssignStaffParams{
		CourseID:        "course-1",
		TeachingStaffID: "staff-1",
		ExpectedVersion: 1,
	})
	require.ErrorIs(t, err, ErrStaleCourse)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateGuardsVersion(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET code =")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	course := &models.Course{ID: "course-1", Code: "CS101", Name: "Algorithms", Credits: 3, DepartmentID: "dept-1", Version: 2}
	require.NoError(t, repo.Update(context.Background(), course))
	require.Equal(t, int64(3), course.Version)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET code =")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), course)
	require.ErrorIs(t, err, ErrStaleCourse)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUnassignMissing(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET teaching_staff_id = NULL")).
		WithArgs("course-404", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Unassign(context.Background(), "course-404")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

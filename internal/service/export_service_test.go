package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-dept-api/internal/models"
	appErrors "github.com/noah-isme/uni-dept-api/pkg/errors"
)

func TestExportServiceDepartmentRosterCSV(t *testing.T) {
	departments := newDepartmentStoreStub(models.Department{ID: "dept-1", Name: "Computer Science"})
	courses := newCourseStoreStub(
		slottedCourse("course-1", "CS101", "staff-1", "Monday", "08:00-10:00"),
		unassignedCourse("course-2", "CS202", "dept-1"),
	)
	staff := newStaffAdminStub(models.TeachingStaff{ID: "staff-1", Name: "Dr. Ada", DepartmentID: "dept-1"})
	svc := NewExportService(departments, courses, staff, true, nil)

	result, err := svc.DepartmentRoster(context.Background(), "dept-1", ExportFormatCSV)
	require.NoError(t, err)
	require.Equal(t, "text/csv", result.ContentType)
	require.True(t, strings.HasSuffix(result.FileName, ".csv"))

	payload := string(result.Payload)
	require.Contains(t, payload, "Code,Course,Credits,Staff,Day,Time,Room,Semester")
	require.Contains(t, payload, "Dr. Ada")
	require.Contains(t, payload, "CS202")
	// Unassigned courses render a dash, never an empty staff cell.
	require.Contains(t, payload, "CS202,CS202,0,-")
}

func TestExportServiceDepartmentRosterCoversLargeDepartment(t *testing.T) {
	departments := newDepartmentStoreStub(models.Department{ID: "dept-1", Name: "Computer Science"})

	members := make([]models.TeachingStaff, 25)
	roster := make([]models.Course, 25)
	for i := range roster {
		staffID := fmt.Sprintf("staff-%02d", i+1)
		members[i] = staffMember(staffID, fmt.Sprintf("Lecturer %02d", i+1), "dept-1")
		roster[i] = slottedCourse(fmt.Sprintf("course-%02d", i+1), fmt.Sprintf("CS%02d", i+1), staffID, "Monday", "08:00-10:00")
	}
	courses := newCourseStoreStub(roster...)
	staff := newStaffAdminStub(members...)
	svc := NewExportService(departments, courses, staff, true, nil)

	result, err := svc.DepartmentRoster(context.Background(), "dept-1", ExportFormatCSV)
	require.NoError(t, err)

	payload := string(result.Payload)
	// Every course appears with its staff name resolved, including those
	// past the first listing page.
	lines := strings.Split(strings.TrimSpace(payload), "\n")
	require.Len(t, lines, 26)
	require.Contains(t, payload, "CS25")
	require.Contains(t, payload, "Lecturer 25")
	require.NotContains(t, payload, "staff-25")
}

func TestExportServiceDepartmentRosterPDF(t *testing.T) {
	departments := newDepartmentStoreStub(models.Department{ID: "dept-1", Name: "Computer Science"})
	courses := newCourseStoreStub(unassignedCourse("course-1", "CS101", "dept-1"))
	svc := NewExportService(departments, courses, newStaffAdminStub(), true, nil)

	result, err := svc.DepartmentRoster(context.Background(), "dept-1", ExportFormatPDF)
	require.NoError(t, err)
	require.Equal(t, "application/pdf", result.ContentType)
	require.NotEmpty(t, result.Payload)
}

func TestExportServiceDisabled(t *testing.T) {
	departments := newDepartmentStoreStub(models.Department{ID: "dept-1", Name: "Computer Science"})
	svc := NewExportService(departments, newCourseStoreStub(), newStaffAdminStub(), false, nil)

	_, err := svc.DepartmentRoster(context.Background(), "dept-1", ExportFormatCSV)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceUnknownFormat(t *testing.T) {
	departments := newDepartmentStoreStub(models.Department{ID: "dept-1", Name: "Computer Science"})
	svc := NewExportService(departments, newCourseStoreStub(), newStaffAdminStub(), true, nil)

	_, err := svc.DepartmentRoster(context.Background(), "dept-1", ExportFormat("xlsx"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceUnknownDepartment(t *testing.T) {
	svc := NewExportService(newDepartmentStoreStub(), newCourseStoreStub(), newStaffAdminStub(), true, nil)

	_, err := svc.DepartmentRoster(context.Background(), "dept-404", ExportFormatPDF)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

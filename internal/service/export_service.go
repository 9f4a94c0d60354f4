package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-dept-api/internal/models"
	appErrors "github.com/noah-isme/uni-dept-api/pkg/errors"
	"github.com/noah-isme/uni-dept-api/pkg/export"
)

// ExportFormat names the supported roster output encodings.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries rendered roster bytes plus metadata for the
// download response.
type ExportResult struct {
	FileName    string
	ContentType string
	Payload     []byte
}

type rosterCourseLister interface {
	ListByDepartment(ctx context.Context, departmentID string) ([]models.Course, error)
}

type rosterStaffLister interface {
	ListByDepartment(ctx context.Context, departmentID string) ([]models.TeachingStaff, error)
}

// ExportService renders a department roster, one row per course with
// the bound staff member resolved by name.
type ExportService struct {
	departments departmentReader
	courses     rosterCourseLister
	staff       rosterStaffLister
	enabled     bool
	logger      *zap.Logger
}

// NewExportService creates a service instance.
func NewExportService(
	departments departmentReader,
	courses rosterCourseLister,
	staff rosterStaffLister,
	enabled bool,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		departments: departments,
		courses:     courses,
		staff:       staff,
		enabled:     enabled,
		logger:      logger,
	}
}

var (
	rosterColumns = []string{"Code", "Course", "Credits", "Staff", "Day", "Time", "Room", "Semester"}
	rosterWidths  = []float64{1, 2.5, 0.8, 1.8, 1, 1.2, 0.8, 1}
)

// DepartmentRoster renders every course of the department in the
// requested format.
func (s *ExportService) DepartmentRoster(ctx context.Context, departmentID string, format ExportFormat) (*ExportResult, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exports are disabled")
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	department, err := s.departments.FindByID(ctx, departmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}

	// The roster covers the whole department, so this read bypasses the
	// paginated listing path.
	courses, err := s.courses.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	staffNames, err := s.staffNames(ctx, departmentID)
	if err != nil {
		return nil, err
	}

	table := export.Table{
		Title:   fmt.Sprintf("Course Roster - %s", department.Name),
		Columns: rosterColumns,
		Widths:  rosterWidths,
		Rows:    make([][]string, 0, len(courses)),
	}
	for _, course := range courses {
		staffName := "-"
		if course.TeachingStaffID != nil {
			if name, ok := staffNames[*course.TeachingStaffID]; ok {
				staffName = name
			} else {
				staffName = *course.TeachingStaffID
			}
		}
		table.Rows = append(table.Rows, []string{
			course.Code,
			course.Name,
			strconv.Itoa(course.Credits),
			staffName,
			derefOrDash(course.ScheduleDay),
			derefOrDash(course.ScheduleTime),
			derefOrDash(course.Room),
			derefOrDash(course.Semester),
		})
	}

	stamp := time.Now().Format("20060102")
	switch format {
	case ExportFormatPDF:
		payload, err := export.RenderPDF(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf roster")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("roster-%s-%s.pdf", department.ID, stamp),
			ContentType: "application/pdf",
			Payload:     payload,
		}, nil
	default:
		payload, err := export.RenderCSV(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv roster")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("roster-%s-%s.csv", department.ID, stamp),
			ContentType: "text/csv",
			Payload:     payload,
		}, nil
	}
}

func (s *ExportService) staffNames(ctx context.Context, departmentID string) (map[string]string, error) {
	members, err := s.staff.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list staff")
	}
	names := make(map[string]string, len(members))
	for _, member := range members {
		names[member.ID] = member.Name
	}
	return names, nil
}

func derefOrDash(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}

package service

import (
	"context"
	"fmt"

	"github.com/noah-isme/uni-dept-api/internal/models"
	appErrors "github.com/noah-isme/uni-dept-api/pkg/errors"
)

type slotCourseReader interface {
	FindBySlot(ctx context.Context, q models.SlotQuery) ([]models.Course, error)
}

// ConflictResolver decides whether a prospective staff-course binding
// would double-book the staff member at a (day, time) slot. Both the
// direct assignment path and the request workflow go through this one
// predicate, so the two paths cannot drift apart.
type ConflictResolver struct {
	courses slotCourseReader
}

// NewConflictResolver constructs the resolver.
func NewConflictResolver(courses slotCourseReader) *ConflictResolver {
	return &ConflictResolver{courses: courses}
}

// FindConflicts returns the courses already occupying the staff member's
// slot, excluding excludeCourseID when non-empty. An incomplete slot
// (missing day or time) never conflicts: absence is not a wildcard, so
// two unscheduled courses on the same staff member are fine.
func (r *ConflictResolver) FindConflicts(ctx context.Context, staffID, day, timeSlot, excludeCourseID string) ([]models.SlotConflict, error) {
	if day == "" || timeSlot == "" {
		return nil, nil
	}
	courses, err := r.courses.FindBySlot(ctx, models.SlotQuery{
		TeachingStaffID: staffID,
		Day:             day,
		TimeSlot:        timeSlot,
		ExcludeCourseID: excludeCourseID,
	})
	if err != nil {
		return nil, err
	}
	conflicts := make([]models.SlotConflict, 0, len(courses))
	for _, course := range courses {
		conflicts = append(conflicts, models.SlotConflict{
			CourseID:   course.ID,
			CourseCode: course.Code,
			CourseName: course.Name,
			Day:        day,
			TimeSlot:   timeSlot,
		})
	}
	return conflicts, nil
}

// WouldConflict reports whether FindConflicts is non-empty.
func (r *ConflictResolver) WouldConflict(ctx context.Context, staffID, day, timeSlot, excludeCourseID string) (bool, error) {
	conflicts, err := r.FindConflicts(ctx, staffID, day, timeSlot, excludeCourseID)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

// slotConflictError wraps the colliding courses into the typed schedule
// conflict error surfaced to callers.
func slotConflictError(day, timeSlot string, conflicts []models.SlotConflict) error {
	detail := &models.SlotConflictError{
		Message:   fmt.Sprintf("staff member already teaches %s on %s %s", conflicts[0].CourseCode, day, timeSlot),
		Conflicts: conflicts,
	}
	return appErrors.Wrap(detail, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, appErrors.ErrScheduleConflict.Message)
}

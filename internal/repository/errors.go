package repository

import "errors"

// Sentinel errors returned by guarded conditional writes. Services
// re-read and classify the cause before surfacing a domain error.
var (
	// ErrStaleCourse means a version-guarded course write matched no row:
	// the course changed since it was read, or is gone.
	ErrStaleCourse = errors.New("course row stale or missing")

	// ErrCourseOccupied means a bind refused because the course already
	// has a staff member or the slot guard found a collision.
	ErrCourseOccupied = errors.New("course unavailable for binding")

	// ErrRequestNotPending means a status flip refused because the
	// request already left the pending state.
	ErrRequestNotPending = errors.New("request is not pending")
)

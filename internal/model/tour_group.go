package model

import "time"

// Status is the workflow state of a tour group.
type Status string

const (
	// StatusUngrouped is virtual: it describes a booking request without a
	// group and is never stored on a TourGroup.
	StatusUngrouped   Status = "Ungrouped"
	StatusPending     Status = "Pending"
	StatusReady       Status = "Ready"
	StatusPendingYale Status = "PendingYale"
	StatusConfirmed   Status = "Confirmed"
	StatusCompleted   Status = "Completed"
)

// Valid reports whether s is a status a TourGroup may hold.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReady, StatusPendingYale, StatusConfirmed, StatusCompleted:
		return true
	}
	return false
}

// TourGroup is a capacity-bounded bundle of booking requests sharing a
// date.  It corresponds to a row in the `tour_groups` table.  Members are
// not held here; they reference the group through TourGroupID.
//
// Fields:
//
//	ID            – opaque identifier (uuid).
//	RequestedDate – calendar date of the tour (YYYY-MM-DD).
//	Status        – workflow state.
//	GuideID       – assigned guide (nil if none).
//	ConfirmedAt   – visit time granted by the gallery; set only once the
//	                group reaches Confirmed.
//	Version       – incremented on every update; used for compare-and-set.
//	CreatedAt     – creation timestamp.
//	UpdatedAt     – last update timestamp.
type TourGroup struct {
	ID            string     `json:"id"`                     // tour_groups.id
	RequestedDate string     `json:"requested_date"`         // tour_groups.requested_date
	Status        Status     `json:"status"`                 // tour_groups.status
	GuideID       *string    `json:"guide_id,omitempty"`     // tour_groups.guide_id (nullable)
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"` // tour_groups.confirmed_at (nullable)
	Version       int        `json:"version"`                // tour_groups.version
	CreatedAt     time.Time  `json:"created_at"`             // tour_groups.created_at
	UpdatedAt     time.Time  `json:"updated_at"`             // tour_groups.updated_at
}

// GroupFilter narrows a listing of tour groups.  Zero values match all.
type GroupFilter struct {
	RequestedDate string
	Status        Status
	GuideID       string
}

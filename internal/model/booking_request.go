package model

import "time"

// BookingRequest is a single party's request to join a tour on a given
// date.  It corresponds to a row in the `booking_requests` table.  A
// request with a nil TourGroupID sits in the ungrouped pool for its date.
//
// Fields:
//
//	ID               – opaque identifier (uuid).
//	RequestedDate    – calendar date in YYYY-MM-DD form, no time component.
//	GroupSize        – number of people in the party (1..15).
//	ContactName      – name of the person who submitted the request.
//	ContactEmail     – contact e-mail address.
//	ContactPhone     – contact phone number.
//	PreferredGuideID – advisory guide preference (nil if none).
//	TourGroupID      – group the request belongs to (nil if ungrouped).
//	CreatedAt        – submission timestamp; defines first-come order.
type BookingRequest struct {
	ID               string    `json:"id"`                           // booking_requests.id
	RequestedDate    string    `json:"requested_date"`               // booking_requests.requested_date
	GroupSize        int       `json:"group_size"`                   // booking_requests.group_size
	ContactName      string    `json:"contact_name"`                 // booking_requests.contact_name
	ContactEmail     string    `json:"contact_email"`                // booking_requests.contact_email
	ContactPhone     string    `json:"contact_phone"`                // booking_requests.contact_phone
	PreferredGuideID *string   `json:"preferred_guide_id,omitempty"` // booking_requests.preferred_guide_id (nullable)
	TourGroupID      *string   `json:"tour_group_id,omitempty"`      // booking_requests.tour_group_id (nullable)
	CreatedAt        time.Time `json:"created_at"`                   // booking_requests.created_at
}

// Grouped reports whether the request currently belongs to a tour group.
func (r BookingRequest) Grouped() bool { return r.TourGroupID != nil }

// TotalPeople sums GroupSize over the given requests.  Group totals are
// always derived from membership and never stored.
func TotalPeople(reqs []BookingRequest) int {
	total := 0
	for _, r := range reqs {
		total += r.GroupSize
	}
	return total
}

// RequestIDs returns the identifiers of reqs in order.
func RequestIDs(reqs []BookingRequest) []string {
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ID)
	}
	return ids
}

// DateLayout is the wire and storage layout of requested dates.
const DateLayout = "2006-01-02"

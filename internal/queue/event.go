// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

// Queue names.  The routing key equals the queue name on the default
// exchange.
const (
	TourConfirmedQueue   = "tour.confirmed"
	BookingReceivedQueue = "booking.received"
)

// Participant is one booking inside a confirmed tour.
type Participant struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	GroupSize int    `json:"group_size"`
}

// TourConfirmedEvent is published once when a tour group reaches
// Confirmed.  It carries enough for a mailer to notify every participant
// without reading the database.
type TourConfirmedEvent struct {
	TourGroupID   string        `json:"tour_group_id"`
	RequestedDate string        `json:"requested_date"`
	ConfirmedAt   string        `json:"confirmed_at"`
	GuideID       string        `json:"guide_id,omitempty"`
	TotalPeople   int           `json:"total_people"`
	Participants  []Participant `json:"participants"`
}

// BookingReceivedEvent is published after a visitor's request is stored.
type BookingReceivedEvent struct {
	BookingRequestID string `json:"booking_request_id"`
	RequestedDate    string `json:"requested_date"`
	GroupSize        int    `json:"group_size"`
	ContactName      string `json:"contact_name"`
	ContactEmail     string `json:"contact_email"`
	PreferredGuideID string `json:"preferred_guide_id,omitempty"`
	ReceivedAt       string `json:"received_at"`
}

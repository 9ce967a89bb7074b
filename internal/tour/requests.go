package tour

import (
	"context"
	"net/mail"
	"strings"

	"github.com/iliyamo/tour-group-coordinator/internal/model"
)

// Party size bounds of a single booking request.
const (
	MinPartySize = 1
	MaxPartySize = MaxGroupPeople
)

// BookingInput is a visitor's tour request as submitted.
type BookingInput struct {
	RequestedDate    string `json:"requested_date"`
	GroupSize        int    `json:"group_size"`
	ContactName      string `json:"contact_name"`
	ContactEmail     string `json:"contact_email"`
	ContactPhone     string `json:"contact_phone"`
	PreferredGuideID string `json:"preferred_guide_id"`
}

func (in BookingInput) validate() (model.BookingRequest, error) {
	date, err := parseDate(strings.TrimSpace(in.RequestedDate))
	if err != nil {
		return model.BookingRequest{}, err
	}
	r := model.BookingRequest{
		RequestedDate:    date,
		GroupSize:        in.GroupSize,
		ContactName:      strings.TrimSpace(in.ContactName),
		ContactEmail:     strings.TrimSpace(in.ContactEmail),
		ContactPhone:     strings.TrimSpace(in.ContactPhone),
		PreferredGuideID: optionalID(strings.TrimSpace(in.PreferredGuideID)),
	}
	if r.GroupSize < MinPartySize || r.GroupSize > MaxPartySize {
		return r, invalid("group size must be between %d and %d", MinPartySize, MaxPartySize)
	}
	if r.ContactName == "" || r.ContactEmail == "" || r.ContactPhone == "" {
		return r, invalid("contact name, email and phone are required")
	}
	if _, err := mail.ParseAddress(r.ContactEmail); err != nil {
		return r, invalid("contact email %q is not valid", r.ContactEmail)
	}
	return r, nil
}

// SubmitBookingRequest stores a new ungrouped request and announces it
// in the background.  The preferred guide is recorded as given and never checked.
func (s *Service) SubmitBookingRequest(ctx context.Context, in BookingInput) (*model.BookingRequest, error) {
	r, err := in.validate()
	if err != nil {
		return nil, err
	}
	r.ID = s.newID()
	r.CreatedAt = s.now().UTC()
	if err := s.store.CreateRequest(ctx, &r); err != nil {
		return nil, storeErr(err)
	}
	logf("booking received request=%s date=%s size=%d", r.ID, r.RequestedDate, r.GroupSize)
	if s.notifier != nil {
		ev := r
		s.dispatch(ctx, "booking request="+r.ID, func(ctx context.Context) error {
			return s.notifier.BookingReceived(ctx, ev)
		})
	}
	return &r, nil
}

// CancelRequest deletes a booking request.  Its group, if any, keeps its
// remaining members.
func (s *Service) CancelRequest(ctx context.Context, requestID string) error {
	if requestID == "" {
		return invalid("request id is required")
	}
	if err := s.store.DeleteRequest(ctx, requestID); err != nil {
		return storeErr(err)
	}
	logf("booking cancelled request=%s", requestID)
	return nil
}

// ListGroups returns the groups matching f with their members.
func (s *Service) ListGroups(ctx context.Context, f model.GroupFilter) ([]GroupView, error) {
	if f.RequestedDate != "" {
		d, err := parseDate(f.RequestedDate)
		if err != nil {
			return nil, err
		}
		f.RequestedDate = d
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid("unknown status %q", f.Status)
	}
	groups, err := s.store.ListGroups(ctx, f)
	if err != nil {
		return nil, storeErr(err)
	}
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	members, err := s.store.ListRequestsByGroups(ctx, ids)
	if err != nil {
		return nil, storeErr(err)
	}
	byGroup := make(map[string][]model.BookingRequest, len(groups))
	for _, r := range members {
		byGroup[*r.TourGroupID] = append(byGroup[*r.TourGroupID], r)
	}
	out := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		out = append(out, newGroupView(g, byGroup[g.ID]))
	}
	return out, nil
}

// GetGroup returns one group with its members.
func (s *Service) GetGroup(ctx context.Context, id string) (*GroupView, error) {
	if id == "" {
		return nil, invalid("group id is required")
	}
	g, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	members, err := s.store.ListRequestsByGroups(ctx, []string{id})
	if err != nil {
		return nil, storeErr(err)
	}
	v := newGroupView(*g, members)
	return &v, nil
}

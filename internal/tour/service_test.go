package tour

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/tour-group-coordinator/internal/model"
	"github.com/iliyamo/tour-group-coordinator/internal/repository/memstore"
)

const testDate = "2026-11-03"

type fakeNotifier struct {
	mu        sync.Mutex
	confirmed []model.TourGroup
	members   [][]model.BookingRequest
	received  []string
	err       error
}

func (f *fakeNotifier) TourConfirmed(ctx context.Context, g model.TourGroup, members []model.BookingRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, g)
	f.members = append(f.members, members)
	return f.err
}

func (f *fakeNotifier) BookingReceived(ctx context.Context, r model.BookingRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, r.ID)
	return f.err
}

func newTestService(t *testing.T) (*Service, *memstore.Store, *fakeNotifier) {
	t.Helper()
	store := memstore.New()
	notifier := &fakeNotifier{}
	var mu sync.Mutex
	n := 0
	ids := func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%03d", n)
	}
	clock := func() time.Time { return time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC) }
	return NewService(store, notifier, WithClock(clock), WithIDs(ids)), store, notifier
}

func submit(t *testing.T, svc *Service, date string, size int) *model.BookingRequest {
	t.Helper()
	r, err := svc.SubmitBookingRequest(context.Background(), BookingInput{
		RequestedDate: date,
		GroupSize:     size,
		ContactName:   fmt.Sprintf("Party of %d", size),
		ContactEmail:  "visitor@example.com",
		ContactPhone:  "555-0100",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return r
}

func submitSizes(t *testing.T, svc *Service, date string, sizes ...int) []*model.BookingRequest {
	t.Helper()
	out := make([]*model.BookingRequest, 0, len(sizes))
	for _, s := range sizes {
		out = append(out, submit(t, svc, date, s))
	}
	return out
}

func TestAutoGroupConservesPeopleAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	submitSizes(t, svc, testDate, 5, 4, 6, 3)
	other := submit(t, svc, "2026-11-04", 7)

	res, err := svc.AutoGroup(ctx, testDate)
	if err != nil {
		t.Fatalf("auto group: %v", err)
	}
	if len(res.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(res.Groups))
	}
	if res.Groups[0].TotalPeople != 15 || res.Groups[0].RequestCount != 3 {
		t.Fatalf("first group = %d people / %d requests", res.Groups[0].TotalPeople, res.Groups[0].RequestCount)
	}
	if res.Groups[1].TotalPeople != 3 || res.Groups[1].RequestCount != 1 {
		t.Fatalf("second group = %d people / %d requests", res.Groups[1].TotalPeople, res.Groups[1].RequestCount)
	}
	for _, g := range res.Groups {
		if g.Status != model.StatusPending || g.GuideID != nil {
			t.Fatalf("auto group created %s group with guide %v", g.Status, g.GuideID)
		}
	}

	buckets, err := svc.ListUngroupedByDate(ctx, svc.Today())
	if err != nil {
		t.Fatalf("ungrouped: %v", err)
	}
	if len(buckets) != 1 || buckets[0].RequestedDate != "2026-11-04" || buckets[0].Requests[0].ID != other.ID {
		t.Fatalf("unexpected ungrouped buckets: %+v", buckets)
	}

	groups, err := svc.ListGroups(ctx, model.GroupFilter{RequestedDate: testDate})
	if err != nil {
		t.Fatalf("list groups: %v", err)
	}
	total := 0
	for _, g := range groups {
		total += g.TotalPeople
	}
	if total != 18 {
		t.Fatalf("grouped people = %d, want 18", total)
	}

	again, err := svc.AutoGroup(ctx, testDate)
	if err != nil {
		t.Fatalf("second auto group: %v", err)
	}
	if len(again.Groups) != 0 {
		t.Fatalf("second run created %d groups", len(again.Groups))
	}
	groups, _ = svc.ListGroups(ctx, model.GroupFilter{RequestedDate: testDate})
	if len(groups) != 2 {
		t.Fatalf("groups after second run = %d, want 2", len(groups))
	}
}

func TestAutoGroupRollsBackWhenMoveFails(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	submitSizes(t, svc, testDate, 12, 12)

	calls := 0
	store.FailMove = func(ids []string, from, to *string) error {
		calls++
		if calls == 2 {
			return errors.New("connection reset")
		}
		return nil
	}
	_, err := svc.AutoGroup(ctx, testDate)
	if !errors.Is(err, ErrDependency) {
		t.Fatalf("err = %v, want ErrDependency", err)
	}
	store.FailMove = nil

	groups, _ := svc.ListGroups(ctx, model.GroupFilter{})
	if len(groups) != 0 {
		t.Fatalf("rollback left %d groups", len(groups))
	}
	buckets, _ := svc.ListUngroupedByDate(ctx, testDate)
	if len(buckets) != 1 || buckets[0].RequestCount != 2 {
		t.Fatalf("requests not back in pool: %+v", buckets)
	}
}

func TestAutoGroupRejectsBadDate(t *testing.T) {
	svc, _, _ := newTestService(t)
	for _, d := range []string{"", "11/03/2026", "2026-13-01"} {
		if _, err := svc.AutoGroup(context.Background(), d); !errors.Is(err, ErrValidation) {
			t.Errorf("AutoGroup(%q) err = %v, want ErrValidation", d, err)
		}
	}
}

func TestListUngroupedByDate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	submit(t, svc, "2026-10-30", 4) // before today
	b1 := submit(t, svc, "2026-11-05", 2)
	a1 := submit(t, svc, "2026-11-02", 3)
	b2 := submit(t, svc, "2026-11-05", 6)
	a2 := submit(t, svc, "2026-11-02", 1)

	buckets, err := svc.ListUngroupedByDate(ctx, svc.Today())
	if err != nil {
		t.Fatalf("ungrouped: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("buckets = %d, want 2", len(buckets))
	}
	want := []struct {
		date   string
		ids    []string
		people int
	}{
		{"2026-11-02", []string{a1.ID, a2.ID}, 4},
		{"2026-11-05", []string{b1.ID, b2.ID}, 8},
	}
	for i, w := range want {
		b := buckets[i]
		if b.RequestedDate != w.date || b.TotalPeople != w.people || b.RequestCount != len(w.ids) {
			t.Fatalf("bucket %d = %s/%d/%d", i, b.RequestedDate, b.TotalPeople, b.RequestCount)
		}
		if fmt.Sprint(model.RequestIDs(b.Requests)) != fmt.Sprint(w.ids) {
			t.Fatalf("bucket %d order = %v, want %v", i, model.RequestIDs(b.Requests), w.ids)
		}
	}
}

func newPendingGroup(t *testing.T, svc *Service, sizes ...int) *GroupView {
	t.Helper()
	submitSizes(t, svc, testDate, sizes...)
	g, err := svc.CreateGroupForDate(context.Background(), testDate, "")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	return g
}

func TestConcurrentClaimSameGroup(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	g := newPendingGroup(t, svc, 6)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ClaimGroup(ctx, g.ID, fmt.Sprintf("guide-%d", i))
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			if winner != -1 {
				t.Fatalf("guides %d and %d both claimed", winner, i)
			}
			winner = i
			continue
		}
		if !errors.Is(err, ErrStateConflict) {
			t.Fatalf("claim %d: unexpected error %v", i, err)
		}
	}
	if winner == -1 {
		t.Fatal("no claim succeeded")
	}
	got, err := svc.GetGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	if got.GuideID == nil || *got.GuideID != fmt.Sprintf("guide-%d", winner) {
		t.Fatalf("guide = %v, want guide-%d", got.GuideID, winner)
	}
	if got.Status != model.StatusReady {
		t.Fatalf("status = %s, want Ready", got.Status)
	}
}

func TestClaimAndUnclaimGuards(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	g := newPendingGroup(t, svc, 4)

	if _, err := svc.ClaimGroup(ctx, g.ID, "g1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := svc.ClaimGroup(ctx, g.ID, "g2"); !errors.Is(err, ErrAlreadyClaimed) || !errors.Is(err, ErrStateConflict) {
		t.Fatalf("second claim err = %v, want ErrAlreadyClaimed", err)
	}
	if _, err := svc.UnclaimGroup(ctx, g.ID, "g2"); !errors.Is(err, ErrNotAssignee) {
		t.Fatalf("foreign unclaim err = %v, want ErrNotAssignee", err)
	}
	if _, err := svc.ClaimGroup(ctx, "missing", "g1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("claim missing err = %v, want ErrNotFound", err)
	}
	if _, err := svc.ClaimGroup(ctx, g.ID, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("claim without guide err = %v, want ErrValidation", err)
	}

	if _, err := svc.SubmitToAuthority(ctx, g.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.UnclaimGroup(ctx, g.ID, "g1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("unclaim after submit err = %v, want ErrInvalidState", err)
	}
	if _, err := svc.ClaimGroup(ctx, g.ID, "g3"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("claim after submit err = %v, want ErrInvalidState", err)
	}
}

func TestGuidePresenceInvariant(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	g := newPendingGroup(t, svc, 5)

	check := func(step string, got *model.TourGroup) {
		t.Helper()
		if (got.Status == model.StatusReady) != (got.GuideID != nil) {
			t.Fatalf("%s: status %s with guide %v", step, got.Status, got.GuideID)
		}
	}
	steps := []struct {
		name string
		run  func() (*model.TourGroup, error)
		want model.Status
	}{
		{"assign", func() (*model.TourGroup, error) { return svc.AssignGuide(ctx, g.ID, "g1") }, model.StatusReady},
		{"reassign", func() (*model.TourGroup, error) { return svc.AssignGuide(ctx, g.ID, "g2") }, model.StatusReady},
		{"clear", func() (*model.TourGroup, error) { return svc.AssignGuide(ctx, g.ID, "") }, model.StatusPending},
		{"claim", func() (*model.TourGroup, error) { return svc.ClaimGroup(ctx, g.ID, "g3") }, model.StatusReady},
		{"unclaim", func() (*model.TourGroup, error) { return svc.UnclaimGroup(ctx, g.ID, "g3") }, model.StatusPending},
		{"clear pending", func() (*model.TourGroup, error) { return svc.AssignGuide(ctx, g.ID, "") }, model.StatusPending},
	}
	for _, st := range steps {
		got, err := st.run()
		if err != nil {
			t.Fatalf("%s: %v", st.name, err)
		}
		if got.Status != st.want {
			t.Fatalf("%s: status %s, want %s", st.name, got.Status, st.want)
		}
		check(st.name, got)
	}
}

func TestAssignGuideAfterSubmitKeepsStatus(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	g := newPendingGroup(t, svc, 5)
	if _, err := svc.SubmitToAuthority(ctx, g.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, err := svc.AssignGuide(ctx, g.ID, "g1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got.Status != model.StatusPendingYale || got.GuideID == nil {
		t.Fatalf("got %s with guide %v", got.Status, got.GuideID)
	}
}

func TestLifecycleToCompletion(t *testing.T) {
	ctx := context.Background()
	svc, _, notifier := newTestService(t)
	g := newPendingGroup(t, svc, 5, 7)

	if _, err := svc.RecordAuthorityConfirmation(ctx, g.ID, "2026-11-03T10:30"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("confirm pending err = %v, want ErrInvalidState", err)
	}
	if _, err := svc.CompleteGroup(ctx, g.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("complete pending err = %v, want ErrInvalidState", err)
	}
	if _, err := svc.SubmitToAuthority(ctx, g.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.SubmitToAuthority(ctx, g.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double submit err = %v, want ErrInvalidState", err)
	}
	if _, err := svc.RecordAuthorityConfirmation(ctx, g.ID, "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty datetime err = %v, want ErrValidation", err)
	}
	if _, err := svc.RecordAuthorityConfirmation(ctx, g.ID, "tomorrow"); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad datetime err = %v, want ErrValidation", err)
	}

	res, err := svc.RecordAuthorityConfirmation(ctx, g.ID, "2026-11-03T10:30")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	want := time.Date(2026, 11, 3, 10, 30, 0, 0, time.UTC)
	if res.Group.Status != model.StatusConfirmed || res.Group.ConfirmedAt == nil || !res.Group.ConfirmedAt.Equal(want) {
		t.Fatalf("confirmed group = %+v", res.Group)
	}
	if !res.Notified {
		t.Fatal("confirmation not notified")
	}
	if len(notifier.confirmed) != 1 || notifier.confirmed[0].ID != g.ID || len(notifier.members[0]) != 2 {
		t.Fatalf("notifier saw %d confirmations", len(notifier.confirmed))
	}
	if _, err := svc.RecordAuthorityConfirmation(ctx, g.ID, "2026-11-03T11:00"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("re-confirm err = %v, want ErrInvalidState", err)
	}
	if len(notifier.confirmed) != 1 {
		t.Fatalf("notifier fired %d times", len(notifier.confirmed))
	}

	done, err := svc.CompleteGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != model.StatusCompleted || done.ConfirmedAt == nil {
		t.Fatalf("completed group = %+v", done)
	}
	if _, err := svc.CompleteGroup(ctx, g.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double complete err = %v, want ErrInvalidState", err)
	}
}

func TestConfirmationSurvivesNotifierFailure(t *testing.T) {
	ctx := context.Background()
	svc, _, notifier := newTestService(t)
	g := newPendingGroup(t, svc, 3)
	if _, err := svc.SubmitToAuthority(ctx, g.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	notifier.err = errors.New("broker down")

	res, err := svc.RecordAuthorityConfirmation(ctx, g.ID, "2026-11-03T09:00:00Z")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if res.Notified || res.NotifyError == "" {
		t.Fatalf("notify failure not reported: %+v", res)
	}
	got, _ := svc.GetGroup(ctx, g.ID)
	if got.Status != model.StatusConfirmed || got.ConfirmedAt == nil {
		t.Fatalf("confirmation rolled back: %+v", got.TourGroup)
	}
}

func TestConfirmedAtUsesServiceZone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	svc := NewService(memstore.New(), nil, WithLocation(loc))
	at, err := svc.ParseConfirmedAt("2026-11-03T10:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if want := time.Date(2026, 11, 3, 15, 0, 0, 0, time.UTC); !at.Equal(want) {
		t.Fatalf("at = %s, want %s", at, want)
	}
}

func TestCreateGroupFromUngroupedSelection(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	reqs := submitSizes(t, svc, testDate, 4, 5, 6)

	view, err := svc.CreateGroupFromSelection(ctx, Actor{ID: "admin-1", Admin: true}, Selection{
		Date:       testDate,
		RequestIDs: []string{reqs[0].ID, reqs[2].ID, reqs[0].ID},
	})
	if err != nil {
		t.Fatalf("create from selection: %v", err)
	}
	if view.Status != model.StatusPending || view.GuideID != nil {
		t.Fatalf("admin selection created %s group with guide %v", view.Status, view.GuideID)
	}
	if fmt.Sprint(model.RequestIDs(view.Requests)) != fmt.Sprint([]string{reqs[0].ID, reqs[2].ID}) {
		t.Fatalf("members = %v", model.RequestIDs(view.Requests))
	}
	if view.TotalPeople != 10 {
		t.Fatalf("total = %d, want 10", view.TotalPeople)
	}

	buckets, _ := svc.ListUngroupedByDate(ctx, testDate)
	if len(buckets) != 1 || fmt.Sprint(model.RequestIDs(buckets[0].Requests)) != fmt.Sprint([]string{reqs[1].ID}) {
		t.Fatalf("ungrouped after selection = %+v", buckets)
	}
}

func TestSplitGroupByGuide(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	src := newPendingGroup(t, svc, 5, 4, 6)
	moved := []string{src.Requests[1].ID, src.Requests[2].ID}

	view, err := svc.CreateGroupFromSelection(ctx, Actor{ID: "guide-7"}, Selection{
		SourceGroupID: src.ID,
		RequestIDs:    moved,
	})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if view.RequestedDate != testDate {
		t.Fatalf("date = %s, want %s", view.RequestedDate, testDate)
	}
	if view.Status != model.StatusReady || view.GuideID == nil || *view.GuideID != "guide-7" {
		t.Fatalf("guide split created %s group with guide %v", view.Status, view.GuideID)
	}
	if fmt.Sprint(model.RequestIDs(view.Requests)) != fmt.Sprint(moved) {
		t.Fatalf("new group members = %v, want %v", model.RequestIDs(view.Requests), moved)
	}
	left, _ := svc.GetGroup(ctx, src.ID)
	if left.RequestCount != 1 || left.TotalPeople != 5 {
		t.Fatalf("source group kept %d requests / %d people", left.RequestCount, left.TotalPeople)
	}
}

func TestCreateGroupFromSelectionValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	src := newPendingGroup(t, svc, 5)
	loose := submit(t, svc, testDate, 2)
	elsewhere := submit(t, svc, "2026-11-09", 2)
	admin := Actor{ID: "a", Admin: true}

	cases := []struct {
		name string
		sel  Selection
		want error
	}{
		{"empty", Selection{Date: testDate}, ErrValidation},
		{"blank ids", Selection{Date: testDate, RequestIDs: []string{" ", ""}}, ErrValidation},
		{"ungrouped needs date", Selection{RequestIDs: []string{loose.ID}}, ErrValidation},
		{"unknown request", Selection{Date: testDate, RequestIDs: []string{"nope"}}, ErrNotFound},
		{"grouped request from pool", Selection{Date: testDate, RequestIDs: []string{src.Requests[0].ID}}, ErrValidation},
		{"other date from pool", Selection{Date: testDate, RequestIDs: []string{elsewhere.ID}}, ErrValidation},
		{"loose request from group", Selection{SourceGroupID: src.ID, RequestIDs: []string{loose.ID}}, ErrValidation},
		{"date mismatch", Selection{SourceGroupID: src.ID, Date: "2026-11-09", RequestIDs: []string{src.Requests[0].ID}}, ErrValidation},
		{"unknown group", Selection{SourceGroupID: "nope", RequestIDs: []string{loose.ID}}, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateGroupFromSelection(ctx, admin, tc.sel); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	groups, _ := svc.ListGroups(ctx, model.GroupFilter{})
	if len(groups) != 1 {
		t.Fatalf("failed selections left %d groups", len(groups))
	}
}

func TestCreateGroupFromSelectionRollsBack(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	reqs := submitSizes(t, svc, testDate, 3, 3)
	store.FailMove = func(ids []string, from, to *string) error { return errors.New("lock wait timeout") }

	_, err := svc.CreateGroupFromSelection(ctx, Actor{ID: "a", Admin: true}, Selection{
		Date:       testDate,
		RequestIDs: []string{reqs[0].ID},
	})
	if !errors.Is(err, ErrDependency) {
		t.Fatalf("err = %v, want ErrDependency", err)
	}
	store.FailMove = nil
	groups, _ := svc.ListGroups(ctx, model.GroupFilter{})
	if len(groups) != 0 {
		t.Fatalf("rollback left %d groups", len(groups))
	}
	r, _ := svc.store.GetRequest(ctx, reqs[0].ID)
	if r.TourGroupID != nil {
		t.Fatalf("request moved despite rollback")
	}
}

func TestConcurrentSelectionsOfSameRequest(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	r := submit(t, svc, testDate, 4)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	views := make([]*GroupView, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			views[i], errs[i] = svc.CreateGroupFromSelection(ctx, Actor{ID: fmt.Sprintf("g%d", i)}, Selection{
				Date:       testDate,
				RequestIDs: []string{r.ID},
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	var winner *GroupView
	for i, err := range errs {
		if err == nil {
			wins++
			winner = views[i]
			continue
		}
		if !errors.Is(err, ErrStateConflict) && !errors.Is(err, ErrValidation) {
			t.Fatalf("selection %d: unexpected error %v", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
	got, _ := svc.store.GetRequest(ctx, r.ID)
	if got.TourGroupID == nil || *got.TourGroupID != winner.ID {
		t.Fatalf("request group = %v, want %s", got.TourGroupID, winner.ID)
	}
	groups, _ := svc.ListGroups(ctx, model.GroupFilter{})
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
}

func TestCreateGroupForDate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	submitSizes(t, svc, testDate, 3, 9)
	submit(t, svc, "2026-11-04", 2)

	view, err := svc.CreateGroupForDate(ctx, testDate, "g1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.Status != model.StatusReady || view.RequestCount != 2 || view.TotalPeople != 12 {
		t.Fatalf("view = %s %d/%d", view.Status, view.RequestCount, view.TotalPeople)
	}
	empty, err := svc.CreateGroupForDate(ctx, testDate, "")
	if err != nil {
		t.Fatalf("create empty: %v", err)
	}
	if empty.Status != model.StatusPending || empty.RequestCount != 0 {
		t.Fatalf("empty view = %s %d", empty.Status, empty.RequestCount)
	}
}

func TestSubmitBookingRequestValidation(t *testing.T) {
	svc, _, notifier := newTestService(t)
	valid := BookingInput{
		RequestedDate: testDate,
		GroupSize:     4,
		ContactName:   "Grace",
		ContactEmail:  "grace@example.com",
		ContactPhone:  "555-0101",
	}
	cases := []struct {
		name   string
		mutate func(*BookingInput)
		ok     bool
	}{
		{"valid", func(*BookingInput) {}, true},
		{"max size", func(in *BookingInput) { in.GroupSize = 15 }, true},
		{"zero size", func(in *BookingInput) { in.GroupSize = 0 }, false},
		{"oversized", func(in *BookingInput) { in.GroupSize = 16 }, false},
		{"no date", func(in *BookingInput) { in.RequestedDate = "" }, false},
		{"bad date", func(in *BookingInput) { in.RequestedDate = "2026-02-30" }, false},
		{"no name", func(in *BookingInput) { in.ContactName = " " }, false},
		{"no phone", func(in *BookingInput) { in.ContactPhone = "" }, false},
		{"bad email", func(in *BookingInput) { in.ContactEmail = "grace" }, false},
	}
	accepted := 0
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			r, err := svc.SubmitBookingRequest(context.Background(), in)
			if tc.ok {
				if err != nil {
					t.Fatalf("submit: %v", err)
				}
				if r.TourGroupID != nil || r.ID == "" {
					t.Fatalf("request = %+v", r)
				}
				accepted++
				return
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
	if err := svc.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(notifier.received) != accepted {
		t.Fatalf("booking events = %d, want %d", len(notifier.received), accepted)
	}
}

func TestCancelRequest(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	g := newPendingGroup(t, svc, 4, 6)

	if err := svc.CancelRequest(ctx, g.Requests[0].ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := svc.CancelRequest(ctx, g.Requests[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second cancel err = %v, want ErrNotFound", err)
	}
	got, _ := svc.GetGroup(ctx, g.ID)
	if got.TotalPeople != 6 || got.RequestCount != 1 {
		t.Fatalf("group after cancel = %d people / %d requests", got.TotalPeople, got.RequestCount)
	}
}

func TestCalendar(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	submitSizes(t, svc, "2026-11-20", 3)
	submitSizes(t, svc, "2026-11-03", 5, 4)
	submitSizes(t, svc, "2026-12-01", 2)
	submitSizes(t, svc, "2026-10-31", 2)
	if _, err := svc.AutoGroup(ctx, "2026-11-03"); err != nil {
		t.Fatalf("auto group: %v", err)
	}

	days, err := svc.Calendar(ctx, 2026, 11)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	want := []CalendarDay{{"2026-11-03", 9, 2}, {"2026-11-20", 3, 1}}
	if fmt.Sprint(days) != fmt.Sprint(want) {
		t.Fatalf("days = %v, want %v", days, want)
	}
	if _, err := svc.Calendar(ctx, 2026, 13); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad month err = %v, want ErrValidation", err)
	}
}

func TestDateDetail(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	submitSizes(t, svc, testDate, 5, 4, 6, 3)
	res, err := svc.AutoGroup(ctx, testDate)
	if err != nil {
		t.Fatalf("auto group: %v", err)
	}
	full := res.Groups[0]
	if _, err := svc.AssignGuide(ctx, full.ID, "g1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	submit(t, svc, testDate, 2)

	names := func(ctx context.Context, ids []string) (map[string]string, error) {
		return map[string]string{"g1": "Ada Lovelace"}, nil
	}
	d, err := svc.DateDetail(ctx, testDate, names)
	if err != nil {
		t.Fatalf("date detail: %v", err)
	}
	if d.TotalPeople != 18 || d.RequestCount != 5 {
		t.Fatalf("totals = %d people / %d requests", d.TotalPeople, d.RequestCount)
	}
	if d.CurrentForming == nil || d.CurrentGroupPeople != 3 || d.SpotsLeft != 12 {
		t.Fatalf("forming = %+v spots %d", d.CurrentForming, d.SpotsLeft)
	}
	if d.GroupsCount != 1 || d.Groups[0].ID != full.ID || d.Groups[0].GuideName == nil || *d.Groups[0].GuideName != "Ada Lovelace" {
		t.Fatalf("groups = %+v", d.Groups)
	}

	lookupErr := func(ctx context.Context, ids []string) (map[string]string, error) {
		return nil, errors.New("db gone")
	}
	if _, err := svc.DateDetail(ctx, testDate, lookupErr); !errors.Is(err, ErrDependency) {
		t.Fatalf("lookup failure err = %v, want ErrDependency", err)
	}
}

// gatedNotifier blocks every send until release is closed and records the
// context error each send observed once unblocked.
type gatedNotifier struct {
	release chan struct{}
	mu      sync.Mutex
	ctxErrs []error
}

func (g *gatedNotifier) wait(ctx context.Context) error {
	<-g.release
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	return nil
}

func (g *gatedNotifier) TourConfirmed(ctx context.Context, _ model.TourGroup, _ []model.BookingRequest) error {
	return g.wait(ctx)
}

func (g *gatedNotifier) BookingReceived(ctx context.Context, _ model.BookingRequest) error {
	return g.wait(ctx)
}

func TestBlockedNotifierDoesNotDelayBooking(t *testing.T) {
	gate := &gatedNotifier{release: make(chan struct{})}
	svc := NewService(memstore.New(), gate)

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	r, err := svc.SubmitBookingRequest(ctx, BookingInput{
		RequestedDate: testDate,
		GroupSize:     3,
		ContactName:   "Ada",
		ContactEmail:  "ada@example.com",
		ContactPhone:  "555-0100",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if took := time.Since(start); took > time.Second {
		t.Fatalf("submit took %s with the notifier blocked", took)
	}
	if r.ID == "" {
		t.Fatal("request not stored")
	}

	// the caller hanging up must not cancel the pending send
	cancel()
	close(gate.release)
	if err := svc.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(gate.ctxErrs) != 1 || gate.ctxErrs[0] != nil {
		t.Fatalf("send contexts = %v, want one live context", gate.ctxErrs)
	}
}

func TestConfirmationReportsPendingNotification(t *testing.T) {
	ctx := context.Background()
	seed, store, _ := newTestService(t)
	g := newPendingGroup(t, seed, 4)
	if _, err := seed.SubmitToAuthority(ctx, g.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	gate := &gatedNotifier{release: make(chan struct{})}
	svc := NewService(store, gate, WithNotifyTimeouts(time.Minute, 20*time.Millisecond))
	start := time.Now()
	res, err := svc.RecordAuthorityConfirmation(ctx, g.ID, "2026-11-03T09:00:00Z")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if took := time.Since(start); took > time.Second {
		t.Fatalf("confirm took %s with the notifier blocked", took)
	}
	if res.Notified || !res.NotifyPending || res.NotifyError != "" {
		t.Fatalf("confirmation = %+v, want pending notification", res)
	}
	if res.Group.Status != model.StatusConfirmed {
		t.Fatalf("status = %s", res.Group.Status)
	}

	close(gate.release)
	if err := svc.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(gate.ctxErrs) != 1 {
		t.Fatalf("sends = %d, want 1", len(gate.ctxErrs))
	}
}

func TestDrainHonoursContext(t *testing.T) {
	gate := &gatedNotifier{release: make(chan struct{})}
	defer close(gate.release)
	svc := NewService(memstore.New(), gate)
	if _, err := svc.SubmitBookingRequest(context.Background(), BookingInput{
		RequestedDate: testDate,
		GroupSize:     2,
		ContactName:   "Lin",
		ContactEmail:  "lin@example.com",
		ContactPhone:  "555-0102",
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := svc.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("drain err = %v, want deadline exceeded", err)
	}
}

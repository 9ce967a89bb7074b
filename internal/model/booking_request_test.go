package model

import "testing"

func TestBookingRequestGrouped(t *testing.T) {
	gid := "g1"
	reqs := []BookingRequest{
		{ID: "a", GroupSize: 4},
		{ID: "b", GroupSize: 6, TourGroupID: &gid},
	}
	if reqs[0].Grouped() || !reqs[1].Grouped() {
		t.Fatalf("grouped = %v %v", reqs[0].Grouped(), reqs[1].Grouped())
	}
	if got := TotalPeople(reqs); got != 10 {
		t.Fatalf("TotalPeople = %d, want 10", got)
	}
}

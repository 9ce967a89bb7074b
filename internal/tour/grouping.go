package tour

import "github.com/iliyamo/tour-group-coordinator/internal/model"

// Packing thresholds, in people.
const (
	MaxGroupPeople      = 15 // capacity of a tour group
	TargetMinPeople     = 12 // a group reaching [12, 15] is closed
	StandaloneMinPeople = 10 // a group of at least 10 may stand alone
)

// Bucket is one group proposed by Plan.
type Bucket struct {
	Requests []model.BookingRequest
	Total    int
	// Forced is set when a request was added past capacity because the
	// running group was still under StandaloneMinPeople.
	Forced bool
	// Leftover is set for a trailing group under StandaloneMinPeople that
	// could not be merged into the previous bucket.
	Leftover bool
}

// IDs returns the request ids of the bucket in order.
func (b Bucket) IDs() []string { return model.RequestIDs(b.Requests) }

// Plan partitions reqs, taken in the given order, into buckets with a
// single greedy pass.  A request that would overflow the running group
// closes it when the group already holds StandaloneMinPeople, otherwise
// it is added anyway.  A group is closed as soon as its total lands in
// [TargetMinPeople, MaxGroupPeople].  A trailing group under
// StandaloneMinPeople is merged into the last closed bucket only when the
// result stays within capacity.  Only the last bucket is considered.
func Plan(reqs []model.BookingRequest) []Bucket {
	var out []Bucket
	var cur Bucket

	closeCur := func() {
		out = append(out, cur)
		cur = Bucket{}
	}

	for _, r := range reqs {
		size := r.GroupSize
		if cur.Total+size > MaxGroupPeople {
			if cur.Total >= StandaloneMinPeople {
				closeCur()
				cur.Requests = append(cur.Requests, r)
				cur.Total = size
				continue
			}
			cur.Requests = append(cur.Requests, r)
			cur.Total += size
			cur.Forced = true
			continue
		}
		cur.Requests = append(cur.Requests, r)
		cur.Total += size
		if cur.Total >= TargetMinPeople && cur.Total <= MaxGroupPeople {
			closeCur()
		}
	}

	if len(cur.Requests) == 0 {
		return out
	}
	switch {
	case cur.Total >= StandaloneMinPeople:
		out = append(out, cur)
	case len(out) > 0 && out[len(out)-1].Total+cur.Total <= MaxGroupPeople:
		last := &out[len(out)-1]
		last.Requests = append(last.Requests, cur.Requests...)
		last.Total += cur.Total
		last.Forced = last.Forced || cur.Forced
	default:
		cur.Leftover = true
		out = append(out, cur)
	}
	return out
}

package models

// ActivityStats is a single-pass aggregate over the records of one activity.
type ActivityStats struct {
	Activity           ActivityRef `json:"activity"`
	TotalAttendees     int         `json:"total_attendees"`
	CurrentlyCheckedIn int         `json:"currently_checked_in"`
	CheckedOut         int         `json:"checked_out"`
	NoShows            int         `json:"no_shows"`
	Cancellations      int         `json:"cancellations"`
}

// Add folds one record status into the aggregate.
func (s *ActivityStats) Add(status Status) {
	s.TotalAttendees++
	switch status {
	case StatusCheckedIn:
		s.CurrentlyCheckedIn++
	case StatusCheckedOut:
		s.CheckedOut++
	case StatusNoShow:
		s.NoShows++
	case StatusCancelled:
		s.Cancellations++
	}
}

// Admission is the capacity gate's decision for one check-in attempt.
type Admission struct {
	Admitted bool
	Reason   RejectionReason
	// Current is the occupancy after a successful admit, or the observed
	// occupancy at rejection time.
	Current int
}

// RejectionReason explains a denied admission.
type RejectionReason string

const (
	ReasonNone         RejectionReason = ""
	ReasonAtCapacity   RejectionReason = "AT_CAPACITY"
	ReasonNotAccepting RejectionReason = "NOT_ACCEPTING"
)

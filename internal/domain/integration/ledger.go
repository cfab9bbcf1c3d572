package integration

import "time"

// MaxProcessedIDs caps the processed set
const MaxProcessedIDs = 500

// PollDateLayout is the layout of the ledger's poll cursor
const PollDateLayout = "2006-01-02"

// ---------------------------------------------------------------------------
// ProcessedSet
// ---------------------------------------------------------------------------

// ProcessedSet is a fixed-capacity set of event IDs evicting in insertion order.
// Membership checks do not refresh an entry's position.
type ProcessedSet struct {
	capacity int
	order    []string
	members  map[string]struct{}
}

// NewProcessedSet creates an empty set holding at most capacity IDs
func NewProcessedSet(capacity int) *ProcessedSet {
	if capacity <= 0 {
		capacity = MaxProcessedIDs
	}
	return &ProcessedSet{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		members:  make(map[string]struct{}, capacity),
	}
}

// Contains reports whether id has been processed
func (s *ProcessedSet) Contains(id string) bool {
	_, ok := s.members[id]
	return ok
}

// Add inserts id, evicting the oldest entries past capacity.
// It returns the evicted IDs; adding an existing ID is a no-op.
func (s *ProcessedSet) Add(id string) []string {
	if id == "" || s.Contains(id) {
		return nil
	}
	s.order = append(s.order, id)
	s.members[id] = struct{}{}

	var evicted []string
	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.members, oldest)
		evicted = append(evicted, oldest)
	}
	return evicted
}

// Remove forgets id so the next poll reprocesses it
func (s *ProcessedSet) Remove(id string) bool {
	if !s.Contains(id) {
		return false
	}
	delete(s.members, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of IDs held
func (s *ProcessedSet) Len() int {
	return len(s.order)
}

// IDs returns the IDs oldest first
func (s *ProcessedSet) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// ---------------------------------------------------------------------------
// Ledger
// ---------------------------------------------------------------------------

// Ledger is the poller's durable progress: poll cursor plus processed events
type Ledger struct {
	// LastPollDate is the createDateStart of the next poll; zero before the first run
	LastPollDate time.Time
	Processed    *ProcessedSet
}

// NewLedger returns an empty ledger
func NewLedger() *Ledger {
	return &Ledger{Processed: NewProcessedSet(MaxProcessedIDs)}
}

// PollStart returns the date to poll from: the cursor, or now minus lookback on first run
func (l *Ledger) PollStart(now time.Time, lookback time.Duration) time.Time {
	if !l.LastPollDate.IsZero() {
		return l.LastPollDate
	}
	return truncateToDate(now.Add(-lookback))
}

// Advance moves the cursor to the date of now
func (l *Ledger) Advance(now time.Time) {
	l.LastPollDate = truncateToDate(now)
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

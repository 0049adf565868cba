package records

import "slices"

// Outcome is what a conditional write did with one record.
type Outcome int

const (
	Inserted Outcome = iota
	Updated
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	}
	return "skipped"
}

// Superseder is a record that knows whether it may replace a stored one.
type Superseder[T any] interface {
	Supersedes(existing T) bool
}

// Decide applies the monotonic max merge rule: a missing key is inserted,
// an existing one is only overwritten when the incoming record supersedes it
// or the write is forced. Ties are skipped.
func Decide[T Superseder[T]](incoming T, existing T, exists bool, force bool) Outcome {
	if !exists {
		return Inserted
	}
	if force || incoming.Supersedes(existing) {
		return Updated
	}
	return Skipped
}

type WriteOptions struct {
	// Force overwrites existing rows even when the incoming record does not supersede them.
	Force bool
}

// WriteStats summarizes one write call.
type WriteStats struct {
	Inserted int
	Updated  int
	Skipped  int
	Failed   int
	// UnknownStores counts records dropped because their store has no remote identity.
	UnknownStores int
	// Unknown lists each unresolved store identity once.
	Unknown []string
}

func (s *WriteStats) Count(o Outcome) {
	switch o {
	case Inserted:
		s.Inserted++
	case Updated:
		s.Updated++
	case Skipped:
		s.Skipped++
	}
}

// AddUnknown records a dropped record whose store could not be resolved.
func (s *WriteStats) AddUnknown(identity string) {
	s.UnknownStores++
	if !slices.Contains(s.Unknown, identity) {
		s.Unknown = append(s.Unknown, identity)
	}
}

// Add folds other into s.
func (s *WriteStats) Add(other WriteStats) {
	s.Inserted += other.Inserted
	s.Updated += other.Updated
	s.Skipped += other.Skipped
	s.Failed += other.Failed
	s.UnknownStores += other.UnknownStores
	for _, u := range other.Unknown {
		if !slices.Contains(s.Unknown, u) {
			s.Unknown = append(s.Unknown, u)
		}
	}
}

// Written is the number of records that changed the store.
func (s WriteStats) Written() int {
	return s.Inserted + s.Updated
}

// Total is the number of records the write call was given.
func (s WriteStats) Total() int {
	return s.Inserted + s.Updated + s.Skipped + s.Failed + s.UnknownStores
}

package domain

import "fmt"

// EntryRecord is the serializable form of a history entry. State must be
// JSON-marshalable for the persistent stores; the engine itself treats it
// as opaque.
type EntryRecord struct {
	ID             string         `json:"id"`
	Key            string         `json:"key"`
	URL            string         `json:"url"`
	SameDocument   bool           `json:"same_document,omitempty"`
	State          any            `json:"state,omitempty"`
	NavigationType NavigationType `json:"navigation_type,omitempty"`
}

// Snapshot captures an entry sequence and its current pointer so a host
// can persist and restore navigation across process boundaries.
type Snapshot struct {
	Entries      []EntryRecord `json:"entries"`
	CurrentIndex int           `json:"current_index"`
}

// Validate checks structural consistency: the index addresses the
// sequence (or is -1 for an empty one) and keys are unique per slot.
func (s *Snapshot) Validate() error {
	if len(s.Entries) == 0 {
		if s.CurrentIndex != -1 {
			return fmt.Errorf("%w: empty snapshot with current index %d", ErrInvalidOperation, s.CurrentIndex)
		}
		return nil
	}
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Entries) {
		return fmt.Errorf("%w: current index %d outside %d entries", ErrInvalidOperation, s.CurrentIndex, len(s.Entries))
	}
	seenKeys := make(map[string]struct{}, len(s.Entries))
	seenIDs := make(map[string]struct{}, len(s.Entries))
	for _, rec := range s.Entries {
		if rec.ID == "" || rec.Key == "" {
			return fmt.Errorf("%w: snapshot entry missing identity", ErrInvalidOperation)
		}
		if _, dup := seenIDs[rec.ID]; dup {
			return fmt.Errorf("%w: duplicate entry id %s", ErrInvalidOperation, rec.ID)
		}
		if _, dup := seenKeys[rec.Key]; dup {
			return fmt.Errorf("%w: duplicate entry key %s", ErrInvalidOperation, rec.Key)
		}
		seenIDs[rec.ID] = struct{}{}
		seenKeys[rec.Key] = struct{}{}
	}
	return nil
}

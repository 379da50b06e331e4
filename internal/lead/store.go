package lead

import "sync"

// Store is a thread-safe holder for the conversation's [Record].
// The zero value is ready to use.
type Store struct {
	mu  sync.RWMutex
	rec Record
}

// NewStore returns an initialised [Store].
func NewStore() *Store {
	return &Store{}
}

// Apply merges u into the record. Only fields that are present and non-empty
// overwrite; a field the model omits (or sends as "") keeps its previous
// value. It returns the JSON names of the fields that actually changed, in
// schema order.
func (s *Store) Apply(u Update) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []string
	for _, f := range []struct {
		name string
		src  *string
		dst  *string
	}{
		{"name", u.Name, &s.rec.Name},
		{"company", u.Company, &s.rec.Company},
		{"email", u.Email, &s.rec.Email},
		{"role", u.Role, &s.rec.Role},
		{"useCase", u.UseCase, &s.rec.UseCase},
		{"teamSize", u.TeamSize, &s.rec.TeamSize},
		{"timeline", u.Timeline, &s.rec.Timeline},
		{"summary", u.Summary, &s.rec.Summary},
	} {
		if f.src == nil || *f.src == "" || *f.src == *f.dst {
			continue
		}
		*f.dst = *f.src
		changed = append(changed, f.name)
	}
	return changed
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec
}

// Reset clears the record, typically between conversations.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = Record{}
}

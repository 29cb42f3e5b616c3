package notify

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/whatsport/notification-core/internal/logger"
)

// DefaultRetainLimit caps how many notifications the store keeps in memory.
const DefaultRetainLimit = 50

// Store is the single source of truth for the current user's notifications
// and unread count. It is mutated only by the feed subscription
// (ApplySnapshot) and the reconciler (ApplyLocalPatch / Remove); it never
// talks to the network itself.
//
// The unread count is maintained incrementally and must always equal the
// number of unread entries in the held sequence. ApplySnapshot recomputes
// it from scratch; every other mutation adjusts it in step with the entry
// it touches.
type Store struct {
	mu      sync.Mutex
	userID  string
	ready   bool
	entries []Notification
	unread  int
	limit   int
	logger  *logger.Logger
}

// NewStore creates an empty store retaining at most limit entries.
// A non-positive limit falls back to DefaultRetainLimit.
func NewStore(limit int, log *logger.Logger) *Store {
	if limit <= 0 {
		limit = DefaultRetainLimit
	}
	return &Store{
		limit:  limit,
		logger: log.WithComponent("notification-store"),
	}
}

// Initialize binds the store to a user and resets all held state. Called
// on sign-in and on every user switch; the previous user's entries are
// discarded wholesale.
func (s *Store) Initialize(userID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.userID = userID
	s.ready = true
	s.entries = nil
	s.unread = 0

	s.logger.Debug("store initialized", slog.String("user_id", userID))
	return nil
}

// Reset unbinds the store on sign-out.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userID = ""
	s.ready = false
	s.entries = nil
	s.unread = 0
}

// ApplySnapshot replaces the held sequence wholesale. The snapshot wins
// over any pending local patch; a stale server read can therefore revert
// an optimistic mark-as-read until the next write propagates. Idempotent.
func (s *Store) ApplySnapshot(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return ErrNotInitialized
	}

	entries := make([]Notification, 0, len(snap))
	for i := range snap {
		// Entries for another user never enter the store. Guards the
		// user-switch invariant against a late-arriving old snapshot.
		if snap[i].UserID != "" && snap[i].UserID != s.userID {
			continue
		}
		entries = append(entries, snap[i])
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if len(entries) > s.limit {
		entries = entries[:s.limit]
	}

	unread := 0
	for i := range entries {
		if !entries[i].Read {
			unread++
		}
	}

	s.entries = entries
	s.unread = unread

	s.logger.Debug("snapshot applied",
		slog.Int("entries", len(entries)),
		slog.Int("unread", unread))
	return nil
}

// ApplyLocalPatch mutates a single entry in place, keeping the unread
// count in step with any read-flag change. Unread never goes below zero.
func (s *Store) ApplyLocalPatch(id string, mutate func(*Notification)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return ErrNotInitialized
	}

	for i := range s.entries {
		if s.entries[i].ID != id {
			continue
		}

		wasRead := s.entries[i].Read
		mutate(&s.entries[i])

		switch {
		case !wasRead && s.entries[i].Read:
			if s.unread > 0 {
				s.unread--
			}
		case wasRead && !s.entries[i].Read:
			s.unread++
		}
		return nil
	}

	return ErrNotFound
}

// Remove deletes an entry from the sequence, returning the removed entry
// so a failed backend delete can restore it.
func (s *Store) Remove(id string) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return Notification{}, ErrNotInitialized
	}

	for i := range s.entries {
		if s.entries[i].ID != id {
			continue
		}

		removed := s.entries[i]
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		if !removed.Read && s.unread > 0 {
			s.unread--
		}
		return removed, nil
	}

	return Notification{}, ErrNotFound
}

// Restore re-inserts a previously removed entry in timestamp order.
// Used by the reconciler's rollback path.
func (s *Store) Restore(n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return ErrNotInitialized
	}

	idx := sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].CreatedAt.After(n.CreatedAt)
	})
	s.entries = append(s.entries, Notification{})
	copy(s.entries[idx+1:], s.entries[idx:])
	s.entries[idx] = n

	if len(s.entries) > s.limit {
		dropped := s.entries[len(s.entries)-1]
		s.entries = s.entries[:len(s.entries)-1]
		if !dropped.Read && dropped.ID != n.ID && s.unread > 0 {
			s.unread--
		}
	}

	if !n.Read && s.contains(n.ID) {
		s.unread++
	}
	return nil
}

func (s *Store) contains(id string) bool {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return true
		}
	}
	return false
}

// UnreadCount returns the incrementally maintained unread count.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// List returns a copy of the entries matching the filter, newest first.
func (s *Store) List(filter Filter) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Notification, 0, len(s.entries))
	for i := range s.entries {
		if filter.Match(&s.entries[i]) {
			out = append(out, s.entries[i])
		}
	}
	return out
}

// Len returns the number of held entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Ready reports whether Initialize has been called for a user.
func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// UserID returns the user the store is bound to.
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

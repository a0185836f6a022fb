package uci

import (
	"errors"
	"sync"
)

var ErrSlotBusy = errors.New("engine session already running for this game")

// Ticket identifies one reservation; a stale ticket can neither attach nor release.
type Ticket uint64

type slot struct {
	ticket  Ticket
	session *Session
}

// Slots tracks the running session of each game so that a game never has
// two engines thinking at once.
type Slots struct {
	mu    sync.Mutex
	next  Ticket
	slots map[string]*slot
}

func NewSlots() *Slots {
	return &Slots{slots: make(map[string]*slot)}
}

// Reserve claims the slot for key before a session is spawned.
func (s *Slots) Reserve(key string) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[key]; ok {
		return 0, ErrSlotBusy
	}
	s.next++
	s.slots[key] = &slot{ticket: s.next}
	return s.next, nil
}

// Attach records the session started under a reservation. It reports
// false when the reservation was cancelled in the meantime.
func (s *Slots) Attach(key string, t Ticket, session *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.slots[key]
	if !ok || cur.ticket != t {
		return false
	}
	cur.session = session
	return true
}

func (s *Slots) Release(key string, t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.slots[key]; ok && cur.ticket == t {
		delete(s.slots, key)
	}
}

func (s *Slots) Busy(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[key]
	return ok
}

// Cancel abandons the session running under key, if any.
func (s *Slots) Cancel(key string) bool {
	s.mu.Lock()
	cur, ok := s.slots[key]
	delete(s.slots, key)
	s.mu.Unlock()
	if ok && cur.session != nil {
		cur.session.Cancel()
	}
	return ok
}

// CancelAll abandons every running session.
func (s *Slots) CancelAll() {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.slots))
	for _, cur := range s.slots {
		if cur.session != nil {
			sessions = append(sessions, cur.session)
		}
	}
	s.slots = make(map[string]*slot)
	s.mu.Unlock()

	for _, session := range sessions {
		session.Cancel()
	}
}

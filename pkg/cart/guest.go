package cart

import (
	"sync"

	"github.com/google/uuid"
)

// GuestLine is one cart line held on the client before sign-in. Lines get
// random ids so they can be edited before any server id exists.
type GuestLine struct {
	ID        string  `json:"id"`
	ProductID uint    `json:"product_id"`
	ColorID   *uint   `json:"color_id,omitempty"`
	SizeID    *uint   `json:"size_id,omitempty"`
	Quantity  int     `json:"quantity"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
}

// GuestStore persists the guest cart between sessions. Implementations
// must be safe for concurrent use.
type GuestStore interface {
	Lines() []GuestLine
	Add(line GuestLine) GuestLine
	SetQuantity(id string, quantity int) bool
	Remove(id string) bool
	Clear()

	// Warned tracks whether the guest has been told their cart is local
	// only. The flag survives for the life of the store so the notice
	// shows at most once.
	Warned() bool
	MarkWarned()
}

// MemoryGuestStore is an in-memory GuestStore.
type MemoryGuestStore struct {
	mu     sync.Mutex
	lines  []GuestLine
	warned bool
}

func NewMemoryGuestStore() *MemoryGuestStore {
	return &MemoryGuestStore{}
}

func (s *MemoryGuestStore) Lines() []GuestLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]GuestLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// Add appends a line, merging into an existing line when the product
// configuration matches.
func (s *MemoryGuestStore) Add(line GuestLine) GuestLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := LineKey(line.ProductID, line.ColorID, line.SizeID)
	for i := range s.lines {
		existing := &s.lines[i]
		if LineKey(existing.ProductID, existing.ColorID, existing.SizeID) == key {
			existing.Quantity += line.Quantity
			return *existing
		}
	}

	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	s.lines = append(s.lines, line)
	return line
}

func (s *MemoryGuestStore) SetQuantity(id string, quantity int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].ID != id {
			continue
		}
		if quantity <= 0 {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
		} else {
			s.lines[i].Quantity = quantity
		}
		return true
	}
	return false
}

func (s *MemoryGuestStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].ID == id {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return true
		}
	}
	return false
}

func (s *MemoryGuestStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
}

func (s *MemoryGuestStore) Warned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warned
}

func (s *MemoryGuestStore) MarkWarned() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warned = true
}

package leads

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore provides an in-memory Store. It is the default backend and
// is also used by tests.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	leads  map[int64]*Lead
	now    func() time.Time
}

// NewMemoryStore creates an in-memory lead store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		leads:  make(map[int64]*Lead),
		now:    time.Now,
	}
}

// SetNowFunc overrides the clock for tests.
func (s *MemoryStore) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

func (s *MemoryStore) Create(ctx context.Context, name, email, phone string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.leads[id] = &Lead{
		ID:        id,
		Name:      name,
		Email:     email,
		Phone:     phone,
		CreatedAt: s.now(),
	}
	return id, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (*Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *lead
	return &copied, nil
}

func (s *MemoryStore) Update(ctx context.Context, id int64, update Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return ErrNotFound
	}
	applyUpdate(lead, update)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Lead, 0, len(s.leads))
	for _, lead := range s.leads {
		copied := *lead
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func applyUpdate(lead *Lead, update Update) {
	if update.CallScheduled != nil {
		lead.CallScheduled = *update.CallScheduled
	}
	if update.CallCompleted != nil {
		lead.CallCompleted = *update.CallCompleted
	}
	if update.Interested != nil {
		lead.Interested = *update.Interested
	}
	if update.Transcript != nil {
		lead.Transcript = *update.Transcript
	}
}

package registrations

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps registrations in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]Registration
	confirmed map[string]struct{}
	orders    map[string]OrderLink
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]Registration),
		confirmed: make(map[string]struct{}),
		orders:    make(map[string]OrderLink),
		now:       time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, r *Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[r.ReferenceID]; ok {
		return ErrConflict
	}

	rec := *r
	rec.PaymentConfirmed = false
	rec.TransactionID = ""
	s.records[rec.ReferenceID] = rec
	*r = rec
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, referenceID string) (*Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[referenceID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) Update(ctx context.Context, referenceID string, fn func(r *Registration) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, ok := s.records[referenceID]
	if !ok {
		return ErrNotFound
	}

	after := before
	if err := fn(&after); err != nil {
		return err
	}
	if err := checkTransition(&before, &after); err != nil {
		return err
	}

	if after.OrderID != "" && after.OrderID != before.OrderID {
		link, ok := s.orders[after.OrderID]
		if ok && link.ReferenceID != referenceID {
			return ErrConflict
		}
		if !ok {
			s.orders[after.OrderID] = OrderLink{
				OrderID:     after.OrderID,
				ReferenceID: referenceID,
				Gateway:     after.Gateway,
				CreatedAt:   s.now().UTC(),
			}
		}
	}

	s.records[referenceID] = after
	if after.PaymentConfirmed {
		s.confirmed[referenceID] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) FindByOrderID(ctx context.Context, orderID string) (string, error) {
	link, err := s.FindOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	return link.ReferenceID, nil
}

func (s *MemoryStore) FindOrder(ctx context.Context, orderID string) (*OrderLink, error) {
	if orderID == "" {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return &link, nil
}

func (s *MemoryStore) IsConfirmed(ctx context.Context, referenceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.confirmed[referenceID]
	return ok, nil
}

func (s *MemoryStore) List(ctx context.Context, limit, offset int) ([]*Registration, int, error) {
	s.mu.RLock()
	all := make([]*Registration, 0, len(s.records))
	for _, rec := range s.records {
		rec := rec
		all = append(all, &rec)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].ReferenceID < all[j].ReferenceID
		}
		return all[i].Timestamp.After(all[j].Timestamp)
	})

	total := len(all)
	if offset >= total {
		return []*Registration{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

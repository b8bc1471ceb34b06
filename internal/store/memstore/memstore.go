// Package memstore is an in-memory store.Store for tests.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iurnickita/squaresync/internal/model"
	"github.com/iurnickita/squaresync/internal/store"
)

// MemoryStore keeps rows in maps guarded by one mutex.
type MemoryStore struct {
	mu sync.Mutex

	Credentials []model.Credential
	Orders      map[string]model.SalesOrder
	OrderIDs    map[string]int64
	Items       map[int64][]model.SalesOrderItem

	// Fault injection
	Err      error
	OrderErr map[string]error

	nextID int64
	now    func() time.Time
}

// New creates an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		Orders:   make(map[string]model.SalesOrder),
		OrderIDs: make(map[string]int64),
		Items:    make(map[int64][]model.SalesOrderItem),
		OrderErr: make(map[string]error),
		now:      time.Now,
	}
}

var _ store.Store = (*MemoryStore)(nil)

func (s *MemoryStore) CredentialGetLatest(_ context.Context) (model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return model.Credential{}, s.Err
	}

	var latest model.Credential
	found := false
	for _, c := range s.Credentials {
		if !found || c.CreatedAt.After(latest.CreatedAt) ||
			(c.CreatedAt.Equal(latest.CreatedAt) && c.ID > latest.ID) {
			latest = c
			found = true
		}
	}
	if !found {
		return model.Credential{}, store.ErrNoRows
	}
	return latest, nil
}

func (s *MemoryStore) CredentialUpsert(_ context.Context, credential model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	for i, c := range s.Credentials {
		if c.MerchantID == credential.MerchantID {
			credential.ID = c.ID
			credential.CreatedAt = c.CreatedAt
			s.Credentials[i] = credential
			return nil
		}
	}
	s.nextID++
	credential.ID = s.nextID
	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = s.now()
	}
	s.Credentials = append(s.Credentials, credential)
	return nil
}

func (s *MemoryStore) SalesOrderUpsert(_ context.Context, order model.SalesOrder) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	if err := s.OrderErr[order.SquareOrderID]; err != nil {
		return 0, err
	}
	if order.SquareOrderID == "" {
		return 0, store.ErrEmptyOrderID
	}

	id, ok := s.OrderIDs[order.SquareOrderID]
	if !ok {
		s.nextID++
		id = s.nextID
		s.OrderIDs[order.SquareOrderID] = id
	}
	order.Items = nil
	s.Orders[order.SquareOrderID] = order
	return id, nil
}

func (s *MemoryStore) SalesOrderItemsReplace(_ context.Context, salesOrderID int64, items []model.SalesOrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	known := false
	for _, id := range s.OrderIDs {
		if id == salesOrderID {
			known = true
			break
		}
	}
	if !known {
		return errors.New("memstore: unknown sales order")
	}
	s.Items[salesOrderID] = append([]model.SalesOrderItem(nil), items...)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

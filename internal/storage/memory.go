package storage

import (
	"context"
	"sync"

	"athlete-payment-reconciler/internal/matchhistory"
	"athlete-payment-reconciler/internal/models"
)

// MemoryStore keeps everything in process memory. It backs tests and
// dry runs that must not touch the database.
type MemoryStore struct {
	mu       sync.RWMutex
	athletes []models.Athlete
	entries  []*models.LedgerEntry
	payments []*models.PaymentRecord
	history  map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{history: make(map[string]string)}
}

// ListAthletes returns the roster in insertion order
func (m *MemoryStore) ListAthletes(ctx context.Context) ([]models.Athlete, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Athlete(nil), m.athletes...), nil
}

// SaveAthletes inserts athletes or replaces those with a known ID
func (m *MemoryStore) SaveAthletes(ctx context.Context, athletes []models.Athlete) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.athletes = models.NewRoster(append(m.athletes, athletes...)).All()
	return nil
}

// ListEntries returns every ledger entry in booking order
func (m *MemoryStore) ListEntries(ctx context.Context) ([]*models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.LedgerEntry, len(m.entries))
	for i, e := range m.entries {
		copied := *e
		out[i] = &copied
	}
	return out, nil
}

// AppendEntry books a ledger entry
func (m *MemoryStore) AppendEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *entry
	m.entries = append(m.entries, &copied)
	return nil
}

// FindPaymentByDue returns the payment record of a due, nil when none exists
func (m *MemoryStore) FindPaymentByDue(ctx context.Context, dueEntryID string) (*models.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.DueEntryID != "" && p.DueEntryID == dueEntryID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

// SavePayment inserts a payment record or replaces the one with the same ID
func (m *MemoryStore) SavePayment(ctx context.Context, payment *models.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *payment
	for i, p := range m.payments {
		if p.ID == payment.ID {
			m.payments[i] = &copied
			return nil
		}
	}
	m.payments = append(m.payments, &copied)
	return nil
}

// ListPayments returns every payment record
func (m *MemoryStore) ListPayments(ctx context.Context) ([]*models.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.PaymentRecord, len(m.payments))
	for i, p := range m.payments {
		copied := *p
		out[i] = &copied
	}
	return out, nil
}

// History returns the match history kept by this store
func (m *MemoryStore) History() matchhistory.Store {
	return memoryHistory{m}
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

type memoryHistory struct {
	m *MemoryStore
}

func (h memoryHistory) Load(ctx context.Context) (map[string]string, error) {
	h.m.mu.RLock()
	defer h.m.mu.RUnlock()
	out := make(map[string]string, len(h.m.history))
	for k, v := range h.m.history {
		out[k] = v
	}
	return out, nil
}

func (h memoryHistory) Save(ctx context.Context, entries map[string]string) error {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	h.m.history = make(map[string]string, len(entries))
	for k, v := range entries {
		h.m.history[k] = v
	}
	return nil
}

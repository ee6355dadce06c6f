// Package storage implements the collaborator stores of the reconciler:
// the athlete roster, the ledger, payment records and the match history.
//
// Two backends are provided. SQLiteStore persists to a local database file
// migrated on open; MemoryStore keeps everything in process. The match
// history can also live in a standalone JSON file, see JSONHistoryStore.
package storage

import (
	"context"
	"fmt"
	"strings"

	"athlete-payment-reconciler/internal/matchhistory"
	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/pkg/errors"
)

// Store is the full set of operations a backend provides
type Store interface {
	ListAthletes(ctx context.Context) ([]models.Athlete, error)
	SaveAthletes(ctx context.Context, athletes []models.Athlete) error
	ListEntries(ctx context.Context) ([]*models.LedgerEntry, error)
	AppendEntry(ctx context.Context, entry *models.LedgerEntry) error
	FindPaymentByDue(ctx context.Context, dueEntryID string) (*models.PaymentRecord, error)
	SavePayment(ctx context.Context, payment *models.PaymentRecord) error
	ListPayments(ctx context.Context) ([]*models.PaymentRecord, error)
	History() matchhistory.Store
	Close() error
}

// Driver selects a storage backend
type Driver string

const (
	DriverSQLite Driver = "sqlite"
	DriverMemory Driver = "memory"
)

// Config selects and locates the backend
type Config struct {
	Driver Driver `mapstructure:"driver"`
	Path   string `mapstructure:"path"`

	// HistoryFile keeps the match history in a JSON file instead of the
	// backend when set.
	HistoryFile string `mapstructure:"history_file"`
}

// DefaultConfig returns a SQLite store in the working directory
func DefaultConfig() *Config {
	return &Config{
		Driver: DriverSQLite,
		Path:   "reconciler.db",
	}
}

// Validate checks the storage configuration
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("sqlite storage requires a path")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Driver)
	}
	return nil
}

// Open opens the configured backend
func Open(ctx context.Context, config *Config) (Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "storage.driver", config.Driver, err)
	}

	var store Store
	switch config.Driver {
	case DriverMemory:
		store = NewMemoryStore()
	default:
		s, err := OpenSQLite(ctx, config.Path)
		if err != nil {
			return nil, err
		}
		store = s
	}

	if config.HistoryFile != "" {
		store = withHistory{Store: store, history: NewJSONHistoryStore(config.HistoryFile)}
	}
	return store, nil
}

// withHistory replaces the match history of a backend
type withHistory struct {
	Store
	history matchhistory.Store
}

func (w withHistory) History() matchhistory.Store {
	return w.history
}

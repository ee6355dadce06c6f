package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"athlete-payment-reconciler/internal/matcher"
	"athlete-payment-reconciler/internal/matchhistory"
	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/pkg/errors"
	"athlete-payment-reconciler/pkg/logger"
)

// AthleteRoster supplies the canonical athlete records. The reconciler never
// writes to it.
type AthleteRoster interface {
	ListAthletes(ctx context.Context) ([]models.Athlete, error)
}

// LedgerStore holds the athlete account entries
type LedgerStore interface {
	ListEntries(ctx context.Context) ([]*models.LedgerEntry, error)
	AppendEntry(ctx context.Context, entry *models.LedgerEntry) error
}

// PaymentStore holds payment status records. FindPaymentByDue returns nil
// without error when the due has no record yet.
type PaymentStore interface {
	FindPaymentByDue(ctx context.Context, dueEntryID string) (*models.PaymentRecord, error)
	SavePayment(ctx context.Context, payment *models.PaymentRecord) error
}

// Config holds configuration options for the reconciliation service
type Config struct {
	// PaymentMethod is recorded on every payment settled by an import
	PaymentMethod string `mapstructure:"payment_method"`

	// DefaultVATRate applies to credits that settle no known charge.
	// Credits for a known charge reuse the charge's rate.
	DefaultVATRate decimal.Decimal `mapstructure:"-"`

	// DueTermMonths is how long after the charge date a due becomes overdue
	DueTermMonths int `mapstructure:"due_term_months"`

	// ProgressInterval controls how often row matching progress is logged
	ProgressInterval time.Duration `mapstructure:"progress_interval"`

	// Now returns the current time. Tests pin it.
	Now func() time.Time `mapstructure:"-"`
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		PaymentMethod:    "Bank Transfer",
		DefaultVATRate:   decimal.Zero,
		DueTermMonths:    1,
		ProgressInterval: 2 * time.Second,
		Now:              time.Now,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.PaymentMethod == "" {
		return fmt.Errorf("payment method cannot be empty")
	}
	if c.DefaultVATRate.IsNegative() {
		return fmt.Errorf("default VAT rate cannot be negative: %s", c.DefaultVATRate)
	}
	if c.DueTermMonths < 0 {
		return fmt.Errorf("due term cannot be negative: %d", c.DueTermMonths)
	}
	if c.ProgressInterval < 0 {
		return fmt.Errorf("progress interval cannot be negative: %s", c.ProgressInterval)
	}
	return nil
}

// ReconciliationService matches bank statement rows to athletes and their
// outstanding dues, and books the confirmed payments.
type ReconciliationService struct {
	roster         AthleteRoster
	ledger         LedgerStore
	payments       PaymentStore
	history        matchhistory.Store
	matchingConfig *matcher.MatchingConfig
	config         *Config
	logger         logger.Logger
}

// NewReconciliationService creates a new reconciliation service. Nil
// configurations use the defaults.
func NewReconciliationService(
	roster AthleteRoster,
	ledger LedgerStore,
	payments PaymentStore,
	history matchhistory.Store,
	matchingConfig *matcher.MatchingConfig,
	config *Config,
) (*ReconciliationService, error) {
	for name, dep := range map[string]interface{}{
		"roster":   roster,
		"ledger":   ledger,
		"payments": payments,
		"history":  history,
	} {
		if dep == nil {
			return nil, errors.ValidationError(errors.CodeMissingField, name, nil, nil)
		}
	}

	if matchingConfig == nil {
		matchingConfig = matcher.DefaultMatchingConfig()
	}
	if err := matchingConfig.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", matchingConfig.String(), err)
	}

	if config == nil {
		config = DefaultConfig()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciliation", config.PaymentMethod, err)
	}

	return &ReconciliationService{
		roster:         roster,
		ledger:         ledger,
		payments:       payments,
		history:        history,
		matchingConfig: matchingConfig,
		config:         config,
		logger:         logger.GetGlobalLogger().WithComponent("reconciliation_service"),
	}, nil
}

// GetMatchingConfig returns the matching configuration in use
func (rs *ReconciliationService) GetMatchingConfig() *matcher.MatchingConfig {
	return rs.matchingConfig
}

// GetConfiguration returns the current configuration
func (rs *ReconciliationService) GetConfiguration() *Config {
	return rs.config
}

// OutstandingDues derives the unpaid charges of every athlete from the ledger
func (rs *ReconciliationService) OutstandingDues(ctx context.Context) ([]models.OutstandingDue, error) {
	entries, err := rs.ledger.ListEntries(ctx)
	if err != nil {
		return nil, errors.StorageError(errors.CodeReadFailed, "ledger", err)
	}
	return OutstandingDues(entries, rs.config.Now(), rs.config.DueTermMonths), nil
}

// History loads the remembered description matches
func (rs *ReconciliationService) History(ctx context.Context) (*matchhistory.Cache, error) {
	cache := matchhistory.New(rs.history)
	if err := cache.Load(ctx); err != nil {
		return nil, err
	}
	return cache, nil
}

// NewSession reads the roster, the ledger and the match history once and
// returns a session for one import. Nothing is re-read until the next session.
func (rs *ReconciliationService) NewSession(ctx context.Context) (*Session, error) {
	athletes, err := rs.roster.ListAthletes(ctx)
	if err != nil {
		return nil, errors.StorageError(errors.CodeReadFailed, "roster", err)
	}

	entries, err := rs.ledger.ListEntries(ctx)
	if err != nil {
		return nil, errors.StorageError(errors.CodeReadFailed, "ledger", err)
	}

	history, err := rs.History(ctx)
	if err != nil {
		return nil, err
	}

	session := newSession(rs, athletes, entries, history)
	rs.logger.WithFields(logger.Fields{
		"athletes": len(athletes),
		"entries":  len(entries),
		"dues":     len(session.dues),
		"history":  history.Len(),
	}).Info("Started reconciliation session")
	return session, nil
}

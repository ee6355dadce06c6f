package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"athlete-payment-reconciler/internal/matchhistory"
	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/pkg/errors"
	"athlete-payment-reconciler/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore persists the roster, ledger, payments and match history in
// one SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger logger.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens the database at path, creating and migrating it as needed
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.StorageError(errors.CodeStoreUnavailable, path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.StorageError(errors.CodeStoreUnavailable, path, err)
	}

	s := &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger.GetGlobalLogger().WithComponent("sqlite_store"),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.StorageError(errors.CodeStoreUnavailable, path, err).
			WithSuggestion("the database schema could not be migrated; check the file is a reconciler database")
	}

	s.logger.WithField("path", path).Debug("Opened SQLite store")
	return s, nil
}

// migrate applies the embedded migrations. The migrate instance is not
// closed because closing its database driver would close s.db.
func (s *SQLiteStore) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	defer source.Close()

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}

	err = m.Up()
	if err == migrate.ErrNoChange {
		return nil
	}
	return err
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListAthletes returns the roster in load order
func (s *SQLiteStore) ListAthletes(ctx context.Context) ([]models.Athlete, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, student_name, student_surname, parent_name, parent_surname,
	       parent_phone, parent_email, sports_branches, status
	FROM athletes ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Athlete
	for rows.Next() {
		var a models.Athlete
		var branches string
		if err := rows.Scan(&a.ID, &a.StudentName, &a.StudentSurname, &a.ParentName, &a.ParentSurname,
			&a.ParentPhone, &a.ParentEmail, &branches, &a.Status); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(branches), &a.SportsBranches); err != nil {
			return nil, fmt.Errorf("athlete %s: invalid sports branches: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveAthletes upserts athletes in one transaction
func (s *SQLiteStore) SaveAthletes(ctx context.Context, athletes []models.Athlete) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var next int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM athletes`).Scan(&next); err != nil {
			return err
		}
		for _, a := range athletes {
			branches, err := json.Marshal(a.SportsBranches)
			if err != nil {
				return err
			}
			next++
			_, err = tx.ExecContext(ctx, `
			INSERT INTO athletes(id, student_name, student_surname, parent_name, parent_surname,
			                     parent_phone, parent_email, sports_branches, status, position, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET
			 student_name=excluded.student_name,
			 student_surname=excluded.student_surname,
			 parent_name=excluded.parent_name,
			 parent_surname=excluded.parent_surname,
			 parent_phone=excluded.parent_phone,
			 parent_email=excluded.parent_email,
			 sports_branches=excluded.sports_branches,
			 status=excluded.status,
			 updated_at=CURRENT_TIMESTAMP;
			`, a.ID, a.StudentName, a.StudentSurname, a.ParentName, a.ParentSurname,
				a.ParentPhone, a.ParentEmail, string(branches), string(a.Status), next)
			if err != nil {
				return fmt.Errorf("athlete %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

// ListEntries returns every ledger entry in booking order
func (s *SQLiteStore) ListEntries(ctx context.Context) ([]*models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, athlete_id, entry_date, month, description, amount_excluding_vat,
	       vat_rate, vat_amount, amount_including_vat, unit_code, entry_type
	FROM ledger_entries ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var date string
		if err := rows.Scan(&e.ID, &e.AthleteID, &date, &e.Month, &e.Description, &e.AmountExcludingVAT,
			&e.VATRate, &e.VATAmount, &e.AmountIncludingVAT, &e.UnitCode, &e.Type); err != nil {
			return nil, err
		}
		if e.Date, err = time.Parse(time.RFC3339Nano, date); err != nil {
			return nil, fmt.Errorf("ledger entry %s: invalid date %q: %w", e.ID, date, err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// AppendEntry books a ledger entry after every existing one
func (s *SQLiteStore) AppendEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO ledger_entries(id, athlete_id, entry_date, month, description, amount_excluding_vat,
	                           vat_rate, vat_amount, amount_including_vat, unit_code, entry_type, seq)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM ledger_entries))`,
		entry.ID, entry.AthleteID, entry.Date.Format(time.RFC3339Nano), entry.Month, entry.Description,
		entry.AmountExcludingVAT, entry.VATRate, entry.VATAmount, entry.AmountIncludingVAT,
		entry.UnitCode, string(entry.Type))
	return err
}

// FindPaymentByDue returns the payment record of a due, nil when none exists
func (s *SQLiteStore) FindPaymentByDue(ctx context.Context, dueEntryID string) (*models.PaymentRecord, error) {
	if dueEntryID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `
	SELECT id, athlete_id, due_entry_id, amount, status, paid_at, method, reference
	FROM payments WHERE due_entry_id = ? LIMIT 1`, dueEntryID)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// SavePayment upserts a payment record by ID
func (s *SQLiteStore) SavePayment(ctx context.Context, p *models.PaymentRecord) error {
	var paidAt sql.NullString
	if p.PaidAt != nil {
		paidAt = sql.NullString{String: p.PaidAt.Format(time.RFC3339Nano), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO payments(id, athlete_id, due_entry_id, amount, status, paid_at, method, reference)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	 athlete_id=excluded.athlete_id,
	 due_entry_id=excluded.due_entry_id,
	 amount=excluded.amount,
	 status=excluded.status,
	 paid_at=excluded.paid_at,
	 method=excluded.method,
	 reference=excluded.reference;
	`, p.ID, p.AthleteID, p.DueEntryID, p.Amount, string(p.Status), paidAt, p.Method, p.Reference)
	return err
}

// ListPayments returns every payment record
func (s *SQLiteStore) ListPayments(ctx context.Context) ([]*models.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, athlete_id, due_entry_id, amount, status, paid_at, method, reference
	FROM payments ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row scanner) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	var amount decimal.Decimal
	var paidAt sql.NullString
	if err := row.Scan(&p.ID, &p.AthleteID, &p.DueEntryID, &amount, &p.Status, &paidAt, &p.Method, &p.Reference); err != nil {
		return nil, err
	}
	p.Amount = amount
	if paidAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, paidAt.String)
		if err != nil {
			return nil, fmt.Errorf("payment %s: invalid paid_at %q: %w", p.ID, paidAt.String, err)
		}
		p.PaidAt = &t
	}
	return &p, nil
}

// History returns the match history table
func (s *SQLiteStore) History() matchhistory.Store {
	return sqliteHistory{s}
}

type sqliteHistory struct {
	s *SQLiteStore
}

func (h sqliteHistory) Load(ctx context.Context) (map[string]string, error) {
	rows, err := h.s.db.QueryContext(ctx, `SELECT description_key, athlete_id FROM match_history`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, athleteID string
		if err := rows.Scan(&key, &athleteID); err != nil {
			return nil, err
		}
		out[key] = athleteID
	}
	return out, rows.Err()
}

// Save replaces the table content with entries
func (h sqliteHistory) Save(ctx context.Context, entries map[string]string) error {
	return h.s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM match_history`); err != nil {
			return err
		}
		for key, athleteID := range entries {
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO match_history(description_key, athlete_id, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)`, key, athleteID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

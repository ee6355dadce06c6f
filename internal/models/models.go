package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType distinguishes charges from payments on an athlete account
type EntryType string

const (
	// EntryTypeDebit is a charge owed by the athlete
	EntryTypeDebit EntryType = "debit"
	// EntryTypeCredit is a payment received from the athlete
	EntryTypeCredit EntryType = "credit"
)

// String returns the string representation of EntryType
func (t EntryType) String() string {
	return string(t)
}

// IsValid checks if the entry type is valid
func (t EntryType) IsValid() bool {
	return t == EntryTypeDebit || t == EntryTypeCredit
}

// MonthLayout is the layout of LedgerEntry.Month
const MonthLayout = "2006-01"

// LedgerEntry is one line on an athlete account
type LedgerEntry struct {
	ID                 string          `json:"id"`
	AthleteID          string          `json:"athleteId"`
	Date               time.Time       `json:"date"`
	Month              string          `json:"month"`
	Description        string          `json:"description"`
	AmountExcludingVAT decimal.Decimal `json:"amountExcludingVat"`
	VATRate            decimal.Decimal `json:"vatRate"`
	VATAmount          decimal.Decimal `json:"vatAmount"`
	AmountIncludingVAT decimal.Decimal `json:"amountIncludingVat"`
	UnitCode           string          `json:"unitCode"`
	Type               EntryType       `json:"type"`
}

var hundred = decimal.NewFromInt(100)

// NewLedgerEntry builds an entry from its net amount, deriving VAT and gross
// so that AmountIncludingVAT = AmountExcludingVAT x (1 + VATRate/100).
func NewLedgerEntry(athleteID string, date time.Time, description string, net, vatRate decimal.Decimal, entryType EntryType) *LedgerEntry {
	vat := net.Mul(vatRate).Div(hundred).Round(2)
	return &LedgerEntry{
		ID:                 uuid.NewString(),
		AthleteID:          athleteID,
		Date:               date,
		Month:              date.Format(MonthLayout),
		Description:        description,
		AmountExcludingVAT: net,
		VATRate:            vatRate,
		VATAmount:          vat,
		AmountIncludingVAT: net.Add(vat),
		UnitCode:           "C62",
		Type:               entryType,
	}
}

// NewCreditFromGross builds a credit entry whose gross amount equals the money received.
func NewCreditFromGross(athleteID string, date time.Time, description string, gross, vatRate decimal.Decimal) *LedgerEntry {
	divisor := hundred.Add(vatRate).Div(hundred)
	net := gross.DivRound(divisor, 2)
	entry := NewLedgerEntry(athleteID, date, description, net, vatRate, EntryTypeCredit)
	entry.VATAmount = gross.Sub(net)
	entry.AmountIncludingVAT = gross
	return entry
}

// Validate performs basic validation on the LedgerEntry
func (e *LedgerEntry) Validate() error {
	if strings.TrimSpace(e.AthleteID) == "" {
		return fmt.Errorf("ledger entry athlete ID cannot be empty")
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("invalid ledger entry type: %s", e.Type)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("ledger entry date cannot be zero")
	}
	if e.AmountIncludingVAT.IsNegative() {
		return fmt.Errorf("ledger entry amount cannot be negative")
	}
	return nil
}

// IsDebit returns true if the entry is a charge
func (e *LedgerEntry) IsDebit() bool {
	return e.Type == EntryTypeDebit
}

// IsCredit returns true if the entry is a payment
func (e *LedgerEntry) IsCredit() bool {
	return e.Type == EntryTypeCredit
}

// String returns a string representation of the LedgerEntry
func (e *LedgerEntry) String() string {
	return fmt.Sprintf("LedgerEntry{ID: %s, Athlete: %s, %s %s on %s}",
		e.ID, e.AthleteID, e.Type, e.AmountIncludingVAT.StringFixed(2), e.Date.Format("2006-01-02"))
}

// DueStatus is the derived state of an unpaid charge
type DueStatus string

const (
	DueStatusPending DueStatus = "Pending"
	DueStatusOverdue DueStatus = "Overdue"
)

// OutstandingDue is derived from an unpaid debit entry. It is never stored.
type OutstandingDue struct {
	AthleteID   string          `json:"athleteId"`
	EntryID     string          `json:"entryId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	ChargeDate  time.Time       `json:"chargeDate"`
	DueDate     time.Time       `json:"dueDate"`
	Status      DueStatus       `json:"status"`
}

// PaymentStatus is the state of a payment record
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
	PaymentStatusOverdue PaymentStatus = "Overdue"
)

// PaymentRecord tracks whether a charge has been settled
type PaymentRecord struct {
	ID         string          `json:"id"`
	AthleteID  string          `json:"athleteId"`
	DueEntryID string          `json:"dueEntryId,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Status     PaymentStatus   `json:"status"`
	PaidAt     *time.Time      `json:"paidAt,omitempty"`
	Method     string          `json:"method,omitempty"`
	Reference  string          `json:"reference,omitempty"`
}

// BankTransactionRow is one parsed statement row, alive for one import only
type BankTransactionRow struct {
	RowIndex    int             `json:"rowIndex"`
	Date        string          `json:"date"`
	ParsedDate  time.Time       `json:"parsedDate"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
}

// String returns a string representation of the row
func (r *BankTransactionRow) String() string {
	return fmt.Sprintf("Row{%d, %s, %s, %q}", r.RowIndex, r.Date, r.Amount.StringFixed(2), r.Description)
}

// MarshalJSON renders the parsed date as a calendar date
func (r BankTransactionRow) MarshalJSON() ([]byte, error) {
	type Alias BankTransactionRow
	return json.Marshal(&struct {
		ParsedDate string `json:"parsedDate"`
		Alias
	}{
		ParsedDate: r.ParsedDate.Format("2006-01-02"),
		Alias:      Alias(r),
	})
}

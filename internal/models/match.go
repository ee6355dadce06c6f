package models

import (
	"github.com/shopspring/decimal"
)

// MatchStatus is the outcome of matching one statement row
type MatchStatus string

const (
	MatchStatusMatched   MatchStatus = "matched"
	MatchStatusUnmatched MatchStatus = "unmatched"
)

// Suggestion is one ranked candidate athlete for an unmatched row
type Suggestion struct {
	AthleteID   string  `json:"athleteId"`
	AthleteName string  `json:"athleteName"`
	ParentName  string  `json:"parentName"`
	Similarity  float64 `json:"similarity"`
	IsSibling   bool    `json:"isSibling"`
}

// Allocation is the share of a transaction credited to one athlete
type Allocation struct {
	AthleteID   string          `json:"athleteId"`
	AthleteName string          `json:"athleteName"`
	Amount      decimal.Decimal `json:"amount"`
	Due         *OutstandingDue `json:"due,omitempty"`
}

// SiblingOption offers to split a transaction across a household
type SiblingOption struct {
	GroupKey    string          `json:"groupKey"`
	DisplayName string          `json:"displayName"`
	Basis       string          `json:"basis"`
	AthleteIDs  []string        `json:"athleteIds"`
	EvenSplit   decimal.Decimal `json:"evenSplit"`
}

// MatchCandidate is the working result for one statement row
type MatchCandidate struct {
	Transaction      BankTransactionRow `json:"transaction"`
	MatchedDue       *OutstandingDue    `json:"matchedDue,omitempty"`
	AthleteID        string             `json:"athleteId,omitempty"`
	AthleteName      string             `json:"athleteName,omitempty"`
	Confidence       float64            `json:"confidence"`
	Status           MatchStatus        `json:"status"`
	IsManual         bool               `json:"isManual"`
	IsHistorical     bool               `json:"isHistorical"`
	IsMultiple       bool               `json:"isMultiple"`
	Suggestions      []Suggestion       `json:"suggestions,omitempty"`
	MultiplePayments []Allocation       `json:"multiplePayments,omitempty"`
	SiblingOptions   []SiblingOption    `json:"siblingOptions,omitempty"`
}

// IsMatched returns true if the row is ready to confirm
func (c *MatchCandidate) IsMatched() bool {
	return c.Status == MatchStatusMatched
}

// Allocations returns what confirming this row credits, one entry per athlete
func (c *MatchCandidate) Allocations() []Allocation {
	if c.IsMultiple {
		return c.MultiplePayments
	}
	if c.AthleteID == "" {
		return nil
	}
	return []Allocation{{
		AthleteID:   c.AthleteID,
		AthleteName: c.AthleteName,
		Amount:      c.Transaction.Amount,
		Due:         c.MatchedDue,
	}}
}

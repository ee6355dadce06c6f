package parsers

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"athlete-payment-reconciler/internal/models"
)

// CellKind tells row extraction how a spreadsheet stored a value
type CellKind int

const (
	// CellText is free text, including numbers typed as text
	CellText CellKind = iota
	// CellNumber is a stored numeric value in invariant notation
	CellNumber
	// CellDate is a numeric date serial
	CellDate
)

// Cell is one raw value from a statement row
type Cell struct {
	Value string
	Kind  CellKind
}

// TextCells wraps plain strings as text cells
func TextCells(values ...string) []Cell {
	cells := make([]Cell, len(values))
	for i, v := range values {
		cells[i] = Cell{Value: v}
	}
	return cells
}

var (
	referenceToken = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9/-]{5,}$`)
	allDigits      = regexp.MustCompile(`^[0-9]+$`)
)

// maxAmountDigits bounds plain digit runs read as amounts. Longer runs are
// account or receipt numbers.
const maxAmountDigits = 9

type rowOutcome int

const (
	rowValid rowOutcome = iota
	rowOutgoing
	rowIncomplete
)

// ExtractRow scans every cell of one statement row for a date, an amount, a
// description and an optional reference. Columns are not fixed: the first
// date-like cell, the first amount-like cell and the longest text cell with a
// letter win. ok is false when any of date, amount or description is missing
// or the amount is outgoing.
func ExtractRow(rowIndex int, cells []Cell, date1904 bool) (models.BankTransactionRow, bool) {
	row, outcome := extractRow(rowIndex, cells, date1904)
	return row, outcome == rowValid
}

func extractRow(rowIndex int, cells []Cell, date1904 bool) (models.BankTransactionRow, rowOutcome) {
	row := models.BankTransactionRow{RowIndex: rowIndex}
	var (
		haveDate, haveAmount bool
		description          string
		fallbackDescription  string
	)

	for _, cell := range cells {
		value := trimCell(cell.Value)
		if value == "" {
			continue
		}

		switch cell.Kind {
		case CellDate:
			if t, ok := ParseExcelSerial(value, date1904); ok {
				if !haveDate {
					row.Date, row.ParsedDate, haveDate = t.Format(DisplayDateLayout), t, true
				}
				continue
			}
		case CellNumber:
			if d, err := decimal.NewFromString(value); err == nil {
				if !haveAmount {
					if d.IsNegative() {
						return row, rowOutgoing
					}
					if d.IsPositive() {
						row.Amount, haveAmount = d.Round(2), true
					}
				}
				continue
			}
		}

		if t, ok := ParseTurkishDate(value); ok {
			if !haveDate {
				row.Date, row.ParsedDate, haveDate = value, t, true
			}
			continue
		}

		if allDigits.MatchString(value) && len(value) > maxAmountDigits {
			if row.Reference == "" {
				row.Reference = value
			}
			continue
		}

		if d, ok := parseSignedAmount(value); ok {
			if !haveAmount {
				if d.IsNegative() {
					return row, rowOutgoing
				}
				if d.IsPositive() {
					row.Amount, haveAmount = d, true
				}
			}
			continue
		}

		if isReference(value) {
			if row.Reference == "" {
				row.Reference = value
			}
			if runeLen(value) > runeLen(fallbackDescription) {
				fallbackDescription = value
			}
			continue
		}

		if hasLetter(value) && runeLen(value) > runeLen(description) {
			description = value
		}
	}

	if description == "" {
		description = fallbackDescription
	}
	row.Description = description

	if !haveDate || !haveAmount || description == "" {
		return row, rowIncomplete
	}
	if row.Reference == "" {
		row.Reference = GenerateReference(rowIndex)
	}
	return row, rowValid
}

// GenerateReference makes a reference for rows whose bank left none.
func GenerateReference(rowIndex int) string {
	return fmt.Sprintf("AUTO-%d-%s", rowIndex, uuid.NewString()[:8])
}

func isReference(s string) bool {
	if !referenceToken.MatchString(s) {
		return false
	}
	hasDigit := false
	for _, r := range s {
		if unicode.IsDigit(r) {
			hasDigit = true
			break
		}
	}
	return hasDigit
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func runeLen(s string) int {
	return len([]rune(s))
}

func trimCell(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\u00a0\ufeff"))
}

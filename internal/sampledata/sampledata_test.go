package sampledata

import (
	"bytes"
	"context"
	"os"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"athlete-payment-reconciler/internal/parsers"
	"athlete-payment-reconciler/internal/storage"
)

func countScenarios(rows []StatementRow) map[Scenario]int {
	counts := make(map[Scenario]int)
	for _, row := range rows {
		counts[row.Scenario]++
	}
	return counts
}

func TestGenerateIsReproducible(t *testing.T) {
	first, err := Generate(nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := Generate(DefaultConfig())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(first.Athletes) != len(second.Athletes) || len(first.Statement) != len(second.Statement) {
		t.Fatalf("Expected identical datasets, got %d/%d athletes and %d/%d rows",
			len(first.Athletes), len(second.Athletes), len(first.Statement), len(second.Statement))
	}
	for i := range first.Statement {
		if first.Statement[i].Description != second.Statement[i].Description ||
			!first.Statement[i].Amount.Equal(second.Statement[i].Amount) {
			t.Errorf("Row %d differs: %+v vs %+v", i, first.Statement[i], second.Statement[i])
		}
	}

	config := DefaultConfig()
	config.Seed = 99
	other, err := Generate(config)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if other.Athletes[0].FullName() == first.Athletes[0].FullName() && other.Athletes[0].ParentPhone == first.Athletes[0].ParentPhone {
		t.Error("Expected a different seed to change the roster")
	}
}

func TestGenerateCoversDues(t *testing.T) {
	config := DefaultConfig()
	config.Families = 12
	config.SiblingRatio = 1
	config.CombinedRatio = 0.5

	ds, err := Generate(config)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(ds.Athletes) != 24 {
		t.Errorf("Expected 24 athletes with two children per family, got %d", len(ds.Athletes))
	}
	if len(ds.Charges) != len(ds.Athletes) {
		t.Errorf("Expected one charge per athlete, got %d", len(ds.Charges))
	}
	for _, charge := range ds.Charges {
		if !charge.IsDebit() || !charge.AmountIncludingVAT.Equal(config.MonthlyFee) {
			t.Errorf("Expected a %s debit, got %s", config.MonthlyFee, charge)
		}
		if charge.Description != "Haziran 2024 aidatı" {
			t.Errorf("Expected June description, got %q", charge.Description)
		}
	}

	// every athlete is paid exactly once, by a single or a combined transfer
	paid := make(map[string]int)
	for _, row := range ds.Statement {
		for _, id := range row.AthleteIDs {
			paid[id]++
		}
		if row.Scenario == ScenarioSiblingTotal {
			expected := config.MonthlyFee.Mul(decimal.NewFromInt(int64(len(row.AthleteIDs))))
			if !row.Amount.Equal(expected) {
				t.Errorf("Expected sibling total %s, got %s", expected, row.Amount)
			}
		}
	}
	for _, athlete := range ds.Athletes {
		if paid[athlete.ID] != 1 {
			t.Errorf("Expected %s to be paid once, got %d", athlete.ID, paid[athlete.ID])
		}
	}

	counts := countScenarios(ds.Statement)
	if counts[ScenarioOutgoing] != config.OutgoingRows || counts[ScenarioUnrelated] != config.UnrelatedRows {
		t.Errorf("Unexpected scenario counts: %v", counts)
	}
	if counts[ScenarioReference] != config.ReferenceRows {
		t.Errorf("Expected %d reference rows, got %d", config.ReferenceRows, counts[ScenarioReference])
	}

	for i := 1; i < len(ds.Statement); i++ {
		if ds.Statement[i].Date.Before(ds.Statement[i-1].Date) {
			t.Fatalf("Expected statement sorted by date, row %d is earlier than row %d", i, i-1)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no families", func(c *Config) { c.Families = 0 }},
		{"too many families", func(c *Config) { c.Families = 100 }},
		{"zero fee", func(c *Config) { c.MonthlyFee = decimal.Zero }},
		{"negative rows", func(c *Config) { c.OutgoingRows = -1 }},
		{"ratio above one", func(c *Config) { c.SiblingRatio = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			if _, err := Generate(config); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestFormatTurkishAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"350", "350,00"},
		{"1234.5", "1.234,50"},
		{"1250000", "1.250.000,00"},
		{"0.07", "0,07"},
		{"-2100", "-2.100,00"},
	}

	for _, tt := range tests {
		result := FormatTurkishAmount(decimal.RequireFromString(tt.input))
		if result != tt.expected {
			t.Errorf("FormatTurkishAmount(%s): Expected %s, got %s", tt.input, tt.expected, result)
		}
		if back := parsers.ParseAmount(result); !decimal.RequireFromString(tt.input).IsNegative() && !back.Equal(decimal.RequireFromString(tt.input)) {
			t.Errorf("Expected %s to parse back to %s, got %s", result, tt.input, back)
		}
	}
}

func incomingRows(ds *Dataset) int {
	n := 0
	for _, row := range ds.Statement {
		if row.Amount.IsPositive() {
			n++
		}
	}
	return n
}

func TestStatementRoundTrip(t *testing.T) {
	ds, err := Generate(nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	parser := parsers.NewStatementParser(nil)

	tests := []struct {
		name   string
		format parsers.Format
		write  func(*bytes.Buffer) error
	}{
		{"xlsx", parsers.FormatXLSX, func(b *bytes.Buffer) error { return WriteStatementXLSX(b, ds.Statement) }},
		{"csv", parsers.FormatCSV, func(b *bytes.Buffer) error { return WriteStatementCSV(b, ds.Statement, false) }},
		{"csv windows-1254", parsers.FormatCSV, func(b *bytes.Buffer) error { return WriteStatementCSV(b, ds.Statement, true) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.write(&buf); err != nil {
				t.Fatalf("Failed to write statement: %v", err)
			}

			rows, stats, err := parser.Parse(context.Background(), &buf, tt.format, "statement."+tt.name)
			if err != nil {
				t.Fatalf("Failed to parse statement: %v", err)
			}
			if len(rows) != incomingRows(ds) {
				t.Fatalf("Expected %d valid rows, got %d (%s)", incomingRows(ds), len(rows), stats)
			}
			if stats.OutgoingRows != DefaultConfig().OutgoingRows {
				t.Errorf("Expected %d outgoing rows, got %d", DefaultConfig().OutgoingRows, stats.OutgoingRows)
			}

			i := 0
			for _, want := range ds.Statement {
				if !want.Amount.IsPositive() {
					continue
				}
				got := rows[i]
				i++
				if !got.Amount.Equal(want.Amount) {
					t.Errorf("Row %d: Expected amount %s, got %s", got.RowIndex, want.Amount, got.Amount)
				}
				if got.Description != want.Description {
					t.Errorf("Row %d: Expected description %q, got %q", got.RowIndex, want.Description, got.Description)
				}
				if !got.ParsedDate.Equal(want.Date) {
					t.Errorf("Row %d: Expected date %s, got %s", got.RowIndex, want.Date, got.ParsedDate)
				}
			}
		})
	}
}

func TestLegacyEncodingIsNotUTF8(t *testing.T) {
	rows := []StatementRow{{Description: "AYŞE ÇELİK HAVALE", Amount: decimal.NewFromInt(350)}}
	var buf bytes.Buffer
	if err := WriteStatementCSV(&buf, rows, true); err != nil {
		t.Fatalf("Failed to write statement: %v", err)
	}
	if utf8.Valid(buf.Bytes()) {
		t.Error("Expected Windows-1254 output to be invalid UTF-8")
	}
}

func TestWriteFiles(t *testing.T) {
	ds, err := Generate(nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	files, err := WriteFiles(t.TempDir(), ds, FormatCSV)
	if err != nil {
		t.Fatalf("Failed to write files: %v", err)
	}

	roster, err := storage.LoadRosterFile(files.Roster)
	if err != nil {
		t.Fatalf("Failed to load roster: %v", err)
	}
	if len(roster.Athletes) != len(ds.Athletes) || len(roster.Skipped) != 0 {
		t.Errorf("Expected %d athletes without skips, got %d (%d skipped)", len(ds.Athletes), len(roster.Athletes), len(roster.Skipped))
	}
	if roster.Athletes[0].ParentFullName() != ds.Athletes[0].ParentFullName() {
		t.Errorf("Expected parent %q, got %q", ds.Athletes[0].ParentFullName(), roster.Athletes[0].ParentFullName())
	}

	if _, err := os.Stat(files.Statement); err != nil {
		t.Errorf("Expected statement file: %v", err)
	}

	if _, err := WriteFiles(t.TempDir(), ds, "pdf"); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

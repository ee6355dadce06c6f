package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/pkg/errors"
	"athlete-payment-reconciler/pkg/logger"
)

func TestValidateFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := filepath.Join(tmpDir, "statement.csv")
	if err := os.WriteFile(validFile, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tests := []struct {
		name     string
		filePath string
		code     errors.ErrorCode
	}{
		{"valid file", validFile, ""},
		{"empty path", "", errors.CodeMissingField},
		{"non-existent file", "/non/existent/file.csv", errors.CodeFileNotFound},
		{"directory instead of file", tmpDir, errors.CodeUnsupportedFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath, "bank statement")
			if tt.code == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.IsCode(err, tt.code) {
				t.Errorf("Expected code %s, got %v", tt.code, err)
			}
		})
	}
}

func TestParseAssignments(t *testing.T) {
	tests := []struct {
		name     string
		values   []string
		expected map[int]string
		hasError bool
	}{
		{"empty", nil, map[int]string{}, false},
		{"single", []string{"7=ath-12"}, map[int]string{7: "ath-12"}, false},
		{"spaces", []string{" 3 = ath-1 "}, map[int]string{3: "ath-1"}, false},
		{"several", []string{"2=a", "5=b"}, map[int]string{2: "a", 5: "b"}, false},
		{"missing separator", []string{"7"}, nil, true},
		{"bad row", []string{"x=ath-1"}, nil, true},
		{"zero row", []string{"0=ath-1"}, nil, true},
		{"missing athlete", []string{"7="}, nil, true},
		{"several athletes", []string{"7=a,b"}, nil, true},
		{"duplicate row", []string{"7=a", "7=b"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAssignments(tt.values)
			if tt.hasError {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %d assignments, got %d", len(tt.expected), len(got))
			}
			for row, id := range tt.expected {
				if got[row] != id {
					t.Errorf("Expected row %d -> %s, got %s", row, id, got[row])
				}
			}
		})
	}
}

func TestParseSplits(t *testing.T) {
	got, err := parseSplits([]string{"9=ath-3, ath-4", "11=ath-1,,ath-2,"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(got[9], "|") != "ath-3|ath-4" {
		t.Errorf("Expected ath-3|ath-4, got %v", got[9])
	}
	if strings.Join(got[11], "|") != "ath-1|ath-2" {
		t.Errorf("Expected ath-1|ath-2, got %v", got[11])
	}

	for _, bad := range [][]string{{"9=,"}, {"9"}, {"9=a,b", "9=c,d"}} {
		if _, err := parseSplits(bad); err == nil {
			t.Errorf("expected error for %v", bad)
		}
	}
}

func TestParseChargeRequest(t *testing.T) {
	now := time.Date(2024, 6, 20, 15, 30, 0, 0, time.UTC)

	req, err := parseChargeRequest("1.250,00", "2024-06-01", " Kamp ücreti ", "", decimal.NewFromInt(20), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.amount.Equal(decimal.NewFromInt(1250)) {
		t.Errorf("Expected amount 1250, got %s", req.amount)
	}
	if !req.vatRate.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected default VAT 20, got %s", req.vatRate)
	}
	if req.description != "Kamp ücreti" {
		t.Errorf("Expected trimmed description, got %q", req.description)
	}
	if req.date.Format("2006-01-02") != "2024-06-01" {
		t.Errorf("Expected 2024-06-01, got %s", req.date.Format("2006-01-02"))
	}

	req, err = parseChargeRequest("350", "", "Aidat", "10%", decimal.Zero, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.date.Format("2006-01-02") != "2024-06-20" {
		t.Errorf("Expected today's date, got %s", req.date)
	}
	if !req.vatRate.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected VAT 10, got %s", req.vatRate)
	}

	bad := []struct {
		name, amount, date, description, vat string
	}{
		{"zero amount", "0", "", "Aidat", ""},
		{"negative amount", "-350", "", "Aidat", ""},
		{"text amount", "abc", "", "Aidat", ""},
		{"missing description", "350", "", "  ", ""},
		{"bad date", "350", "31.02.2024", "Aidat", ""},
		{"bad VAT", "350", "", "Aidat", "twenty"},
		{"negative VAT", "350", "", "Aidat", "-1"},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseChargeRequest(tt.amount, tt.date, tt.description, tt.vat, decimal.Zero, now); err == nil {
				t.Error("expected error but got none")
			}
		})
	}
}

func testRoster() *models.Roster {
	return models.NewRoster([]models.Athlete{
		{ID: "ath-1", StudentName: "Ahmet", StudentSurname: "Yılmaz", Status: models.AthleteStatusActive},
		{ID: "ath-2", StudentName: "Zeynep", StudentSurname: "Kaya", Status: models.AthleteStatusInactive},
		{ID: "ath-3", StudentName: "Ali", StudentSurname: "Kaya", Status: models.AthleteStatusActive},
	})
}

func TestChargeTargets(t *testing.T) {
	roster := testRoster()

	all, err := chargeTargets(roster, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 || all[0].ID != "ath-1" || all[1].ID != "ath-3" {
		t.Errorf("Expected active athletes ath-1 and ath-3, got %v", all)
	}

	picked, err := chargeTargets(roster, []string{"ath-2", "ath-2"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(picked) != 1 {
		t.Errorf("Expected duplicate IDs to be charged once, got %d", len(picked))
	}

	if _, err := chargeTargets(roster, []string{"nobody"}, false); !errors.IsCode(err, errors.CodeAthleteNotFound) {
		t.Errorf("Expected athlete_not_found, got %v", err)
	}
	if _, err := chargeTargets(models.NewRoster(nil), nil, true); !errors.IsCode(err, errors.CodeAthleteNotFound) {
		t.Errorf("Expected athlete_not_found for an empty roster, got %v", err)
	}
}

func TestFilterDues(t *testing.T) {
	dues := []models.OutstandingDue{
		{AthleteID: "ath-1", EntryID: "d1", Status: models.DueStatusOverdue},
		{AthleteID: "ath-1", EntryID: "d2", Status: models.DueStatusPending},
		{AthleteID: "ath-3", EntryID: "d3", Status: models.DueStatusOverdue},
	}

	tests := []struct {
		athlete  string
		overdue  bool
		expected int
	}{
		{"", false, 3},
		{"ath-1", false, 2},
		{"", true, 2},
		{"ath-1", true, 1},
		{"ath-2", false, 0},
	}
	for _, tt := range tests {
		got := filterDues(dues, tt.athlete, tt.overdue)
		if len(got) != tt.expected {
			t.Errorf("filterDues(%q, %v): Expected %d, got %d", tt.athlete, tt.overdue, tt.expected, len(got))
		}
	}
}

func TestCLIErrorHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		exitCode int
		contains []string
	}{
		{"nil", nil, 0, nil},
		{
			name:     "file",
			err:      errors.FileError(errors.CodeFileNotFound, "statement.xlsx", nil),
			exitCode: 2,
			contains: []string{"Error: file not found: statement.xlsx", "file_path: statement.xlsx", "Suggestion:", "File error help"},
		},
		{
			name:     "validation",
			err:      errors.ValidationError(errors.CodeAthleteNotFound, "athlete_id", "ath-9", nil),
			exitCode: 3,
			contains: []string{"athlete not found: ath-9", "Validation error help"},
		},
		{
			name:     "configuration",
			err:      errors.ConfigurationError(errors.CodeInvalidConfig, "matching.profile", "lenient", nil),
			exitCode: 4,
			contains: []string{"RECONCILER_"},
		},
		{
			name:     "storage",
			err:      errors.StorageError(errors.CodeStoreUnavailable, "sqlite", fmt.Errorf("locked")),
			exitCode: 6,
			contains: []string{"Storage error help"},
		},
		{
			name:     "wrapped",
			err:      fmt.Errorf("import: %w", errors.ParseError(errors.CodeNoValidRows, "statement.csv", nil)),
			exitCode: 3,
			contains: []string{"0 valid rows found in statement.csv"},
		},
		{
			name:     "missing file",
			err:      &os.PathError{Op: "open", Path: "x", Err: os.ErrNotExist},
			exitCode: 2,
			contains: []string{"File not found"},
		},
		{
			name:     "generic",
			err:      fmt.Errorf("unknown command \"foo\""),
			exitCode: 1,
			contains: []string{"unknown command", "--help"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			handler := &CLIErrorHandler{logger: logger.NewNop(), out: &out}

			if code := handler.HandleError(tt.err); code != tt.exitCode {
				t.Errorf("Expected exit code %d, got %d", tt.exitCode, code)
			}
			for _, s := range tt.contains {
				if !strings.Contains(out.String(), s) {
					t.Errorf("Expected output to contain %q, got:\n%s", s, out.String())
				}
			}
		})
	}
}

func TestCLIErrorHandlerVerbose(t *testing.T) {
	var out bytes.Buffer
	handler := &CLIErrorHandler{logger: logger.NewNop(), out: &out, verbose: true}

	handler.HandleError(errors.StorageError(errors.CodeWriteFailed, "ledger", fmt.Errorf("disk I/O error")))
	if !strings.Contains(out.String(), "Underlying error: disk I/O error") {
		t.Errorf("Expected underlying error in verbose mode, got:\n%s", out.String())
	}
}

func TestImportCommandHelp(t *testing.T) {
	for _, name := range []string{"file", "assign", "split", "confirm", "strict", "output-format", "output-file", "progress"} {
		if importCmd.Flags().Lookup(name) == nil {
			t.Errorf("flag '%s' not found", name)
		}
	}

	var help bytes.Buffer
	importCmd.SetOut(&help)
	importCmd.Help()
	importCmd.SetOut(nil)

	for _, section := range []string{"Usage:", "Examples:", "Flags:", "--assign", "--split", "--confirm"} {
		if !strings.Contains(help.String(), section) {
			t.Errorf("help text should contain '%s'", section)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	expected := map[string]bool{"import": false, "roster": false, "charge": false, "dues": false, "history": false, "version": false, "sample": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := expected[c.Name()]; ok {
			expected[c.Name()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("command '%s' not registered", name)
		}
	}
}

package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"athlete-payment-reconciler/internal/matchhistory"
	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/internal/parsers"
	"athlete-payment-reconciler/internal/reconciler"
	apperrors "athlete-payment-reconciler/pkg/errors"
	"athlete-payment-reconciler/pkg/logger"
)

func createTestImportResult() *reconciler.ImportResult {
	due := &models.OutstandingDue{AthleteID: "ath-1", EntryID: "due-1", Amount: decimal.NewFromInt(350)}
	candidates := []*models.MatchCandidate{
		{
			Transaction: models.BankTransactionRow{RowIndex: 2, Date: "15.06.2024", Amount: decimal.NewFromInt(350), Description: "Mehmet Yılmaz EFT", Reference: "TRX1"},
			Status:      models.MatchStatusMatched,
			AthleteID:   "ath-1",
			AthleteName: "Ahmet Yılmaz",
			Confidence:  97.5,
			MatchedDue:  due,
		},
		{
			Transaction: models.BankTransactionRow{RowIndex: 3, Date: "16.06.2024", Amount: decimal.NewFromInt(95), Description: "ELEKTRIK FATURASI TEDAS", Reference: "TRX2"},
			Status:      models.MatchStatusUnmatched,
			Suggestions: []models.Suggestion{
				{AthleteID: "ath-2", AthleteName: "Zeynep Kaya", ParentName: "Ayşe Kaya", Similarity: 40, IsSibling: true},
				{AthleteID: "ath-3", AthleteName: "Ali Kaya", ParentName: "Ayşe Kaya", Similarity: 38, IsSibling: true},
				{AthleteID: "ath-1", AthleteName: "Ahmet Yılmaz", Similarity: 20},
			},
			SiblingOptions: []models.SiblingOption{
				{GroupKey: "name:ayse kaya", DisplayName: "Ayşe Kaya", AthleteIDs: []string{"ath-2", "ath-3"}, EvenSplit: decimal.RequireFromString("47.5")},
			},
		},
		{
			Transaction: models.BankTransactionRow{RowIndex: 4, Date: "17.06.2024", Amount: decimal.NewFromInt(700), Description: "AYSE KAYA HAVALE", Reference: "TRX3"},
			Status:      models.MatchStatusMatched,
			AthleteName: "Zeynep Kaya, Ali Kaya",
			Confidence:  100,
			IsManual:    true,
			IsMultiple:  true,
			MultiplePayments: []models.Allocation{
				{AthleteID: "ath-2", AthleteName: "Zeynep Kaya", Amount: decimal.NewFromInt(350)},
				{AthleteID: "ath-3", AthleteName: "Ali Kaya", Amount: decimal.NewFromInt(350)},
			},
		},
	}

	return &reconciler.ImportResult{
		Source:     "statement.csv",
		ParseStats: &parsers.ParseStats{TotalRows: 3, ValidRows: 3},
		Candidates: candidates,
		Summary: &reconciler.SessionSummary{
			TotalRows:       3,
			MatchedRows:     2,
			MultipleMatches: 1,
			UnmatchedRows:   1,
			MatchedAmount:   decimal.NewFromInt(1050),
			UnmatchedAmount: decimal.NewFromInt(95),
		},
		Confirmation: &reconciler.ConfirmResult{
			ConfirmedRows: 2,
			SkippedRows:   1,
			Credits: []*models.LedgerEntry{
				{AmountIncludingVAT: decimal.NewFromInt(350)},
				{AmountIncludingVAT: decimal.NewFromInt(350)},
				{AmountIncludingVAT: decimal.NewFromInt(350)},
			},
		},
		Errors: []*apperrors.AppError{
			apperrors.ValidationError(apperrors.CodeAthleteNotFound, "athlete_id", "nobody", nil),
		},
		ProcessedAt: time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC),
		Duration:    150 * time.Millisecond,
	}
}

func testRoster() []models.Athlete {
	return []models.Athlete{
		{ID: "ath-1", StudentName: "Ahmet", StudentSurname: "Yılmaz"},
		{ID: "ath-2", StudentName: "Zeynep", StudentSurname: "Kaya"},
	}
}

func TestNewReportGenerator(t *testing.T) {
	tests := []struct {
		name        string
		config      *ReportConfig
		expectError bool
	}{
		{"default config", nil, false},
		{"valid config", DefaultReportConfig(), false},
		{"invalid format", &ReportConfig{Format: "pdf", DescriptionWidth: 40}, true},
		{"description width too small", &ReportConfig{Format: FormatConsole, DescriptionWidth: 5}, true},
		{"negative suggestions", &ReportConfig{Format: FormatConsole, DescriptionWidth: 40, MaxSuggestions: -1}, true},
		{"csv without delimiter", &ReportConfig{Format: FormatCSV, DescriptionWidth: 40}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewReportGenerator(tt.config)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				} else if !apperrors.IsCode(err, apperrors.CodeInvalidConfig) {
					t.Errorf("expected invalid_config error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if generator == nil {
				t.Errorf("expected generator but got nil")
			}
		})
	}
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		candidate models.MatchCandidate
		expected  string
	}{
		{models.MatchCandidate{Status: models.MatchStatusUnmatched}, StatusUnmatched},
		{models.MatchCandidate{Status: models.MatchStatusMatched}, StatusAuto},
		{models.MatchCandidate{Status: models.MatchStatusMatched, IsHistorical: true}, StatusHistorical},
		{models.MatchCandidate{Status: models.MatchStatusMatched, IsManual: true}, StatusManual},
		{models.MatchCandidate{Status: models.MatchStatusMatched, IsManual: true, IsMultiple: true}, StatusSplit},
	}

	for _, tt := range tests {
		c := tt.candidate
		if got := StatusLabel(&c); got != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, got)
		}
	}
}

func TestConsoleImportReport(t *testing.T) {
	generator, _ := NewReportGenerator(nil)
	var buf bytes.Buffer
	if err := generator.GenerateImportReport(createTestImportResult(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()

	expected := []string{
		"STATEMENT IMPORT REPORT",
		"Source:    statement.csv",
		"Read 3 rows: 3 valid",
		"Matched:   2 (66.7%)",
		"Unmatched amount: 95.00",
		"Mehmet Yılmaz EFT",
		"-> Zeynep Kaya",
		"Zeynep Kaya (Ayşe Kaya) [sibling]",
		"Ayşe Kaya: 2 x 47.50",
		"Credits booked:   3 (1050.00)",
		"=== REJECTED CHOICES ===",
	}
	for _, s := range expected {
		if !strings.Contains(output, s) {
			t.Errorf("Expected console output to contain %q\n%s", s, output)
		}
	}
}

func TestConsoleImportReportLimitsSuggestions(t *testing.T) {
	config := DefaultReportConfig()
	config.MaxSuggestions = 1
	generator, _ := NewReportGenerator(config)

	report := generator.BuildImportReport(createTestImportResult())
	if len(report.Rows[1].Suggestions) != 1 {
		t.Errorf("Expected 1 suggestion, got %d", len(report.Rows[1].Suggestions))
	}

	config.IncludeSuggestions = false
	config.UnmatchedOnly = true
	report = generator.BuildImportReport(createTestImportResult())
	if len(report.Rows) != 1 || report.Rows[0].Row != 3 {
		t.Fatalf("Expected only row 3, got %+v", report.Rows)
	}
	if report.Rows[0].Suggestions != nil {
		t.Errorf("Expected suggestions to be left out")
	}
}

func TestJSONImportReport(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatJSON
	generator, _ := NewReportGenerator(config)

	var buf bytes.Buffer
	if err := generator.GenerateImportReport(createTestImportResult(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded struct {
		Source string `json:"source"`
		Rows   []struct {
			Row         int    `json:"row"`
			Status      string `json:"status"`
			AthleteID   string `json:"athleteId"`
			Allocations []struct {
				AthleteID string `json:"athleteId"`
				Amount    string `json:"amount"`
			} `json:"allocations"`
		} `json:"rows"`
		Confirmation struct {
			Credits        int    `json:"credits"`
			CreditedAmount string `json:"creditedAmount"`
		} `json:"confirmation"`
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}

	if decoded.Source != "statement.csv" {
		t.Errorf("Expected source statement.csv, got %s", decoded.Source)
	}
	if len(decoded.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(decoded.Rows))
	}
	if decoded.Rows[0].Status != StatusAuto || decoded.Rows[0].AthleteID != "ath-1" {
		t.Errorf("Expected auto match to ath-1, got %+v", decoded.Rows[0])
	}
	if decoded.Rows[2].Status != StatusSplit || len(decoded.Rows[2].Allocations) != 2 {
		t.Errorf("Expected split with 2 allocations, got %+v", decoded.Rows[2])
	}
	if decoded.Confirmation.Credits != 3 || decoded.Confirmation.CreditedAmount != "1050" {
		t.Errorf("Expected 3 credits of 1050, got %+v", decoded.Confirmation)
	}
	if len(decoded.Errors) != 1 {
		t.Errorf("Expected 1 error, got %d", len(decoded.Errors))
	}
}

func TestCSVImportReport(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatCSV
	config.CSVDelimiter = ';'
	generator, _ := NewReportGenerator(config)

	var buf bytes.Buffer
	if err := generator.GenerateImportReport(createTestImportResult(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reader := csv.NewReader(&buf)
	reader.Comma = ';'
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV output: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("Expected header and 3 rows, got %d records", len(records))
	}
	if records[0][0] != "Row" {
		t.Errorf("Expected header row, got %v", records[0])
	}
	if records[1][9] != "due-1" {
		t.Errorf("Expected due entry due-1, got %s", records[1][9])
	}
	if records[2][11] != "Zeynep Kaya (40)|Ali Kaya (38)|Ahmet Yılmaz (20)" {
		t.Errorf("Unexpected suggestions column: %s", records[2][11])
	}
	if records[2][12] != "ath-2+ath-3=47.50" {
		t.Errorf("Unexpected sibling options column: %s", records[2][12])
	}
	if records[3][10] != "ath-2=350.00|ath-3=350.00" {
		t.Errorf("Unexpected allocations column: %s", records[3][10])
	}
}

func TestDuesReport(t *testing.T) {
	dues := []models.OutstandingDue{
		{
			AthleteID: "ath-1", EntryID: "d1", Description: "Haziran aidatı", Amount: decimal.NewFromInt(350),
			ChargeDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), DueDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			Status: models.DueStatusPending,
		},
		{
			AthleteID: "gone", EntryID: "d2", Description: "Mayıs aidatı", Amount: decimal.NewFromInt(400),
			ChargeDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), DueDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			Status: models.DueStatusOverdue,
		},
	}

	generator, _ := NewReportGenerator(nil)
	var buf bytes.Buffer
	if err := generator.GenerateDuesReport(dues, testRoster(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()
	for _, s := range []string{"OUTSTANDING DUES (2, total 750.00)", "Ahmet Yılmaz", "(not in roster)", "Overdue", "2024-07-01"} {
		if !strings.Contains(output, s) {
			t.Errorf("Expected dues output to contain %q\n%s", s, output)
		}
	}

	config := DefaultReportConfig()
	config.Format = FormatJSON
	generator, _ = NewReportGenerator(config)
	buf.Reset()
	if err := generator.GenerateDuesReport(dues, testRoster(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded []DueReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(decoded) != 2 || decoded[0].AthleteName != "Ahmet Yılmaz" {
		t.Errorf("Unexpected dues JSON: %+v", decoded)
	}
}

func TestHistoryReport(t *testing.T) {
	entries := []matchhistory.Entry{
		{Key: "mehmet yilmaz eft", AthleteID: "ath-1"},
		{Key: "xyz123 odeme", AthleteID: "ath-9"},
	}

	config := DefaultReportConfig()
	config.Format = FormatCSV
	generator, _ := NewReportGenerator(config)
	var buf bytes.Buffer
	if err := generator.GenerateHistoryReport(entries, testRoster(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if records[1][2] != "Ahmet Yılmaz" || records[2][2] != "(not in roster)" {
		t.Errorf("Unexpected history records: %v", records)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		width    int
		expected string
	}{
		{"short", 10, "short"},
		{"ÇOK UZUN AÇIKLAMA", 8, "ÇOK UZU…"},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := truncate(tt.input, tt.width); got != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, got)
		}
	}
}

type failingWriter struct {
	fails int
	buf   bytes.Buffer
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.fails > 0 {
		w.fails--
		return 0, errors.New("write failed")
	}
	return w.buf.Write(p)
}

func TestSafeReportGeneratorFallback(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatJSON
	generator, err := NewSafeReportGenerator(config, logger.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := &failingWriter{fails: 1}
	if err := generator.WriteImportReport(createTestImportResult(), w); err != nil {
		t.Fatalf("Expected fallback to succeed, got %v", err)
	}
	output := w.buf.String()
	if !strings.Contains(output, "NOTE: Report generated in fallback format") {
		t.Errorf("Expected fallback notice, got %s", output)
	}
	if !strings.Contains(output, "STATEMENT IMPORT REPORT") {
		t.Errorf("Expected console report after fallback")
	}

	if err := generator.WriteImportReport(nil, &bytes.Buffer{}); !apperrors.IsCode(err, apperrors.CodeMissingField) {
		t.Errorf("Expected missing_field error, got %v", err)
	}

	if _, err := NewSafeReportGenerator(&ReportConfig{Format: "xml", DescriptionWidth: 40}, nil); err == nil {
		t.Errorf("Expected configuration error")
	}
}

func TestCreateOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "import.csv")
	out, err := CreateOutput(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := out.Write([]byte("ok")); err != nil {
		t.Errorf("unexpected write error: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}

	stdout, err := CreateOutput("-")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := stdout.Close(); err != nil {
		t.Errorf("closing stdout output must be a no-op, got %v", err)
	}
}

// Package reporter renders statement imports, outstanding dues and the match
// history for the terminal, for scripts and for spreadsheets.
//
// Supported output formats:
//   - Console: aligned tables for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: one line per row for spreadsheet applications
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{
//		Format:             reporter.FormatCSV,
//		IncludeSuggestions: true,
//		MaxSuggestions:     3,
//		CSVDelimiter:       ';',
//		CSVHeaders:         true,
//		DescriptionWidth:   40,
//	})
//	err = generator.GenerateImportReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"athlete-payment-reconciler/internal/matchhistory"
	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/internal/parsers"
	"athlete-payment-reconciler/internal/reconciler"
	"athlete-payment-reconciler/pkg/errors"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// Row status labels
const (
	StatusAuto       = "auto"
	StatusHistorical = "history"
	StatusManual     = "manual"
	StatusSplit      = "split"
	StatusUnmatched  = "unmatched"
)

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `mapstructure:"format" json:"format"`

	IncludeSuggestions    bool `mapstructure:"include_suggestions" json:"include_suggestions"`
	MaxSuggestions        int  `mapstructure:"max_suggestions" json:"max_suggestions"`
	IncludeSiblingOptions bool `mapstructure:"include_sibling_options" json:"include_sibling_options"`
	UnmatchedOnly         bool `mapstructure:"unmatched_only" json:"unmatched_only"`

	// Console descriptions longer than this are cut
	DescriptionWidth int `mapstructure:"description_width" json:"description_width"`

	CSVDelimiter rune `mapstructure:"-" json:"csv_delimiter"`
	CSVHeaders   bool `mapstructure:"csv_headers" json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                FormatConsole,
		IncludeSuggestions:    true,
		MaxSuggestions:        3,
		IncludeSiblingOptions: true,
		DescriptionWidth:      40,
		CSVDelimiter:          ',',
		CSVHeaders:            true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "report.format", c.Format, nil).
			WithSuggestion("use one of: console, json, csv")
	}
	if c.MaxSuggestions < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "report.max_suggestions", c.MaxSuggestions, nil)
	}
	if c.DescriptionWidth < 10 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "report.description_width", c.DescriptionWidth,
			fmt.Errorf("description width must be at least 10 characters, got %d", c.DescriptionWidth))
	}
	if c.Format == FormatCSV && c.CSVDelimiter == 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "report.csv_delimiter", c.CSVDelimiter, nil)
	}
	return nil
}

// ReportGenerator generates reports in the configured format
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ReportGenerator{config: config}, nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

// RowReport is the rendered view of one statement row
type RowReport struct {
	Row            int                    `json:"row"`
	Date           string                 `json:"date"`
	Amount         decimal.Decimal        `json:"amount"`
	Description    string                 `json:"description"`
	Reference      string                 `json:"reference"`
	Status         string                 `json:"status"`
	Confidence     float64                `json:"confidence"`
	AthleteID      string                 `json:"athleteId,omitempty"`
	AthleteName    string                 `json:"athleteName,omitempty"`
	DueEntryID     string                 `json:"dueEntryId,omitempty"`
	Allocations    []models.Allocation    `json:"allocations,omitempty"`
	Suggestions    []models.Suggestion    `json:"suggestions,omitempty"`
	SiblingOptions []models.SiblingOption `json:"siblingOptions,omitempty"`
}

// ConfirmationReport summarizes what a confirmation booked
type ConfirmationReport struct {
	ConfirmedRows   int             `json:"confirmedRows"`
	SkippedRows     int             `json:"skippedRows"`
	Credits         int             `json:"credits"`
	CreditedAmount  decimal.Decimal `json:"creditedAmount"`
	Payments        int             `json:"payments"`
	HistoryRecorded int             `json:"historyRecorded"`
	Errors          []string        `json:"errors,omitempty"`
}

// ImportReport is the rendered view of an import
type ImportReport struct {
	Source       string                     `json:"source"`
	ProcessedAt  string                     `json:"processedAt"`
	Duration     string                     `json:"duration"`
	ParseStats   *parsers.ParseStats        `json:"parseStats,omitempty"`
	Summary      *reconciler.SessionSummary `json:"summary"`
	Rows         []RowReport                `json:"rows"`
	Confirmation *ConfirmationReport        `json:"confirmation,omitempty"`
	Errors       []string                   `json:"errors,omitempty"`
}

// StatusLabel names how a row was resolved
func StatusLabel(c *models.MatchCandidate) string {
	switch {
	case !c.IsMatched():
		return StatusUnmatched
	case c.IsMultiple:
		return StatusSplit
	case c.IsManual:
		return StatusManual
	case c.IsHistorical:
		return StatusHistorical
	default:
		return StatusAuto
	}
}

// BuildImportReport flattens an import result according to the configuration
func (rg *ReportGenerator) BuildImportReport(result *reconciler.ImportResult) *ImportReport {
	report := &ImportReport{
		Source:      result.Source,
		ProcessedAt: result.ProcessedAt.Format("2006-01-02T15:04:05Z07:00"),
		Duration:    result.Duration.String(),
		Summary:     result.Summary,
		Rows:        make([]RowReport, 0, len(result.Candidates)),
		ParseStats:  result.ParseStats,
		Errors:      errorMessages(result.Errors),
	}

	for _, c := range result.Candidates {
		if rg.config.UnmatchedOnly && c.IsMatched() {
			continue
		}
		report.Rows = append(report.Rows, rg.buildRow(c))
	}

	if result.Confirmation != nil {
		report.Confirmation = BuildConfirmationReport(result.Confirmation)
	}
	return report
}

func (rg *ReportGenerator) buildRow(c *models.MatchCandidate) RowReport {
	row := RowReport{
		Row:         c.Transaction.RowIndex,
		Date:        c.Transaction.Date,
		Amount:      c.Transaction.Amount,
		Description: c.Transaction.Description,
		Reference:   c.Transaction.Reference,
		Status:      StatusLabel(c),
		Confidence:  c.Confidence,
		AthleteID:   c.AthleteID,
		AthleteName: c.AthleteName,
		Allocations: c.MultiplePayments,
	}
	if c.MatchedDue != nil {
		row.DueEntryID = c.MatchedDue.EntryID
	}
	if rg.config.IncludeSuggestions {
		row.Suggestions = c.Suggestions
		if len(row.Suggestions) > rg.config.MaxSuggestions {
			row.Suggestions = row.Suggestions[:rg.config.MaxSuggestions]
		}
	}
	if rg.config.IncludeSiblingOptions {
		row.SiblingOptions = c.SiblingOptions
	}
	return row
}

// BuildConfirmationReport summarizes a confirmation result
func BuildConfirmationReport(result *reconciler.ConfirmResult) *ConfirmationReport {
	report := &ConfirmationReport{
		ConfirmedRows:   result.ConfirmedRows,
		SkippedRows:     result.SkippedRows,
		Credits:         len(result.Credits),
		CreditedAmount:  decimal.Zero,
		Payments:        len(result.Payments),
		HistoryRecorded: result.HistoryRecorded,
		Errors:          errorMessages(result.Errors),
	}
	for _, credit := range result.Credits {
		report.CreditedAmount = report.CreditedAmount.Add(credit.AmountIncludingVAT)
	}
	return report
}

// GenerateImportReport writes the report of an import
func (rg *ReportGenerator) GenerateImportReport(result *reconciler.ImportResult, writer io.Writer) error {
	if result == nil {
		return errors.ValidationError(errors.CodeMissingField, "import_result", nil, nil)
	}
	report := rg.BuildImportReport(result)

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleImport(report, writer)
	case FormatJSON:
		return writeJSON(writer, report)
	case FormatCSV:
		return rg.generateCSVImport(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleImport(report *ImportReport, writer io.Writer) error {
	fmt.Fprintf(writer, "STATEMENT IMPORT REPORT\n")
	fmt.Fprintf(writer, "Source:    %s\n", report.Source)
	fmt.Fprintf(writer, "Processed: %s (%s)\n\n", report.ProcessedAt, report.Duration)

	if report.ParseStats != nil {
		fmt.Fprintf(writer, "=== PARSING ===\n%s\n\n", report.ParseStats)
	}

	if report.Summary != nil {
		fmt.Fprintf(writer, "=== SUMMARY ===\n")
		rg.printSummary(report.Summary, writer)
		fmt.Fprintf(writer, "\n")
	}

	if len(report.Rows) > 0 {
		fmt.Fprintf(writer, "=== ROWS ===\n")
		if err := rg.printRows(report.Rows, writer); err != nil {
			return err
		}
		fmt.Fprintf(writer, "\n")
	}

	if report.Confirmation != nil {
		fmt.Fprintf(writer, "=== CONFIRMATION ===\n")
		printConfirmation(report.Confirmation, writer)
		fmt.Fprintf(writer, "\n")
	}

	if len(report.Errors) > 0 {
		fmt.Fprintf(writer, "=== REJECTED CHOICES ===\n")
		for _, msg := range report.Errors {
			fmt.Fprintf(writer, "  - %s\n", msg)
		}
	}
	return nil
}

func (rg *ReportGenerator) printSummary(summary *reconciler.SessionSummary, writer io.Writer) {
	fmt.Fprintf(writer, "Rows:      %d\n", summary.TotalRows)
	fmt.Fprintf(writer, "Matched:   %d (%.1f%%)\n", summary.MatchedRows, percentage(summary.MatchedRows, summary.TotalRows))
	fmt.Fprintf(writer, "  from history: %d\n", summary.HistoricalMatches)
	fmt.Fprintf(writer, "  manual:       %d\n", summary.ManualMatches)
	fmt.Fprintf(writer, "  split:        %d\n", summary.MultipleMatches)
	fmt.Fprintf(writer, "Unmatched: %d (%.1f%%)\n", summary.UnmatchedRows, percentage(summary.UnmatchedRows, summary.TotalRows))
	fmt.Fprintf(writer, "Matched amount:   %s\n", summary.MatchedAmount.StringFixed(2))
	fmt.Fprintf(writer, "Unmatched amount: %s\n", summary.UnmatchedAmount.StringFixed(2))
}

func (rg *ReportGenerator) printRows(rows []RowReport, writer io.Writer) error {
	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tDATE\tAMOUNT\tSTATUS\tCONF\tATHLETE\tDESCRIPTION")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.0f\t%s\t%s\n",
			r.Row, r.Date, r.Amount.StringFixed(2), r.Status, r.Confidence,
			orDash(r.AthleteName), truncate(r.Description, rg.config.DescriptionWidth))

		for _, a := range r.Allocations {
			fmt.Fprintf(tw, "\t\t%s\t\t\t-> %s\t\n", a.Amount.StringFixed(2), a.AthleteName)
		}
		for _, s := range r.Suggestions {
			label := s.AthleteName
			if s.ParentName != "" {
				label += " (" + s.ParentName + ")"
			}
			if s.IsSibling {
				label += " [sibling]"
			}
			fmt.Fprintf(tw, "\t\t\t?\t%.0f\t%s\t\n", s.Similarity, label)
		}
		if r.Status == StatusSplit {
			continue
		}
		for _, o := range r.SiblingOptions {
			fmt.Fprintf(tw, "\t\t\tsplit\t\t%s: %d x %s\t%s\n",
				o.DisplayName, len(o.AthleteIDs), o.EvenSplit.StringFixed(2), strings.Join(o.AthleteIDs, ","))
		}
	}
	return tw.Flush()
}

func printConfirmation(report *ConfirmationReport, writer io.Writer) {
	fmt.Fprintf(writer, "Confirmed rows:   %d\n", report.ConfirmedRows)
	fmt.Fprintf(writer, "Skipped rows:     %d\n", report.SkippedRows)
	fmt.Fprintf(writer, "Credits booked:   %d (%s)\n", report.Credits, report.CreditedAmount.StringFixed(2))
	fmt.Fprintf(writer, "Payments updated: %d\n", report.Payments)
	fmt.Fprintf(writer, "Remembered:       %d\n", report.HistoryRecorded)
	if len(report.Errors) > 0 {
		fmt.Fprintf(writer, "Failed rows (%d):\n", len(report.Errors))
		for _, msg := range report.Errors {
			fmt.Fprintf(writer, "  - %s\n", msg)
		}
	}
}

func (rg *ReportGenerator) generateCSVImport(report *ImportReport, writer io.Writer) error {
	w := rg.csvWriter(writer)
	if rg.config.CSVHeaders {
		headers := []string{
			"Row", "Date", "Amount", "Description", "Reference", "Status", "Confidence",
			"Athlete_ID", "Athlete", "Due_Entry", "Allocations", "Suggestions", "Sibling_Options",
		}
		if err := w.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, r := range report.Rows {
		allocations := make([]string, len(r.Allocations))
		for i, a := range r.Allocations {
			allocations[i] = a.AthleteID + "=" + a.Amount.StringFixed(2)
		}
		suggestions := make([]string, len(r.Suggestions))
		for i, s := range r.Suggestions {
			suggestions[i] = fmt.Sprintf("%s (%.0f)", s.AthleteName, s.Similarity)
		}
		options := make([]string, len(r.SiblingOptions))
		for i, o := range r.SiblingOptions {
			options[i] = strings.Join(o.AthleteIDs, "+") + "=" + o.EvenSplit.StringFixed(2)
		}

		record := []string{
			fmt.Sprintf("%d", r.Row),
			r.Date,
			r.Amount.StringFixed(2),
			r.Description,
			r.Reference,
			r.Status,
			fmt.Sprintf("%.2f", r.Confidence),
			r.AthleteID,
			r.AthleteName,
			r.DueEntryID,
			strings.Join(allocations, "|"),
			strings.Join(suggestions, "|"),
			strings.Join(options, "|"),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r.Row, err)
		}
	}

	w.Flush()
	return w.Error()
}

// DueReport is the rendered view of one outstanding due
type DueReport struct {
	AthleteID   string          `json:"athleteId"`
	AthleteName string          `json:"athleteName"`
	EntryID     string          `json:"entryId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	ChargeDate  string          `json:"chargeDate"`
	DueDate     string          `json:"dueDate"`
	Status      string          `json:"status"`
}

// GenerateDuesReport writes the outstanding dues with athlete names from the roster
func (rg *ReportGenerator) GenerateDuesReport(dues []models.OutstandingDue, athletes []models.Athlete, writer io.Writer) error {
	roster := models.NewRoster(athletes)
	rows := make([]DueReport, len(dues))
	total := decimal.Zero
	for i, d := range dues {
		rows[i] = DueReport{
			AthleteID:   d.AthleteID,
			AthleteName: athleteName(roster, d.AthleteID),
			EntryID:     d.EntryID,
			Description: d.Description,
			Amount:      d.Amount,
			ChargeDate:  d.ChargeDate.Format("2006-01-02"),
			DueDate:     d.DueDate.Format("2006-01-02"),
			Status:      string(d.Status),
		}
		total = total.Add(d.Amount)
	}

	switch rg.config.Format {
	case FormatJSON:
		return writeJSON(writer, rows)
	case FormatCSV:
		w := rg.csvWriter(writer)
		if rg.config.CSVHeaders {
			if err := w.Write([]string{"Athlete_ID", "Athlete", "Entry_ID", "Description", "Amount", "Charged", "Due", "Status"}); err != nil {
				return err
			}
		}
		for _, r := range rows {
			if err := w.Write([]string{r.AthleteID, r.AthleteName, r.EntryID, r.Description, r.Amount.StringFixed(2), r.ChargeDate, r.DueDate, r.Status}); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	default:
		fmt.Fprintf(writer, "OUTSTANDING DUES (%d, total %s)\n\n", len(rows), total.StringFixed(2))
		tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ATHLETE\tCHARGED\tDUE\tAMOUNT\tSTATUS\tDESCRIPTION")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.AthleteName, r.ChargeDate, r.DueDate, r.Amount.StringFixed(2), r.Status,
				truncate(r.Description, rg.config.DescriptionWidth))
		}
		return tw.Flush()
	}
}

// HistoryReport is the rendered view of one remembered description
type HistoryReport struct {
	Key         string `json:"key"`
	AthleteID   string `json:"athleteId"`
	AthleteName string `json:"athleteName"`
}

// GenerateHistoryReport writes the remembered descriptions. Entries whose
// athlete left the roster are marked.
func (rg *ReportGenerator) GenerateHistoryReport(entries []matchhistory.Entry, athletes []models.Athlete, writer io.Writer) error {
	roster := models.NewRoster(athletes)
	rows := make([]HistoryReport, len(entries))
	for i, e := range entries {
		rows[i] = HistoryReport{Key: e.Key, AthleteID: e.AthleteID, AthleteName: athleteName(roster, e.AthleteID)}
	}

	switch rg.config.Format {
	case FormatJSON:
		return writeJSON(writer, rows)
	case FormatCSV:
		w := rg.csvWriter(writer)
		if rg.config.CSVHeaders {
			if err := w.Write([]string{"Key", "Athlete_ID", "Athlete"}); err != nil {
				return err
			}
		}
		for _, r := range rows {
			if err := w.Write([]string{r.Key, r.AthleteID, r.AthleteName}); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	default:
		fmt.Fprintf(writer, "MATCH HISTORY (%d)\n\n", len(rows))
		tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DESCRIPTION\tATHLETE ID\tATHLETE")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", truncate(r.Key, rg.config.DescriptionWidth), r.AthleteID, r.AthleteName)
		}
		return tw.Flush()
	}
}

func (rg *ReportGenerator) csvWriter(writer io.Writer) *csv.Writer {
	w := csv.NewWriter(writer)
	if rg.config.CSVDelimiter != 0 {
		w.Comma = rg.config.CSVDelimiter
	}
	return w
}

func writeJSON(writer io.Writer, v interface{}) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func athleteName(roster *models.Roster, id string) string {
	if a, ok := roster.Get(id); ok {
		return a.FullName()
	}
	return "(not in roster)"
}

func errorMessages(errs []*errors.AppError) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

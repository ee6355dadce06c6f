// Package parsers turns bank statement exports into transaction rows.
//
// Statement layouts differ per bank and per export screen, so no column is
// assumed to hold anything. Every cell of every row after the header is
// scanned for a date, an incoming amount, a free-text description and an
// optional reference. Rows missing any of the first three are dropped without
// individual reporting; only an import with no usable row at all fails.
//
// Supported inputs:
//   - .xlsx / .xlsm workbooks (first worksheet only), read with excelize so
//     numeric and date-formatted cells keep their stored values
//   - .csv / .txt delimited exports in UTF-8 or Windows-1254
//
// Example usage:
//
//	parser := NewStatementParser(DefaultParseConfig())
//	rows, stats, err := parser.ParseFile(ctx, "hesap-hareketleri.xlsx")
//
// The parsing helpers ParseTurkishDate and ParseAmount are exported for reuse
// by callers that read single values, such as CLI flags.
package parsers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/pkg/errors"
	"athlete-payment-reconciler/pkg/logger"
)

// Format identifies a statement file format
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// DetectFormat picks a format from the file extension
func DetectFormat(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, true
	case ".csv", ".txt":
		return FormatCSV, true
	default:
		return "", false
	}
}

// ParseConfig holds configuration for statement parsing
type ParseConfig struct {
	// HasHeader skips the first row.
	HasHeader bool `mapstructure:"has_header"`
	// Delimiter for CSV input. Zero sniffs it from the first line.
	Delimiter rune `mapstructure:"-"`
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{HasHeader: true}
}

// ParseStats holds statistics about a parsing operation
type ParseStats struct {
	TotalRows      int `json:"totalRows"`
	ValidRows      int `json:"validRows"`
	OutgoingRows   int `json:"outgoingRows"`
	IncompleteRows int `json:"incompleteRows"`
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Read %d rows: %d valid, %d outgoing, %d incomplete",
		ps.TotalRows, ps.ValidRows, ps.OutgoingRows, ps.IncompleteRows)
}

// StatementParser reads statement files into transaction rows
type StatementParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewStatementParser creates a parser. A nil config uses the defaults.
func NewStatementParser(config *ParseConfig) *StatementParser {
	if config == nil {
		config = DefaultParseConfig()
	}
	return &StatementParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("statement_parser"),
	}
}

// ParseFile opens path and parses it according to its extension
func (p *StatementParser) ParseFile(ctx context.Context, path string) ([]models.BankTransactionRow, *ParseStats, error) {
	format, ok := DetectFormat(path)
	if !ok {
		return nil, nil, errors.FileError(errors.CodeUnsupportedFile, path, nil)
	}

	file, err := os.Open(path)
	if err != nil {
		p.logger.WithError(err).WithField("file_path", path).Error("Failed to open statement file")
		if os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	defer file.Close()

	return p.Parse(ctx, file, format, filepath.Base(path))
}

// Parse reads a statement of the given format from r. source names the input in errors.
func (p *StatementParser) Parse(ctx context.Context, r io.Reader, format Format, source string) ([]models.BankTransactionRow, *ParseStats, error) {
	var (
		sh  *sheet
		err error
	)
	switch format {
	case FormatXLSX:
		sh, err = readXLSX(r)
	case FormatCSV:
		sh, err = readCSV(r, p.config.Delimiter)
	default:
		return nil, nil, errors.FileError(errors.CodeUnsupportedFile, source, nil)
	}
	if err != nil {
		p.logger.WithError(err).WithField("source", source).Error("Failed to read statement")
		return nil, nil, errors.FileError(errors.CodeFileCorrupted, source, err)
	}

	rows, stats, err := p.ParseRows(ctx, sh.rows, sh.date1904)
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok && appErr.Code == errors.CodeNoValidRows {
			return nil, stats, errors.ParseError(errors.CodeNoValidRows, source, nil).
				WithContext("total_rows", stats.TotalRows)
		}
		return nil, stats, err
	}

	p.logger.WithFields(logger.Fields{
		"source":     source,
		"format":     format,
		"total_rows": stats.TotalRows,
		"valid_rows": stats.ValidRows,
	}).Info("Parsed statement")
	return rows, stats, nil
}

// ParseRows extracts transaction rows from already-read cells. Row indexes
// are 1-based sheet row numbers so users can find them in the file.
func (p *StatementParser) ParseRows(ctx context.Context, cells [][]Cell, date1904 bool) ([]models.BankTransactionRow, *ParseStats, error) {
	stats := &ParseStats{}
	start := 0
	if p.config.HasHeader {
		start = 1
	}

	var rows []models.BankTransactionRow
	for i := start; i < len(cells); i++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, errors.InternalError(errors.CodeUnexpectedError, "statement parsing", err)
		}
		if isBlankRow(cells[i]) {
			continue
		}
		stats.TotalRows++

		row, outcome := extractRow(i+1, cells[i], date1904)
		switch outcome {
		case rowValid:
			stats.ValidRows++
			rows = append(rows, row)
		case rowOutgoing:
			stats.OutgoingRows++
		default:
			stats.IncompleteRows++
			p.logger.WithField("row", i+1).Debug("Dropped row without date, amount or description")
		}
	}

	if len(rows) == 0 {
		return nil, stats, errors.ParseError(errors.CodeNoValidRows, "statement", nil)
	}
	return rows, stats, nil
}

func isBlankRow(cells []Cell) bool {
	for _, c := range cells {
		if trimCell(c.Value) != "" {
			return false
		}
	}
	return true
}

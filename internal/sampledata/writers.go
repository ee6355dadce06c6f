package sampledata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"

	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/pkg/errors"
)

// Statement file formats
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

const (
	statementSheet = "Hesap Hareketleri"
	dateLayout     = "02.01.2006"
)

var statementHeader = []string{"Tarih", "Açıklama", "Tutar", "Referans"}

// WriteRosterYAML writes athletes as a roster export
func WriteRosterYAML(w io.Writer, athletes []models.Athlete) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(map[string][]models.Athlete{"athletes": athletes}); err != nil {
		return err
	}
	return encoder.Close()
}

// WriteStatementCSV writes a semicolon separated statement with Turkish
// number and date formats. legacyEncoding writes Windows-1254 instead of
// UTF-8, as older bank exports do.
func WriteStatementCSV(w io.Writer, rows []StatementRow, legacyEncoding bool) error {
	if legacyEncoding {
		encoded := transform.NewWriter(w, charmap.Windows1254.NewEncoder())
		defer encoded.Close()
		w = encoded
	}

	writer := csv.NewWriter(w)
	writer.Comma = ';'
	if err := writer.Write(statementHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{row.Date.Format(dateLayout), row.Description, FormatTurkishAmount(row.Amount), row.Reference}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteStatementXLSX writes the statement as a single-sheet workbook with
// real date and number cells
func WriteStatementXLSX(w io.Writer, rows []StatementRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", statementSheet); err != nil {
		return err
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(statementSheet, "A1", &statementHeader); err != nil {
		return err
	}

	for i, row := range rows {
		line := i + 2
		cell := func(col string) string { return fmt.Sprintf("%s%d", col, line) }

		if err := f.SetCellValue(statementSheet, cell("A"), row.Date); err != nil {
			return err
		}
		if err := f.SetCellStyle(statementSheet, cell("A"), cell("A"), dateStyle); err != nil {
			return err
		}
		if err := f.SetCellStr(statementSheet, cell("B"), row.Description); err != nil {
			return err
		}
		if err := f.SetCellFloat(statementSheet, cell("C"), row.Amount.InexactFloat64(), 2, 64); err != nil {
			return err
		}
		if row.Reference != "" {
			if err := f.SetCellStr(statementSheet, cell("D"), row.Reference); err != nil {
				return err
			}
		}
	}

	_, err = f.WriteTo(w)
	return err
}

// FormatTurkishAmount formats 1234.5 as "1.234,50"
func FormatTurkishAmount(amount decimal.Decimal) string {
	text := amount.Abs().StringFixed(2)
	whole, fraction, _ := strings.Cut(text, ".")

	var grouped strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(digit)
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return sign + grouped.String() + "," + fraction
}

// Files holds the paths written by WriteFiles
type Files struct {
	Roster    string
	Statement string
}

// WriteFiles writes athletes.yaml and statement.<format> into dir
func WriteFiles(dir string, ds *Dataset, format string) (*Files, error) {
	if format != FormatXLSX && format != FormatCSV {
		return nil, errors.ValidationError(errors.CodeInvalidSelection, "format", format, nil).
			WithSuggestion("use xlsx or csv")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.FileError(errors.CodeFilePermission, dir, err)
	}

	files := &Files{
		Roster:    filepath.Join(dir, "athletes.yaml"),
		Statement: filepath.Join(dir, "statement."+format),
	}

	if err := writeFile(files.Roster, func(w io.Writer) error {
		return WriteRosterYAML(w, ds.Athletes)
	}); err != nil {
		return nil, err
	}
	if err := writeFile(files.Statement, func(w io.Writer) error {
		if format == FormatCSV {
			return WriteStatementCSV(w, ds.Statement, false)
		}
		return WriteStatementXLSX(w, ds.Statement)
	}); err != nil {
		return nil, err
	}
	return files, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	if err := file.Close(); err != nil {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	return nil
}

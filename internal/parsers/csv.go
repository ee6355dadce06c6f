package parsers

import (
	"bytes"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV reads a delimited statement export. Turkish banks still ship
// Windows-1254 files, so input that is not valid UTF-8 is decoded from it.
func readCSV(r io.Reader, delimiter rune) (*sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1254.NewDecoder().Bytes(data)
		if err != nil {
			return nil, err
		}
		data = decoded
	}

	if delimiter == 0 {
		delimiter = sniffDelimiter(data)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	out := &sheet{rows: make([][]Cell, len(records))}
	for i, record := range records {
		out.rows[i] = TextCells(record...)
	}
	return out, nil
}

// sniffDelimiter picks the most frequent candidate on the first line.
// Semicolons win ties because Turkish exports use the comma as decimal mark.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ';', bytes.Count(line, []byte{';'})
	for _, candidate := range []rune{'\t', ','} {
		if n := bytes.Count(line, []byte(string(candidate))); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

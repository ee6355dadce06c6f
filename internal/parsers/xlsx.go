package parsers

import (
	"io"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Built-in number format IDs that render as dates or date-times.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

var formatNoise = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]|\\.`)

// sheet is the first worksheet of a workbook reduced to typed cells
type sheet struct {
	rows     [][]Cell
	date1904 bool
}

func readXLSX(r io.Reader) (*sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &sheet{}, nil
	}
	name := sheets[0]

	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	out := &sheet{rows: make([][]Cell, len(raw))}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		out.date1904 = *props.Date1904
	}

	styleIsDate := make(map[int]bool)
	for r, values := range raw {
		cells := make([]Cell, len(values))
		for c, value := range values {
			cells[c] = Cell{Value: value}
			if strings.TrimSpace(value) == "" {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				continue
			}
			cells[c].Kind = cellKind(f, name, ref, styleIsDate)
		}
		out.rows[r] = cells
	}
	return out, nil
}

func cellKind(f *excelize.File, sheetName, ref string, styleIsDate map[int]bool) CellKind {
	cellType, err := f.GetCellType(sheetName, ref)
	if err != nil {
		return CellText
	}
	// Numbers are usually stored without a type attribute.
	if cellType != excelize.CellTypeUnset && cellType != excelize.CellTypeNumber {
		return CellText
	}

	styleID, err := f.GetCellStyle(sheetName, ref)
	if err != nil {
		return CellNumber
	}
	isDate, seen := styleIsDate[styleID]
	if !seen {
		isDate = dateStyle(f, styleID)
		styleIsDate[styleID] = isDate
	}
	if isDate {
		return CellDate
	}
	return CellNumber
}

func dateStyle(f *excelize.File, styleID int) bool {
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if builtinDateFormats[style.NumFmt] {
		return true
	}
	if style.CustomNumFmt == nil {
		return false
	}
	format := strings.ToLower(formatNoise.ReplaceAllString(*style.CustomNumFmt, ""))
	return strings.ContainsAny(format, "dy") || strings.Contains(format, "mmm")
}

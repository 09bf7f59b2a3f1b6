// Package takeoff parses spreadsheet takeoff sheets into import rows. Column
// headers are matched against known aliases; unrecognized columns survive as
// attribute-bag entries so no estimator data is lost on the way in.
package takeoff

import (
	"io"
	"strconv"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"
)

// Row is one parsed takeoff line item. Quantity is zero when the sheet left
// the cell blank; validation decides whether that is acceptable for the row's
// component type.
type Row struct {
	// Line is the 1-based spreadsheet row, for error reports.
	Line        int
	Drawing     string
	TypeKeyword string
	NaturalKey  string
	Commodity   string
	Size        string
	Quantity    int
	Attributes  map[string]string
}

// SkippedRow records a line the reader dropped before validation, with a
// non-error reason.
type SkippedRow struct {
	Line   int
	Reason string
}

// Sheet is the parse result for one worksheet.
type Sheet struct {
	Rows    []Row
	Skipped []SkippedRow
}

// headerAliases maps recognized column headers (lowercased, space-collapsed)
// to canonical fields. First column claiming a field wins; later duplicates
// fall through to the attribute bag.
var headerAliases = map[string]string{
	"drawing":         "drawing",
	"drawing no":      "drawing",
	"drawing number":  "drawing",
	"dwg":             "drawing",
	"dwg no":          "drawing",
	"iso":             "drawing",
	"isometric":       "drawing",
	"parent document": "drawing",
	"type":            "type",
	"component type":  "type",
	"component":       "type",
	"category":        "type",
	"qty":             "quantity",
	"quantity":        "quantity",
	"count":           "quantity",
	"tag":             "natural_key",
	"tag no":          "natural_key",
	"weld no":         "natural_key",
	"weld number":     "natural_key",
	"serial":          "natural_key",
	"serial no":       "natural_key",
	"commodity":       "commodity",
	"commodity code":  "commodity",
	"material code":   "commodity",
	"ident code":      "commodity",
	"size":            "size",
	"nps":             "size",
	"diameter":        "size",
}

// Read parses the first worksheet of an xlsx stream.
func Read(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, gerrors.Wrap(err, "open takeoff workbook")
	}
	defer f.Close()
	return ReadSheet(f, f.GetSheetName(0))
}

// ReadSheet parses one worksheet of an already-open workbook. The first
// non-empty row is the header.
func ReadSheet(f *excelize.File, sheet string) (*Sheet, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, gerrors.Wrap(err, "read takeoff sheet")
	}

	out := &Sheet{}
	var (
		fields   map[int]string // column index -> canonical field
		attrKeys map[int]string // column index -> attribute key
	)
	for i, cells := range rows {
		line := i + 1
		if isEmptyRow(cells) {
			continue
		}
		if fields == nil {
			fields, attrKeys = mapHeader(cells)
			continue
		}
		row, reason := parseRow(line, cells, fields, attrKeys)
		if reason != "" {
			out.Skipped = append(out.Skipped, SkippedRow{Line: line, Reason: reason})
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	if fields == nil {
		return nil, gerrors.New("no header row found")
	}
	return out, nil
}

func mapHeader(cells []string) (map[int]string, map[int]string) {
	fields := map[int]string{}
	attrKeys := map[int]string{}
	claimed := map[string]bool{}
	for i, cell := range cells {
		header := canonicalHeader(cell)
		if header == "" {
			continue
		}
		if field, ok := headerAliases[header]; ok && !claimed[field] {
			fields[i] = field
			claimed[field] = true
			continue
		}
		attrKeys[i] = attributeKey(cell)
	}
	return fields, attrKeys
}

func parseRow(line int, cells []string, fields map[int]string, attrKeys map[int]string) (Row, string) {
	row := Row{Line: line, Attributes: map[string]string{}}
	for i, cell := range cells {
		value := strings.TrimSpace(cell)
		if value == "" {
			continue
		}
		switch fields[i] {
		case "drawing":
			row.Drawing = value
		case "type":
			row.TypeKeyword = value
		case "natural_key":
			row.NaturalKey = value
		case "commodity":
			row.Commodity = value
		case "size":
			row.Size = value
		case "quantity":
			qty, err := parseQuantity(value)
			if err != nil {
				return Row{}, "unparseable quantity " + strconv.Quote(value)
			}
			row.Quantity = qty
		default:
			if key, ok := attrKeys[i]; ok {
				row.Attributes[key] = value
			}
		}
	}
	if row.Drawing == "" && row.TypeKeyword == "" && row.NaturalKey == "" {
		return Row{}, "no identity cells"
	}
	return row, ""
}

// parseQuantity accepts integers and whole-valued floats. Estimating tools
// export "3.0" for a count of three.
func parseQuantity(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	n := int(f)
	if float64(n) != f {
		return 0, gerrors.Errorf("fractional quantity %q", raw)
	}
	return n, nil
}

func canonicalHeader(cell string) string {
	return strings.ToLower(strings.Join(strings.Fields(cell), " "))
}

// attributeKey turns an unrecognized header into a stable attribute-bag key:
// lowercased with runs of non-alphanumerics collapsed to underscores.
func attributeKey(cell string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(cell)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Package rowparse maps raw report rows onto typed fields.
package rowparse

import "fmt"

type FieldType int

const (
	Text FieldType = iota
	Number
	Decimal
	Percentage
	Date
	DateTime
)

func (t FieldType) String() string {
	switch t {
	case Text:
		return "text"
	case Number:
		return "number"
	case Decimal:
		return "decimal"
	case Percentage:
		return "percentage"
	case Date:
		return "date"
	case DateTime:
		return "datetime"
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// Field is a column at a fixed position of every row.
type Field struct {
	Position int
	Name     string
	Type     FieldType
}

// Value is a coerced cell. Number and Decimal fields carry Number, every
// field keeps the text it was coerced from.
type Value struct {
	Type   FieldType
	Text   string
	Number float64
}

// Schema describes the fixed leading columns of one report.
type Schema struct {
	Fields []Field
	// DateField must hold a valid calendar date for the row to be accepted, empty to skip the check.
	DateField string
	// NameField must be non-empty and not purely numeric for the row to be accepted.
	NameField string
	// MinCells rejects narrower rows.
	MinCells int
	// CompositionFrom is the first column collected into the composition, zero disables it.
	CompositionFrom int
	// IndexColumn shifts every position by one when the row carries exactly one
	// more cell than the schema spans, the report then renders a leading row number.
	IndexColumn bool
	// CenturyPrefix is the expected start of every year, "20" when empty.
	CenturyPrefix string
}

// Width is the number of columns spanned by the fixed fields.
func (s Schema) Width() int {
	width := 0
	for _, f := range s.Fields {
		if f.Position+1 > width {
			width = f.Position + 1
		}
	}
	return width
}

func (s Schema) century() string {
	if s.CenturyPrefix == "" {
		return "20"
	}
	return s.CenturyPrefix
}

func coerce(raw string, t FieldType) Value {
	v := Value{Type: t, Text: raw}
	switch t {
	case Number, Decimal:
		v.Number = ParseNumber(raw)
	case Date:
		v.Text = NormalizeDate(raw)
	}
	return v
}

// Parse coerces a raw row. The second return value is false when the row is
// not a data row: too narrow, an invalid date or a numeric name.
func (s Schema) Parse(cells []string, columns []string) (Row, bool) {
	if len(cells) < s.MinCells {
		return Row{}, false
	}

	offset := 0
	if s.IndexColumn && len(cells) == s.Width()+1 {
		offset = 1
	}

	row := Row{values: make(map[string]Value, len(s.Fields))}
	for _, f := range s.Fields {
		pos := f.Position + offset
		if pos >= len(cells) {
			continue
		}
		row.values[f.Name] = coerce(cells[pos], f.Type)
	}

	if s.DateField != "" && !IsValidDate(row.Text(s.DateField), s.century()) {
		return Row{}, false
	}
	if s.NameField != "" {
		name := row.Text(s.NameField)
		if name == "" || IsNumeric(name) {
			return Row{}, false
		}
	}

	if s.CompositionFrom > 0 {
		row.Composition = NewComposition()
		end := min(len(cells), len(columns))
		for i := s.CompositionFrom; i < end; i++ {
			if n, ok := TryParseNumber(cells[i]); ok {
				row.Composition.Set(columns[i], n)
			} else if cleanNumber(cells[i]) == "" {
				row.Composition.Set(columns[i], float64(0))
			} else {
				row.Composition.Set(columns[i], cells[i])
			}
		}
	}
	return row, true
}

// Row is a parsed data row.
type Row struct {
	values      map[string]Value
	Composition *Composition
}

// Has reports whether the row had a cell for the field.
func (r Row) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

func (r Row) Value(name string) Value {
	return r.values[name]
}

func (r Row) Text(name string) string {
	return r.values[name].Text
}

func (r Row) Float(name string) float64 {
	return r.values[name].Number
}

func (r Row) Int(name string) int64 {
	return int64(r.values[name].Number)
}

package load

// SplitColumns names the date-only and time-only source columns backing a
// timestamp field in a split layout.
type SplitColumns struct {
	DateCol int
	TimeCol int
}

// HeaderField is one resolved header assignment, in sheet column order.
type HeaderField struct {
	Header string
	Column int
	Field  Field
}

// Mapping is the deterministic assignment of sheet columns to canonical
// fields. Each field binds at most one column and each column at most one
// field.
type Mapping struct {
	headers        []string
	colByField     map[Field]int
	fieldByCol     map[int]Field
	literalByField map[Field]int
	splitByField   map[Field]SplitColumns
}

func NewMapping(headers []string) *Mapping {
	return &Mapping{
		headers:        append([]string(nil), headers...),
		colByField:     make(map[Field]int),
		fieldByCol:     make(map[int]Field),
		literalByField: make(map[Field]int),
		splitByField:   make(map[Field]SplitColumns),
	}
}

func (m *Mapping) Headers() []string {
	return m.headers
}

func (m *Mapping) Header(col int) string {
	if col < 0 || col >= len(m.headers) {
		return ""
	}
	return m.headers[col]
}

// Assign resolves a column to a field. Several columns may resolve to the
// same field; the leftmost one becomes the field's value column.
func (m *Mapping) Assign(col int, f Field) {
	if _, taken := m.fieldByCol[col]; taken {
		return
	}
	m.fieldByCol[col] = f
	if _, bound := m.colByField[f]; !bound {
		m.colByField[f] = col
	}
}

func (m *Mapping) ColumnFor(f Field) (int, bool) {
	col, ok := m.colByField[f]
	return col, ok
}

func (m *Mapping) FieldFor(col int) (Field, bool) {
	f, ok := m.fieldByCol[col]
	return f, ok
}

func (m *Mapping) HeaderFor(f Field) (string, bool) {
	col, ok := m.colByField[f]
	if !ok {
		return "", false
	}
	return m.Header(col), true
}

// SetLiteral records a column whose header text is the canonical field name
// itself. Such a column is authoritative for the field's value even when the
// field resolved to a different column.
func (m *Mapping) SetLiteral(f Field, col int) {
	if _, taken := m.literalByField[f]; !taken {
		m.literalByField[f] = col
	}
}

func (m *Mapping) LiteralColumnFor(f Field) (int, bool) {
	col, ok := m.literalByField[f]
	return col, ok
}

// SetSplit records the split-layout source columns of a timestamp field.
func (m *Mapping) SetSplit(f Field, sc SplitColumns) {
	m.splitByField[f] = sc
}

func (m *Mapping) SplitFor(f Field) (SplitColumns, bool) {
	sc, ok := m.splitByField[f]
	return sc, ok
}

// IsMapped reports whether the field has a resolved header: a bound column or
// a field-named column. A split pair alone does not count; a sheet carrying
// only date and time halves still lacks the field's own column.
func (m *Mapping) IsMapped(f Field) bool {
	if _, ok := m.colByField[f]; ok {
		return true
	}
	_, ok := m.literalByField[f]
	return ok
}

// HasSplit reports whether a date/time column pair was detected for the field.
func (m *Mapping) HasSplit(f Field) bool {
	_, ok := m.splitByField[f]
	return ok
}

// Pairs lists the header assignments in sheet column order.
func (m *Mapping) Pairs() []HeaderField {
	pairs := make([]HeaderField, 0, len(m.fieldByCol))
	for col := range m.headers {
		if f, ok := m.fieldByCol[col]; ok {
			pairs = append(pairs, HeaderField{Header: m.headers[col], Column: col, Field: f})
		}
	}
	return pairs
}

// Package table provides a small columnar table with named, typed, nullable
// columns. It is the in-memory form of the paired bureau snapshot and of every
// table derived from it.
package table

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Kind classifies a column for null handling and rendering.
type Kind int

const (
	Unknown Kind = iota
	Numeric
	Text
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Text:
		return "text"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// ParseKind maps a schema name to a Kind. Unrecognized names map to Unknown.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "numeric", "number", "float":
		return Numeric
	case "text", "string", "object":
		return Text
	case "categorical", "category":
		return Categorical
	default:
		return Unknown
	}
}

// Column is a single named column. Numeric columns store NaN for null;
// every other kind stores strings plus a validity mask.
type Column struct {
	Name string
	Kind Kind

	floats     []float64
	strs       []string
	valid      []bool
	categories []string
}

// NewFloatColumn builds a Numeric column. NaN entries are null.
func NewFloatColumn(name string, vals []float64) *Column {
	return &Column{Name: name, Kind: Numeric, floats: vals}
}

// NewStringColumn builds a non-numeric column. A nil valid mask marks every
// entry as present. Categorical columns derive their categories from the
// distinct present values in order of first appearance.
func NewStringColumn(name string, kind Kind, vals []string, valid []bool) *Column {
	if kind == Numeric {
		kind = Text
	}
	if valid == nil {
		valid = make([]bool, len(vals))
		for i := range valid {
			valid[i] = true
		}
	}
	c := &Column{Name: name, Kind: kind, strs: vals, valid: valid}
	if kind == Categorical {
		for i, v := range vals {
			if valid[i] {
				c.AddCategory(v)
			}
		}
	}
	return c
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.floats)
	}
	return len(c.strs)
}

// IsNull reports whether row i holds no value.
func (c *Column) IsNull(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.floats[i])
	}
	return !c.valid[i]
}

// NullCount returns the number of null rows.
func (c *Column) NullCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			n++
		}
	}
	return n
}

// Float returns row i as a number. Text that does not parse, and nulls, are NaN.
func (c *Column) Float(i int) float64 {
	if c.Kind == Numeric {
		return c.floats[i]
	}
	if !c.valid[i] {
		return math.NaN()
	}
	return ParseFloat(c.strs[i])
}

// Str returns row i rendered as text and whether it is present.
func (c *Column) Str(i int) (string, bool) {
	if c.Kind == Numeric {
		v := c.floats[i]
		if math.IsNaN(v) {
			return "", false
		}
		return FormatFloat(v), true
	}
	return c.strs[i], c.valid[i]
}

// Floats returns a numeric copy of the column; unparsable text becomes NaN.
func (c *Column) Floats() []float64 {
	out := make([]float64, c.Len())
	for i := range out {
		out[i] = c.Float(i)
	}
	return out
}

// Categories returns the category list of a Categorical column.
func (c *Column) Categories() []string {
	return slices.Clone(c.categories)
}

// AddCategory registers cat if it is not already a category.
func (c *Column) AddCategory(cat string) {
	if !slices.Contains(c.categories, cat) {
		c.categories = append(c.categories, cat)
	}
}

// FillNullFloat replaces null entries of a Numeric column with v.
func (c *Column) FillNullFloat(v float64) {
	for i, f := range c.floats {
		if math.IsNaN(f) {
			c.floats[i] = v
		}
	}
}

// FillNullString replaces null entries of a non-numeric column with s.
func (c *Column) FillNullString(s string) {
	for i := range c.strs {
		if !c.valid[i] {
			c.strs[i] = s
			c.valid[i] = true
		}
	}
}

func (c *Column) clone() *Column {
	return &Column{
		Name:       c.Name,
		Kind:       c.Kind,
		floats:     slices.Clone(c.floats),
		strs:       slices.Clone(c.strs),
		valid:      slices.Clone(c.valid),
		categories: slices.Clone(c.categories),
	}
}

func (c *Column) permute(order []int) {
	if c.Kind == Numeric {
		c.floats = pick(c.floats, order)
		return
	}
	c.strs = pick(c.strs, order)
	c.valid = pick(c.valid, order)
}

func pick[T any](src []T, order []int) []T {
	out := make([]T, len(order))
	for i, j := range order {
		out[i] = src[j]
	}
	return out
}

// Table is an ordered set of equal-length columns.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New returns an empty table with the given number of rows.
func New(rows int) *Table {
	return &Table{index: make(map[string]int), rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order.
func (t *Table) Columns() []*Column { return t.cols }

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column or nil.
func (t *Table) Column(name string) *Column {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.cols[i]
}

// Add appends c, or replaces the column of the same name in place.
func (t *Table) Add(c *Column) error {
	if c.Len() != t.rows {
		return eris.Errorf("table: column %q has %d rows, want %d", c.Name, c.Len(), t.rows)
	}
	if i, ok := t.index[c.Name]; ok {
		t.cols[i] = c
		return nil
	}
	t.index[c.Name] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// SetFloats stores vals as a Numeric column. It panics on a length mismatch.
func (t *Table) SetFloats(name string, vals []float64) {
	if err := t.Add(NewFloatColumn(name, vals)); err != nil {
		panic(err)
	}
}

// SetStrings stores vals as a column of the given kind. It panics on a length mismatch.
func (t *Table) SetStrings(name string, kind Kind, vals []string, valid []bool) {
	if err := t.Add(NewStringColumn(name, kind, vals, valid)); err != nil {
		panic(err)
	}
}

// Floats returns a numeric copy of the named column, or nil if absent.
func (t *Table) Floats(name string) []float64 {
	c := t.Column(name)
	if c == nil {
		return nil
	}
	return c.Floats()
}

// Strings returns the named column as text with its validity mask.
func (t *Table) Strings(name string) ([]string, []bool) {
	c := t.Column(name)
	if c == nil {
		return nil, nil
	}
	vals := make([]string, t.rows)
	valid := make([]bool, t.rows)
	for i := range vals {
		vals[i], valid[i] = c.Str(i)
	}
	return vals, valid
}

// Float returns one cell as a number; absent columns yield NaN.
func (t *Table) Float(name string, i int) float64 {
	c := t.Column(name)
	if c == nil {
		return math.NaN()
	}
	return c.Float(i)
}

// Str returns one cell as text; absent columns report not present.
func (t *Table) Str(name string, i int) (string, bool) {
	c := t.Column(name)
	if c == nil {
		return "", false
	}
	return c.Str(i)
}

// Cell renders one cell for output. Nulls render empty.
func (t *Table) Cell(name string, i int) string {
	s, _ := t.Str(name, i)
	return s
}

// Permute reorders every column so that new row i is old row order[i].
func (t *Table) Permute(order []int) {
	if len(order) != t.rows {
		panic(fmt.Sprintf("table: permutation has %d rows, want %d", len(order), t.rows))
	}
	for _, c := range t.cols {
		c.permute(order)
	}
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := New(t.rows)
	for _, c := range t.cols {
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, c.clone())
	}
	return out
}

// Group is the set of row indexes sharing one key value.
type Group struct {
	Key  string
	Rows []int
}

// GroupBy partitions rows by the text value of the key column, in order of
// first appearance. Rows with a null key belong to no group.
func (t *Table) GroupBy(key string) []Group {
	c := t.Column(key)
	if c == nil {
		return nil
	}
	pos := make(map[string]int)
	var groups []Group
	for i := 0; i < t.rows; i++ {
		k, ok := c.Str(i)
		if !ok {
			continue
		}
		g, seen := pos[k]
		if !seen {
			g = len(groups)
			pos[k] = g
			groups = append(groups, Group{Key: k})
		}
		groups[g].Rows = append(groups[g].Rows, i)
	}
	return groups
}

// ParseFloat parses a numeric cell. Empty or invalid text is NaN.
func ParseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// FormatFloat renders a number in its shortest exact decimal form.
func FormatFloat(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package tableio

import (
	"os"
	"path"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/credit-delta/internal/table"
)

// Schema forces column kinds by name. Entries may use path.Match patterns
// such as "account_number_*". Columns matching no entry are inferred.
type Schema struct {
	Numeric     []string `yaml:"numeric"`
	Text        []string `yaml:"text"`
	Categorical []string `yaml:"categorical"`
	Unknown     []string `yaml:"unknown"`
	// Columns maps exact column names to a kind name ("numeric", "text",
	// "categorical"); it wins over the lists.
	Columns map[string]string `yaml:"columns"`
}

// DefaultSchema declares identifiers as text and the bureau's coded fields
// as categorical.
func DefaultSchema() Schema {
	return Schema{
		Text: []string{
			"customer_no",
			"account_number_*",
			"acc_no",
			"pay_status_history_*",
		},
		Categorical: []string{
			"priority_3_*",
			"secured_unsecured_*",
			"lender_type",
		},
	}
}

// LoadSchema reads a YAML schema file. Columns it does not name fall back
// to DefaultSchema when a table is read.
func LoadSchema(file string) (Schema, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return Schema{}, eris.Wrapf(err, "tableio: read schema %s", file)
	}

	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, eris.Wrapf(err, "tableio: parse schema %s", file)
	}
	return s, nil
}

// KindOf returns the declared kind for column, if any. Exact names are
// checked before patterns, and earlier lists win over later ones.
func (s Schema) KindOf(column string) (table.Kind, bool) {
	if name, ok := s.Columns[column]; ok {
		return table.ParseKind(name), true
	}

	lists := []struct {
		kind  table.Kind
		names []string
	}{
		{table.Numeric, s.Numeric},
		{table.Text, s.Text},
		{table.Categorical, s.Categorical},
		{table.Unknown, s.Unknown},
	}

	for _, l := range lists {
		for _, n := range l.names {
			if n == column {
				return l.kind, true
			}
		}
	}
	for _, l := range lists {
		for _, n := range l.names {
			if ok, _ := path.Match(n, column); ok {
				return l.kind, true
			}
		}
	}
	return table.Unknown, false
}

// resolveKind checks s, then the defaults.
func resolveKind(s Schema, column string) (table.Kind, bool) {
	if k, ok := s.KindOf(column); ok {
		return k, true
	}
	return DefaultSchema().KindOf(column)
}

package feature

import (
	"go.uber.org/zap"

	"github.com/sells-group/credit-delta/internal/table"
)

// Placeholders written by NormalizeNulls.
const (
	NAValue      = "NA"
	UnknownValue = "Unknown"
)

// NormalizeNulls fills every null cell according to its column kind:
// categorical columns gain an "NA" category and use it, text fills with
// "NA", numeric with 0, and unclassified columns with "Unknown".
// Applying it twice is the same as applying it once. It returns the number
// of cells filled.
func NormalizeNulls(t *table.Table) int {
	filled := 0
	for _, c := range t.Columns() {
		filled += c.NullCount()
		switch c.Kind {
		case table.Categorical:
			c.AddCategory(NAValue)
			c.FillNullString(NAValue)
		case table.Text:
			c.FillNullString(NAValue)
		case table.Numeric:
			c.FillNullFloat(0)
		default:
			c.FillNullString(UnknownValue)
		}
	}
	return filled
}

func normalizePass() Pass {
	return Pass{
		Name:  "normalize_nulls",
		Stage: StageNormalize,
		Apply: func(t *table.Table, _ Options) {
			zap.L().Debug("feature: nulls filled", zap.Int("cells", NormalizeNulls(t)))
		},
	}
}

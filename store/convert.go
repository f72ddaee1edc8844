package store

import "github.com/shopspring/decimal"

// decStr/parseDec round-trip decimal.Decimal through sqlite TEXT
// columns so monetary values never pass through a float column.
func decStr(d decimal.Decimal) string {
	return d.String()
}

func parseDec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

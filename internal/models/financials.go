package models

import (
	"sort"
	"strconv"
	"strings"
)

// MaxFinancialPeriods is the number of reporting periods shown.
const MaxFinancialPeriods = 12

// Financials maps a reporting period label ("YYYY/Q") to line items.
// Values are whatever the backend sent: numbers, strings or null.
type Financials map[string]map[string]any

// Periods returns period labels newest first, capped at
// MaxFinancialPeriods. Labels that do not parse sort last.
func (f Financials) Periods() []string {
	periods := make([]string, 0, len(f))
	for p := range f {
		periods = append(periods, p)
	}

	sort.SliceStable(periods, func(i, j int) bool {
		yi, qi := parsePeriod(periods[i])
		yj, qj := parsePeriod(periods[j])
		if yi != yj {
			return yi > yj
		}
		if qi != qj {
			return qi > qj
		}
		return periods[i] < periods[j]
	})

	if len(periods) > MaxFinancialPeriods {
		periods = periods[:MaxFinancialPeriods]
	}
	return periods
}

// LineItems returns the line item names of the newest period, skipping
// "_code" helper keys.
func (f Financials) LineItems() []string {
	periods := f.Periods()
	if len(periods) == 0 {
		return nil
	}

	var items []string
	for name := range f[periods[0]] {
		if strings.HasSuffix(name, "_code") {
			continue
		}
		items = append(items, name)
	}
	sort.Strings(items)
	return items
}

// Value returns the numeric value of item in period.
func (f Financials) Value(period, item string) (float64, bool) {
	row, ok := f[period]
	if !ok {
		return 0, false
	}
	switch v := row[item].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func parsePeriod(label string) (year, part int) {
	y, p, ok := strings.Cut(label, "/")
	if !ok {
		return 0, 0
	}
	yi, err1 := strconv.Atoi(strings.TrimSpace(y))
	pi, err2 := strconv.Atoi(strings.TrimSpace(p))
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return yi, pi
}

// Package models provides domain models for the dashboard client.
package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultExchangeSuffixes are stripped when normalizing symbols. ".IS" is
// the Borsa Istanbul suffix used by the quote backend.
var DefaultExchangeSuffixes = []string{".IS"}

// Stock is a quote record as served by the listing endpoint.
type Stock struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	Volume        float64         `json:"volume"`
	Open          decimal.Decimal `json:"open"`
	SectorGroup   string          `json:"sector_group,omitempty"`
}

// IsUp reports whether the stock is trading above the previous close.
func (s Stock) IsUp() bool {
	return s.Change.IsPositive()
}

// DisplaySymbol returns the symbol without its exchange suffix.
func (s Stock) DisplaySymbol() string {
	return NormalizeSymbol(s.Symbol, DefaultExchangeSuffixes)
}

// StockDetail is the extended record served for a single symbol.
type StockDetail struct {
	Stock

	Description      string  `json:"description"`
	Sector           string  `json:"sector"`
	Industry         string  `json:"industry"`
	Website          string  `json:"website"`
	LogoURL          string  `json:"logo_url"`
	Currency         string  `json:"currency"`
	MarketCap        float64 `json:"marketCap"`
	PERatio          float64 `json:"peRatio"`
	DividendYield    float64 `json:"dividendYield"`
	DayHigh          float64 `json:"dayHigh"`
	DayLow           float64 `json:"dayLow"`
	FiftyTwoWeekHigh float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow  float64 `json:"fiftyTwoWeekLow"`
	AverageVolume    float64 `json:"averageVolume"`
	PreviousClose    float64 `json:"previousClose"`
}

// Suggestion is a search suggestion entry.
type Suggestion struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

// NormalizeSymbol upper-cases raw and strips the first matching exchange
// suffix. Surrounding whitespace is dropped.
func NormalizeSymbol(raw string, suffixes []string) string {
	sym := strings.ToUpper(strings.TrimSpace(raw))
	for _, suffix := range suffixes {
		suffix = strings.ToUpper(suffix)
		if suffix != "" && strings.HasSuffix(sym, suffix) && len(sym) > len(suffix) {
			return sym[:len(sym)-len(suffix)]
		}
	}
	return sym
}

// Package utils provides shared formatting and market-hours helpers.
package utils

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer formats numbers the Turkish way: "." groups thousands, "," marks
// decimals.
var printer = message.NewPrinter(language.Turkish)

// FormatNumber formats value with the given number of decimals.
func FormatNumber(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "-"
	}
	if decimals < 0 {
		decimals = 0
	}
	s := printer.Sprintf("%.*f", decimals, math.Abs(value))
	if value < 0 && strings.Trim(s, "0,.") != "" {
		return "-" + s
	}
	return s
}

// FormatPrice formats a quote price with two decimals.
func FormatPrice(price decimal.Decimal) string {
	f, _ := price.Round(2).Float64()
	return FormatNumber(f, 2)
}

// FormatTRY formats an amount in Turkish lira.
func FormatTRY(amount float64) string {
	if amount < 0 {
		return "-₺" + FormatNumber(-amount, 2)
	}
	return "₺" + FormatNumber(amount, 2)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value decimal.Decimal) string {
	f, _ := value.Round(2).Float64()
	return signed(f) + "%"
}

// FormatChange formats a price change and its percentage.
func FormatChange(change, changePct decimal.Decimal) string {
	c, _ := change.Round(2).Float64()
	return signed(c) + " (" + FormatPercent(changePct) + ")"
}

func signed(v float64) string {
	switch {
	case v > 0:
		return "+" + FormatNumber(v, 2)
	case v < 0:
		return "-" + FormatNumber(-v, 2)
	}
	return FormatNumber(0, 2)
}

// FormatVolume formats a traded volume as a grouped integer.
func FormatVolume(volume float64) string {
	return FormatNumber(math.Round(volume), 0)
}

// FormatCompact formats large amounts with Turkish short scales:
// Mr (milyar), Mn (milyon), B (bin).
func FormatCompact(amount float64) string {
	abs := math.Abs(amount)
	switch {
	case abs >= 1e9:
		return FormatNumber(amount/1e9, 2) + " Mr"
	case abs >= 1e6:
		return FormatNumber(amount/1e6, 2) + " Mn"
	case abs >= 1e3:
		return FormatNumber(amount/1e3, 2) + " B"
	}
	return FormatNumber(amount, 2)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return printer.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return printer.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	case d < 24*time.Hour:
		return printer.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return printer.Sprintf("%dd %dh", int(d.Hours())/24, int(d.Hours())%24)
}

// FormatClock formats t as Istanbul wall-clock time.
func FormatClock(t time.Time) string {
	return t.In(IstanbulLocation).Format("15:04:05")
}

// TruncateString truncates s to maxLen runes with an ellipsis.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= 1 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-1]) + "…"
}

// PadRight pads s with spaces to length runes.
func PadRight(s string, length int) string {
	n := utf8.RuneCountInString(s)
	if n >= length {
		return s
	}
	return s + strings.Repeat(" ", length-n)
}

// PadLeft left-pads s with spaces to length runes.
func PadLeft(s string, length int) string {
	n := utf8.RuneCountInString(s)
	if n >= length {
		return s
	}
	return strings.Repeat(" ", length-n) + s
}

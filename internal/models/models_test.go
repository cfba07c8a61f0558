package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"thyao", "THYAO"},
		{"THYAO.IS", "THYAO"},
		{" garan.is ", "GARAN"},
		{"AAPL", "AAPL"},
		{"BRK.B", "BRK.B"},
		{".IS", ".IS"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeSymbol(tt.raw, DefaultExchangeSuffixes); got != tt.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestStock_DecodesBackendPayload(t *testing.T) {
	payload := `{"symbol":"THYAO.IS","name":"Turk Hava Yollari","price":312.5,"open":310,
		"change":-2.25,"changePercent":-0.71,"volume":18250000,"marketCap":0}`

	var s Stock
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if s.Price.String() != "312.5" {
		t.Errorf("Price = %s, want 312.5", s.Price)
	}
	if s.IsUp() {
		t.Error("IsUp() = true for a negative change")
	}
	if s.DisplaySymbol() != "THYAO" {
		t.Errorf("DisplaySymbol() = %q", s.DisplaySymbol())
	}
	if s.SectorGroup != "" {
		t.Errorf("SectorGroup = %q, want empty", s.SectorGroup)
	}
}

func TestFinancials_PeriodsNewestFirst(t *testing.T) {
	f := Financials{
		"2023/12": {},
		"2024/3":  {},
		"2023/9":  {},
		"bogus":   {},
		"2024/6":  {},
	}

	want := []string{"2024/6", "2024/3", "2023/12", "2023/9", "bogus"}
	if got := f.Periods(); !reflect.DeepEqual(got, want) {
		t.Errorf("Periods() = %v, want %v", got, want)
	}
}

func TestFinancials_PeriodsCapped(t *testing.T) {
	f := Financials{}
	for year := 2018; year <= 2024; year++ {
		for _, q := range []string{"3", "6", "9", "12"} {
			f[itoa(year)+"/"+q] = map[string]any{}
		}
	}

	got := f.Periods()
	if len(got) != MaxFinancialPeriods {
		t.Fatalf("len(Periods()) = %d, want %d", len(got), MaxFinancialPeriods)
	}
	if got[0] != "2024/12" {
		t.Errorf("newest period = %q, want 2024/12", got[0])
	}
}

func TestFinancials_LineItemsAndValues(t *testing.T) {
	f := Financials{
		"2024/6": {
			"Net Sales":      1500.5,
			"Net Sales_code": "1A",
			"Equity":         "2000",
			"Missing":        nil,
		},
		"2024/3": {
			"Net Sales": 1200.0,
		},
	}

	want := []string{"Equity", "Missing", "Net Sales"}
	if got := f.LineItems(); !reflect.DeepEqual(got, want) {
		t.Errorf("LineItems() = %v, want %v", got, want)
	}

	if v, ok := f.Value("2024/6", "Net Sales"); !ok || v != 1500.5 {
		t.Errorf("Value(Net Sales) = %v, %v", v, ok)
	}
	if v, ok := f.Value("2024/6", "Equity"); !ok || v != 2000 {
		t.Errorf("Value(Equity) = %v, %v", v, ok)
	}
	if _, ok := f.Value("2024/6", "Missing"); ok {
		t.Error("Value(Missing) reported ok for null")
	}
	if _, ok := f.Value("2020/3", "Net Sales"); ok {
		t.Error("Value for absent period reported ok")
	}
}

func TestFinancials_Empty(t *testing.T) {
	var f Financials
	if len(f.Periods()) != 0 || f.LineItems() != nil {
		t.Error("empty financials should have no periods or items")
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

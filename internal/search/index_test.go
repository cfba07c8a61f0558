package search

import (
	"testing"

	"ecos-terminal/internal/models"
)

func testStocks() []models.Stock {
	return []models.Stock{
		{Symbol: "THYAO", Name: "Türk Hava Yolları", SectorGroup: "Ulaştırma"},
		{Symbol: "GARAN", Name: "Garanti Bankası", SectorGroup: "Bankacılık"},
		{Symbol: "AKBNK", Name: "Akbank", SectorGroup: "Bankacılık"},
		{Symbol: "TAVHL", Name: "TAV Havalimanları", SectorGroup: "Ulaştırma"},
		{Symbol: "ASELS", Name: "Aselsan", SectorGroup: "Savunma"},
	}
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	if err := idx.Rebuild(testStocks()); err != nil {
		t.Fatal(err)
	}
	return idx
}

func symbols(list []models.Stock) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Symbol
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestFilter(t *testing.T) {
	idx := newTestIndex(t)

	tests := []struct {
		name    string
		query   string
		first   string
		include []string
		exclude []string
	}{
		{"exact symbol", "THYAO", "THYAO", nil, []string{"GARAN"}},
		{"lower-case symbol", "garan", "GARAN", nil, []string{"THYAO"}},
		{"symbol prefix", "ak", "AKBNK", nil, []string{"GARAN"}},
		{"name word", "garanti", "GARAN", nil, []string{"AKBNK"}},
		{"sector word", "savunma", "ASELS", nil, nil},
		{"symbol substring", "hya", "THYAO", nil, nil},
		{"shared sector", "bankacılık", "", []string{"GARAN", "AKBNK"}, []string{"THYAO"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := idx.Filter(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			got := symbols(res)
			if len(got) == 0 {
				t.Fatalf("Filter(%q) returned nothing", tt.query)
			}
			if tt.first != "" && got[0] != tt.first {
				t.Errorf("Filter(%q) first = %s, want %s (all %v)", tt.query, got[0], tt.first, got)
			}
			for _, s := range tt.include {
				if !contains(got, s) {
					t.Errorf("Filter(%q) = %v, missing %s", tt.query, got, s)
				}
			}
			for _, s := range tt.exclude {
				if contains(got, s) {
					t.Errorf("Filter(%q) = %v, unexpected %s", tt.query, got, s)
				}
			}
		})
	}
}

func TestFilter_EmptyQueryKeepsOrder(t *testing.T) {
	idx := newTestIndex(t)
	res, err := idx.Filter("  ")
	if err != nil {
		t.Fatal(err)
	}
	want := symbols(testStocks())
	got := symbols(res)
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order = %v, want %v", got, want)
			break
		}
	}
}

func TestFilter_NoMatch(t *testing.T) {
	idx := newTestIndex(t)
	res, err := idx.Filter("zzzz")
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 0 {
		t.Errorf("Filter(zzzz) = %v", symbols(res))
	}
}

func TestRebuild_Replaces(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.Rebuild([]models.Stock{{Symbol: "SISE", Name: "Şişecam"}, {Symbol: "SISE"}}); err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 1 {
		t.Errorf("Len = %d, want 1", idx.Len())
	}
	res, _ := idx.Filter("thyao")
	if len(res) != 0 {
		t.Errorf("old stock still indexed: %v", symbols(res))
	}
}

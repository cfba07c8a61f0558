package paging

import "ecos-terminal/internal/models"

// StockList is an ordered stock collection, unique by symbol. The first
// occurrence of a symbol wins.
type StockList struct {
	items []models.Stock
	index map[string]int
}

// NewStockList creates an empty list.
func NewStockList() *StockList {
	return &StockList{index: make(map[string]int)}
}

// Replace discards the contents and loads items, deduplicated.
func (l *StockList) Replace(items []models.Stock) {
	l.Clear()
	l.Merge(items)
}

// Merge appends every item whose symbol is not yet present and returns how
// many were appended. Items with an empty symbol are skipped.
func (l *StockList) Merge(items []models.Stock) int {
	added := 0
	for _, s := range items {
		if s.Symbol == "" {
			continue
		}
		if _, ok := l.index[s.Symbol]; ok {
			continue
		}
		l.index[s.Symbol] = len(l.items)
		l.items = append(l.items, s)
		added++
	}
	return added
}

// Clear empties the list.
func (l *StockList) Clear() {
	l.items = nil
	l.index = make(map[string]int)
}

// Len returns the number of stocks.
func (l *StockList) Len() int {
	return len(l.items)
}

// Get returns the stock for symbol.
func (l *StockList) Get(symbol string) (models.Stock, bool) {
	i, ok := l.index[symbol]
	if !ok {
		return models.Stock{}, false
	}
	return l.items[i], true
}

// Items returns a copy of the stocks in order.
func (l *StockList) Items() []models.Stock {
	out := make([]models.Stock, len(l.items))
	copy(out, l.items)
	return out
}

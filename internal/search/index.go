// Package search filters the loaded stock list locally with an in-memory
// bleve index.
package search

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"ecos-terminal/internal/models"
)

// Index is a rebuildable in-memory index over a stock list.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	stocks map[string]models.Stock
	order  []string
}

// NewIndex creates an empty index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return &Index{index: idx, stocks: make(map[string]models.Stock)}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	stockMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Store = false
	textFieldMapping.Index = true
	stockMapping.AddFieldMappingsAt("symbol", textFieldMapping)
	stockMapping.AddFieldMappingsAt("name", textFieldMapping)
	stockMapping.AddFieldMappingsAt("sector", textFieldMapping)

	indexMapping.DefaultMapping = stockMapping
	return indexMapping
}

// Rebuild replaces the indexed stocks.
func (i *Index) Rebuild(stocks []models.Stock) error {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	byID := make(map[string]models.Stock, len(stocks))
	order := make([]string, 0, len(stocks))
	batch := idx.NewBatch()
	for _, s := range stocks {
		if _, dup := byID[s.Symbol]; dup || s.Symbol == "" {
			continue
		}
		doc := map[string]interface{}{
			"symbol": s.Symbol,
			"name":   s.Name,
			"sector": s.SectorGroup,
		}
		if err := batch.Index(s.Symbol, doc); err != nil {
			idx.Close()
			return fmt.Errorf("failed to add %s to batch: %w", s.Symbol, err)
		}
		byID[s.Symbol] = s
		order = append(order, s.Symbol)
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	i.mu.Lock()
	old := i.index
	i.index = idx
	i.stocks = byID
	i.order = order
	i.mu.Unlock()

	return old.Close()
}

// Filter returns the indexed stocks matching q, best match first: exact
// symbol, then symbol prefix, then name or sector words, then symbol or
// name substrings. An empty query returns everything in list order.
func (i *Index) Filter(q string) ([]models.Stock, error) {
	q = strings.TrimSpace(q)

	i.mu.RLock()
	defer i.mu.RUnlock()

	if q == "" {
		out := make([]models.Stock, 0, len(i.order))
		for _, sym := range i.order {
			out = append(out, i.stocks[sym])
		}
		return out, nil
	}
	if len(i.order) == 0 {
		return []models.Stock{}, nil
	}

	lower := strings.ToLower(q)

	exact := bleve.NewTermQuery(lower)
	exact.SetField("symbol")
	exact.SetBoost(10.0)

	prefix := bleve.NewPrefixQuery(lower)
	prefix.SetField("symbol")
	prefix.SetBoost(5.0)

	name := bleve.NewMatchQuery(q)
	name.SetField("name")
	name.SetBoost(3.0)

	sector := bleve.NewMatchQuery(q)
	sector.SetField("sector")
	sector.SetBoost(2.0)

	wildSymbol := bleve.NewWildcardQuery("*" + lower + "*")
	wildSymbol.SetField("symbol")
	wildSymbol.SetBoost(2.0)

	wildName := bleve.NewWildcardQuery("*" + lower + "*")
	wildName.SetField("name")
	wildName.SetBoost(1.5)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(exact, prefix, name, sector, wildSymbol, wildName))
	req.Size = len(i.order)

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", q, err)
	}

	out := make([]models.Stock, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if s, ok := i.stocks[hit.ID]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Len returns the number of indexed stocks.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.order)
}

// Close releases the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}

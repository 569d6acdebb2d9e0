package service

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/FACorreiaa/statement-import/internal/domain/import/parser"
)

// searchDocument is one preview row as indexed by bleve.
type searchDocument struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	Direction   string `json:"direction"`
	Date        string `json:"date"`
}

// previewIndex is an in-memory full-text index over preview rows, keyed by
// row index.
type previewIndex struct {
	index bleve.Index
}

func newPreviewIndex(rows []parser.ParsedTransaction) (*previewIndex, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create preview index: %w", err)
	}

	batch := index.NewBatch()
	for i, tx := range rows {
		doc := searchDocument{
			Description: tx.Description,
			Category:    tx.Category,
			Direction:   string(tx.Direction),
			Date:        tx.DateString(),
		}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			index.Close()
			return nil, fmt.Errorf("failed to index row %d: %w", i, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to execute batch index: %w", err)
	}

	return &previewIndex{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name
	keywordFieldMapping.IncludeInAll = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	docMapping.AddFieldMappingsAt("category", textFieldMapping)
	docMapping.AddFieldMappingsAt("direction", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("date", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name

	return indexMapping
}

// search allows one edit of typo tolerance and returns matching rows in order.
func (pi *previewIndex) search(query string, limit int) ([]int, error) {
	if limit <= 0 {
		return nil, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetFuzziness(1)

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit

	res, err := pi.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("preview search failed: %w", err)
	}

	hits := make([]int, 0, len(res.Hits))
	for _, h := range res.Hits {
		i, err := strconv.Atoi(h.ID)
		if err != nil {
			continue
		}
		hits = append(hits, i)
	}
	sort.Ints(hits)
	return hits, nil
}

func (pi *previewIndex) close() error {
	return pi.index.Close()
}

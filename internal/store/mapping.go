package store

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Aman-CERP/wikindex/internal/entry"
)

// buildMapping creates the index mapping for entry documents. Keyword
// fields are indexed verbatim, text fields are tokenized, and only the
// full text is left unstored.
func buildMapping() *mapping.IndexMappingImpl {
	doc := bleve.NewDocumentStaticMapping()

	for _, name := range entry.KeywordFields {
		fm := mapping.NewKeywordFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(name, fm)
	}

	for _, name := range entry.TextFields {
		fm := mapping.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.Store = true
		doc.AddFieldMappingsAt(name, fm)
	}

	full := mapping.NewTextFieldMapping()
	full.Analyzer = standard.Name
	full.Store = false
	full.IncludeTermVectors = false
	doc.AddFieldMappingsAt(entry.FieldFulltext, full)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

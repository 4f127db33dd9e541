package search

import (
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

const (
	TypeCrime    = "crime"
	TypeIncident = "incident"
	TypeCriminal = "criminal"
)

// BuildIndexMapping 为报案、事件、罪犯档案建立字段映射
func BuildIndexMapping() *mapping.IndexMappingImpl {
	idx := mapping.NewIndexMapping()
	idx.DefaultAnalyzer = standard.Name
	idx.TypeField = "type"

	// 文本
	text := mapping.NewTextFieldMapping()
	text.Store = true
	text.Analyzer = standard.Name
	text.IncludeTermVectors = true // 高亮更精准

	// 关键词
	kw := mapping.NewTextFieldMapping()
	kw.Store = true
	kw.Analyzer = keyword.Name
	kw.IncludeInAll = false

	dt := mapping.NewDateTimeFieldMapping()
	dt.Store = true

	doc := func(textFields []string, kwFields []string) *mapping.DocumentMapping {
		d := mapping.NewDocumentMapping()
		d.Dynamic = false
		for _, f := range textFields {
			d.AddFieldMappingsAt(f, text)
		}
		for _, f := range kwFields {
			d.AddFieldMappingsAt(f, kw)
		}
		d.AddFieldMappingsAt("type", kw)
		d.AddFieldMappingsAt("createdAt", dt)
		return d
	}

	idx.AddDocumentMapping(TypeCrime, doc(
		[]string{"title", "description", "location", "category"},
		[]string{"status", "priority", "reportedBy", "assignedTo"},
	))
	idx.AddDocumentMapping(TypeIncident, doc(
		[]string{"title", "description", "location", "incidentType"},
		[]string{"status", "severity", "assignedTo"},
	))
	idx.AddDocumentMapping(TypeCriminal, doc(
		[]string{"fullName", "alias", "offenses", "address", "lastKnownLocation", "description"},
		[]string{"status", "dangerLevel", "nationalId"},
	))

	def := mapping.NewDocumentMapping()
	def.Dynamic = false
	idx.DefaultMapping = def
	return idx
}

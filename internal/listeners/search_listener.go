package listeners

import (
	"context"
	"time"

	"CityWatch/internal/models"
	"CityWatch/pkg/logger"
	"CityWatch/pkg/search"
	"CityWatch/pkg/util"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func CrimeDoc(c *models.Crime) search.Doc {
	return search.Doc{
		ID:   search.DocID(search.TypeCrime, c.ID),
		Type: search.TypeCrime,
		Fields: map[string]any{
			"title":       c.Title,
			"description": c.Description,
			"location":    c.Location,
			"category":    c.Category,
			"status":      c.Status,
			"priority":    c.Priority,
			"reportedBy":  c.ReportedBy,
			"assignedTo":  c.AssignedTo,
			"createdAt":   c.CreatedAt,
		},
	}
}

func IncidentDoc(i *models.Incident) search.Doc {
	return search.Doc{
		ID:   search.DocID(search.TypeIncident, i.ID),
		Type: search.TypeIncident,
		Fields: map[string]any{
			"title":        i.Title,
			"description":  i.Description,
			"location":     i.Location,
			"incidentType": i.Type,
			"status":       i.Status,
			"severity":     i.Severity,
			"assignedTo":   i.AssignedTo,
			"createdAt":    i.CreatedAt,
		},
	}
}

func CriminalDoc(c *models.Criminal) search.Doc {
	return search.Doc{
		ID:   search.DocID(search.TypeCriminal, c.ID),
		Type: search.TypeCriminal,
		Fields: map[string]any{
			"fullName":          c.FullName,
			"alias":             c.Alias,
			"offenses":          c.Offenses,
			"address":           c.Address,
			"lastKnownLocation": c.LastKnownLocation,
			"status":            c.Status,
			"dangerLevel":       c.DangerLevel,
			"nationalId":        c.NationalID,
			"createdAt":         c.CreatedAt,
		},
	}
}

var searchTypes = map[string]string{
	models.ResCrimes:    search.TypeCrime,
	models.ResIncidents: search.TypeIncident,
	models.ResCriminals: search.TypeCriminal,
}

func docOf(record any) (search.Doc, bool) {
	switch r := record.(type) {
	case *models.Crime:
		return CrimeDoc(r), true
	case *models.Incident:
		return IncidentDoc(r), true
	case *models.Criminal:
		return CriminalDoc(r), true
	}
	return search.Doc{}, false
}

func initSearchListeners(sig *util.Signals, engine search.Engine) {
	sig.Connect(models.SigRecordChanged, func(sender any, params ...any) {
		ev, ok := sender.(*models.RecordEvent)
		if !ok {
			return
		}
		docType, ok := searchTypes[ev.Resource]
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var err error
		if ev.Action == models.ActionDelete {
			err = engine.Delete(ctx, search.DocID(docType, ev.ID))
		} else if doc, ok := docOf(ev.Record); ok {
			err = engine.Index(ctx, doc)
		}
		if err != nil {
			logger.Warn("update search index failed",
				zap.String("resource", ev.Resource), zap.Uint("id", ev.ID), zap.Error(err))
		}
	})
}

// ReindexAll 从数据库重建全文索引
func ReindexAll(ctx context.Context, db *gorm.DB, engine search.Engine) (int, error) {
	var docs []search.Doc

	var crimes []models.Crime
	if err := db.WithContext(ctx).Find(&crimes).Error; err != nil {
		return 0, err
	}
	for i := range crimes {
		docs = append(docs, CrimeDoc(&crimes[i]))
	}
	var incidents []models.Incident
	if err := db.WithContext(ctx).Find(&incidents).Error; err != nil {
		return 0, err
	}
	for i := range incidents {
		docs = append(docs, IncidentDoc(&incidents[i]))
	}
	var criminals []models.Criminal
	if err := db.WithContext(ctx).Find(&criminals).Error; err != nil {
		return 0, err
	}
	for i := range criminals {
		docs = append(docs, CriminalDoc(&criminals[i]))
	}

	if err := engine.IndexBatch(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

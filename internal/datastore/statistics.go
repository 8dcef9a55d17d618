package datastore

import (
	"context"
	"time"
)

// GetStatistics returns store totals, templates per category and per
// template the detection count with the most recent value.
func (ds *DataStore) GetStatistics(ctx context.Context) (*Statistics, error) {
	db := ds.DB.WithContext(ctx)
	stats := &Statistics{ByCategory: make(map[string]int64)}

	if err := db.Model(&Template{}).Count(&stats.Templates).Error; err != nil {
		return nil, dbError(err, "count_templates")
	}
	if err := db.Model(&Detection{}).Count(&stats.Detections).Error; err != nil {
		return nil, dbError(err, "count_detections")
	}

	var categories []struct {
		Category string
		Count    int64
	}
	if err := db.Model(&Template{}).Select("category, COUNT(*) AS count").Group("category").Scan(&categories).Error; err != nil {
		return nil, dbError(err, "count_categories")
	}
	for _, c := range categories {
		stats.ByCategory[c.Category] = c.Count
	}
	stats.Categories = int64(len(categories))

	var perTemplate []struct {
		TemplateID uint
		Count      int64
		LastID     uint
	}
	err := db.Model(&Detection{}).
		Select("template_id, COUNT(*) AS count, MAX(id) AS last_id").
		Group("template_id").
		Scan(&perTemplate).Error
	if err != nil {
		return nil, dbError(err, "count_detections_per_template")
	}

	lastIDs := make([]uint, 0, len(perTemplate))
	for _, p := range perTemplate {
		lastIDs = append(lastIDs, p.LastID)
	}
	latest := make(map[uint]Detection, len(lastIDs))
	if len(lastIDs) > 0 {
		var detections []Detection
		if err := db.Where("id IN ?", lastIDs).Find(&detections).Error; err != nil {
			return nil, dbError(err, "latest_detections")
		}
		for _, d := range detections {
			latest[d.TemplateID] = d
		}
	}

	counts := make(map[uint]int64, len(perTemplate))
	for _, p := range perTemplate {
		counts[p.TemplateID] = p.Count
	}

	templates, err := ds.GetAllTemplates(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range templates {
		ts := TemplateStats{
			TemplateID: t.ID,
			Name:       t.Name,
			Category:   t.Category,
			Detections: counts[t.ID],
		}
		if d, ok := latest[t.ID]; ok {
			ts.LastValue = d.Value
			seen := d.Timestamp.In(time.Local)
			ts.LastSeen = &seen
		}
		stats.PerTemplate = append(stats.PerTemplate, ts)
	}

	return stats, nil
}

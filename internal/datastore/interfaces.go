// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/iconscan/internal/conf"
	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/logger"
)

// Default result limits for history queries
const (
	DefaultRecentLimit   = 50
	DefaultTemplateLimit = 100
)

// Interface abstracts the underlying database implementation
type Interface interface {
	Open() error
	Close() error
	UpsertTemplate(ctx context.Context, t *Template) (created bool, err error)
	SaveImageResults(ctx context.Context, records []Record) ([]Detection, error)
	GetTemplate(ctx context.Context, id uint) (*Template, error)
	GetTemplateByFingerprint(ctx context.Context, fingerprint string) (*Template, error)
	GetTemplateByName(ctx context.Context, name string) (*Template, error)
	GetTemplatesByCategory(ctx context.Context, category string) ([]Template, error)
	GetAllTemplates(ctx context.Context) ([]Template, error)
	GetDetectionsByTemplate(ctx context.Context, templateID uint, limit int) ([]Detection, error)
	GetRecentDetections(ctx context.Context, limit int) ([]Detection, error)
	GetStatistics(ctx context.Context) (*Statistics, error)
}

// DataStore implements Interface using a GORM database. Writes are
// serialized so a detection insert never races a template upsert for the
// same fingerprint.
type DataStore struct {
	DB      *gorm.DB
	writeMu sync.Mutex
	log     logger.Logger
}

// New creates the store selected by settings. Call Open before use.
func New(settings *conf.Settings) (Interface, error) {
	switch settings.Database.Type {
	case conf.DatabaseSQLite, "":
		return &SQLiteStore{Settings: settings}, nil
	case conf.DatabaseMySQL:
		return &MySQLStore{Settings: settings}, nil
	default:
		return nil, validationError("unsupported database type", "database.type", settings.Database.Type)
	}
}

func (ds *DataStore) logger() logger.Logger {
	if ds.log == nil {
		ds.log = logger.Global().Module("datastore")
	}
	return ds.log
}

// templateUpdateColumns are overwritten when a fingerprint is registered again
var templateUpdateColumns = []string{"name", "category", "threshold", "image_path", "width", "height", "phash", "updated_at"}

// upsertTemplate inserts t or updates the row sharing its fingerprint, then
// loads the stored row into t.
func upsertTemplate(tx *gorm.DB, t *Template) (bool, error) {
	if t.Fingerprint == "" {
		return false, validationError("template fingerprint is required", "fingerprint", t.Name)
	}

	var existing int64
	if err := tx.Model(&Template{}).Where("fingerprint = ?", t.Fingerprint).Count(&existing).Error; err != nil {
		return false, dbError(err, "lookup_template", "fingerprint", t.Fingerprint)
	}

	t.ID = 0
	t.UpdatedAt = time.Now()
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns(templateUpdateColumns),
	}).Create(t).Error
	if err != nil {
		return false, dbError(err, "upsert_template", "fingerprint", t.Fingerprint, "name", t.Name)
	}

	if err := tx.Where("fingerprint = ?", t.Fingerprint).First(t).Error; err != nil {
		return false, dbError(err, "reload_template", "fingerprint", t.Fingerprint)
	}
	return existing == 0, nil
}

// UpsertTemplate creates or updates a template by fingerprint
func (ds *DataStore) UpsertTemplate(ctx context.Context, t *Template) (bool, error) {
	if ds.DB == nil {
		return false, dbError(errors.NewStd("database connection is not initialized"), "upsert_template")
	}
	ds.writeMu.Lock()
	defer ds.writeMu.Unlock()

	var created bool
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = upsertTemplate(tx, t)
		return err
	})
	if err != nil {
		return false, err
	}

	ds.logger().Debug("template upserted",
		logger.String("name", t.Name),
		logger.String("category", t.Category),
		logger.Bool("created", created))
	return created, nil
}

// SaveImageResults persists every record of one image in a single
// transaction: templates are upserted by fingerprint and detections appended
// with the resolved template id. On any failure nothing is stored.
func (ds *DataStore) SaveImageResults(ctx context.Context, records []Record) ([]Detection, error) {
	if ds.DB == nil {
		return nil, dbError(errors.NewStd("database connection is not initialized"), "save_image_results")
	}
	if len(records) == 0 {
		return nil, nil
	}

	ds.writeMu.Lock()
	defer ds.writeMu.Unlock()

	start := time.Now()
	saved := make([]Detection, 0, len(records))
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resolved := make(map[string]uint)
		for i := range records {
			tmpl := records[i].Template
			id, ok := resolved[tmpl.Fingerprint]
			if !ok {
				if _, err := upsertTemplate(tx, &tmpl); err != nil {
					return err
				}
				id = tmpl.ID
				resolved[tmpl.Fingerprint] = id
			}

			det := records[i].Detection
			det.ID = 0
			det.TemplateID = id
			det.Template = Template{}
			if det.Timestamp.IsZero() {
				det.Timestamp = time.Now()
			}
			if err := tx.Omit(clause.Associations).Create(&det).Error; err != nil {
				return dbError(err, "insert_detection", "template_id", id, "source", det.SourcePath)
			}
			saved = append(saved, det)
		}
		return nil
	})
	if err != nil {
		ds.logger().Error("image results rolled back",
			logger.Int("records", len(records)),
			logger.Error(err))
		return nil, err
	}

	ds.logger().Debug("image results saved",
		logger.Int("detections", len(saved)),
		logger.Duration("duration", time.Since(start)))
	return saved, nil
}

// GetTemplate returns a template by id
func (ds *DataStore) GetTemplate(ctx context.Context, id uint) (*Template, error) {
	var t Template
	if err := ds.DB.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, lookupError(err, "template", id)
	}
	return &t, nil
}

// GetTemplateByFingerprint returns a template by its content fingerprint
func (ds *DataStore) GetTemplateByFingerprint(ctx context.Context, fingerprint string) (*Template, error) {
	var t Template
	if err := ds.DB.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&t).Error; err != nil {
		return nil, lookupError(err, "template", fingerprint)
	}
	return &t, nil
}

// GetTemplateByName returns the most recently updated template with name
func (ds *DataStore) GetTemplateByName(ctx context.Context, name string) (*Template, error) {
	var t Template
	if err := ds.DB.WithContext(ctx).Where("name = ?", name).Order("updated_at DESC").First(&t).Error; err != nil {
		return nil, lookupError(err, "template", name)
	}
	return &t, nil
}

// GetTemplatesByCategory returns the templates of one category ordered by name
func (ds *DataStore) GetTemplatesByCategory(ctx context.Context, category string) ([]Template, error) {
	var templates []Template
	if err := ds.DB.WithContext(ctx).Where("category = ?", category).Order("name").Find(&templates).Error; err != nil {
		return nil, dbError(err, "get_templates_by_category", "category", category)
	}
	return templates, nil
}

// GetAllTemplates returns every template ordered by category and name
func (ds *DataStore) GetAllTemplates(ctx context.Context) ([]Template, error) {
	var templates []Template
	if err := ds.DB.WithContext(ctx).Order("category").Order("name").Order("id").Find(&templates).Error; err != nil {
		return nil, dbError(err, "get_all_templates")
	}
	return templates, nil
}

// GetDetectionsByTemplate returns the newest detections of one template
func (ds *DataStore) GetDetectionsByTemplate(ctx context.Context, templateID uint, limit int) ([]Detection, error) {
	if limit <= 0 {
		limit = DefaultTemplateLimit
	}
	var detections []Detection
	err := ds.DB.WithContext(ctx).
		Preload("Template").
		Where("template_id = ?", templateID).
		Order("timestamp DESC").Order("id DESC").
		Limit(limit).
		Find(&detections).Error
	if err != nil {
		return nil, dbError(err, "get_detections_by_template", "template_id", templateID)
	}
	return detections, nil
}

// GetRecentDetections returns the newest detections across all templates
func (ds *DataStore) GetRecentDetections(ctx context.Context, limit int) ([]Detection, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	var detections []Detection
	err := ds.DB.WithContext(ctx).
		Preload("Template").
		Order("timestamp DESC").Order("id DESC").
		Limit(limit).
		Find(&detections).Error
	if err != nil {
		return nil, dbError(err, "get_recent_detections")
	}
	return detections, nil
}

// Close releases the database connection
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	ds.DB = nil
	return nil
}

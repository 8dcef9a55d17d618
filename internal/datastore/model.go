package datastore

import "time"

// Template is a registered reference icon. Fingerprint is the natural key.
type Template struct {
	ID          uint    `gorm:"primaryKey"`
	Name        string  `gorm:"size:255;not null;index"`
	Category    string  `gorm:"size:100;not null;index"`
	Fingerprint string  `gorm:"size:64;not null;uniqueIndex"`
	PHash       string  `gorm:"column:phash;size:16"` // perceptual hash for near-duplicate checks
	ImagePath   string  `gorm:"size:1024"`
	Width       int     `gorm:"not null"`
	Height      int     `gorm:"not null"`
	Threshold   float64 `gorm:"not null;default:0.8"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Detection is one accepted occurrence of a template in a screenshot. Rows
// are append only.
type Detection struct {
	ID         uint     `gorm:"primaryKey"`
	TemplateID uint     `gorm:"not null;index"`
	Template   Template `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	RunID      string   `gorm:"size:36;index"`
	X          int      `gorm:"column:position_x;not null"`
	Y          int      `gorm:"column:position_y;not null"`
	Width      int
	Height     int
	Scale      float64
	Similarity float64   `gorm:"not null"`
	Value      *int64    // nil when no number was read
	Text       string    `gorm:"size:1024"`
	SourcePath string    `gorm:"size:1024;not null;index"`
	Timestamp  time.Time `gorm:"index;not null"`
	Note       string    `gorm:"size:1024"`
}

// Record pairs a detection with the template identity it belongs to. The
// template is upserted by fingerprint when the record is persisted.
type Record struct {
	Template  Template
	Detection Detection
}

// TemplateStats summarizes the detections of one template
type TemplateStats struct {
	TemplateID uint
	Name       string
	Category   string
	Detections int64
	LastValue  *int64
	LastSeen   *time.Time
}

// Statistics summarizes the store contents
type Statistics struct {
	Templates   int64
	Detections  int64
	Categories  int64
	ByCategory  map[string]int64
	PerTemplate []TemplateStats
}

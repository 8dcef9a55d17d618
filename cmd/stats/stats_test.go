package stats

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/iconscan/internal/datastore"
)

func TestPrint(t *testing.T) {
	value := int64(573)
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)

	var buf bytes.Buffer
	Print(&buf, &datastore.Statistics{
		Templates:  2,
		Detections: 3,
		Categories: 2,
		ByCategory: map[string]int64{"weapons": 1, "currency": 1},
		PerTemplate: []datastore.TemplateStats{
			{TemplateID: 1, Name: "gold", Category: "currency", Detections: 3, LastValue: &value, LastSeen: &seen},
			{TemplateID: 2, Name: "sword", Category: "weapons"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Templates:  2\n")
	assert.Contains(t, out, "Detections: 3\n")
	assert.Contains(t, out, "Currency")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Currency")), bytes.Index(buf.Bytes(), []byte("Weapons")))
	assert.Contains(t, out, "573")
	assert.Contains(t, out, "2026-03-01 12:00:00")
	assert.Contains(t, out, "never")
}

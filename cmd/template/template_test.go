package template

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/iconscan/internal/datastore"
)

func TestPrintTemplatesGroupsByCategory(t *testing.T) {
	var buf bytes.Buffer
	PrintTemplates(&buf, []datastore.Template{
		{ID: 2, Name: "gold", Category: "currency", Width: 24, Height: 24, Threshold: 0.8, Fingerprint: strings.Repeat("ab", 32)},
		{ID: 3, Name: "gems", Category: "currency", Width: 20, Height: 20, Threshold: 0.85, Fingerprint: "cd"},
		{ID: 1, Name: "sword", Category: "weapons", Width: 32, Height: 32, Threshold: 0.9, Fingerprint: "ef"},
	})

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "Currency\n"))
	assert.Contains(t, out, "Weapons\n")
	assert.Contains(t, out, "abababababab\n")
	assert.NotContains(t, out, "ababababababa")
	assert.Less(t, strings.Index(out, "gold"), strings.Index(out, "sword"))
}

func TestPrintTemplatesEmpty(t *testing.T) {
	var buf bytes.Buffer
	PrintTemplates(&buf, nil)
	assert.Equal(t, "No templates registered\n", buf.String())
}

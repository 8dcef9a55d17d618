package tesseract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageCode(t *testing.T) {
	tests := map[string]string{
		"en":      "eng",
		" DE ":    "deu",
		"zh":      "chi_sim",
		"":        "eng",
		"eng+jpn": "eng+jpn",
	}
	for in, want := range tests {
		assert.Equal(t, want, LanguageCode(in), "input %q", in)
	}
}

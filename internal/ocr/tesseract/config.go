package tesseract

import (
	"strings"

	"github.com/tphakala/iconscan/internal/logger"
)

// Config configures the local engine
type Config struct {
	Language  string // ISO 639-1, mapped to Tesseract's traineddata names
	Whitelist string
	Logger    logger.Logger
}

var languageCodes = map[string]string{
	"en": "eng",
	"de": "deu",
	"fr": "fra",
	"es": "spa",
	"it": "ita",
	"pt": "por",
	"nl": "nld",
	"pl": "pol",
	"sv": "swe",
	"fi": "fin",
	"ru": "rus",
	"uk": "ukr",
	"ja": "jpn",
	"ko": "kor",
	"zh": "chi_sim",
}

// LanguageCode maps an ISO 639-1 code to a Tesseract language. Unknown codes
// are passed through so traineddata names can be configured directly.
func LanguageCode(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return "eng"
	}
	if code, ok := languageCodes[lang]; ok {
		return code
	}
	return lang
}

package neural

import (
	"time"

	"github.com/tphakala/iconscan/internal/logger"
)

// Config configures the neural OCR client
type Config struct {
	Endpoint  string // base URL of the inference server
	Languages []string
	Timeout   time.Duration
	CacheTTL  time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Logger    logger.Logger
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		Endpoint:  "http://127.0.0.1:8866",
		Languages: []string{"en"},
		Timeout:   30 * time.Second,
		CacheTTL:  10 * time.Minute,
		RateLimit: 5,
	}
}

// recognizeRequest is the body of POST /ocr
type recognizeRequest struct {
	Image     string   `json:"image"` // base64 encoded PNG
	Languages []string `json:"languages"`
}

// recognizeResponse is the body returned by POST /ocr
type recognizeResponse struct {
	Results []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
		Box        [4]int  `json:"box"` // x, y, width, height
	} `json:"results"`
}

// apiError is the error body returned by the server
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

package analysis

import (
	"context"

	"github.com/tphakala/iconscan/internal/conf"
	"github.com/tphakala/iconscan/internal/logger"
	"github.com/tphakala/iconscan/internal/ocr"
	"github.com/tphakala/iconscan/internal/ocr/neural"
	"github.com/tphakala/iconscan/internal/ocr/tesseract"
)

// OCRBackends returns the OCR backends in auto-probe order: the neural
// server first, then the local engine.
func OCRBackends(ctx context.Context, settings *conf.Settings, log logger.Logger) []ocr.Backend {
	return []ocr.Backend{
		{
			Name: ocr.ModeNeural,
			Open: func() (ocr.Engine, error) {
				client, err := neural.Open(ctx, neural.Config{
					Endpoint:  settings.OCR.Neural.Endpoint,
					Languages: []string{settings.OCR.Language},
					Timeout:   settings.OCR.Neural.Timeout,
					CacheTTL:  settings.OCR.Neural.CacheTTL,
					RateLimit: settings.OCR.Neural.RateLimit,
					Logger:    log.Module("neural"),
				})
				if err != nil {
					return nil, err
				}
				return client, nil
			},
		},
		{
			Name: ocr.ModeLocal,
			Open: func() (ocr.Engine, error) {
				engine, err := tesseract.Open(tesseract.Config{
					Language:  settings.OCR.Language,
					Whitelist: settings.OCR.Tesseract.Whitelist,
					Logger:    log.Module("tesseract"),
				})
				if err != nil {
					return nil, err
				}
				return engine, nil
			},
		},
	}
}

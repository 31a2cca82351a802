// Package ocr provides the image text recognizers: a local Tesseract binary, Google Cloud
// Vision document text detection, or none.
package ocr

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/interfaces"
)

const (
	ProviderNone      = "none"
	ProviderTesseract = "tesseract"
	ProviderGCP       = "gcp"

	defaultTimeout = 30 * time.Second
)

// Config selects and tunes a recognizer
type Config struct {
	Provider      string
	TesseractPath string
	TesseractLang string
	Timeout       time.Duration
}

// New builds the recognizer named by cfg.Provider
func New(ctx context.Context, cfg Config) (interfaces.Recognizer, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderNone:
		return Disabled{}, nil
	case ProviderTesseract:
		return NewTesseract(cfg.TesseractPath, cfg.TesseractLang, timeout)
	case ProviderGCP:
		return NewCloudVision(ctx, timeout)
	default:
		return nil, fmt.Errorf("unknown OCR provider %q", cfg.Provider)
	}
}

// Disabled rejects every image
type Disabled struct{}

// Compile-time check to ensure Disabled implements Recognizer
var _ interfaces.Recognizer = Disabled{}

// Recognize always fails with ErrRecognizerUnavailable
func (Disabled) Recognize(context.Context, []byte) (string, error) {
	return "", fmt.Errorf("image recognition is disabled: %w", entities.ErrRecognizerUnavailable)
}

// Name returns "none"
func (Disabled) Name() string { return ProviderNone }

var (
	tesseractNoise = []*regexp.Regexp{
		regexp.MustCompile(`Warning: Invalid resolution \d+ dpi\. Using \d+ instead\.`),
		regexp.MustCompile(`Estimating resolution as \d+`),
		regexp.MustCompile(`(?m)^(?:Warning|Error):.*$`),
	}
)

// cleanOutput drops engine diagnostics and blank lines, keeping line breaks between text lines
func cleanOutput(raw string) string {
	cleaned := raw
	for _, pattern := range tesseractNoise {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}

	var lines []string
	for _, line := range strings.Split(cleaned, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

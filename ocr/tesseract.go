package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/logging"
)

// Compile-time check to ensure Tesseract implements Recognizer
var _ interfaces.Recognizer = (*Tesseract)(nil)

var tesseractPaths = []string{
	"/usr/bin/tesseract",
	"/usr/local/bin/tesseract",
	"/opt/homebrew/bin/tesseract",
}

// Tesseract runs the tesseract binary on a temporary copy of the image
type Tesseract struct {
	path    string
	lang    string
	psm     string
	timeout time.Duration
}

// NewTesseract locates the binary. An empty path searches the usual locations and PATH.
func NewTesseract(path, lang string, timeout time.Duration) (*Tesseract, error) {
	if lang == "" {
		lang = "kor+eng"
	}

	resolved, err := findTesseract(path)
	if err != nil {
		return nil, err
	}
	logging.Info("Tesseract recognizer ready", "path", resolved, "lang", lang)

	return &Tesseract{path: resolved, lang: lang, psm: "6", timeout: timeout}, nil
}

func findTesseract(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("tesseract not found at %s: %w", path, entities.ErrRecognizerUnavailable)
		}
		return path, nil
	}

	for _, candidate := range tesseractPaths {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	if found, err := exec.LookPath("tesseract"); err == nil {
		return found, nil
	}
	return "", fmt.Errorf("tesseract not found: %w", entities.ErrRecognizerUnavailable)
}

// Name returns "tesseract"
func (t *Tesseract) Name() string { return ProviderTesseract }

// Recognize reads a single uniform block of text (page segmentation mode 6)
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	tmp, err := os.CreateTemp("", "medcheck-ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp image: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.path, tmp.Name(), "stdout", "-l", t.lang, "--psm", t.psm)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logging.Warn("Tesseract failed", "error", err, "stderr", cleanOutput(stderr.String()))
		if ctx.Err() != nil {
			return "", fmt.Errorf("tesseract: %w", ctx.Err())
		}
		return "", fmt.Errorf("tesseract: %w: %w", entities.ErrRecognizerUnavailable, err)
	}

	return cleanOutput(stdout.String()), nil
}

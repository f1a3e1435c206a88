// Package evidence names and writes the artifacts a run leaves behind:
// page screenshots and the campaign responses captured for each attempt.
package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
	"github.com/xkilldash9x/campaign-probe/internal/market"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// unsafeChars are replaced in file names. Spaces are kept.
var unsafeChars = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_",
)

func sanitize(name string) string {
	return unsafeChars.Replace(name)
}

// ScreenshotName builds
// "{market}-{lang}-{test} {model} {body} {attempt} {SUCCESSFUL|UNSUCCESSFUL}.png"
// from the home page the screenshot was taken on.
func ScreenshotName(homeURL, test, model, body string, attempt int, ok bool) string {
	status := "UNSUCCESSFUL"
	if ok {
		status = "SUCCESSFUL"
	}
	return sanitize(fmt.Sprintf("%s-%s-%s %s %s %d %s.png",
		market.CodeFromURL(homeURL), market.LanguageFromURL(homeURL), test, model, body, attempt, status))
}

// CaptureFileName builds "xhr_responses_{test}_{model}_{body}_attempt_{n}.json".
func CaptureFileName(test, model, body string, attempt int) string {
	return sanitize(fmt.Sprintf("xhr_responses_%s_%s_%s_attempt_%d.json", test, model, body, attempt))
}

// Writer stores artifacts under one directory.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter expands a leading "~" in dir and creates it.
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand evidence directory %q: %w", dir, err)
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create evidence directory: %w", err)
	}
	return &Writer{dir: expanded, logger: logger.Named("evidence")}, nil
}

// Dir returns the expanded output directory.
func (w *Writer) Dir() string { return w.dir }

// Path joins name onto the output directory.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// WriteCapture stores captured as an indented JSON array and returns the path.
// A nil slice is written as [].
func (w *Writer) WriteCapture(name string, captured []schemas.CapturedResponse) (string, error) {
	if captured == nil {
		captured = []schemas.CapturedResponse{}
	}
	data, err := json.MarshalIndent(captured, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode captured responses: %w", err)
	}
	return w.write(name, data)
}

// WriteScreenshot stores a PNG and returns the path.
func (w *Writer) WriteScreenshot(name string, png []byte) (string, error) {
	if len(png) == 0 {
		return "", fmt.Errorf("empty screenshot for %s", name)
	}
	return w.write(name, png)
}

func (w *Writer) write(name string, data []byte) (string, error) {
	path := w.Path(sanitize(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	w.logger.Debug("Wrote evidence.", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}

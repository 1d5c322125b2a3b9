package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/visiprobe/visiprobe/internal/output"
)

// outputSink is where a command writes its report: the command's stdout or a
// file created for --out / --out-dir.
type outputSink struct {
	io.Writer
	file *os.File
}

func (s outputSink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// openSink opens path for writing, creating parent directories. An empty
// path or "-" selects stdout.
func openSink(stdout io.Writer, path string) (outputSink, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		return outputSink{Writer: stdout}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return outputSink{}, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(path) // #nosec G304 -- operator-chosen report path
	if err != nil {
		return outputSink{}, err
	}
	return outputSink{Writer: file, file: file}, nil
}

// resolveOutPath applies the --out / --out-dir pair. With --out-dir the file
// is named base plus the format's extension.
func resolveOutPath(out, outDir, base string, format output.Format) (string, error) {
	out = strings.TrimSpace(out)
	outDir = strings.TrimSpace(outDir)
	switch {
	case out != "" && outDir != "":
		return "", fmt.Errorf("--out and --out-dir are mutually exclusive")
	case outDir == "":
		return out, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if abs, err := filepath.Abs(outDir); err == nil {
		outDir = abs
	}
	return filepath.Join(outDir, sanitizeFilename(base)+"."+extensionFor(format)), nil
}

var extensions = map[output.Format]string{
	output.FormatJSON:     "json",
	output.FormatNDJSON:   "ndjson",
	output.FormatMarkdown: "md",
}

func extensionFor(format output.Format) string {
	if ext, ok := extensions[format]; ok {
		return ext
	}
	return "txt"
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-z0-9._-]+`)

func sanitizeFilename(value string) string {
	clean := unsafeFilenameChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-")
	clean = strings.Trim(clean, "-.")
	if clean == "" {
		return "output"
	}
	return clean
}

// Package parser loads storyboards from JSON, YAML and Markdown files.
package parser

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Manik0107/VATA/internal/models"
)

// Format represents the format of a storyboard file
type Format int

const (
	// FormatUnknown represents an unknown or unsupported file format
	FormatUnknown Format = iota
	// FormatJSON represents a JSON (.json) storyboard, as written by the storyboard agent
	FormatJSON
	// FormatYAML represents a YAML (.yaml, .yml) storyboard
	FormatYAML
	// FormatMarkdown represents a Markdown (.md, .markdown) storyboard
	FormatMarkdown
)

// String returns the string representation of the Format
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatMarkdown:
		return "markdown"
	default:
		return "unknown"
	}
}

// Parser is the interface that all storyboard parsers must implement
type Parser interface {
	// Parse reads from an io.Reader and returns a parsed Storyboard
	Parse(r io.Reader) (*models.Storyboard, error)
}

// DetectFormat detects the storyboard format based on file extension
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatUnknown
	}
}

// NewParser creates a new parser instance for the specified format
func NewParser(format Format) (Parser, error) {
	switch format {
	case FormatJSON:
		return NewJSONParser(), nil
	case FormatYAML:
		return NewYAMLParser(), nil
	case FormatMarkdown:
		return NewMarkdownParser(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %v", format)
	}
}

// ParseFile detects the format of path, parses it, records the absolute
// path in SourcePath and validates the result.
func ParseFile(path string) (*models.Storyboard, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unknown file format: %s (supported: .json, .yaml, .yml, .md, .markdown)", path)
	}
	p, err := NewParser(format)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	sb, err := p.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse storyboard %s: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	sb.SourcePath = absPath

	if err := sb.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sb, nil
}

// FilterStoryboardFiles expands paths into a sorted, de-duplicated list of
// storyboard files. Directories are scanned recursively, skipping hidden
// directories; explicit file arguments must have a supported extension.
func FilterStoryboardFiles(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths provided")
	}

	found := make(map[string]bool)
	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path %q: %w", path, err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("path %q does not exist", absPath)
			}
			return nil, fmt.Errorf("failed to access path %q: %w", absPath, err)
		}

		if !info.IsDir() {
			if DetectFormat(absPath) == FormatUnknown {
				return nil, fmt.Errorf("unknown file format: %s", path)
			}
			found[absPath] = true
			continue
		}

		err = filepath.WalkDir(absPath, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != absPath && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if isStoryboardName(d.Name()) {
				found[p] = true
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan directory %q: %w", absPath, err)
		}
	}

	if len(found) == 0 {
		return nil, fmt.Errorf("no storyboard files found (supported: .json, .yaml, .yml, .md, .markdown)")
	}

	files := make([]string, 0, len(found))
	for f := range found {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// isStoryboardName reports whether a file found while scanning a directory
// looks like a storyboard. Reports written next to outputs are skipped.
func isStoryboardName(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".report.json") {
		return false
	}
	return DetectFormat(name) != FormatUnknown
}

// Package config — .resxkit.yaml configuration file support.
//
// The file is optional: every setting it carries can also come from flags
// or environment variables. It is the natural home for per-project values
// that don't belong on the command line, like the no-translate key
// patterns and the application context blurb for the translation prompt.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file name, looked up in the project root.
const FileName = ".resxkit.yaml"

// File is the top-level .resxkit.yaml structure.
type File struct {
	// ResourceDir is the directory with the .resx files, relative to the
	// project root (overrides auto-detection).
	ResourceDir string `yaml:"resource_dir,omitempty"`
	// BaseName overrides the base resource file name.
	BaseName string `yaml:"base_name,omitempty"`
	// BaseURL is the translation API base URL.
	BaseURL string `yaml:"base_url,omitempty"`
	// Model is the model identifier.
	Model string `yaml:"model,omitempty"`
	// BatchSize is the maximum number of keys per translation request.
	BatchSize int `yaml:"batch_size,omitempty"`
	// MaxRetries is the per-request retry budget.
	MaxRetries int `yaml:"max_retries,omitempty"`
	// Languages restricts the run to these language codes (default: all
	// localized files found).
	Languages []string `yaml:"languages,omitempty"`
	// NoTranslate holds regular expressions matched against missing key
	// names; matching keys are copied from the base file verbatim.
	NoTranslate []string `yaml:"no_translate,omitempty"`
	// Context is a short application description injected into the
	// translation prompt.
	Context string `yaml:"context,omitempty"`
}

// Load reads .resxkit.yaml from rootDir. Returns (nil, nil) when the file
// does not exist.
func Load(rootDir string) (*File, error) {
	path := filepath.Join(rootDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if f.BatchSize < 0 {
		return nil, fmt.Errorf("%s: batch_size must be positive", path)
	}
	if f.MaxRetries < 0 {
		return nil, fmt.Errorf("%s: max_retries must be positive", path)
	}

	// Validate patterns up front so a typo fails the run before any work.
	if _, err := f.CompileNoTranslate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &f, nil
}

// DefaultNoTranslate matches keys that hold language names and must never
// be sent for translation.
var DefaultNoTranslate = []string{
	`SettingsSelectionItem_Common_Language_.*`,
}

// CompileNoTranslate compiles the configured no-translate patterns,
// falling back to DefaultNoTranslate when none are configured.
func (f *File) CompileNoTranslate() ([]*regexp.Regexp, error) {
	patterns := DefaultNoTranslate
	if f != nil && len(f.NoTranslate) > 0 {
		patterns = f.NoTranslate
	}
	return CompilePatterns(patterns)
}

// CompilePatterns compiles a pattern list, reporting the offending pattern
// on failure.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid no-translate pattern %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

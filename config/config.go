// Package config implements auto-detection of the resource directory and
// the optional .resxkit.yaml project configuration file.
//
// Resolution order for every setting: command-line flag, then
// .resxkit.yaml, then environment variable, then built-in default.
package config

import (
	"os"
	"path/filepath"
)

// BaseFileName is the default base-language resource file name.
const BaseFileName = "Strings.resx"

// Project holds the resolved resource layout for one run.
type Project struct {
	// Dir is the directory holding the .resx files.
	Dir string
	// BaseName is the base resource file name (default Strings.resx).
	BaseName string
}

// BasePath returns the full path of the base resource file.
func (p *Project) BasePath() string {
	return filepath.Join(p.Dir, p.BaseName)
}

// candidateDirs are scanned (in order) for the base resource file when no
// directory is given explicitly.
var candidateDirs = []string{
	"i18n",
	"I18N",
	"resources",
	"Resources",
	filepath.Join("src", "I18N"),
	".",
}

// Detect locates the resource directory under rootDir. An explicitly
// configured directory wins; otherwise the first candidate containing the
// base file is used. Falls back to rootDir/i18n so error messages name a
// concrete path even when nothing was found.
func Detect(rootDir string, cfg *File) *Project {
	p := &Project{BaseName: BaseFileName}
	if cfg != nil && cfg.BaseName != "" {
		p.BaseName = cfg.BaseName
	}

	if cfg != nil && cfg.ResourceDir != "" {
		p.Dir = resolveDir(rootDir, cfg.ResourceDir)
		return p
	}

	for _, candidate := range candidateDirs {
		dir := filepath.Join(rootDir, candidate)
		if _, err := os.Stat(filepath.Join(dir, p.BaseName)); err == nil {
			p.Dir = dir
			return p
		}
	}

	p.Dir = filepath.Join(rootDir, "i18n")
	return p
}

// resolveDir joins dir onto rootDir unless dir is already absolute.
func resolveDir(rootDir, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(rootDir, dir)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestDetect(t *testing.T) {
	t.Run("explicit resource_dir wins", func(t *testing.T) {
		dir := t.TempDir()
		// The candidate dir exists but the config points elsewhere.
		writeFile(t, filepath.Join(dir, "i18n", BaseFileName), "<root/>")

		p := Detect(dir, &File{ResourceDir: "custom/res"})
		if want := filepath.Join(dir, "custom", "res"); p.Dir != want {
			t.Fatalf("Detect() Dir = %q, want %q", p.Dir, want)
		}
	})

	t.Run("absolute resource_dir kept as is", func(t *testing.T) {
		abs := t.TempDir()
		p := Detect(t.TempDir(), &File{ResourceDir: abs})
		if p.Dir != abs {
			t.Fatalf("Detect() Dir = %q, want %q", p.Dir, abs)
		}
	})

	t.Run("scans candidate directories in order", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "resources", BaseFileName), "<root/>")
		writeFile(t, filepath.Join(dir, "src", "I18N", BaseFileName), "<root/>")

		p := Detect(dir, nil)
		if want := filepath.Join(dir, "resources"); p.Dir != want {
			t.Fatalf("Detect() Dir = %q, want %q", p.Dir, want)
		}
	})

	t.Run("falls back to i18n when nothing found", func(t *testing.T) {
		dir := t.TempDir()
		p := Detect(dir, nil)
		if want := filepath.Join(dir, "i18n"); p.Dir != want {
			t.Fatalf("Detect() Dir = %q, want %q", p.Dir, want)
		}
	})

	t.Run("base name override changes detection", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "i18n", "Resources.resx"), "<root/>")

		p := Detect(dir, &File{BaseName: "Resources.resx"})
		if want := filepath.Join(dir, "i18n"); p.Dir != want {
			t.Fatalf("Detect() Dir = %q, want %q", p.Dir, want)
		}
		if want := filepath.Join(dir, "i18n", "Resources.resx"); p.BasePath() != want {
			t.Fatalf("BasePath() = %q, want %q", p.BasePath(), want)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("missing file is not an error", func(t *testing.T) {
		cfg, err := Load(t.TempDir())
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if cfg != nil {
			t.Fatalf("Load() = %#v, want nil for missing file", cfg)
		}
	})

	t.Run("full file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, FileName), `
resource_dir: src/I18N
base_url: https://api.openai.com/v1
model: gpt-4o
batch_size: 10
max_retries: 5
languages: [ru, de]
no_translate:
  - 'Language_.*'
context: A backup utility.
`)

		cfg, err := Load(dir)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if cfg.ResourceDir != "src/I18N" || cfg.Model != "gpt-4o" || cfg.BatchSize != 10 {
			t.Fatalf("Load() = %+v", cfg)
		}
		if len(cfg.Languages) != 2 || cfg.Languages[0] != "ru" {
			t.Fatalf("Languages = %#v", cfg.Languages)
		}

		patterns, err := cfg.CompileNoTranslate()
		if err != nil {
			t.Fatalf("CompileNoTranslate() error: %v", err)
		}
		if len(patterns) != 1 || !patterns[0].MatchString("Language_zh") {
			t.Fatalf("compiled patterns = %#v", patterns)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, FileName), "model: [unclosed")
		if _, err := Load(dir); err == nil {
			t.Fatalf("Load(invalid yaml) = nil error, want error")
		}
	})

	t.Run("invalid no_translate pattern fails up front", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, FileName), "no_translate: ['[unclosed']")
		if _, err := Load(dir); err == nil {
			t.Fatalf("Load(bad pattern) = nil error, want error")
		}
	})

	t.Run("negative batch_size rejected", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, FileName), "batch_size: -1")
		if _, err := Load(dir); err == nil {
			t.Fatalf("Load(batch_size -1) = nil error, want error")
		}
	})
}

func TestCompileNoTranslateDefaults(t *testing.T) {
	// No config file at all: the built-in language-name pattern applies.
	var cfg *File
	patterns, err := cfg.CompileNoTranslate()
	if err != nil {
		t.Fatalf("CompileNoTranslate() error: %v", err)
	}
	if len(patterns) != 1 {
		t.Fatalf("got %d default patterns, want 1", len(patterns))
	}
	if !patterns[0].MatchString("SettingsSelectionItem_Common_Language_zh-Hans") {
		t.Fatalf("default pattern does not match a language key")
	}
	if patterns[0].MatchString("Common_Greeting") {
		t.Fatalf("default pattern matches a normal key")
	}
}

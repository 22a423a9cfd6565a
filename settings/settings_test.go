package settings

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFilePathUsesXDGDataHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	want := filepath.Join(tmp, "resxkit", "auth.json")
	if got := FilePath(); got != want {
		t.Fatalf("FilePath() = %q, want %q", got, want)
	}
}

func TestHostFor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://api.openai.com/v1", "api.openai.com"},
		{"http://localhost:8080/v1", "localhost:8080"},
		{"not a url", "not a url"},
	}
	for _, tc := range tests {
		if got := HostFor(tc.in); got != tc.want {
			t.Errorf("HostFor(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestKeyLifecycle(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	if err := SetAPIKey("https://api.openai.com/v1", "sk-first"); err != nil {
		t.Fatalf("SetAPIKey() error: %v", err)
	}
	if err := SetAPIKey("http://localhost:8080/v1", "local-key"); err != nil {
		t.Fatalf("SetAPIKey() error: %v", err)
	}

	path := filepath.Join(tmp, "resxkit", "auth.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat auth.json: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("auth.json mode = %o, want 600", info.Mode().Perm())
	}

	if got := APIKeyFor("https://api.openai.com/v1/chat/completions"); got != "sk-first" {
		t.Fatalf("APIKeyFor() = %q, want key stored under the same host", got)
	}

	// Replacing keeps one key per host.
	if err := SetAPIKey("https://api.openai.com/v1", "sk-second"); err != nil {
		t.Fatalf("SetAPIKey() error: %v", err)
	}
	if got := APIKeyFor("https://api.openai.com/v1"); got != "sk-second" {
		t.Fatalf("APIKeyFor() after replace = %q, want sk-second", got)
	}

	want := []string{"api.openai.com", "localhost:8080"}
	if got := Hosts(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Hosts() = %#v, want %#v", got, want)
	}

	if err := RemoveAPIKey("https://api.openai.com"); err != nil {
		t.Fatalf("RemoveAPIKey() error: %v", err)
	}
	if got := APIKeyFor("https://api.openai.com/v1"); got != "" {
		t.Fatalf("APIKeyFor() after remove = %q, want empty", got)
	}

	// Removing an absent key is fine.
	if err := RemoveAPIKey("https://nowhere.example"); err != nil {
		t.Fatalf("RemoveAPIKey(absent) error: %v", err)
	}
}

func TestLoadDegradesOnBrokenFile(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	dir := filepath.Join(tmp, "resxkit")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "auth.json"), []byte("{broken"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	store := Load()
	if store == nil || len(store) != 0 {
		t.Fatalf("Load(broken file) = %#v, want empty store", store)
	}
}

package credential

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open missing file: %v", err)
	}
	if got := s.Get(APIKeyName); got != "" {
		t.Errorf("Get on empty store = %q, want empty", got)
	}

	if err := s.Set(APIKeyName, "sk-123"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.Get(APIKeyName); got != "sk-123" {
		t.Errorf("Get after reopen = %q, want sk-123", got)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("mode = %o, want 600", perm)
		}
	}
}

func TestStore_EmptyValueDeletes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	s, _ := Open(path)
	if err := s.Set(APIKeyName, "sk-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(APIKeyName, ""); err != nil {
		t.Fatal(err)
	}
	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.Get(APIKeyName); got != "" {
		t.Errorf("Get = %q, want removed", got)
	}
}

func TestOpen_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	os.WriteFile(path, []byte("{not json"), 0o600)
	if _, err := Open(path); err == nil {
		t.Error("expected parse error for corrupt file")
	}
}

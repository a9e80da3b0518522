package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func setupSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := OpenSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func storages(t *testing.T) map[string]Storage {
	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"file":   NewFileStorage(filepath.Join(t.TempDir(), "nested", "credentials.json")),
		"sqlite": setupSQLite(t),
	}
}

func sameJSON(t *testing.T, a, b []byte) bool {
	t.Helper()
	var va, vb any
	if err := json.Unmarshal(a, &va); err != nil {
		t.Fatalf("invalid JSON %q: %v", a, err)
	}
	if err := json.Unmarshal(b, &vb); err != nil {
		t.Fatalf("invalid JSON %q: %v", b, err)
	}
	ja, _ := json.Marshal(va)
	jb, _ := json.Marshal(vb)
	return bytes.Equal(ja, jb)
}

func TestStorage_Contract(t *testing.T) {
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := s.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Load(missing) = %v, want ErrNotFound", err)
			}

			first := []byte(`{"state":"abc","client":{"client_id":"123"}}`)
			if err := s.Save(ctx, StateKey, first); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, err := s.Load(ctx, StateKey)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !sameJSON(t, got, first) {
				t.Errorf("Load() = %s, want %s", got, first)
			}

			second := []byte(`{"state":"def"}`)
			if err := s.Save(ctx, StateKey, second); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, _ = s.Load(ctx, StateKey)
			if !sameJSON(t, got, second) {
				t.Errorf("Save should replace, got %s", got)
			}

			if err := s.Save(ctx, CredsKey, []byte(`{"token":{}}`)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := s.Delete(ctx, StateKey); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, err := s.Load(ctx, StateKey); !errors.Is(err, ErrNotFound) {
				t.Errorf("deleted key still loads: %v", err)
			}
			if _, err := s.Load(ctx, CredsKey); err != nil {
				t.Errorf("other keys must survive a delete: %v", err)
			}
			if err := s.Delete(ctx, "missing"); err != nil {
				t.Errorf("deleting an absent key should succeed: %v", err)
			}
		})
	}
}

func TestMemoryStorage_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	v := []byte(`"abc"`)
	s.Save(ctx, "k", v)
	v[1] = 'x'

	got, _ := s.Load(ctx, "k")
	if string(got) != `"abc"` {
		t.Errorf("stored value changed with the caller's slice: %s", got)
	}
	if keys := s.Keys(); len(keys) != 1 || keys[0] != "k" {
		t.Errorf("Keys() = %v", keys)
	}
}

func TestFileStorage_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}
	dir := filepath.Join(t.TempDir(), "cozy")
	path := filepath.Join(dir, "credentials.json")
	s := NewFileStorage(path)
	if err := s.Save(context.Background(), CredsKey, []byte(`{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
	dirInfo, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0700 {
		t.Errorf("dir mode = %o, want 700", perm)
	}
}

func TestFileStorage_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.json")

	creds := Credentials{Client: testClient(), Token: AccessToken{TokenType: "bearer", AccessToken: "a", RefreshToken: "r"}}
	if err := SaveCredentials(ctx, NewFileStorage(path), creds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := LoadCredentials(ctx, NewFileStorage(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != creds {
		t.Errorf("got %+v, want %+v", got, creds)
	}
}

func TestFileStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	os.WriteFile(path, []byte("not json"), 0600)

	_, err := NewFileStorage(path).Load(context.Background(), CredsKey)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestClearCredentials(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	SaveCredentials(ctx, s, Credentials{Client: testClient()})
	s.Save(ctx, StateKey, []byte(`{}`))

	if err := ClearCredentials(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if keys := s.Keys(); len(keys) != 0 {
		t.Errorf("keys left after clear: %v", keys)
	}
}

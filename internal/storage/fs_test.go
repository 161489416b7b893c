package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempSeedDir(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempSeedDir(t)
	content := []byte("id: \"1\"\nname: Feria\n")
	if err := s.Write("feria.yaml", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("feria.yaml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}

	if err := s.Write("feria.yaml", []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _ := s.Read("feria.yaml"); string(got) != "v2" {
		t.Errorf("after overwrite = %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempSeedDir(t)
	if err := s.Write("2024/julio/jazz.yaml", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got, err := s.Read("2024/julio/jazz.yaml"); err != nil || string(got) != "deep" {
		t.Errorf("Read = %q, %v", got, err)
	}
}

func TestWrite_RejectsNonDocuments(t *testing.T) {
	s := tempSeedDir(t)
	for _, p := range []string{"notes.md", ".hidden.yaml"} {
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("Write(%q) should fail", p)
		}
	}
}

func TestCreate_Exclusive(t *testing.T) {
	s := tempSeedDir(t)
	if err := s.Create("jazz.yaml", []byte("first")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := s.Create("jazz.yaml", []byte("second"))
	if !errors.Is(err, ErrExists) {
		t.Fatalf("second Create err = %v, want ErrExists", err)
	}
	if got, _ := s.Read("jazz.yaml"); string(got) != "first" {
		t.Errorf("content = %q, want first", got)
	}
}

func TestList_OnlyEventDocuments(t *testing.T) {
	s := tempSeedDir(t)
	_ = s.Write("b.yaml", []byte("b"))
	_ = s.Write("sub/a.YML", []byte("aa"))
	_ = os.WriteFile(filepath.Join(s.Root(), "readme.md"), []byte("not yaml"), 0o644)
	_ = os.WriteFile(filepath.Join(s.Root(), ".hidden.yaml"), []byte("x"), 0o644)
	_ = os.MkdirAll(filepath.Join(s.Root(), ".git"), 0o755)
	_ = os.WriteFile(filepath.Join(s.Root(), ".git", "c.yaml"), []byte("x"), 0o644)

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v, want 2", items)
	}
	if items[0].Path != "b.yaml" || items[1].Path != "sub/a.YML" {
		t.Errorf("paths = %s, %s", items[0].Path, items[1].Path)
	}
	if items[1].Size != 2 {
		t.Errorf("size = %d, want 2", items[1].Size)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempSeedDir(t)
	for _, p := range []string{"../../etc/passwd", "../outside.yaml", "/etc/shadow.yaml"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	s := tempSeedDir(t)
	_ = s.Write("atomic.yaml", []byte("original"))
	_ = s.Create("atomic.yaml", []byte("dup"))
	_ = s.Create("fresh.yaml", []byte("new"))
	matches, _ := filepath.Glob(filepath.Join(s.Root(), ".agenda-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	p := filepath.Join(t.TempDir(), "file")
	_ = os.WriteFile(p, []byte("x"), 0o644)
	if _, err := NewFS(p); err == nil {
		t.Error("expected error when root is a file")
	}
}

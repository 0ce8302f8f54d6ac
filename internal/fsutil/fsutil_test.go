package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	if err := WriteFileAtomic(dir, "state.json", []byte(`{"a":1}`), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("content = %q, want %q", got, `{"a":1}`)
	}
	if _, err := os.Stat(filepath.Join(dir, ".tmp-state.json")); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestReplaceFile_PreservesMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sshd_config")
	if err := os.WriteFile(path, []byte("old\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	tmp := path + ".stonixtmp"
	if err := WriteTemp(tmp, []byte("new\n"), 0o644); err != nil {
		t.Fatalf("WriteTemp() error = %v", err)
	}

	if err := ReplaceFile(tmp, path); err != nil {
		t.Fatalf("ReplaceFile() error = %v", err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "new\n" {
		t.Errorf("content = %q, want %q", got, "new\n")
	}
	st, err := Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Mode != 0o600 {
		t.Errorf("mode = %04o, want 0600", st.Mode)
	}
}

func TestReplaceFile_NewTarget(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "x.tmp")
	if err := WriteTemp(tmp, []byte("x"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := ReplaceFile(tmp, filepath.Join(dir, "x")); err != nil {
		t.Fatalf("ReplaceFile() error = %v", err)
	}
	if !Exists(filepath.Join(dir, "x")) {
		t.Error("target does not exist after ReplaceFile")
	}
}

func TestStatAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cron.allow")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if st.UID != os.Getuid() {
		t.Errorf("UID = %d, want %d", st.UID, os.Getuid())
	}

	st.Mode = 0o600
	if err := Apply(path, st); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	after, _ := Stat(path)
	if after.Mode != 0o600 {
		t.Errorf("mode after Apply = %04o, want 0600", after.Mode)
	}
}

func TestStat_Missing(t *testing.T) {
	_, err := Stat(filepath.Join(t.TempDir(), "missing"))
	if !os.IsNotExist(err) {
		t.Errorf("Stat(missing) error = %v, want not-exist", err)
	}
}

func TestHashFileAndCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst, 0o600); err != nil {
		t.Fatalf("CopyFile() error = %v", err)
	}

	h1, err := HashFile(src)
	if err != nil {
		t.Fatalf("HashFile(src) error = %v", err)
	}
	h2, err := HashFile(dst)
	if err != nil {
		t.Fatalf("HashFile(dst) error = %v", err)
	}
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if h1 != want || h2 != want {
		t.Errorf("hashes = %s, %s, want %s", h1, h2, want)
	}
}

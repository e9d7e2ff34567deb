package passphrase

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSourceReadsEnvironment(t *testing.T) {
	t.Setenv("CANTOR_TEST_SECRET", "hunter2-hunter2")
	src := NewSource("CANTOR_TEST_SECRET", "signing secret")
	got, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "hunter2-hunter2" {
		t.Fatalf("unexpected secret %q", got)
	}
	t.Setenv("CANTOR_TEST_SECRET", "changed")
	if again, _ := src.Get(); again != got {
		t.Fatalf("secret must be cached, got %q", again)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("CANTOR_TEST_SECRET", "   ")
	if _, err := NewSource("CANTOR_TEST_SECRET", "").Get(); err == nil {
		t.Fatal("expected blank secret to be rejected")
	}
}

func TestSourceReadsFileReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("from-file-secret\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	t.Setenv("CANTOR_FILE_SECRET_FILE", path)
	got, err := NewSource("CANTOR_FILE_SECRET", "").Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "from-file-secret" {
		t.Fatalf("unexpected secret %q", got)
	}
}

func TestSourceMissingFileFails(t *testing.T) {
	t.Setenv("CANTOR_FILE_SECRET_FILE", filepath.Join(t.TempDir(), "absent"))
	if _, err := NewSource("CANTOR_FILE_SECRET", "").Get(); err == nil {
		t.Fatal("expected missing file to fail")
	}
}

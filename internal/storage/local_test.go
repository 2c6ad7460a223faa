package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalArchiver_Archive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "fake mp4 bytes")
	}))
	defer srv.Close()

	dir := t.TempDir()
	a, err := NewLocalArchiver(dir)
	if err != nil {
		t.Fatalf("NewLocalArchiver: %v", err)
	}

	dest, err := a.Archive(context.Background(), "abc.mp4", srv.URL+"/v/abc.mp4")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if dest != filepath.Join(dir, "abc.mp4") {
		t.Errorf("unexpected destination %q", dest)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read archived file: %v", err)
	}
	if string(data) != "fake mp4 bytes" {
		t.Errorf("unexpected archived content %q", data)
	}
}

func TestLocalArchiver_Archive_SourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a, err := NewLocalArchiver(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalArchiver: %v", err)
	}

	_, err = a.Archive(context.Background(), "abc.mp4", srv.URL+"/v/abc.mp4")
	if !errors.Is(err, ErrArchiveFailed) {
		t.Errorf("expected ErrArchiveFailed, got %v", err)
	}
}

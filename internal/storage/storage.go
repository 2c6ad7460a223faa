// Package storage provides durable archival of finished video artifacts.
// The generation provider serves artifacts from its own CDN with no
// retention promise; an Archiver mirrors them into storage we control.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrArchiveFailed is returned when the source artifact cannot be fetched.
var ErrArchiveFailed = errors.New("storage: archive failed")

// Archiver mirrors a remote artifact into durable storage.
type Archiver interface {
	// Archive fetches the artifact at srcURL and stores it under key,
	// returning the location of the stored copy.
	Archive(ctx context.Context, key, srcURL string) (string, error)
}

// fetch opens the source artifact for copying.
// The caller must close the returned body.
func fetch(ctx context.Context, client *http.Client, srcURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrArchiveFailed, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch source: %v", ErrArchiveFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: source returned %d", ErrArchiveFailed, resp.StatusCode)
	}
	return resp.Body, nil
}

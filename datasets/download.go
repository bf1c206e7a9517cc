package datasets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// ErrChecksum is returned when a file does not match its known digest
var ErrChecksum = errors.New("checksum mismatch")

// Attempts is how many times a download is tried
const Attempts = 3

// Remote is a file to fetch
type Remote struct {
	URL    string
	Name   string // file name under the target directory
	SHA256 string // hex digest, empty when unknown
}

// Download fetches the missing files into dir concurrently. Files that exist and match their
// digest are kept. Data is written to <name>.partial and renamed once complete.
func Download(ctx context.Context, dir string, files ...Remote) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, f := range files {
		g.Go(func() error {
			dst := filepath.Join(dir, f.Name)
			if _, err := os.Stat(dst); err == nil {
				if err := Verify(dst, f.SHA256); err == nil {
					return nil
				}
				slog.Warn("existing file does not verify, downloading again", "file", dst)
			}
			var err error
			for attempt := 1; attempt <= Attempts; attempt++ {
				if err = fetch(ctx, f, dst); err == nil {
					return nil
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Warn("download failed", "url", f.URL, "attempt", attempt, "error", err)
			}
			return fmt.Errorf("download %s: %w", f.URL, err)
		})
	}
	return g.Wait()
}

func fetch(ctx context.Context, f Remote, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %s", resp.Status)
	}
	partial := dst + ".partial"
	out, err := os.Create(partial)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(partial)
		return err
	}
	if err := Verify(partial, f.SHA256); err != nil {
		os.Remove(partial)
		return err
	}
	slog.Info("downloaded", "file", dst, "bytes", n)
	return os.Rename(partial, dst)
}

// Verify checks the sha256 of path; an empty digest accepts any content
func Verify(path, digest string) error {
	if digest == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != digest {
		return fmt.Errorf("file %s has sha256 %s, want %s: %w", path, got, digest, ErrChecksum)
	}
	return nil
}

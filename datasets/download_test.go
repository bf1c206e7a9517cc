package datasets

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDownload(t *testing.T) {
	var hits atomic.Int32
	body := []byte("idx payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	sum := sha256.Sum256(body)
	digest := hex.EncodeToString(sum[:])
	dir := t.TempDir()

	require.NoError(t, Download(t.Context(), dir,
		Remote{URL: srv.URL + "/a", Name: "a.gz", SHA256: digest},
		Remote{URL: srv.URL + "/b", Name: "b.gz"},
	))
	got, err := os.ReadFile(filepath.Join(dir, "a.gz"))
	require.NoError(t, err)
	require.Equal(t, body, got)
	_, err = os.Stat(filepath.Join(dir, "a.gz.partial"))
	require.True(t, os.IsNotExist(err))

	before := hits.Load()
	require.NoError(t, Download(t.Context(), dir, Remote{URL: srv.URL + "/a", Name: "a.gz", SHA256: digest}))
	require.Equal(t, before, hits.Load(), "verified files are not fetched again")

	err = Download(t.Context(), dir, Remote{URL: srv.URL + "/c", Name: "c.gz", SHA256: "00"})
	require.True(t, errors.Is(err, ErrChecksum), "got %v", err)

	before = hits.Load()
	require.Error(t, Download(t.Context(), dir, Remote{URL: srv.URL + "/missing", Name: "m.gz"}))
	require.Equal(t, before+Attempts, hits.Load())
}

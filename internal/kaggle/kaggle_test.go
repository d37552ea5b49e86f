package kaggle

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/KaramelBytes/datakit-cli/internal/errs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ipv4Server struct {
	URL string
	srv *http.Server
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	s := &ipv4Server{URL: "http://" + ln.Addr().String(), srv: &http.Server{Handler: handler}}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.srv.Shutdown(ctx)
	})
	return s
}

func writeCredentials(t *testing.T, dir string, mode os.FileMode, body string) string {
	t.Helper()
	p := filepath.Join(dir, CredentialsFile)
	require.NoError(t, os.WriteFile(p, []byte(body), mode))
	require.NoError(t, os.Chmod(p, mode))
	return p
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// kaggleAPI fakes the handful of endpoints the downloader uses.
func kaggleAPI(t *testing.T, archive []byte, hits *int32) http.Handler {
	mux := http.NewServeMux()
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if hits != nil {
				atomic.AddInt32(hits, 1)
			}
			u, k, ok := r.BasicAuth()
			if !ok || u != "alice" || k != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"code":401,"message":"Unauthenticated"}`))
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("/datasets/download/owner/sales", auth(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="sales.zip"`)
		_, _ = w.Write(archive)
	}))
	mux.HandleFunc("/datasets/list", auth(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("search"); q != "" && q != "retail" {
			_ = json.NewEncoder(w).Encode([]map[string]any{})
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"ref": "a/one", "title": "One", "totalBytes": 10, "downloadCount": 5, "voteCount": 1},
			{"ref": "b/two", "title": "Two", "totalBytes": 20, "downloadCount": 6, "voteCount": 2},
			{"ref": "c/three", "title": "Three", "totalBytes": 30, "downloadCount": 7, "voteCount": 3},
		})
	}))
	mux.HandleFunc("/datasets/list/owner/sales", auth(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"datasetFiles":[{"name":"sales.csv","totalBytes":2048}]}`))
	}))
	mux.HandleFunc("/competitions/data/download-all/titanic", auth(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(zipBytes(t, map[string]string{"train.csv": "a\n1\n", "test.csv": "a\n2\n"}))
	}))
	return mux
}

func newTestDownloader(t *testing.T, baseURL string) *Downloader {
	t.Helper()
	cfg := t.TempDir()
	writeCredentials(t, cfg, 0o600, `{"username":"alice","key":"secret"}`)
	d, err := NewDownloader(Options{
		DownloadDir: filepath.Join(t.TempDir(), "raw"),
		ConfigDir:   cfg,
		BaseURL:     baseURL,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return d
}

func TestCredentialsPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/cfg", "kaggle.json"), CredentialsPath("/cfg"))
	t.Setenv("KAGGLE_CONFIG_DIR", "/from-env")
	assert.Equal(t, filepath.Join("/from-env", "kaggle.json"), CredentialsPath(""))
}

func TestCheckCredentials(t *testing.T) {
	dir := t.TempDir()

	_, _, err := CheckCredentials(filepath.Join(dir, "kaggle.json"))
	require.Error(t, err)
	assert.Equal(t, errs.KindSetup, errs.KindOf(err))
	assert.Contains(t, err.Error(), "Create New API Token")

	p := writeCredentials(t, dir, 0o644, `{"username":"alice","key":"secret"}`)
	c, warnings, err := CheckCredentials(p)
	require.NoError(t, err)
	assert.Equal(t, Credentials{Username: "alice", Key: "secret"}, c)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "chmod 600")

	p = writeCredentials(t, dir, 0o600, `{"username":"alice"`)
	_, _, err = CheckCredentials(p)
	assert.Equal(t, errs.KindSetup, errs.KindOf(err))

	p = writeCredentials(t, dir, 0o600, `{"username":"alice"}`)
	_, _, err = CheckCredentials(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username")
}

func TestNewDownloaderFailsFastWithoutCredentials(t *testing.T) {
	var hits int32
	srv := newIPv4Server(t, kaggleAPI(t, nil, &hits))
	_, err := NewDownloader(Options{DownloadDir: t.TempDir(), ConfigDir: t.TempDir(), BaseURL: srv.URL, Logger: zerolog.Nop()})
	require.Error(t, err)
	assert.Equal(t, errs.KindSetup, errs.KindOf(err))
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestParseIdentifier(t *testing.T) {
	o, n, err := ParseIdentifier("jaderz/hospital-beds-management")
	require.NoError(t, err)
	assert.Equal(t, "jaderz", o)
	assert.Equal(t, "hospital-beds-management", n)

	for _, bad := range []string{"", "nosslash", "a/b/c", "../x", "a/.."} {
		_, _, err := ParseIdentifier(bad)
		assert.Error(t, err, bad)
	}
}

func TestDownloadUnzipsIntoTarget(t *testing.T) {
	archive := zipBytes(t, map[string]string{"sales.csv": "a,b\n1,2\n", "docs/readme.txt": "hi"})
	srv := newIPv4Server(t, kaggleAPI(t, archive, nil))
	d := newTestDownloader(t, srv.URL)

	res, err := d.Download(context.Background(), "owner/sales", DownloadOptions{Unzip: true})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, filepath.Join(d.Dir(), "sales"), res.Target)
	assert.Equal(t, []string{filepath.Join("docs", "readme.txt"), "sales.csv"}, res.Files)

	b, err := os.ReadFile(filepath.Join(res.Target, "sales.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(b))

	entries, err := os.ReadDir(d.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "staging directory must be removed")
	assert.Equal(t, "sales", entries[0].Name())
}

func TestDownloadSkipsNonEmptyTarget(t *testing.T) {
	var hits int32
	srv := newIPv4Server(t, kaggleAPI(t, zipBytes(t, map[string]string{"sales.csv": "new"}), &hits))
	d := newTestDownloader(t, srv.URL)
	target := filepath.Join(d.Dir(), "custom")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "sales.csv"), []byte("old"), 0o644))

	res, err := d.Download(context.Background(), "owner/sales", DownloadOptions{Subdir: "custom", Unzip: true})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, []string{"sales.csv"}, res.Files)
	assert.Zero(t, atomic.LoadInt32(&hits))

	res, err = d.Download(context.Background(), "owner/sales", DownloadOptions{Subdir: "custom", Unzip: true, Force: true})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	b, err := os.ReadFile(filepath.Join(target, "sales.csv"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(b))
}

func TestDownloadWithoutUnzipKeepsArchive(t *testing.T) {
	srv := newIPv4Server(t, kaggleAPI(t, zipBytes(t, map[string]string{"x.csv": "a"}), nil))
	d := newTestDownloader(t, srv.URL)
	res, err := d.Download(context.Background(), "owner/sales", DownloadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"sales.zip"}, res.Files)
}

func TestDownloadRejectsEscapingSubdir(t *testing.T) {
	var hits int32
	srv := newIPv4Server(t, kaggleAPI(t, zipBytes(t, map[string]string{"x.csv": "a"}), &hits))
	d := newTestDownloader(t, srv.URL)
	for _, sub := range []string{"../outside", "..", ".", "a/b", "/tmp/abs"} {
		_, err := d.Download(context.Background(), "owner/sales", DownloadOptions{Subdir: sub, Unzip: true})
		assert.ErrorContains(t, err, "invalid subdir", sub)
	}
	assert.Zero(t, atomic.LoadInt32(&hits))
	_, err := os.Stat(filepath.Join(filepath.Dir(d.Dir()), "outside"))
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadAuthFailureIsNetworkError(t *testing.T) {
	srv := newIPv4Server(t, kaggleAPI(t, nil, nil))
	cfg := t.TempDir()
	writeCredentials(t, cfg, 0o600, `{"username":"alice","key":"wrong"}`)
	d, err := NewDownloader(Options{DownloadDir: t.TempDir(), ConfigDir: cfg, BaseURL: srv.URL, Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = d.Download(context.Background(), "owner/sales", DownloadOptions{Unzip: true})
	require.Error(t, err)
	assert.Equal(t, errs.KindNetwork, errs.KindOf(err))
	var ne *errs.NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, http.StatusUnauthorized, ne.StatusCode)
	assert.Contains(t, ne.Hint, "kaggle.json")
	assert.Contains(t, err.Error(), "Unauthenticated")
}

func TestDownloadNotFound(t *testing.T) {
	srv := newIPv4Server(t, kaggleAPI(t, nil, nil))
	d := newTestDownloader(t, srv.URL)
	_, err := d.Download(context.Background(), "owner/missing", DownloadOptions{})
	var ne *errs.NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, http.StatusNotFound, ne.StatusCode)
	assert.Contains(t, ne.Hint, "identifier")
}

func TestSearchAndListFiles(t *testing.T) {
	srv := newIPv4Server(t, kaggleAPI(t, nil, nil))
	d := newTestDownloader(t, srv.URL)

	hits, err := d.Search(context.Background(), "retail", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, DatasetInfo{Ref: "a/one", Title: "One", Size: 10, DownloadCount: 5, VoteCount: 1}, hits[0])

	_, err = d.Search(context.Background(), "  ", 5)
	assert.Error(t, err)

	files, err := d.ListFiles(context.Background(), "owner/sales")
	require.NoError(t, err)
	assert.Equal(t, []FileInfo{{Name: "sales.csv", TotalBytes: 2048}}, files)
}

func TestDownloadCompetition(t *testing.T) {
	srv := newIPv4Server(t, kaggleAPI(t, nil, nil))
	d := newTestDownloader(t, srv.URL)
	res, err := d.DownloadCompetition(context.Background(), "titanic", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(d.Dir(), "titanic"), res.Target)
	assert.Equal(t, []string{"test.csv", "train.csv"}, res.Files)
}

func TestUnzipRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	require.NoError(t, os.WriteFile(archive, zipBytes(t, map[string]string{"../escape.txt": "x"}), 0o644))
	dest := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	_, err := Unzip(archive, dest)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestVerifySetup(t *testing.T) {
	srv := newIPv4Server(t, kaggleAPI(t, nil, nil))
	cfg := t.TempDir()

	rep := VerifySetup(context.Background(), Options{ConfigDir: cfg, BaseURL: srv.URL}, true)
	assert.False(t, rep.OK())
	require.Len(t, rep.Steps, 1)

	writeCredentials(t, cfg, 0o600, `{"username":"alice","key":"secret"}`)
	rep = VerifySetup(context.Background(), Options{ConfigDir: cfg, BaseURL: srv.URL}, true)
	assert.True(t, rep.OK())
	assert.Equal(t, "alice", rep.Username)
	assert.Len(t, rep.Steps, 3)
}

func TestAttachmentName(t *testing.T) {
	assert.Equal(t, "data.zip", attachmentName(`attachment; filename="data.zip"`))
	assert.Equal(t, "evil.zip", attachmentName(`attachment; filename="../../evil.zip"`))
	assert.Equal(t, "", attachmentName(""))
}

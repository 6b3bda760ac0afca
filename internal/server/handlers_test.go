package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"filenav/internal/config"
)

func newTestServer(t *testing.T, root string, mutate ...func(*config.Config)) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Root = root
	for _, m := range mutate {
		m(&cfg)
	}

	cfg, err := cfg.Validate()
	require.NoError(t, err)

	srv, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	return srv
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	return rec
}

func listingURL(dir string) string {
	return "/?dir=" + url.QueryEscape(dir)
}

func TestIndexRoot(t *testing.T) {
	root := tree(t, "docs/", "readme.txt")
	ts := time.Date(2022, time.December, 24, 18, 30, 0, 0, time.Local)
	setMTime(t, filepath.Join(root, "readme.txt"), ts)

	rec := get(t, newTestServer(t, root), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, `href="?dir=docs"`)
	assert.Contains(t, body, `href="/readme.txt" target="_blank"`)
	assert.Contains(t, body, "2022-12-24 18:30:00")
	assert.Contains(t, body, "(21.00 B)")
	assert.NotContains(t, body, "Go Up")
	assert.Less(t, strings.Index(body, "?dir=docs"), strings.Index(body, "/readme.txt"))
}

func TestIndexSubdirectory(t *testing.T) {
	root := tree(t, "docs/guides/", "docs/intro.md")

	rec := get(t, newTestServer(t, root), listingURL("docs"))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Current Directory: <strong>/docs</strong>")
	assert.Contains(t, body, "Go Up")
	assert.Contains(t, body, `href="?dir="`)
	assert.Contains(t, body, `href="?dir=docs%2Fguides"`)
	assert.Contains(t, body, `href="/docs/intro.md"`)
}

func TestIndexHidesDotEntries(t *testing.T) {
	root := tree(t, ".env", ".git/", "app.go")

	body := get(t, newTestServer(t, root), "/").Body.String()
	assert.NotContains(t, body, ".env")
	assert.NotContains(t, body, ".git")
	assert.Contains(t, body, "app.go")

	shown := get(t, newTestServer(t, root, func(c *config.Config) { c.ShowHidden = true }), "/").Body.String()
	assert.Contains(t, shown, ".env")
	assert.Contains(t, shown, `href="?dir=.git"`)
}

func TestIndexExtensionFilter(t *testing.T) {
	root := tree(t, "a.pdf", "b.txt", "sub/")

	body := get(t, newTestServer(t, root, func(c *config.Config) {
		c.AllowedExtensions = []string{"PDF"}
	}), "/").Body.String()

	assert.Contains(t, body, "a.pdf")
	assert.Contains(t, body, "?dir=sub")
	assert.NotContains(t, body, "b.txt")
}

func TestIndexEmptyDirectory(t *testing.T) {
	root := tree(t, "empty/")

	body := get(t, newTestServer(t, root), listingURL("empty")).Body.String()
	assert.Contains(t, body, "Directory is empty")
}

func TestIndexFallsBackToRoot(t *testing.T) {
	parent, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	root := filepath.Join(parent, "base")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "inside"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".hidden"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(parent, "base-evil"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("x"), 0o644))
	symlinkOrSkip(t, filepath.Join(parent, "base-evil"), filepath.Join(root, "escape"))

	srv := newTestServer(t, root)

	for _, dir := range []string{
		"../../etc",
		"..",
		"../base-evil",
		"missing",
		"escape",
		"file.txt",
		"/etc",
		".hidden",
	} {
		t.Run(dir, func(t *testing.T) {
			rec := get(t, srv, listingURL(dir))
			require.Equal(t, http.StatusOK, rec.Code)

			body := rec.Body.String()
			assert.Contains(t, body, "Current Directory: <strong>/</strong>")
			assert.Contains(t, body, `href="?dir=inside"`)
			assert.NotContains(t, body, "secret.txt")
			assert.NotContains(t, body, "Go Up")
		})
	}
}

func TestIndexNormalizesCurrentPath(t *testing.T) {
	root := tree(t, "sub/", "sub2/inner/")

	body := get(t, newTestServer(t, root), listingURL("sub/../sub2/")).Body.String()
	assert.Contains(t, body, "Current Directory: <strong>/sub2</strong>")
	assert.Contains(t, body, `href="?dir=sub2%2Finner"`)
}

func TestServeFile(t *testing.T) {
	root := tree(t, "readme.txt", "docs/a b.txt", "docs/index.html")
	srv := newTestServer(t, root)

	rec := get(t, srv, "/readme.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "content of readme.txt", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = get(t, srv, "/docs/a%20b.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "content of docs/a b.txt", rec.Body.String())

	rec = get(t, srv, "/docs/index.html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "content of docs/index.html", rec.Body.String())
}

func TestServeFileHead(t *testing.T) {
	root := tree(t, "readme.txt")

	rec := httptest.NewRecorder()
	newTestServer(t, root).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/readme.txt", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestServeFileRejects(t *testing.T) {
	parent, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	root := filepath.Join(parent, "base")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "config"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "image.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("x"), 0o644))
	symlinkOrSkip(t, filepath.Join(parent, "secret.txt"), filepath.Join(root, "link.txt"))

	srv := newTestServer(t, root, func(c *config.Config) {
		c.AllowedExtensions = []string{"txt"}
	})

	for _, target := range []string{
		"/docs",
		"/missing.txt",
		"/.env",
		"/.git/config",
		"/image.png",
		"/link.txt",
		"/../secret.txt",
		"/%2e%2e/secret.txt",
		"/..%2fsecret.txt",
	} {
		t.Run(target, func(t *testing.T) {
			assert.Equal(t, http.StatusNotFound, get(t, srv, target).Code)
		})
	}
}

func TestServeFileMethodNotAllowed(t *testing.T) {
	root := tree(t, "readme.txt")

	rec := httptest.NewRecorder()
	newTestServer(t, root).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/readme.txt", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRespondError(t *testing.T) {
	root := tree(t)
	srv := newTestServer(t, root)

	tests := []struct {
		err  error
		code int
	}{
		{errPathNotExist, http.StatusNotFound},
		{errForbidden, http.StatusForbidden},
		{os.ErrClosed, http.StatusInternalServerError},
		{nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		srv.respondError(c, tt.err)
		assert.Equal(t, tt.code, rec.Code, "error %v", tt.err)
	}
}

func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}

		for _, m := range family.GetMetric() {
			matched := 0
			for _, pair := range m.GetLabel() {
				if labels[pair.GetName()] == pair.GetValue() {
					matched++
				}
			}

			if matched == len(labels) {
				return m.GetCounter().GetValue()
			}
		}
	}

	return 0
}

func fallbackCount(t *testing.T) float64 {
	t.Helper()
	return counterValue(t, "filenav_path_fallbacks_total", nil)
}

func TestIndexFallbackIsCounted(t *testing.T) {
	root := tree(t, "sub/")
	srv := newTestServer(t, root)

	before := fallbackCount(t)
	get(t, srv, listingURL("sub"))
	get(t, srv, "/")
	assert.Equal(t, before, fallbackCount(t))

	get(t, srv, listingURL("../../etc"))
	assert.Equal(t, before+1, fallbackCount(t))
}

func TestIndexHead(t *testing.T) {
	root := tree(t, "readme.txt")

	rec := httptest.NewRecorder()
	newTestServer(t, root).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestIndexOmitsLinksLeavingRoot(t *testing.T) {
	parent, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	root := filepath.Join(parent, "base")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(parent, "elsewhere"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "visible.txt"), []byte("x"), 0o644))
	symlinkOrSkip(t, "../secret.txt", filepath.Join(root, "out.txt"))
	symlinkOrSkip(t, "../elsewhere", filepath.Join(root, "outdir"))

	srv := newTestServer(t, root)

	body := get(t, srv, "/").Body.String()
	assert.Contains(t, body, "visible.txt")
	assert.NotContains(t, body, "out.txt")
	assert.NotContains(t, body, "outdir")

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/out.txt").Code)
}

func TestServeFileCountsOutcome(t *testing.T) {
	root := tree(t, "readme.txt", "locked.txt")
	srv := newTestServer(t, root)

	outcome := func(label string) float64 {
		return counterValue(t, "filenav_files_served_total", map[string]string{"status": label})
	}
	ok, missing, forbidden := outcome("success"), outcome("not_found"), outcome("forbidden")

	get(t, srv, "/readme.txt")
	get(t, srv, "/missing.txt")
	assert.Equal(t, ok+1, outcome("success"))
	assert.Equal(t, missing+1, outcome("not_found"))

	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}

	locked := filepath.Join(root, "locked.txt")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	assert.Equal(t, http.StatusForbidden, get(t, srv, "/locked.txt").Code)
	assert.Equal(t, forbidden+1, outcome("forbidden"))
}

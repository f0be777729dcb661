package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/starford/vaultsite/internal/models"
	"github.com/starford/vaultsite/internal/site"
	"github.com/starford/vaultsite/internal/siteservice"
	"github.com/starford/vaultsite/internal/sse"
	"github.com/starford/vaultsite/internal/testutil"
)

var testVaultFiles = map[string]string{
	"index.md":       "# Home\n[[a]] [[b]] [[ghost]]",
	"a.md":           "[[b]] ![[pic.png|200]]",
	"b.md":           "leaf",
	"assets/pic.png": "PNG",
}

// testEnv sets up a temp vault, manifest, service and router for testing.
// A non-empty token enables auth on the export trigger.
func testEnv(t *testing.T, token string, files map[string]string) (*siteservice.Service, http.Handler, string) {
	t.Helper()
	vault, _ := testutil.TestVault(t, "shortest", files)
	out := t.TempDir()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	db := testutil.TestDB(t)
	svc := siteservice.NewService(siteservice.Settings{
		VaultRoot:  vault,
		OutputRoot: out,
		Start:      "index.md",
	}, db, logger)
	return svc, NewRouter(svc, db, token, nil), out
}

func do(t *testing.T, h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v (body %q)", err, w.Body.String())
	}
	return v
}

func TestManifest_BeforeFirstExport(t *testing.T) {
	_, router, _ := testEnv(t, "", testVaultFiles)

	if w := do(t, router, http.MethodGet, "/manifest/run", ""); w.Code != http.StatusNotFound {
		t.Errorf("run status = %d, want 404", w.Code)
	}
	w := do(t, router, http.MethodGet, "/manifest/files", "")
	if w.Code != http.StatusOK {
		t.Fatalf("files status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"files":[]`) {
		t.Errorf("empty list should render as [], got %s", w.Body.String())
	}
}

func TestExportThenQueryManifest(t *testing.T) {
	_, router, _ := testEnv(t, "", testVaultFiles)

	w := do(t, router, http.MethodPost, "/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d, body = %s", w.Code, w.Body.String())
	}
	exp := decode[ExportResponse](t, w)
	if exp.Summary.Files != 4 || exp.Summary.Broken != 1 {
		t.Errorf("summary = %+v", exp.Summary)
	}

	files := decode[FilesResponse](t, do(t, router, http.MethodGet, "/manifest/files", ""))
	if files.Total != 4 || files.Files[0].Path != "a.md" {
		t.Errorf("files = %+v", files)
	}

	broken := decode[BrokenResponse](t, do(t, router, http.MethodGet, "/manifest/broken", ""))
	if broken.Total != 1 || broken.Links[0].Raw != "[[ghost]]" {
		t.Errorf("broken = %+v", broken)
	}

	bl := decode[BacklinksResponse](t, do(t, router, http.MethodGet, "/manifest/backlinks/b.md", ""))
	if bl.Target != "b.md" || len(bl.Sources) != 2 {
		t.Errorf("backlinks = %+v", bl)
	}

	bl = decode[BacklinksResponse](t, do(t, router, http.MethodGet, "/manifest/backlinks/assets%2Fpic.png", ""))
	if len(bl.Sources) != 1 || bl.Sources[0] != "a.md" {
		t.Errorf("encoded backlinks = %+v", bl)
	}

	run := decode[models.RunSummary](t, do(t, router, http.MethodGet, "/manifest/run", ""))
	if run.Start != "index.md" || run.Convention != "shortest" {
		t.Errorf("run = %+v", run)
	}
}

func TestBacklinks_MissingPath(t *testing.T) {
	_, router, _ := testEnv(t, "", testVaultFiles)
	if w := do(t, router, http.MethodGet, "/manifest/backlinks/", ""); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestExport_StartMissing(t *testing.T) {
	_, router, _ := testEnv(t, "", map[string]string{"other.md": "x"})
	if w := do(t, router, http.MethodPost, "/export", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router, _ := testEnv(t, "secret123", testVaultFiles)
	if w := do(t, router, http.MethodPost, "/export", "secret123"); w.Code != http.StatusOK {
		t.Errorf("authed export = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router, _ := testEnv(t, "secret123", testVaultFiles)
	w := do(t, router, http.MethodPost, "/export", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router, _ := testEnv(t, "secret123", testVaultFiles)
	if w := do(t, router, http.MethodPost, "/export", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_ReadsStayOpen(t *testing.T) {
	_, router, _ := testEnv(t, "secret123", testVaultFiles)
	if w := do(t, router, http.MethodGet, "/manifest/files", ""); w.Code != http.StatusOK {
		t.Errorf("manifest read = %d, want 200", w.Code)
	}
}

func TestSSEEvents_ReceivesExport(t *testing.T) {
	vault, _ := testutil.TestVault(t, "", testVaultFiles)
	db := testutil.TestDB(t)
	svc := siteservice.NewService(siteservice.Settings{VaultRoot: vault, OutputRoot: t.TempDir(), Start: "index.md"}, db, nil)
	broker := sse.NewBroker(time.Millisecond)
	defer broker.Close()
	svc.OnExport(broker.PublishExport)
	router := NewRouter(svc, db, "", broker)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	if _, err := svc.Export(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	for _, want := range []string{"event: " + sse.TypeExportCompleted, "event: " + sse.TypeSiteReload} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q: %q", want, body)
		}
	}
}

func TestSiteHandler_FallsBackToWiki(t *testing.T) {
	svc, _, out := testEnv(t, "", testVaultFiles)
	if _, err := svc.Export(context.Background()); err != nil {
		t.Fatal(err)
	}
	h := NewSiteHandler(out)

	w := do(t, h, http.MethodGet, "/a.md", "")
	body, _ := io.ReadAll(w.Body)
	if w.Code != http.StatusOK || !strings.Contains(string(body), "[b](b.md)") {
		t.Errorf("wiki fallback: %d %q", w.Code, body)
	}

	testutil.WriteFiles(t, out, map[string]string{"site/page.html": "<h1>built</h1>"})
	w = do(t, h, http.MethodGet, "/page.html", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "built") {
		t.Errorf("built site: %d %q", w.Code, w.Body.String())
	}
}

func TestSiteHandler_ReloadScript(t *testing.T) {
	h := NewSiteHandler(t.TempDir())
	w := do(t, h, http.MethodGet, site.ReloadScriptPath, "")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/javascript") {
		t.Fatalf("script: %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), `"`+sse.TypeSiteReload+`"`) {
		t.Errorf("script does not listen for %s: %q", sse.TypeSiteReload, w.Body.String())
	}
}

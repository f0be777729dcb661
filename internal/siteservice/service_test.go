package siteservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/starford/vaultsite/internal/apperr"
	"github.com/starford/vaultsite/internal/models"
	"github.com/starford/vaultsite/internal/resolver"
	"github.com/starford/vaultsite/internal/site"
	"github.com/starford/vaultsite/internal/testutil"
)

type eventLog struct {
	mu     sync.Mutex
	events []models.ExportEvent
}

func (l *eventLog) record(ev models.ExportEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) last(t *testing.T) models.ExportEvent {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		t.Fatal("no events")
	}
	return l.events[len(l.events)-1]
}

func newTestService(t *testing.T, files map[string]string, scaffold bool) (*Service, string, string, *eventLog) {
	t.Helper()
	vault, _ := testutil.TestVault(t, "shortest", files)
	out := t.TempDir()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := NewService(Settings{
		VaultRoot:  vault,
		OutputRoot: out,
		Start:      "index.md",
		Scaffold:   scaffold,
	}, testutil.TestDB(t), logger)
	log := &eventLog{}
	svc.OnExport(log.record)
	return svc, vault, out, log
}

func TestExport_RecordsManifestAndNotifies(t *testing.T) {
	svc, _, _, log := newTestService(t, map[string]string{
		"index.md": "[[a]] [[missing]]",
		"a.md":     "a",
	}, false)

	res, err := svc.Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(res.Files) != 2 {
		t.Errorf("files = %+v", res.Files)
	}

	ev := log.last(t)
	if ev.Error != "" || ev.Summary == nil {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Summary.Files != 2 || ev.Summary.Broken != 1 {
		t.Errorf("summary = %+v", ev.Summary)
	}
	if want := []string{"a.md", "index.md"}; !slices.Equal(ev.Changed, want) {
		t.Errorf("changed = %v, want %v", ev.Changed, want)
	}

	broken, err := svc.manifest.BrokenLinks()
	if err != nil {
		t.Fatal(err)
	}
	if len(broken) != 1 || broken[0].Raw != "[[missing]]" {
		t.Errorf("broken = %+v", broken)
	}
}

func TestExport_ChangedOnlyReportsDifferences(t *testing.T) {
	svc, vault, _, log := newTestService(t, map[string]string{
		"index.md": "[[a]] [[b]]",
		"a.md":     "a",
		"b.md":     "b",
	}, false)
	if _, err := svc.Export(context.Background()); err != nil {
		t.Fatal(err)
	}

	testutil.WriteFiles(t, vault, map[string]string{
		"index.md": "[[a]]",
		"a.md":     "a changed",
	})
	if _, err := svc.Export(context.Background()); err != nil {
		t.Fatal(err)
	}

	if want := []string{"a.md", "b.md", "index.md"}; !slices.Equal(log.last(t).Changed, want) {
		t.Errorf("changed = %v, want %v", log.last(t).Changed, want)
	}

	if _, err := svc.Export(context.Background()); err != nil {
		t.Fatal(err)
	}
	if changed := log.last(t).Changed; len(changed) != 0 {
		t.Errorf("unchanged vault reported %v", changed)
	}
}

func TestExport_FailureNotified(t *testing.T) {
	svc, _, _, log := newTestService(t, map[string]string{"other.md": "x"}, false)

	if _, err := svc.Export(context.Background()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	ev := log.last(t)
	if ev.Summary != nil || ev.Error == "" {
		t.Errorf("event = %+v", ev)
	}
}

func TestExport_Scaffold(t *testing.T) {
	svc, _, out, _ := newTestService(t, map[string]string{"index.md": "# Garden"}, true)

	if _, err := svc.Export(context.Background()); err != nil {
		t.Fatal(err)
	}
	cfg := testutil.ReadFile(t, out, site.ConfigFile)
	if !strings.Contains(cfg, "site_name: Garden") || !strings.Contains(cfg, "docs_dir: wiki") {
		t.Errorf("mkdocs.yml = %q", cfg)
	}
}

func TestExport_Serialised(t *testing.T) {
	svc, _, _, log := newTestService(t, map[string]string{"index.md": "[[a]]", "a.md": "a"}, false)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Export(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.events) != 4 {
		t.Errorf("events = %d, want 4", len(log.events))
	}
}

func TestResolveLink(t *testing.T) {
	svc, _, _, _ := newTestService(t, map[string]string{"notes/Deep.md": "x"}, false)

	target, conv, err := svc.ResolveLink("Deep", "index.md")
	if err != nil {
		t.Fatalf("ResolveLink: %v", err)
	}
	if target != "notes/Deep.md" || conv != resolver.Shortest {
		t.Errorf("got %q, %q", target, conv)
	}
	if _, _, err := svc.ResolveLink("Nope", "index.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestExport_FailedBuildNotRecorded(t *testing.T) {
	for _, tool := range []string{"true", "false"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available", tool)
		}
	}
	vault, _ := testutil.TestVault(t, "shortest", map[string]string{"index.md": "home"})
	out := t.TempDir()
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	settings := Settings{VaultRoot: vault, OutputRoot: out, Start: "index.md", Build: true, BuildCommand: "false"}

	if _, err := NewService(settings, db, logger).Export(context.Background()); err == nil {
		t.Fatal("expected build failure")
	}
	if _, err := db.LastRun(); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("failed run recorded: %v", err)
	}

	settings.BuildCommand = "true"
	retry := NewService(settings, db, logger)
	log := &eventLog{}
	retry.OnExport(log.record)
	if _, err := retry.Export(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := log.last(t).Changed; !slices.Equal(got, []string{"index.md"}) {
		t.Errorf("changed after retry = %v, want [index.md]", got)
	}
}

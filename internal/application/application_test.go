package application

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/manufacturing-config/internal/config"
	"github.com/eugenenazirov/manufacturing-config/internal/document"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func baseTestConfig() config.Config {
	return config.Config{
		DocumentPath: config.DocumentPath,
		LogLevel:     "debug",
		WatchRPS:     100,
		WatchBurst:   1,
	}
}

func writeDocument(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, config.DocumentPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write document: %v", err)
	}
	return path
}

func TestNewValidatesDependencies(t *testing.T) {
	logger := zaptest.NewLogger(t)

	if _, err := New(config.Config{}, logger, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for empty document path")
	}
	if _, err := New(baseTestConfig(), nil, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for nil logger")
	}
	if _, err := New(baseTestConfig(), logger, nil); err == nil {
		t.Fatalf("expected error for nil writer")
	}
}

func TestRunPrintsDocument(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeDocument(t, dir, "a: 1\nb: [2, 3]\n")

	var out bytes.Buffer
	app, err := New(baseTestConfig(), zaptest.NewLogger(t), &out)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	want := "{\n  \"a\": 1,\n  \"b\": [\n    2,\n    3\n  ]\n}\n"
	if out.String() != want {
		t.Fatalf("expected %q, got %q", want, out.String())
	}
}

func TestRunReportsMissingDocument(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	var out bytes.Buffer
	app, err := New(baseTestConfig(), zaptest.NewLogger(t), &out)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		t.Fatalf("expected missing document to be reported without error, got %v", err)
	}

	abs, err := document.Resolve(config.DocumentPath)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if want := NotFoundMessage(abs); out.String() != want {
		t.Fatalf("expected %q, got %q", want, out.String())
	}
	if !strings.Contains(out.String(), "Configuration not found at") {
		t.Fatalf("expected not-found message, got %q", out.String())
	}
}

func TestRunFailsOnInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeDocument(t, dir, "a: [1, 2\n")

	var out bytes.Buffer
	app, err := New(baseTestConfig(), zaptest.NewLogger(t), &out)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	err = app.Run(context.Background())
	if !errors.Is(err, document.ErrInvalidYAML) {
		t.Fatalf("expected ErrInvalidYAML, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	cfg := baseTestConfig()
	cfg.DocumentPath = writeDocument(t, dir, "line:\n  speed: 2.5\n  tools: [drill]\n")

	app, err := New(cfg, zaptest.NewLogger(t), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	first, err := app.Render()
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	second, err := app.Render()
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("expected identical renderings:\n%s\n%s", first, second)
	}
}

func TestPublishSkipsUnchangedOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := baseTestConfig()
	cfg.DocumentPath = writeDocument(t, dir, "a: 1\n")

	var out bytes.Buffer
	app, err := New(cfg, zaptest.NewLogger(t), &out)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := app.publish(); err != nil {
			t.Fatalf("publish returned error: %v", err)
		}
	}
	if want := "{\n  \"a\": 1\n}\n"; out.String() != want {
		t.Fatalf("expected a single rendering %q, got %q", want, out.String())
	}
}

func TestRunWatchReprintsChanges(t *testing.T) {
	dir := t.TempDir()
	cfg := baseTestConfig()
	cfg.Watch = true
	cfg.DocumentPath = writeDocument(t, dir, "a: 1\n")

	out := &syncBuffer{}
	app, err := New(cfg, zaptest.NewLogger(t), out)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- app.Run(ctx)
	}()

	first := "{\n  \"a\": 1\n}\n"
	waitFor(t, func() bool { return out.String() == first })

	// A broken document is logged and does not stop the loop.
	writeDocument(t, dir, "a: [\n")
	writeDocument(t, dir, "a: 2\n")

	second := "{\n  \"a\": 2\n}\n"
	waitFor(t, func() bool {
		got := out.String()
		return strings.HasPrefix(got, first) && strings.HasSuffix(got, second)
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("expected Run to stop after cancellation")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestRunWatchPicksUpDocumentCreatedLater(t *testing.T) {
	dir := t.TempDir()
	cfg := baseTestConfig()
	cfg.Watch = true
	cfg.DocumentPath = filepath.Join(dir, config.DocumentPath)

	out := &syncBuffer{}
	app, err := New(cfg, zaptest.NewLogger(t), out)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- app.Run(ctx)
	}()

	missing := NotFoundMessage(cfg.DocumentPath)
	waitFor(t, func() bool { return out.String() == missing })

	writeDocument(t, dir, "a: 1\n")

	want := "{\n  \"a\": 1\n}\n"
	waitFor(t, func() bool {
		got := out.String()
		return strings.HasPrefix(got, missing) && strings.HasSuffix(got, want)
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("expected Run to stop after cancellation")
	}
}

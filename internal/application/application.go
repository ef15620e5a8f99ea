package application

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/eugenenazirov/manufacturing-config/internal/config"
	"github.com/eugenenazirov/manufacturing-config/internal/document"
	"github.com/eugenenazirov/manufacturing-config/internal/render"
	"github.com/eugenenazirov/manufacturing-config/internal/storage"
	"github.com/eugenenazirov/manufacturing-config/internal/watch"
)

// App encapsulates the application dependencies and output stream.
type App struct {
	cfg      config.Config
	snapshot storage.Storage
	logger   *zap.Logger
	out      io.Writer
}

// New initializes the application from the provided configuration.
// Rendered output is written to out.
func New(cfg config.Config, logger *zap.Logger, out io.Writer) (*App, error) {
	if cfg.DocumentPath == "" {
		return nil, errors.New("document path must not be empty")
	}
	if logger == nil {
		return nil, errors.New("logger must not be nil")
	}
	if out == nil {
		return nil, errors.New("output writer must not be nil")
	}

	return &App{
		cfg:      cfg,
		snapshot: storage.NewMemoryStorage(),
		logger:   logger,
		out:      out,
	}, nil
}

// NotFoundMessage is the line printed when the configuration file is missing.
func NotFoundMessage(path string) string {
	return fmt.Sprintf("Error: Configuration not found at %s\n", path)
}

// Render loads the configuration and returns the text that should be printed:
// either the indented JSON document or the not-found message.
func (a *App) Render() ([]byte, error) {
	doc, err := document.Load(a.cfg.DocumentPath)
	if err != nil {
		var notFound *document.NotFoundError
		if errors.As(err, &notFound) {
			return []byte(NotFoundMessage(notFound.Path)), nil
		}
		return nil, err
	}

	out, err := render.Marshal(doc.Value())
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", doc.Path(), err)
	}
	return out, nil
}

// Run prints the configuration once. In watch mode it then keeps printing
// changed renderings until ctx is cancelled; render errors are logged and
// do not stop the loop.
func (a *App) Run(ctx context.Context) error {
	if !a.cfg.Watch {
		return a.publish()
	}

	// Watch before the first print so no change slips in between.
	w, err := watch.New(a.cfg.DocumentPath, a.logger, watch.WithRate(a.cfg.WatchRPS, a.cfg.WatchBurst))
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			a.logger.Warn("failed to close watcher", zap.Error(err))
		}
	}()

	a.logger.Info("watching configuration", zap.String("path", w.Path()), zap.String("dir", w.Dir()))

	onChange := func(context.Context) {
		if err := a.publish(); err != nil {
			a.logger.Error("failed to render configuration", zap.Error(err))
		}
	}
	onChange(ctx)

	return w.Run(ctx, onChange)
}

// publish renders the configuration and writes it unless it matches the
// previously written output.
func (a *App) publish() error {
	out, err := a.Render()
	if err != nil {
		return err
	}

	if !a.snapshot.Update(out) {
		a.logger.Debug("configuration unchanged", zap.String("path", a.cfg.DocumentPath))
		return nil
	}

	if _, err := a.out.Write(out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	a.logger.Debug("configuration printed", zap.String("path", a.cfg.DocumentPath), zap.Int("bytes", len(out)))
	return nil
}

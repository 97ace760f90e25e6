package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/tablemirror/internal/config"
	"github.com/roach88/tablemirror/internal/logging"
	"github.com/roach88/tablemirror/internal/mirror"
	"github.com/roach88/tablemirror/internal/store"
)

// env is the state shared by every command: config, logger and store.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *store.Store
	cleanup func()
}

// openEnv loads the config (defaults when no path is given), builds the
// logger and opens the store. --verbose forces debug logging.
func openEnv(opts *RootOptions, f *OutputFormatter) (*env, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	logger, cleanup, err := logging.New(cfg.Log, f.GetErrWriter())
	if err != nil {
		return nil, store.NewConfigurationError("logging", err.Error())
	}

	driver, dsn, err := cfg.Connection.DataSource()
	if err != nil {
		cleanup()
		return nil, err
	}
	if driver == store.SQLite.Name && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			cleanup()
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	s, err := store.Open(driver, dsn, store.WithLogger(logger), store.WithTracing(cfg.Logging))
	if err != nil {
		cleanup()
		return nil, err
	}
	f.VerboseLog("Opened %s store at %s", driver, dsn)

	return &env{cfg: cfg, logger: logger, store: s, cleanup: cleanup}, nil
}

// openMirror opens a mirror over table using the configured schema and
// debounce.
func (e *env) openMirror(ctx context.Context, table string, pruneTail bool) (*mirror.Mirror, error) {
	return mirror.Open(ctx, e.store, mirror.Options{
		Table:     table,
		Schema:    e.cfg.Schema,
		Debounce:  e.cfg.Debounce,
		Logger:    e.logger,
		PruneTail: pruneTail,
	})
}

// tableArg returns the command's table argument, falling back to the
// config's table.
func (e *env) tableArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return e.cfg.Table
}

func (e *env) Close() {
	e.store.Close()
	e.cleanup()
}

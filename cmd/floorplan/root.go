package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dshills/floorplan/internal/apperr"
	"github.com/dshills/floorplan/internal/codes"
	"github.com/dshills/floorplan/internal/config"
	"github.com/dshills/floorplan/internal/router"
	"github.com/dshills/floorplan/internal/store"
	"github.com/dshills/floorplan/internal/validate"
)

// Exit codes.
const (
	exitRejected = 2
	exitInput    = 3
	exitProvider = 4
)

type rootFlags struct {
	configPath string
	verbose    bool
	json       bool
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	v := config.New()

	root := &cobra.Command{
		Use:           "floorplan",
		Short:         "Generate, validate and review building floor plans",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := log.InfoLevel
			if f.verbose {
				level = log.DebugLevel
			}
			logger := newLogger(cmd.ErrOrStderr(), level)

			cfg, err := config.Load(v, f.configPath)
			if err != nil {
				return exitError(exitProvider, "%v", err)
			}
			logger.Debug("configuration loaded", "file", v.ConfigFileUsed(), "db", cfg.DB, "region", cfg.Region)

			ctx := withLogger(cmd.Context(), logger)
			ctx = withApp(ctx, &app{cfg: cfg, json: f.json, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Config file (default: ./floorplan.yaml or ~/.config/floorplan/floorplan.yaml)")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&f.json, "json", false, "Print JSON instead of tables")
	pf.String("db", "", "SQLite database path")
	pf.String("region", "", "Code region (e.g. us, uk, de)")
	pf.String("building-type", "", "Building type (e.g. residential, commercial)")
	pf.String("model", "", "Model ID (e.g. claude-sonnet-4-5, gpt-4o, gemini-2.5-pro, mock)")
	_ = v.BindPFlag("db", pf.Lookup("db"))
	_ = v.BindPFlag("region", pf.Lookup("region"))
	_ = v.BindPFlag("building_type", pf.Lookup("building-type"))
	_ = v.BindPFlag("model", pf.Lookup("model"))

	root.AddCommand(newValidateCmd())
	root.AddCommand(newGenerateCmd())
	root.AddCommand(newReviewCmd())
	root.AddCommand(newCodesCmd())
	return root
}

// newLogger creates a logger with timestamp formatting. Timestamps are
// formatted as "HH:MM:SS.ms" (e.g. "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

type ctxKey int

const (
	loggerKey ctxKey = iota
	appKey
)

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the command logger, or log.Default() when none
// is attached.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// app carries the resolved configuration into subcommands and builds the
// shared components from it.
type app struct {
	cfg    config.Config
	json   bool
	logger *log.Logger
}

func withApp(ctx context.Context, a *app) context.Context {
	return context.WithValue(ctx, appKey, a)
}

func appFromContext(ctx context.Context) *app {
	if a, ok := ctx.Value(appKey).(*app); ok {
		return a
	}
	cfg, _ := config.Load(config.New(), "")
	return &app{cfg: cfg, logger: loggerFromContext(ctx)}
}

func (a *app) selector() validate.Selector {
	return validate.Selector{Region: a.cfg.Region, BuildingType: a.cfg.BuildingType}
}

// registry loads the built-in code tables plus configured overlays.
func (a *app) registry() (*codes.Registry, error) {
	reg, err := codes.LoadBuiltin()
	if err != nil {
		return nil, fmt.Errorf("load built-in code tables: %w", err)
	}
	for _, path := range a.cfg.Codes.Overlays {
		keys, err := reg.LoadFile(path)
		if err != nil {
			return nil, exitError(exitInput, "load code overlay %s: %v", path, err)
		}
		a.logger.Debug("loaded code overlay", "file", path, "tables", len(keys))
	}
	return reg, nil
}

func (a *app) validator() (*validate.Validator, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	v := validate.New(reg, a.logger)
	v.FireExitMinWidthMM = a.cfg.FireExitMinWidthMM
	return v, nil
}

func (a *app) openStore() (*store.Store, error) {
	s, err := store.Open(a.cfg.DB)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("database opened", "path", a.cfg.DB, "schema", s.Version)
	return s, nil
}

// router rebuilds the review queue from the store and records every
// operation back to it before the command reports success.
func (a *app) router(ctx context.Context, s *store.Store) (*router.Router, error) {
	pool, err := router.NewPool(a.cfg.Review.Reviewers, a.cfg.Review.MaxWorkload)
	if err != nil {
		return nil, exitError(exitProvider, "reviewer pool: %v", err)
	}
	items, err := s.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	r := router.New(pool, a.logger)
	r.Retention = a.cfg.Review.Retention
	r.Journal = s
	s.MaxWorkload = pool.Max()
	if err := r.Restore(items); err != nil {
		return nil, err
	}
	return r, nil
}

// queueAttempts bounds how often a command reloads the review queue after
// another process changed it.
const queueAttempts = 3

// withQueue restores the review queue and runs fn, reloading and retrying
// when the store reports a concurrent change. fn must not commit anything
// outside the router that a retry would duplicate.
func (a *app) withQueue(ctx context.Context, s *store.Store, fn func(r *router.Router) error) error {
	var err error
	for attempt := 1; attempt <= queueAttempts; attempt++ {
		var r *router.Router
		if r, err = a.router(ctx, s); err != nil {
			return err
		}
		if err = fn(r); !apperr.Is(err, apperr.CodeConflict) {
			return err
		}
		a.logger.Debug("review queue changed by another process, reloading", "attempt", attempt, "err", err)
	}
	return fmt.Errorf("review queue kept changing: %w", err)
}

type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func exitError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// exitFor maps a coded application error to an exit code.
func exitFor(err error) error {
	switch apperr.GetCode(err) {
	case apperr.CodeInvalidRequest, apperr.CodeInvalidLayout, apperr.CodeNotFound,
		apperr.CodeInvalidState, apperr.CodeForbidden:
		return exitError(exitInput, "%s", apperr.UserMessage(err))
	case apperr.CodeProvider:
		return exitError(exitProvider, "%s", apperr.UserMessage(err))
	}
	return err
}

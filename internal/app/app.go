// Package app wires configuration into the roster service and its
// dependencies. Both binaries build through it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/RosterImport/internal/backend"
	"github.com/JonMunkholm/RosterImport/internal/config"
	"github.com/JonMunkholm/RosterImport/internal/roster"
	"github.com/JonMunkholm/RosterImport/internal/store"
)

// App holds the wired components.
type App struct {
	Config  *config.Config
	Backend *backend.Client
	History store.History
	Service *roster.Service

	pool *pgxpool.Pool
}

// BackendConfig maps the environment settings onto the client config.
func BackendConfig(c config.BackendConfig) backend.Config {
	return backend.Config{
		BaseURL:        c.URL,
		Token:          c.Token,
		Timeout:        c.Timeout,
		CampusesPath:   c.CampusesPath,
		CoursesPath:    c.CoursesPath,
		BatchPath:      c.BatchPath,
		CoursePageSize: c.CoursePageSize,
		RateLimit:      c.RequestsPerSecond,
		RateBurst:      c.Burst,
	}
}

// New builds the backend client, the optional history store and the
// service. Close releases the database pool.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	client, err := backend.New(BackendConfig(cfg.Backend))
	if err != nil {
		return nil, err
	}

	codes, err := loadCityCodes(cfg.Reference.CityCodesFile)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Backend: client, History: store.Nop{}}

	if cfg.Database.Enabled() {
		pool, err := store.Connect(ctx, store.PoolConfig{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		h := store.NewPostgresHistory(pool)
		if err := h.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		a.pool = pool
		a.History = h

		slog.Info("connected to history database", "name", databaseName(cfg.Database.URL))
	} else {
		slog.Info("history database not configured, submissions will not be recorded")
	}

	a.Service = roster.NewService(client, roster.Options{
		MaxFileSize:      cfg.Upload.MaxFileSize,
		MaxConcurrent:    cfg.Upload.MaxConcurrent,
		MaxWaitTime:      cfg.Upload.MaxWaitTime,
		HeaderSearchRows: cfg.Upload.HeaderSearchRows,
		SessionTTL:       cfg.Session.TTL,
		ReferenceTTL:     cfg.Reference.CacheTTL,
		RedirectDelay:    cfg.Session.RedirectDelay,
		CityCodes:        codes,
		History:          a.History,
	})
	return a, nil
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func loadCityCodes(path string) (*roster.CityCodes, error) {
	if path == "" {
		return roster.DefaultCityCodes(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open city codes: %w", err)
	}
	defer f.Close()

	codes, err := roster.LoadCityCodes(f)
	if err != nil {
		return nil, fmt.Errorf("load city codes %s: %w", path, err)
	}
	slog.Info("city codes loaded", "file", path, "codes", codes.Len())
	return codes, nil
}

func databaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// Command privyloop is the privacy-settings monitoring service.
//
// Usage:
//
//	privyloop -config privyloop.yaml
//	privyloop                          # defaults, db at db/privyloop.db
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "modernc.org/sqlite"

	"github.com/AustinZ21/Privyloop-sub001/internal/config"
	"github.com/AustinZ21/Privyloop-sub001/internal/crawler"
	"github.com/AustinZ21/Privyloop-sub001/internal/registry"
	"github.com/AustinZ21/Privyloop-sub001/internal/scrape"
	"github.com/AustinZ21/Privyloop-sub001/internal/settings"
	"github.com/AustinZ21/Privyloop-sub001/internal/store"
	"github.com/AustinZ21/Privyloop-sub001/internal/template"
)

func main() {
	configPath := flag.String("config", "", "path to privyloop.yaml config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			slog.Error("load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if v := os.Getenv("PRIVYLOOP_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("PRIVYLOOP_LISTEN"); v != "" {
		cfg.Listen = v
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("privyloop: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := registry.New(st, registry.NewMemoryCache(cfg.Registry.CacheTTL), logger)
	templates := template.New(st, logger)
	cr := crawler.New(cfg.Crawler, logger)
	engine := scrape.New(reg, templates, st, cr, scrape.Config{
		Timeouts:       cfg.Scrape.Timeouts,
		DefaultTimeout: cfg.Scrape.DefaultTimeout,
	}, logger)

	// The server has no in-process browser; every supported platform gets
	// the relay scraper, which declines so scrapes route through the
	// crawler fallback. Extension-side extractions arrive via Submit.
	platforms, err := st.ListPlatforms(ctx)
	if err != nil {
		return err
	}
	for _, p := range platforms {
		if p.IsActive && p.IsSupported {
			engine.RegisterScraper(p.Slug, relayScraper{})
		}
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(engine, reg, st),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      3 * time.Minute, // scrapes can run long
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("privyloop: server starting", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("privyloop: server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("privyloop: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("privyloop: shutdown", "error", err)
	}
	logger.Info("privyloop: server stopped")
	return nil
}

// relayScraper stands in for the browser extension on the server side. It
// always declines, routing the scrape to the crawler fallback.
type relayScraper struct{}

func (relayScraper) CanScrape(context.Context, *scrape.Context) bool { return false }

func (relayScraper) Scrape(context.Context, *scrape.Context) (*scrape.Result, error) {
	return nil, errors.New("relay scraper cannot scrape")
}

func newRouter(engine *scrape.Engine, reg *registry.Registry, st *store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Post("/api/scrape", func(w http.ResponseWriter, r *http.Request) {
		var sc scrape.Context
		if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
			writeError(w, 400, err)
			return
		}
		res := engine.Scrape(r.Context(), &sc)
		writeJSON(w, resultStatus(res), res)
	})

	// The extension posts its in-page extraction here for post-processing.
	r.Post("/api/snapshots", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			scrape.Context
			Data     settings.UserSettings `json:"data"`
			Metadata *scrape.Metadata      `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		res := engine.Submit(r.Context(), &req.Context, req.Data, req.Metadata)
		writeJSON(w, resultStatus(res), res)
	})

	r.Get("/api/scrape/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := engine.Stats(r.Context(), r.URL.Query().Get("platform_id"))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, stats)
	})

	r.Get("/api/scrapers", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]any{"scrapers": engine.AvailableScrapers()})
	})

	r.Route("/api/platforms", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			platforms, err := st.ListPlatforms(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, platforms)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var p registry.Platform
			if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
				writeError(w, 400, err)
				return
			}
			id, err := reg.RegisterPlatform(r.Context(), &p)
			if err != nil {
				writeError(w, registryStatus(err), err)
				return
			}
			if p.IsSupported {
				engine.RegisterScraper(p.Slug, relayScraper{})
			}
			writeJSON(w, 201, map[string]string{"id": id})
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			p, err := reg.GetPlatformConfig(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if p == nil {
				writeJSON(w, 404, map[string]string{"error": "platform not found"})
				return
			}
			writeJSON(w, 200, p)
		})

		r.Patch("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var upd registry.PlatformUpdate
			if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
				writeError(w, 400, err)
				return
			}
			ok, err := reg.UpdatePlatform(r.Context(), chi.URLParam(r, "id"), &upd)
			if err != nil {
				writeError(w, registryStatus(err), err)
				return
			}
			if !ok {
				writeJSON(w, 404, map[string]string{"error": "platform not found"})
				return
			}
			writeJSON(w, 200, map[string]string{"status": "updated"})
		})

		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			ok, err := reg.DeactivatePlatform(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if !ok {
				writeJSON(w, 404, map[string]string{"error": "platform not found"})
				return
			}
			writeJSON(w, 200, map[string]string{"status": "deactivated"})
		})

		r.Get("/{id}/extension-config", func(w http.ResponseWriter, r *http.Request) {
			ec, err := reg.GetExtensionConfig(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if ec == nil {
				writeJSON(w, 404, map[string]string{"error": "platform not found"})
				return
			}
			writeJSON(w, 200, ec)
		})

		r.Post("/{id}/permissions/check", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				URLs []string `json:"urls"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			allowed := reg.ValidatePermissions(chi.URLParam(r, "id"), req.URLs)
			writeJSON(w, 200, map[string]bool{"allowed": allowed})
		})
	})

	r.Get("/api/users/{userID}/platforms/{platformID}/snapshots", func(w http.ResponseWriter, r *http.Request) {
		snaps, err := st.ListSnapshots(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "platformID"), queryInt(r, "limit", 20))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, snaps)
	})

	return r
}

// resultStatus maps a scrape result to an HTTP status.
func resultStatus(res *scrape.Result) int {
	if res.Success {
		return 200
	}
	if res.Error == nil {
		return 500
	}
	switch res.Error.Code {
	case scrape.CodeValidation:
		return 400
	case scrape.CodePlatformNotFound:
		return 404
	case scrape.CodeScraperNotAvailable, scrape.CodeFallbackUnavailable:
		return 503
	case scrape.CodeScrapingError, scrape.CodeFallbackError:
		return 502
	default:
		return 500
	}
}

// registryStatus distinguishes config validation failures from storage
// errors.
func registryStatus(err error) int {
	if errors.Is(err, registry.ErrInvalidConfig) {
		return 400
	}
	return 500
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

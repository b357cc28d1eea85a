package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"apbn/internal/cache"
	"apbn/internal/log"
	"apbn/internal/middleware/ratelimit"
	"apbn/internal/middleware/security"
	"apbn/internal/middleware/trace"
	"apbn/internal/services"
	"apbn/internal/storage"
	"apbn/internal/view"
	appweb "apbn/web"
)

// requestTimeout bounds the work a dashboard request may do.
const requestTimeout = 7 * time.Second

// DatasetSource is the read side of the dataset service plus reload.
type DatasetSource interface {
	Current() *services.Dataset
	Reload(ctx context.Context) (*services.Dataset, bool)
	Ready() bool
	Loads() int64
}

// HistoryReader reads the load log.
type HistoryReader interface {
	RecentRuns(ctx context.Context, limit int) ([]storage.Run, error)
	GetRun(ctx context.Context, id string) (storage.Run, error)
	RunFiles(ctx context.Context, runID string) ([]storage.FileOutcome, error)
}

type Dependencies struct {
	Dataset DatasetSource
	// History is optional; the history panel is hidden without it.
	History HistoryReader
	// Cache is optional; one is created from CacheSize and CacheTTL otherwise.
	Cache *cache.LRUCache[view.Dashboard]
}

type Config struct {
	Addr            string
	CacheSize       int
	CacheTTL        time.Duration
	CleanupInterval time.Duration
	ReloadPerMinute int
	HistoryLimit    int
	Dependencies    Dependencies

	// TrustedProxies are extra CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string
}

type Server struct {
	http.Server
	templates *template.Template
	dataset   DatasetSource
	history   HistoryReader

	dashCache    *cache.LRUCache[view.Dashboard]
	cacheManager *cache.Manager

	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	securityDetector *security.Detector

	logger       *log.Logger
	started      time.Time
	historyLimit int
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(cfg Config, logger *log.Logger) (*Server, error) {
	if cfg.Dependencies.Dataset == nil {
		return nil, fmt.Errorf("dataset source is required")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 100
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if cfg.ReloadPerMinute <= 0 {
		cfg.ReloadPerMinute = 6
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	dashCache := cfg.Dependencies.Cache
	if dashCache == nil {
		dashCache = cache.NewLRUCache[view.Dashboard](cfg.CacheSize, cfg.CacheTTL)
	}

	s := &Server{
		templates:    tmpl,
		dataset:      cfg.Dependencies.Dataset,
		history:      cfg.Dependencies.History,
		dashCache:    dashCache,
		cacheManager: cache.NewManager(logger),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerWindow: cfg.ReloadPerMinute,
			Window:            time.Minute,
		}),
		securityDetector: security.NewDetector(logger),
		logger:           logger.WithComponent(log.ComponentHTTP),
		started:          time.Now(),
		historyLimit:     cfg.HistoryLimit,
	}
	for _, cidr := range cfg.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			s.rateLimiter.Stop()
			return nil, err
		}
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)
	s.cacheManager.Register(dashCache)
	s.cacheManager.StartCleanup(cfg.CleanupInterval)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.traceMiddleware.Middleware)
	r.Use(log.ComponentMiddleware(log.ComponentHTTP))
	r.Use(middleware.Recoverer)
	r.Use(s.securityDetector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Halaman tidak ditemukan").Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Get("/", s.handleIndex)
		r.Get("/ui/dashboard", s.handleDashboardPartial)
		r.Get("/ui/load-history", s.handleLoadHistory)
		r.Get("/api/trend", s.handleTrend)
		r.Get("/api/view", s.handleView)
		r.Get("/api/runs/{id}", s.handleRun)
		r.With(security.NoStore).Get("/export.xlsx", s.handleExport)
	})

	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.writeRateLimited)
	r.With(limited).Post("/reload", s.handleReload)

	return r
}

func (s *Server) writeRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError("Terlalu banyak permintaan muat ulang. Coba lagi nanti.").Write(w)
}

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"ago":   humanize.Time,
		"comma": func(n int) string { return humanize.Comma(int64(n)) },
		"ms": func(d time.Duration) string {
			return d.Round(time.Millisecond).String()
		},
	}
	return template.New("").Funcs(funcs).ParseFS(appweb.TemplatesFS, "templates/*.html")
}

// dashboard builds the dashboard for in, reusing a cached copy rendered from
// the same snapshot and normalized inputs.
func (s *Server) dashboard(ctx context.Context, in view.Inputs) view.Dashboard {
	ds := s.dataset.Current()

	var d view.Dashboard
	if ds == nil {
		d = view.Build(nil, in)
	} else {
		norm, fallback := view.Normalize(ds, in)
		key := ds.RunID + "|" + norm.Key()
		cached, ok := s.dashCache.Get(key)
		if ok {
			d = cached
		} else {
			d = view.Build(ds, norm)
			s.dashCache.Set(key, d)
		}
		d.YearFallback = fallback
		d.RequestedYear = in.Year
	}

	if d.YearFallback {
		log.FromContext(ctx).WarnContext(ctx, "Unknown year requested, showing all years",
			log.FieldYear, d.RequestedYear)
	}
	return d
}

// PurgeCache drops every rendered dashboard.
func (s *Server) PurgeCache() int {
	return s.dashCache.Purge()
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

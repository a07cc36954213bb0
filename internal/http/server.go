package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"pantry/internal/core"
	applog "pantry/internal/log"
	"pantry/internal/middleware/ratelimit"
	"pantry/internal/middleware/security"
	"pantry/internal/middleware/trace"
	"pantry/internal/pending"
	"pantry/internal/reconcile"
	"pantry/internal/services"
)

// Pantry is the service surface the handlers call.
type Pantry interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, name, color string) (core.Category, bool, error)
	DeleteCategory(ctx context.Context, name string) error
	SeedDefaults(ctx context.Context) ([]core.Category, error)

	ListItems(ctx context.Context) ([]core.Item, error)
	SearchItems(ctx context.Context, query, category string) ([]core.Item, error)
	AddItem(ctx context.Context, in services.ItemInput) (services.ItemResult, error)
	EditItem(ctx context.Context, id string, in services.ItemInput) (core.Item, error)
	DeleteItem(ctx context.Context, id string) error

	RecognizeImage(ctx context.Context, imageURL string) (pending.Batch, error)
	PreviewRecognition(ctx context.Context, items []core.RecognizedItem, dropped int) (pending.Batch, error)
	ConfirmRecognition(ctx context.Context, req services.ConfirmRequest) (services.ConfirmResult, error)
	InterpretTranscript(ctx context.Context, transcript string) ([]core.Operation, int, error)
	ApplyOperations(ctx context.Context, ops []core.Operation) ([]services.OperationResult, error)
}

// EngineStatus reports the state of the reconciliation engine.
type EngineStatus interface {
	IsRunning() bool
	Degraded() bool
	Passes() int64
}

var (
	_ Pantry       = (*services.PantryService)(nil)
	_ EngineStatus = (*reconcile.Engine)(nil)
)

// BatchCounter reports how many recognition batches are pending.
type BatchCounter interface {
	Size() int
}

var _ BatchCounter = (*pending.Store)(nil)

// ReadinessCheck returns nil when a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type Options struct {
	Addr   string
	Pantry Pantry
	Engine EngineStatus
	// Batches is optional; when set its size is exported by /metrics.
	Batches BatchCounter
	// Checks are run by /readyz, keyed by dependency name.
	Checks    map[string]ReadinessCheck
	Logger    *applog.Logger
	RateLimit ratelimit.Config
	// TrustedProxies are CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string
	// RequestTimeout bounds each API request; zero means 30s.
	RequestTimeout time.Duration
}

type Server struct {
	http.Server
	pantry         Pantry
	engine         EngineStatus
	batches        BatchCounter
	checks         map[string]ReadinessCheck
	checkNames     []string
	logger         *applog.Logger
	rateLimiter    *ratelimit.Limiter
	detector       *security.Detector
	tracer         *trace.Middleware
	requestTimeout time.Duration
	started        time.Time
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s := &Server{
		pantry:         opts.Pantry,
		engine:         opts.Engine,
		batches:        opts.Batches,
		checks:         opts.Checks,
		logger:         logger.WithComponent(applog.ComponentHTTP),
		rateLimiter:    ratelimit.NewLimiter(opts.RateLimit),
		detector:       detector,
		tracer:         trace.NewMiddleware(detector.ExtractClientIP),
		requestTimeout: timeout,
		started:        time.Now(),
	}
	for name := range opts.Checks {
		s.checkNames = append(s.checkNames, name)
	}
	sort.Strings(s.checkNames)

	s.Addr = opts.Addr
	s.Handler = s.routes(logger)
	s.ReadHeaderTimeout = 10 * time.Second
	s.ReadTimeout = 30 * time.Second
	s.WriteTimeout = timeout + 5*time.Second
	s.IdleTimeout = 120 * time.Second
	return s
}

func (s *Server) routes(logger *applog.Logger) http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("GET /api/categories", s.handleListCategories)
	api.HandleFunc("POST /api/categories", s.handleCreateCategory)
	api.HandleFunc("POST /api/categories/seed", s.handleSeedCategories)
	api.HandleFunc("DELETE /api/categories/{name}", s.handleDeleteCategory)

	api.HandleFunc("GET /api/items", s.handleListItems)
	api.HandleFunc("POST /api/items", s.handleAddItem)
	api.HandleFunc("GET /api/items/search", s.handleSearchItems)
	api.HandleFunc("PUT /api/items/{id}", s.handleEditItem)
	api.HandleFunc("DELETE /api/items/{id}", s.handleDeleteItem)

	api.HandleFunc("POST /api/recognitions", s.handlePreviewRecognition)
	api.HandleFunc("POST /api/recognitions/image", s.handleRecognizeImage)
	api.HandleFunc("POST /api/recognitions/{id}/confirm", s.handleConfirmRecognition)
	api.HandleFunc("POST /api/transcripts/interpret", s.handleInterpretTranscript)
	api.HandleFunc("POST /api/operations", s.handleApplyOperations)

	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded").Write(r.Context(), w)
	})(s.withTimeout(api))

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.HandleFunc("GET /metrics", s.handleMetrics)
	root.Handle("/api/", limited)

	var h http.Handler = root
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	h = applog.Middleware(logger)(h)
	return h
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Shutdown stops accepting requests and releases the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	return s.Server.Shutdown(ctx)
}

// respondError logs server-side failures and writes the mapped response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFromDomain(err)
	if resp.StatusCode() >= http.StatusInternalServerError {
		applog.LogError(r.Context(), "Request failed", err, applog.ComponentPantry, op, applog.NewFields().
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, ""))
	} else {
		s.logger.DebugContext(r.Context(), "Request rejected",
			applog.FieldOperation, op,
			applog.FieldError, err.Error())
	}
	resp.Write(r.Context(), w)
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	NewJSONResponse().Status(status).Body(body).Write(r.Context(), w)
}

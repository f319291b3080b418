package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"shopdesk-backend/internal/config"
	"shopdesk-backend/internal/db"
	"shopdesk-backend/internal/llm"
	"shopdesk-backend/internal/logging"
	"shopdesk-backend/internal/metrics"
	"shopdesk-backend/internal/prompts"
	"shopdesk-backend/internal/ratelimit"
	"shopdesk-backend/internal/store"
	"shopdesk-backend/internal/support"
	"shopdesk-backend/internal/types"
)

const (
	msgTooManyRequests = "Too many requests"
	msgChatFailed      = "Failed to process chat message"
	// streamErrorFragment terminates a stream that failed part-way.
	streamErrorFragment  = "Error"
	healthTimeout        = 2 * time.Second
	// defaultFragmentDelay paces streamed fragments when the config leaves it unset.
	defaultFragmentDelay = 30 * time.Millisecond
)

type Server struct {
	router        *chi.Mux
	cfg           config.Config
	log           logrus.FieldLogger
	limiter       *ratelimit.Limiter
	pipeline      *support.Pipeline
	database      *db.DB
	fragmentDelay time.Duration
}

// Deps are the collaborators a Server routes between.
type Deps struct {
	Config   config.Config
	Logger   logrus.FieldLogger
	Limiter  *ratelimit.Limiter
	Pipeline *support.Pipeline
	// Database is optional; it is only used for health reporting and shutdown.
	Database *db.DB
}

// NewServer wires the production collaborators from cfg.
func NewServer(cfg config.Config, log *logrus.Logger) (*Server, error) {
	pack, err := prompts.Load(cfg.PromptsFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load prompt pack")
	}
	policies, err := store.LoadPolicyStore(cfg.PoliciesFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load policies")
	}

	var recommender support.Recommender = store.NewMemoryCatalog()
	var database *db.DB
	if cfg.DatabaseURL != "" {
		database, err = db.New(cfg.DatabaseURL, log)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize database")
		}
		log.Info("database connection established")

		ctx := context.Background()
		if err := database.RunMigrations(ctx, cfg.MigrationsDir); err != nil {
			closeDatabase(database, log)
			return nil, errors.Wrap(err, "failed to run migrations")
		}
		catalog, err := store.NewDatabaseCatalog(ctx, database.DB)
		if err != nil {
			closeDatabase(database, log)
			return nil, err
		}
		if n, err := catalog.Count(ctx); err == nil {
			log.WithField("products", n).Info("using database catalog")
		}
		recommender = catalog
	} else {
		log.Info("DB_URL not provided, using in-memory catalog")
	}

	// A nil *llm.Client must not become a non-nil interface value.
	var gen support.Generator
	if c := llm.New(llm.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.Model,
		Style:   pack.Style,
	}); c != nil {
		gen = c
	}

	pipeline := support.NewPipeline(
		support.NewResolver(policies, recommender),
		support.NewTopicClassifier(gen, pack),
		gen,
		pack,
	)
	return New(Deps{
		Config:   cfg,
		Logger:   log,
		Limiter:  ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow, cfg.RateLimitCacheSize),
		Pipeline: pipeline,
		Database: database,
	}), nil
}

// closeDatabase releases a connection abandoned during startup.
func closeDatabase(database *db.DB, log logrus.FieldLogger) {
	if err := database.Close(); err != nil {
		log.WithError(err).Warn("failed to close database connection")
	}
}

// New builds a Server around already-constructed collaborators.
func New(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	limiter := d.Limiter
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.DefaultMax, ratelimit.DefaultWindow, ratelimit.DefaultCacheSize)
	}
	delay := d.Config.StreamFragmentDelay
	if delay <= 0 {
		delay = defaultFragmentDelay
	}
	allowed := d.Config.AllowedOrigin
	if allowed == "" {
		allowed = "*"
	}

	r := chi.NewRouter()
	r.Use(logging.Middleware(log))
	r.Use(metrics.Middleware)
	r.Use(recoverJSON)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{allowed},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With", "X-Forwarded-For"},
		MaxAge:         300,
	}))

	s := &Server{
		router:        r,
		cfg:           d.Config,
		log:           log,
		limiter:       limiter,
		pipeline:      d.Pipeline,
		database:      d.Database,
		fragmentDelay: delay,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/api/chat", s.handleChat)
	s.router.Post("/api/chat/stream", s.handleChatStream)
	s.router.Handle("/metrics", metrics.Handler())
}

func (s *Server) Router() http.Handler { return s.router }

// Close releases the database connection, if any.
func (s *Server) Close() error {
	if s.database != nil {
		return s.database.Close()
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if s.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		resp["database"] = "ok"
		if err := s.database.HealthCheck(ctx); err != nil {
			logging.FromContext(r.Context()).WithError(err).Warn("database health check failed")
			resp["database"] = "unavailable"
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.serveChat(w, r, isStreamRequest(r))
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	s.serveChat(w, r, true)
}

func (s *Server) serveChat(w http.ResponseWriter, r *http.Request, stream bool) {
	log := logging.FromContext(r.Context())

	caller := ratelimit.CallerID(r)
	if !s.limiter.Admit(caller) {
		metrics.RecordRateLimited()
		log.WithField("caller", caller).Info("chat request rate limited")
		s.writeError(w, http.StatusTooManyRequests, msgTooManyRequests)
		return
	}

	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.WithError(err).Error("failed to decode chat request")
		s.writeError(w, http.StatusInternalServerError, msgChatFailed)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		log.Error("chat request without message")
		s.writeError(w, http.StatusInternalServerError, msgChatFailed)
		return
	}

	if stream {
		s.streamReply(w, r, req)
		return
	}

	reply, err := s.pipeline.Reply(r.Context(), req.Message, req.Context)
	if err != nil {
		log.WithError(err).Error("chat pipeline failed")
		s.writeError(w, http.StatusInternalServerError, msgChatFailed)
		return
	}
	metrics.RecordReply(reply.Type)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(types.ChatResponse{Response: reply.Response, Type: reply.Type})
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg})
}

func isStreamRequest(r *http.Request) bool {
	v := strings.TrimSpace(r.URL.Query().Get("stream"))
	if v == "" {
		return false
	}
	on, err := strconv.ParseBool(v)
	return err == nil && on
}

// recoverJSON turns a panic anywhere in the chain into the generic failure response.
func recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.FromContext(r.Context()).WithField("panic", rec).Error("recovered from panic")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msgChatFailed})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

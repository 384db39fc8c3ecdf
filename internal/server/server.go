package server

import (
	"context"
	"net/http"
	"time"

	"github.com/25x8/bonus-approvals/internal/config"
	"github.com/25x8/bonus-approvals/internal/handlers"
	"github.com/25x8/bonus-approvals/internal/lock"
	"github.com/25x8/bonus-approvals/internal/middleware"
	"github.com/25x8/bonus-approvals/internal/repository"
	"github.com/25x8/bonus-approvals/internal/service"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	cfg        *config.Config
	log        *zap.Logger
	repo       repository.Repository
	redis      *redis.Client
	monitor    *service.BacklogMonitor
	handlers   *handlers.Handler
	httpServer *http.Server
}

func NewServer(cfg *config.Config, log *zap.Logger) *Server {
	return &Server{cfg: cfg, log: log}
}

// Init opens the store and the lock backend and builds the services.
func (s *Server) Init(ctx context.Context) error {
	if s.cfg.DatabaseURI != "" {
		pg := repository.NewPostgresRepository()
		if err := pg.InitDB(s.cfg.DatabaseURI); err != nil {
			return err
		}
		s.repo = pg
		s.log.Info("using postgres store")
	} else {
		s.repo = repository.NewMemoryRepository()
		s.log.Warn("DATABASE_URI not set, using in-memory store")
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if s.cfg.RedisAddr != "" {
		client, err := lock.NewRedisClient(ctx, s.cfg.RedisAddr, s.cfg.RedisPassword)
		if err != nil {
			return err
		}
		s.redis = client
		locker = lock.NewRedisLocker(client, s.cfg.LockTTL, s.log)
		s.log.Info("using redis claim locks", zap.String("addr", s.cfg.RedisAddr))
	}

	rules := service.BonusRules{
		TrainingBonusRate:   s.cfg.TrainingBonusRate,
		TrainingBonusPoints: s.cfg.TrainingBonusPoints,
	}
	approvals := service.NewApprovalService(s.repo, locker, rules, s.log)
	claims := service.NewClaimService(s.repo, s.log)
	users := service.NewUserService(s.repo, s.log)

	s.handlers = handlers.NewHandler(approvals, claims, users, s.cfg.JWTSecret, s.log)
	s.monitor = service.NewBacklogMonitor(s.repo, s.cfg.BacklogInterval, s.log)
	return nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	jwtConfig := &middleware.JWTConfig{
		SecretKey: s.cfg.JWTSecret,
		Repo:      s.repo,
	}
	handlers.RegisterRoutes(r, s.handlers, jwtConfig)

	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.cfg.UploadsDir))))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.RunAddress,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.monitor.Start()

	s.log.Info("listening", zap.String("addr", s.cfg.RunAddress))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
		s.monitor.Stop()
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			return err
		}
	}

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			return err
		}
	}

	return nil
}

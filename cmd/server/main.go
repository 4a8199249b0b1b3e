package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"clinic-records-api/internal/auth"
	"clinic-records-api/internal/clinic"
	"clinic-records-api/internal/config"
	gweb "clinic-records-api/internal/grpcweb"
	"clinic-records-api/internal/handler"
	"clinic-records-api/internal/middleware"
	"clinic-records-api/internal/rest"
	"clinic-records-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	// database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()
	st := store.New(pool)
	if err := st.Ping(ctx); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	log.Println("connected to postgres")

	// run migrations
	if script, err := os.ReadFile(cfg.MigrationsPath); err != nil {
		log.Printf("migration file not found, skipping: %v", err)
	} else if err := st.Migrate(ctx, string(script)); err != nil {
		log.Printf("migration warning: %v", err)
	} else {
		log.Println("migration applied")
	}

	scheme, err := auth.SchemeByName(cfg.CredentialScheme)
	if err != nil {
		log.Fatalf("credentials: %v", err)
	}
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	accounts := auth.NewService(st, tokens, scheme)
	h := handler.New(accounts, clinic.NewEngine(st), clinic.NewRecords(st))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(reg)

	limiter, stopLimiter := loginLimiter(ctx, cfg)
	defer stopLimiter()

	// grpc server
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			metrics.Unary(),
			middleware.RateLimit(limiter),
			middleware.Auth(tokens),
		),
	)
	handler.Register(srv, h)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	go func() {
		log.Printf("grpc on :%s", cfg.GRPCPort)
		if err := srv.Serve(lis); err != nil {
			log.Printf("grpc: %v", err)
		}
	}()

	// grpc-web bridge -> forwards browser requests to grpc on localhost
	bridge, err := gweb.New("localhost:"+cfg.GRPCPort, cfg.AllowedOrigins)
	if err != nil {
		log.Fatalf("bridge: %v", err)
	}
	defer bridge.Close()
	webSrv := &http.Server{
		Addr:              ":" + cfg.WebPort,
		Handler:           bridge.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go serve("grpc-web", webSrv)

	// json gateway
	gin.SetMode(gin.ReleaseMode)
	router := rest.NewRouter(h, tokens, st, rest.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		LoginLimiter:   limiter,
		Metrics:        metrics,
		Gatherer:       reg,
	})
	httpSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go serve("http", httpSrv)

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for _, s := range []*http.Server{httpSrv, webSrv} {
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown %s: %v", s.Addr, err)
		}
	}
	srv.GracefulStop()
}

func serve(name string, s *http.Server) {
	log.Printf("%s on %s", name, s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("%s: %v", name, err)
	}
}

// loginLimiter shares counters through redis when REDIS_URL is set and falls back to
// an in-process limiter otherwise.
func loginLimiter(ctx context.Context, cfg *config.Config) (middleware.Limiter, func()) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url: %v", err)
		}
		rdb := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Printf("redis unavailable, using in-memory limiter: %v", err)
			rdb.Close()
		} else {
			log.Println("login rate limit backed by redis")
			window := time.Duration(float64(time.Second) * float64(cfg.LoginBurst) / cfg.LoginRPS)
			return middleware.NewRedisLimiter(rdb, int64(cfg.LoginBurst), window), func() { rdb.Close() }
		}
	}
	rl := middleware.NewRateLimiter(cfg.LoginRPS, cfg.LoginBurst)
	return rl, rl.Stop
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/scimbridge/scimbridge/handlers"
	"github.com/scimbridge/scimbridge/internal/auth"
	"github.com/scimbridge/scimbridge/internal/config"
	"github.com/scimbridge/scimbridge/internal/connector"
	"github.com/scimbridge/scimbridge/internal/database"
	"github.com/scimbridge/scimbridge/internal/idcache"
	"github.com/scimbridge/scimbridge/internal/mapping"
	"github.com/scimbridge/scimbridge/internal/membership"
	"github.com/scimbridge/scimbridge/internal/store"
	"github.com/scimbridge/scimbridge/pkg/logger"
	"github.com/scimbridge/scimbridge/pkg/metrics"
	"github.com/scimbridge/scimbridge/pkg/middleware"
)

var startTime = time.Now()

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Infof("config loaded: mongo=%v redis=%v oidc=%v", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Auth.IssuerURL != "")

	ctx := context.Background()

	// attribute mapper (built-in rules unless a rules file is configured)
	mapper, err := mapping.Load(cfg.Mapping.RulesFile)
	if err != nil {
		logger.Fatalf("failed to load attribute mapping: %v", err)
	}

	// MongoDB is the backing document store; retry to tolerate startup races
	client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
	if err != nil {
		logger.Fatalf("could not connect to MongoDB: %v", err)
	}
	defer func() { _ = client.Disconnect(ctx) }()

	st := store.NewMongoStore(client.Database(cfg.MongoDB.Database))
	if err := st.EnsureIndexes(ctx); err != nil {
		logger.Fatalf("failed to ensure indexes: %v", err)
	}

	// optional Redis: userName lookup cache + shared rate-limit window
	var rdb *redis.Client
	var cache idcache.Cache = idcache.Noop{}
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s), lookup cache disabled: %v", addr, err)
			rdb = nil
		} else {
			cache = idcache.NewRedisCache(rdb, "", cfg.Redis.CacheTTL)
			logger.Infof("connected to Redis at %s", addr)
		}
	}

	engine := membership.NewEngine(st, mapper, cache)
	svc := connector.NewService(st, mapper, engine, cache)

	verifier := buildVerifier(ctx, cfg)
	if verifier == nil {
		logger.Fatalf("no token verifier available; check OIDC/JWT configuration")
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(corsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		deps := gin.H{"mongo": true, "redis": rdb != nil || cfg.Redis.Addr() == ""}
		if err := client.Ping(c.Request.Context(), nil); err != nil {
			deps["mongo"] = false
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": time.Since(startTime).String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	scimGroup := r.Group("/scim/v2")
	scimGroup.Use(middleware.AuthMiddleware(verifier))
	if cfg.RateLimit.RequestsPerSecond > 0 {
		if cfg.RateLimit.UseRedis && rdb != nil {
			scimGroup.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, time.Second))
		} else {
			scimGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
		}
	}
	handlers.RegisterSCIMRoutes(scimGroup, svc)
	handlers.RegisterDiscoveryRoutes(scimGroup)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting provisioning bridge on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}

// buildVerifier picks the strongest configured token verifier: OIDC discovery
// first, then the shared JWT secret, then (only when explicitly allowed) the
// signature-less development verifier.
func buildVerifier(ctx context.Context, cfg *config.Config) middleware.Verifier {
	if cfg.Auth.IssuerURL != "" {
		ver, err := auth.NewOIDCVerifier(ctx, cfg.Auth.IssuerURL, cfg.Auth.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			return ver
		}
	}
	if cfg.Auth.JWTSecret != "" {
		return auth.NewJWTVerifier(cfg.Auth.JWTSecret)
	}
	if cfg.Auth.AllowInsecure {
		logger.Warn("enabling insecure token verifier (development mode)")
		return auth.NewInsecureVerifier()
	}
	return nil
}

// corsMiddleware is intentionally permissive; production deployments should
// front this with a stricter policy.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

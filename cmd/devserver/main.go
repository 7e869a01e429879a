// The devserver implements the three backend interfaces the agent talks
// to — verification, record creation and media upload — so the capture
// flow can run end to end locally. It answers record creation with the
// legacy string success sentinel on purpose, to keep the client's
// dual-signal decoding honest.
package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"presence/internal/attendance"
	"presence/internal/auth"
	"presence/internal/config"
	"presence/internal/httpmiddleware"
	"presence/internal/store"
)

// legacySuccessSentinel mirrors the historical backend response.
const legacySuccessSentinel = "تمت العملية بنجاح"

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("devserver failed: %v", err)
	}
}

func run(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(context.Background()); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	repo := attendance.NewRepository(db.Client)
	svc := attendance.NewService(repo)

	uploadDir := "uploads"
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy})
	})

	// Dev convenience: trade a phone number for a session token.
	r.POST("/auth/login", func(c *gin.Context) {
		var req struct {
			Phone string `json:"phone" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		token, exp, err := auth.Issue(req.Phone, auth.ScopeSession, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"access_token": token, "expires_at": exp.Unix()})
	})

	sessionAuth := r.Group("/", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer, auth.ScopeSession))

	sessionAuth.GET("/verification", func(c *gin.Context) {
		action := c.Query("type")
		claims := mustClaims(c)

		allowed, msg, err := svc.Eligibility(c.Request.Context(), claims.Phone, action)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "eligibility check failed"})
			return
		}
		if !allowed {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": msg})
			return
		}

		nameFile := claims.Phone + "_" + strings.ToLower(action) + "_" + time.Now().UTC().Format("20060102T150405") + ".jpg"
		uploadToken, _, err := auth.Issue(claims.Phone, auth.ScopeUpload, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.UploadTokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "upload token issue failed"})
			return
		}
		if err := redisClient.SaveUploadGrant(c.Request.Context(), uploadToken, nameFile, cfg.UploadTokenTTL); err != nil {
			log.Printf("devserver: save upload grant: %v", err)
		}
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"message":  "",
			"token":    uploadToken,
			"nameFile": nameFile,
		})
	})

	sessionAuth.POST("/attendance", func(c *gin.Context) {
		var req struct {
			EmployeePhone string `json:"employeePhone"`
			Type          string `json:"type" binding:"required"`
			DateDay       string `json:"dateDay"`
			CapturedAtUtc string `json:"capturedAtUtc"`
			File          struct {
				Name     string `json:"name" binding:"required"`
				Location struct {
					Latitude  float64 `json:"latitude"`
					Longitude float64 `json:"longitude"`
				} `json:"location"`
			} `json:"file"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		}
		claims := mustClaims(c)
		phone := req.EmployeePhone
		if phone == "" {
			phone = claims.Phone
		}

		_, accepted, msg, err := svc.Create(c.Request.Context(), attendance.Record{
			EmployeePhone: phone,
			Type:          req.Type,
			DateDay:       req.DateDay,
			CapturedAtUtc: req.CapturedAtUtc,
			AssetName:     req.File.Name,
			Latitude:      req.File.Location.Latitude,
			Longitude:     req.File.Location.Longitude,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "record creation failed"})
			return
		}
		if !accepted {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": msg})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": legacySuccessSentinel, "message": "recorded"})
	})

	sessionAuth.GET("/attendance", func(c *gin.Context) {
		claims := mustClaims(c)
		records, err := repo.List(c.Request.Context(), claims.Phone, 50)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	// Media upload authenticated with the verification-issued token only.
	r.POST("/storage/v1/b/attendance/o",
		auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer, auth.ScopeUpload),
		func(c *gin.Context) {
			name := c.Query("name")
			if c.Query("uploadType") != "media" || name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "uploadType=media and name required"})
				return
			}
			token := strings.TrimSpace(c.GetHeader("Authorization"))
			if i := strings.IndexByte(token, ' '); i >= 0 {
				token = strings.TrimSpace(token[i+1:])
			}
			granted, err := redisClient.UploadGrant(c.Request.Context(), token)
			if err != nil {
				log.Printf("devserver: upload grant lookup: %v", err)
			}
			if granted != "" && granted != name {
				c.JSON(http.StatusForbidden, gin.H{"error": "token not valid for this object"})
				return
			}
			data, err := io.ReadAll(io.LimitReader(c.Request.Body, 10<<20))
			if err != nil || len(data) == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "empty body"})
				return
			}
			if err := os.WriteFile(filepath.Join(uploadDir, filepath.Base(name)), data, 0o644); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "write failed"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"name": name, "size": len(data)})
		})

	srv := &http.Server{
		Addr:         ":" + cfg.DevHTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("devserver listening on :%s", cfg.DevHTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down devserver...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	return nil
}

func mustClaims(c *gin.Context) auth.Claims {
	claimsAny, _ := c.Get("claims")
	claims, _ := claimsAny.(auth.Claims)
	return claims
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

package main

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nduongctu/face-reco-parents-preschool-child/internal/attendance"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/auth"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/config"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/embedding"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/enrollment"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/httpmiddleware"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/photostore"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/recognition"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/school"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Bootstrap(context.Background()); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	// The dlib models load once here; the warm-up extraction both pages the
	// weights in and fails fast when the model files are missing.
	extractor, err := embedding.NewDlibExtractor(cfg.FaceModelDir)
	if err != nil {
		return err
	}
	defer extractor.Close()
	if err := extractor.Warmup(); err != nil {
		return err
	}
	log.Println("face models loaded from", cfg.FaceModelDir)

	var photos photostore.Store
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		photos = photostore.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("photo storage: cloudinary", cfg.CloudinaryCloudName)
	} else {
		local, err := photostore.NewLocal(cfg.PhotoDir)
		if err != nil {
			return err
		}
		photos = local
		log.Println("photo storage: local dir", cfg.PhotoDir)
	}

	schoolRepo := school.NewRepository(db.Client)
	enrollRepo := enrollment.NewRepository(db.Client)
	enroll := enrollment.NewService(enrollRepo, extractor, photos)
	attRepo := attendance.NewRepository(db.Client)
	att := attendance.NewService(attRepo, attendance.RedisLocker{R: redisClient})
	recog := recognition.NewService(extractor, enroll, att)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(cfg.RateLimitPerMin, redisClient.Client).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/auth/login", func(c *gin.Context) {
		var req struct {
			Login    string `json:"taikhoan" binding:"required"`
			Password string `json:"matkhau" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		account, err := schoolRepo.GetAccountByLogin(c.Request.Context(), req.Login)
		if err != nil || !auth.VerifyPassword(req.Password, account.PasswordHash) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		token, exp, err := auth.Issue(account.Login, account.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"access_token": token,
			"token_type":   "bearer",
			"expires_at":   exp.Unix(),
			"quyen":        account.Role,
		})
	})

	authGroup := r.Group("/v1", auth.RequireToken(cfg.JWTSigningKey, cfg.JWTIssuer))

	school.NewHandler(schoolRepo).Register(authGroup)

	// Enrollment: one guardian photo in, base + mirrored records out.
	authGroup.POST("/guardians/:id/images", func(c *gin.Context) {
		guardianID, err := strconv.Atoi(c.Param("id"))
		if err != nil || guardianID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid guardian id"})
			return
		}

		data, ok := readImage(c)
		if !ok {
			return
		}

		result, err := enroll.Enroll(c.Request.Context(), guardianID, data)
		if err != nil {
			if errors.Is(err, embedding.ErrNoFace) || errors.Is(err, embedding.ErrBadImage) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, result)
	})

	authGroup.GET("/guardians/:id/images", func(c *gin.Context) {
		guardianID, err := strconv.Atoi(c.Param("id"))
		if err != nil || guardianID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid guardian id"})
			return
		}
		records, err := enroll.List(c.Request.Context(), guardianID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"images": records})
	})

	authGroup.DELETE("/guardian-images/:id", func(c *gin.Context) {
		imageID, err := strconv.Atoi(c.Param("id"))
		if err != nil || imageID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image id"})
			return
		}
		if err := enroll.Delete(c.Request.Context(), imageID); err != nil {
			if errors.Is(err, enrollment.ErrImageNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "image and mirrored sibling deleted"})
	})

	authGroup.POST("/attendance/checkin", func(c *gin.Context) {
		var req struct {
			StudentID int    `json:"id_hs" binding:"required"`
			ClassID   int    `json:"id_lh" binding:"required"`
			Date      string `json:"ngay"`
			At        string `json:"gio_vao"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		now := time.Now()
		if req.Date == "" {
			req.Date = now.Format("2006-01-02")
		}
		if req.At == "" {
			req.At = now.Format("15:04:05")
		}
		rec, msg, err := att.CheckIn(c.Request.Context(), req.StudentID, req.ClassID, req.Date, req.At)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msg, "data": rec})
	})

	// Pickup recognition: camera frame + candidate students + threshold.
	authGroup.POST("/recognize", func(c *gin.Context) {
		var req struct {
			Image      string  `json:"image" binding:"required"`
			StudentIDs []int   `json:"student_ids" binding:"required"`
			Threshold  float64 `json:"threshold"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		frame, err := decodeBase64Image(req.Image)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid base64 image"})
			return
		}
		threshold := req.Threshold
		if threshold <= 0 {
			threshold = cfg.MatchThreshold
		}

		result, err := recog.Recognize(c.Request.Context(), frame, req.StudentIDs, threshold)
		if err != nil {
			switch {
			case errors.Is(err, embedding.ErrNoFace), errors.Is(err, embedding.ErrBadImage):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, store.ErrLockHeld):
				c.JSON(http.StatusConflict, recognizeErrBody("pickup in progress, retry", result))
			default:
				c.JSON(http.StatusInternalServerError, recognizeErrBody(err.Error(), result))
			}
			return
		}
		c.JSON(http.StatusOK, result)
	})

	authGroup.GET("/attendance", func(c *gin.Context) {
		classID, err := strconv.Atoi(c.Query("class_id"))
		if err != nil || classID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "class_id required"})
			return
		}
		date := c.Query("date")
		if date == "" {
			date = time.Now().Format("2006-01-02")
		}
		details, err := att.Roster(c.Request.Context(), classID, date)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": details})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// readImage accepts either a multipart "photo" file or a JSON body with a
// base64 data field.
func readImage(c *gin.Context) ([]byte, bool) {
	if strings.Contains(c.ContentType(), "multipart/form-data") {
		file, _, err := c.Request.FormFile("photo")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "photo file required"})
			return nil, false
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read photo failed"})
			return nil, false
		}
		return data, true
	}

	var body struct {
		Data string `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide multipart photo or {\"data\": \"<base64>\"}"})
		return nil, false
	}
	data, err := decodeBase64Image(body.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid base64 image"})
		return nil, false
	}
	return data, true
}

// recognizeErrBody keeps any check-outs committed before a failure visible to
// the kiosk alongside the error.
func recognizeErrBody(msg string, result recognition.Result) gin.H {
	body := gin.H{"error": msg}
	if len(result.Students) > 0 {
		body["students"] = result.Students
	}
	return body
}

// decodeBase64Image accepts raw base64 or a full data URL.
func decodeBase64Image(s string) ([]byte, error) {
	if idx := strings.Index(s, ";base64,"); idx >= 0 {
		s = s[idx+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"

	"citadel-backend/internal/library/audit"
	"citadel-backend/internal/library/books"
	"citadel-backend/internal/library/lending"
	"citadel-backend/internal/platform/auth"
	"citadel-backend/internal/platform/db"
)

func main() {
	// 設定読み込み
	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	log.Printf("[INFO] mode:%s\n", cfg.Mode)
	if cfg.Mode != "dev" && cfg.Mode != "release" {
		log.Fatal("config mode must be dev or release")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("jwt_secret is required")
	}
	secret := []byte(cfg.JWTSecret)

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	rec := audit.NewRecorder(conn)
	authSvc := auth.NewService(conn, rec, secret)
	catalogSvc := books.NewService(conn, rec)
	lendingSvc := lending.NewService(conn, rec)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if cfg.Mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	// /api/v1
	api := r.Group("/api/v1")

	// 公開: ログイン・会員登録
	auth.RegisterRoutes(api, authSvc)

	// 認証必須: 検索・本人ダッシュボード
	authed := api.Group("", auth.RequireAuth(secret))
	books.RegisterSearchRoutes(authed, catalogSvc)
	lending.RegisterMemberRoutes(authed, lendingSvc)

	// 職員のみ: 蔵書追加・貸出・返却
	staff := authed.Group("", auth.RequireRole("Admin", "Librarian"))
	books.RegisterRoutes(staff, catalogSvc)
	lending.RegisterRoutes(staff, lendingSvc)

	// 管理者のみ: 保守オペレーション
	admin := authed.Group("", auth.RequireRole("Admin"))
	books.RegisterAdminRoutes(admin, catalogSvc)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	go func() {
		var err error
		if cfg.Certificate.Cert != "" && cfg.Certificate.Key != "" {
			certDir := "config/tls/release"
			if cfg.Mode == "dev" {
				certDir = "config/tls/dev"
			}
			log.Printf("[INFO] listening on https://%s", cfg.Addr)
			err = srv.ListenAndServeTLS(certDir+"/"+cfg.Certificate.Cert, certDir+"/"+cfg.Certificate.Key)
		} else {
			log.Printf("[INFO] listening on http://%s", cfg.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("[INFO] shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sudo-init-do/gigvault/internal/alerts"
	"github.com/sudo-init-do/gigvault/internal/auth"
	"github.com/sudo-init-do/gigvault/internal/db"
	"github.com/sudo-init-do/gigvault/internal/ledger"
	"github.com/sudo-init-do/gigvault/internal/ledgerpg"
	"github.com/sudo-init-do/gigvault/internal/marketplace"
	mware "github.com/sudo-init-do/gigvault/internal/middleware"
	"github.com/sudo-init-do/gigvault/internal/wallet"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	// Backend selection: the embedded ledger keeps everything in memory
	// (single-node, lost on restart); Postgres is the default.
	if os.Getenv("LEDGER_BACKEND") == "memory" {
		l := ledger.New()
		marketplace.Init(l)
		wallet.Init(l)
		log.Println("ledger backend: memory")
	} else {
		db.Init()
		store := ledgerpg.New(db.Conn)
		marketplace.Init(store)
		wallet.Init(store)
		log.Println("ledger backend: postgres")
	}

	alerts.Init()
	defer alerts.Close()

	e := echo.New()

	// Basic middleware
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	// Health and root routes
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "gigvault"})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if os.Getenv("LEDGER_BACKEND") == "memory" {
			return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
		}
		if db.Conn == nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db not initialized"})
		}
		if err := db.Conn.Ping(context.Background()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	// Public routes
	// Auth routes with per-IP rate limiting to protect signup/login from abuse
	authGroup := e.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	authGroup.POST("/signup", auth.Signup)
	authGroup.POST("/login", auth.Login)

	e.GET("/marketplace/services", marketplace.GetAllServices)
	e.GET("/marketplace/services/count", marketplace.GetServiceCount)
	e.GET("/marketplace/services/:id", marketplace.GetService)
	e.GET("/marketplace/services/:id/escrow", marketplace.GetEscrowedFunds)
	e.GET("/freelancers/:id/rating", marketplace.GetFreelancerRating)

	// Protected routes
	api := e.Group("")
	api.Use(mware.JWTMiddleware)

	api.GET("/auth/me", auth.Me)

	api.GET("/wallet/balance", wallet.GetBalance)
	api.POST("/wallet/topup", wallet.Topup)
	api.GET("/wallet/transactions", wallet.GetUserTransactions)

	api.POST("/marketplace/services", marketplace.OfferService, mware.RequireRoles("freelancer"))
	api.POST("/marketplace/services/:id/hire", marketplace.HireFreelancer, mware.RequireRoles("client"))
	api.POST("/marketplace/services/:id/release", marketplace.ReleasePayment, mware.RequireRoles("client"))
	api.POST("/marketplace/services/:id/refund", marketplace.RefundClient, mware.RequireRoles("client"))
	api.POST("/marketplace/services/:id/rate", marketplace.RateService, mware.RequireRoles("client"))

	// Admin routes
	admin := e.Group("/admin")
	admin.Use(mware.JWTMiddleware)
	admin.Use(mware.AdminGuard)

	admin.GET("/transactions", wallet.AdminGetAllTransactions)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := e.Start(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

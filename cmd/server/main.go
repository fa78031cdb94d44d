package main

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/openlancer/openlancer/internal/auth"
	"github.com/openlancer/openlancer/internal/config"
	"github.com/openlancer/openlancer/internal/contract"
	"github.com/openlancer/openlancer/internal/engagement"
	"github.com/openlancer/openlancer/internal/escrow"
	"github.com/openlancer/openlancer/internal/httpapi"
	"github.com/openlancer/openlancer/internal/notify"
	"github.com/openlancer/openlancer/internal/review"
	"github.com/openlancer/openlancer/internal/storage/postgres"
	"github.com/openlancer/openlancer/internal/wallet"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	store, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer store.Close()

	notifier := notify.NewQueue(nil)
	defer notifier.Close()

	authSvc := auth.New(store, cfg.JWTSecret)
	engagementSvc := engagement.New(store, cfg.PlatformFeePercent, cfg.DefaultCurrency, notifier)
	contractSvc := contract.New(store, notifier)
	escrowSvc := escrow.New(store, cfg.PlatformFeePercent, notifier)
	walletSvc := wallet.New(store, cfg.MinWithdrawal, cfg.DefaultCurrency, notifier)
	reviewSvc := review.New(store, notifier)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	e.GET("/ready", func(c echo.Context) error {
		if err := store.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	srv := httpapi.NewServer(authSvc, engagementSvc, contractSvc, escrowSvc, walletSvc, reviewSvc)
	srv.Register(e)

	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

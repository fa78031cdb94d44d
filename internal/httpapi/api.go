// Package httpapi is the thin HTTP surface over the core services: it binds
// and validates payloads, resolves the actor and maps service errors to
// status codes. No business rules live here.
package httpapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/openlancer/openlancer/internal/apperr"
	"github.com/openlancer/openlancer/internal/auth"
	"github.com/openlancer/openlancer/internal/contract"
	"github.com/openlancer/openlancer/internal/engagement"
	"github.com/openlancer/openlancer/internal/escrow"
	"github.com/openlancer/openlancer/internal/middleware"
	"github.com/openlancer/openlancer/internal/model"
	"github.com/openlancer/openlancer/internal/review"
	"github.com/openlancer/openlancer/internal/wallet"
)

type Server struct {
	Auth       *auth.Service
	Engagement *engagement.Service
	Contracts  *contract.Service
	Escrow     *escrow.Service
	Wallet     *wallet.Service
	Reviews    *review.Service

	validate *validator.Validate
}

func NewServer(a *auth.Service, e *engagement.Service, c *contract.Service, es *escrow.Service, w *wallet.Service, r *review.Service) *Server {
	return &Server{
		Auth:       a,
		Engagement: e,
		Contracts:  c,
		Escrow:     es,
		Wallet:     w,
		Reviews:    r,
		validate:   validator.New(),
	}
}

// Register wires every route onto the echo instance.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	authGroup := e.Group("/auth")
	authGroup.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(20)))
	authGroup.POST("/signup", s.handleSignup)
	authGroup.POST("/login", s.handleLogin)

	e.GET("/jobs", s.handleListJobs)
	e.GET("/jobs/:id", s.handleGetJob)
	e.GET("/users/:id/reviews", s.handleListUserReviews)

	api := e.Group("")
	api.Use(middleware.JWT(s.Auth))

	api.GET("/auth/me", s.handleMe)

	api.POST("/jobs", s.handlePostJob, middleware.RequireRoles(model.RoleBuyer, model.RoleAdmin))
	api.GET("/jobs/:id/bids", s.handleListJobBids)
	api.POST("/jobs/:id/bids", s.handleSubmitBid, middleware.RequireRoles(model.RoleFreelancer))
	api.GET("/bids/me", s.handleListMyBids, middleware.RequireRoles(model.RoleFreelancer))
	api.POST("/bids/:id/withdraw", s.handleWithdrawBid)
	api.POST("/bids/:id/accept", s.handleAcceptBid)

	api.GET("/contracts", s.handleListContracts)
	api.GET("/contracts/:id", s.handleGetContract)
	api.GET("/contracts/:id/milestones", s.handleListMilestones)
	api.POST("/contracts/:id/milestones", s.handleCreateMilestones)
	api.PUT("/milestones/:id", s.handleUpdateMilestone)
	api.PUT("/contracts/:id/complete", s.handleCompleteContract)

	api.POST("/payments", s.handleCreateEscrow)
	api.POST("/payments/:id/release", s.handleReleaseEscrow)
	api.POST("/reviews", s.handleCreateReview)

	api.GET("/wallet/balance", s.handleBalance)
	api.GET("/wallet/transactions", s.handleListTransactions)
	api.POST("/wallet/withdraw", s.handleRequestWithdrawal)

	admin := e.Group("/admin")
	admin.Use(middleware.JWT(s.Auth))
	admin.Use(middleware.AdminGuard)
	admin.POST("/payments/:id/process", s.handleProcessPayment)
	admin.POST("/withdrawals/:id/settle", s.handleSettleWithdrawal)
	admin.POST("/contracts/:id/cancel", s.handleCancelContract)
}

// fail maps the service error taxonomy onto HTTP status codes.
func fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindInvalidState, apperr.KindValidation:
		status = http.StatusBadRequest
	}
	return c.JSON(status, echo.Map{"success": false, "error": apperr.MessageOf(err)})
}

func ok(c echo.Context, status int, data any) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

func actorOrFail(c echo.Context) (model.Actor, error) {
	actor, found := middleware.Actor(c)
	if !found {
		return model.Actor{}, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return actor, nil
}

// bind decodes and validates a request payload.
func (s *Server) bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return nil
}

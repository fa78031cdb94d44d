package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/openlancer/openlancer/internal/engagement"
	"github.com/openlancer/openlancer/internal/model"
	"github.com/openlancer/openlancer/internal/storage"
)

type signupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=buyer freelancer"`
}

func (s *Server) handleSignup(c echo.Context) error {
	var req signupRequest
	if err := s.bind(c, &req); err != nil {
		return fail(c, err)
	}
	token, err := s.Auth.Signup(c.Request().Context(), req.Name, req.Email, req.Password, model.Role(req.Role))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, echo.Map{"token": token})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := s.bind(c, &req); err != nil {
		return fail(c, err)
	}
	token, err := s.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"token": token})
}

func (s *Server) handleMe(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	user, uerr := s.Auth.GetUser(c.Request().Context(), actor.ID)
	if uerr != nil {
		return fail(c, uerr)
	}
	return ok(c, http.StatusOK, user)
}

type postJobRequest struct {
	Category    string          `json:"category"`
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Budget      decimal.Decimal `json:"budget" validate:"required"`
	Currency    string          `json:"currency"`
	BudgetType  string          `json:"budget_type" validate:"required,oneof=fixed hourly"`
}

func (s *Server) handlePostJob(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	var req postJobRequest
	if err := s.bind(c, &req); err != nil {
		return fail(c, err)
	}
	job, jerr := s.Engagement.PostJob(c.Request().Context(), actor, engagement.PostJobInput{
		Category:    req.Category,
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
		Currency:    req.Currency,
		BudgetType:  model.BudgetType(req.BudgetType),
	})
	if jerr != nil {
		return fail(c, jerr)
	}
	return ok(c, http.StatusCreated, job)
}

func (s *Server) handleListJobs(c echo.Context) error {
	f := storage.JobFilter{
		Status:   model.JobStatus(c.QueryParam("status")),
		Category: c.QueryParam("category"),
		Limit:    intParam(c, "limit", 20),
		Offset:   intParam(c, "offset", 0),
	}
	jobs, err := s.Engagement.ListJobs(c.Request().Context(), f)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(c echo.Context) error {
	job, err := s.Engagement.GetJob(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, job)
}

type submitBidRequest struct {
	Amount       decimal.Decimal `json:"amount" validate:"required"`
	Currency     string          `json:"currency"`
	DeliveryDays int             `json:"delivery_days" validate:"required,min=1"`
	Proposal     string          `json:"proposal" validate:"required"`
}

func (s *Server) handleSubmitBid(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	var req submitBidRequest
	if err := s.bind(c, &req); err != nil {
		return fail(c, err)
	}
	bid, berr := s.Engagement.SubmitBid(c.Request().Context(), actor, c.Param("id"), engagement.SubmitBidInput{
		Amount:       req.Amount,
		Currency:     req.Currency,
		DeliveryDays: req.DeliveryDays,
		Proposal:     req.Proposal,
	})
	if berr != nil {
		return fail(c, berr)
	}
	return ok(c, http.StatusCreated, bid)
}

func (s *Server) handleListJobBids(c echo.Context) error {
	bids, err := s.Engagement.ListJobBids(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, bids)
}

func (s *Server) handleListMyBids(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	bids, berr := s.Engagement.ListMyBids(c.Request().Context(), actor)
	if berr != nil {
		return fail(c, berr)
	}
	return ok(c, http.StatusOK, bids)
}

func (s *Server) handleWithdrawBid(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	if werr := s.Engagement.WithdrawBid(c.Request().Context(), actor, c.Param("id")); werr != nil {
		return fail(c, werr)
	}
	return ok(c, http.StatusOK, echo.Map{"message": "bid withdrawn"})
}

func (s *Server) handleAcceptBid(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	bid, contract, aerr := s.Engagement.AcceptBid(c.Request().Context(), actor, c.Param("id"))
	if aerr != nil {
		return fail(c, aerr)
	}
	return ok(c, http.StatusOK, echo.Map{"bid": bid, "contract": contract})
}

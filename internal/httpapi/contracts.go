package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/openlancer/openlancer/internal/contract"
	"github.com/openlancer/openlancer/internal/model"
)

func (s *Server) handleListContracts(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	out, lerr := s.Contracts.ListForUser(c.Request().Context(), actor, model.ContractStatus(c.QueryParam("status")))
	if lerr != nil {
		return fail(c, lerr)
	}
	return ok(c, http.StatusOK, out)
}

func (s *Server) handleGetContract(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	out, gerr := s.Contracts.Get(c.Request().Context(), actor, c.Param("id"))
	if gerr != nil {
		return fail(c, gerr)
	}
	return ok(c, http.StatusOK, out)
}

type milestoneRequest struct {
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	DueDate     time.Time       `json:"due_date" validate:"required"`
}

type createMilestonesRequest struct {
	Milestones []milestoneRequest `json:"milestones" validate:"required,min=1,dive"`
}

func (s *Server) handleCreateMilestones(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	var req createMilestonesRequest
	if err := s.bind(c, &req); err != nil {
		return fail(c, err)
	}
	inputs := make([]contract.MilestoneInput, 0, len(req.Milestones))
	for _, m := range req.Milestones {
		inputs = append(inputs, contract.MilestoneInput{
			Title:       m.Title,
			Description: m.Description,
			Amount:      m.Amount,
			DueDate:     m.DueDate,
		})
	}
	created, cerr := s.Contracts.CreateMilestones(c.Request().Context(), actor, c.Param("id"), inputs)
	if cerr != nil {
		return fail(c, cerr)
	}
	return ok(c, http.StatusCreated, created)
}

func (s *Server) handleListMilestones(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	out, lerr := s.Contracts.ListMilestones(c.Request().Context(), actor, c.Param("id"))
	if lerr != nil {
		return fail(c, lerr)
	}
	return ok(c, http.StatusOK, out)
}

type updateMilestoneRequest struct {
	Status string `json:"status" validate:"required,oneof=in_progress completed approved rejected"`
}

func (s *Server) handleUpdateMilestone(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	var req updateMilestoneRequest
	if err := s.bind(c, &req); err != nil {
		return fail(c, err)
	}
	m, uerr := s.Contracts.UpdateMilestoneStatus(c.Request().Context(), actor, c.Param("id"), model.MilestoneStatus(req.Status))
	if uerr != nil {
		return fail(c, uerr)
	}
	return ok(c, http.StatusOK, m)
}

func (s *Server) handleCompleteContract(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	out, cerr := s.Contracts.CompleteContract(c.Request().Context(), actor, c.Param("id"))
	if cerr != nil {
		return fail(c, cerr)
	}
	return ok(c, http.StatusOK, out)
}

func (s *Server) handleCancelContract(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	out, cerr := s.Contracts.CancelContract(c.Request().Context(), actor, c.Param("id"))
	if cerr != nil {
		return fail(c, cerr)
	}
	return ok(c, http.StatusOK, out)
}

func intParam(c echo.Context, name string, fallback int) int {
	if raw := c.QueryParam(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

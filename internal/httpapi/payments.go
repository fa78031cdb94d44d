package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/openlancer/openlancer/internal/escrow"
	"github.com/openlancer/openlancer/internal/model"
	"github.com/openlancer/openlancer/internal/review"
	"github.com/openlancer/openlancer/internal/storage"
	"github.com/openlancer/openlancer/internal/wallet"
)

type createEscrowRequest struct {
	ContractID string          `json:"contract_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	Method     string          `json:"method"`
	Gateway    string          `json:"gateway"`
}

func (s *Server) handleCreateEscrow(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	var req createEscrowRequest
	if err := s.bind(c, &req); err != nil {
		return fail(c, err)
	}
	payment, perr := s.Escrow.CreateEscrow(c.Request().Context(), actor, escrow.CreateEscrowInput{
		ContractID: req.ContractID,
		Amount:     req.Amount,
		Method:     req.Method,
		Gateway:    req.Gateway,
	})
	if perr != nil {
		return fail(c, perr)
	}
	return ok(c, http.StatusCreated, payment)
}

type processPaymentRequest struct {
	TransactionID string `json:"transaction_id"`
}

func (s *Server) handleProcessPayment(c echo.Context) error {
	var req processPaymentRequest
	if err := s.bind(c, &req); err != nil {
		return fail(c, err)
	}
	payment, perr := s.Escrow.ProcessPayment(c.Request().Context(), c.Param("id"), req.TransactionID)
	if perr != nil {
		return fail(c, perr)
	}
	return ok(c, http.StatusOK, payment)
}

func (s *Server) handleReleaseEscrow(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	if rerr := s.Escrow.ReleaseEscrow(c.Request().Context(), actor, c.Param("id")); rerr != nil {
		return fail(c, rerr)
	}
	return ok(c, http.StatusOK, echo.Map{"message": "payment released successfully"})
}

func (s *Server) handleBalance(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	currency := c.QueryParam("currency")
	balance, berr := s.Wallet.Balance(c.Request().Context(), actor.ID, currency)
	if berr != nil {
		return fail(c, berr)
	}
	available, aerr := s.Wallet.AvailableBalance(c.Request().Context(), actor.ID, currency)
	if aerr != nil {
		return fail(c, aerr)
	}
	return ok(c, http.StatusOK, echo.Map{
		"balance":   balance,
		"available": available,
	})
}

func (s *Server) handleListTransactions(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	out, lerr := s.Wallet.ListTransactions(c.Request().Context(), actor, storage.TxnFilter{
		Type:   model.TxnType(c.QueryParam("type")),
		Limit:  intParam(c, "limit", 20),
		Offset: intParam(c, "offset", 0),
	})
	if lerr != nil {
		return fail(c, lerr)
	}
	return ok(c, http.StatusOK, out)
}

type withdrawalRequest struct {
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	Currency       string          `json:"currency"`
	Method         string          `json:"method" validate:"required"`
	AccountDetails map[string]any  `json:"account_details"`
}

func (s *Server) handleRequestWithdrawal(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	var req withdrawalRequest
	if err := s.bind(c, &req); err != nil {
		return fail(c, err)
	}
	payment, werr := s.Wallet.RequestWithdrawal(c.Request().Context(), actor, wallet.WithdrawalInput{
		Amount:         req.Amount,
		Currency:       req.Currency,
		Method:         req.Method,
		AccountDetails: req.AccountDetails,
	})
	if werr != nil {
		return fail(c, werr)
	}
	return ok(c, http.StatusCreated, payment)
}

type settleWithdrawalRequest struct {
	Reference string `json:"reference" validate:"required"`
}

func (s *Server) handleSettleWithdrawal(c echo.Context) error {
	var req settleWithdrawalRequest
	if err := s.bind(c, &req); err != nil {
		return fail(c, err)
	}
	if serr := s.Wallet.SettleWithdrawal(c.Request().Context(), c.Param("id"), req.Reference); serr != nil {
		return fail(c, serr)
	}
	return ok(c, http.StatusOK, echo.Map{"message": "withdrawal settled"})
}

type createReviewRequest struct {
	ContractID string         `json:"contract_id" validate:"required"`
	Rating     int            `json:"rating" validate:"required,min=1,max=5"`
	Comment    string         `json:"comment" validate:"max=1000"`
	Categories map[string]int `json:"categories"`
}

func (s *Server) handleCreateReview(c echo.Context) error {
	actor, err := actorOrFail(c)
	if err != nil {
		return err
	}
	var req createReviewRequest
	if err := s.bind(c, &req); err != nil {
		return fail(c, err)
	}
	rv, rerr := s.Reviews.Create(c.Request().Context(), actor, review.CreateInput{
		ContractID: req.ContractID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		Categories: req.Categories,
	})
	if rerr != nil {
		return fail(c, rerr)
	}
	return ok(c, http.StatusCreated, rv)
}

func (s *Server) handleListUserReviews(c echo.Context) error {
	out, err := s.Reviews.ListForUser(c.Request().Context(), c.Param("id"),
		intParam(c, "limit", 10), intParam(c, "offset", 0))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, out)
}

// Package wallet derives user balances from the transaction ledger and
// handles withdrawal requests and their settlement.
package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openlancer/openlancer/internal/apperr"
	"github.com/openlancer/openlancer/internal/model"
	"github.com/openlancer/openlancer/internal/notify"
	"github.com/openlancer/openlancer/internal/storage"
)

type Service struct {
	store           storage.Store
	minWithdrawal   decimal.Decimal
	defaultCurrency string
	notifier        *notify.Queue
}

func New(store storage.Store, minWithdrawal decimal.Decimal, defaultCurrency string, notifier *notify.Queue) *Service {
	return &Service{
		store:           store,
		minWithdrawal:   minWithdrawal,
		defaultCurrency: defaultCurrency,
		notifier:        notifier,
	}
}

func (s *Service) enqueue(e notify.Event) {
	if s.notifier != nil {
		s.notifier.Enqueue(e)
	}
}

// Balance is the settled ledger position: completed credits minus completed
// debits, scoped to a currency.
func (s *Service) Balance(ctx context.Context, userID, currency string) (decimal.Decimal, error) {
	if currency == "" {
		currency = s.defaultCurrency
	}
	return s.balance(ctx, s.store, userID, currency)
}

func (s *Service) balance(ctx context.Context, store storage.Store, userID, currency string) (decimal.Decimal, error) {
	credits, err := store.Transactions().Sum(ctx, userID, currency, model.TxnCredit, model.TxnCompleted)
	if err != nil {
		return decimal.Zero, apperr.Wrap(err, "failed to sum credits")
	}
	debits, err := store.Transactions().Sum(ctx, userID, currency, model.TxnDebit, model.TxnCompleted)
	if err != nil {
		return decimal.Zero, apperr.Wrap(err, "failed to sum debits")
	}
	return credits.Sub(debits), nil
}

// AvailableBalance additionally subtracts pending debits so a withdrawal
// that is requested but not yet settled cannot be spent twice.
func (s *Service) AvailableBalance(ctx context.Context, userID, currency string) (decimal.Decimal, error) {
	if currency == "" {
		currency = s.defaultCurrency
	}
	return s.availableBalance(ctx, s.store, userID, currency)
}

func (s *Service) availableBalance(ctx context.Context, store storage.Store, userID, currency string) (decimal.Decimal, error) {
	settled, err := s.balance(ctx, store, userID, currency)
	if err != nil {
		return decimal.Zero, err
	}
	pending, err := store.Transactions().Sum(ctx, userID, currency, model.TxnDebit, model.TxnPending)
	if err != nil {
		return decimal.Zero, apperr.Wrap(err, "failed to sum pending debits")
	}
	return settled.Sub(pending), nil
}

// WithdrawalInput describes a withdrawal request.
type WithdrawalInput struct {
	Amount         decimal.Decimal
	Currency       string
	Method         string
	AccountDetails map[string]any
}

// RequestWithdrawal checks the minimum and the available balance inside the
// transaction that records the pending debit, so two concurrent requests
// cannot both spend the same funds. The debit stays pending until an
// external settlement step completes it.
func (s *Service) RequestWithdrawal(ctx context.Context, actor model.Actor, in WithdrawalInput) (*model.Payment, error) {
	if in.Currency == "" {
		in.Currency = s.defaultCurrency
	}
	if in.Amount.LessThan(s.minWithdrawal) {
		return nil, apperr.InvalidState("minimum withdrawal amount is %s %s", s.minWithdrawal.String(), in.Currency)
	}
	if in.Method == "" {
		return nil, apperr.Validation("withdrawal method is required")
	}

	var payment *model.Payment
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		// Lock the requester's profile row before summing the ledger:
		// concurrent requests for the same user queue here, so the balance
		// check and the pending debit are one serialized unit.
		if _, err := tx.Profiles().Get(ctx, actor.ID); err != nil {
			return apperr.Wrap(err, "failed to lock wallet owner")
		}
		available, err := s.availableBalance(ctx, tx, actor.ID, in.Currency)
		if err != nil {
			return err
		}
		if available.LessThan(in.Amount) {
			return apperr.InvalidState("insufficient balance")
		}

		now := time.Now()
		payment = &model.Payment{
			ID:          uuid.New().String(),
			PayerID:     actor.ID,
			ReceiverID:  actor.ID,
			Amount:      in.Amount,
			Currency:    in.Currency,
			PlatformFee: decimal.Zero,
			Method:      in.Method,
			Status:      model.PaymentPending,
			PaymentType: model.PaymentWithdrawal,
			Metadata:    map[string]any{"accountDetails": in.AccountDetails},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Payments().Create(ctx, payment); err != nil {
			return apperr.Wrap(err, "failed to create withdrawal payment")
		}

		debit := &model.Transaction{
			ID:          uuid.New().String(),
			UserID:      actor.ID,
			PaymentID:   payment.ID,
			Type:        model.TxnDebit,
			Amount:      in.Amount,
			Currency:    in.Currency,
			Balance:     available.Sub(in.Amount),
			Description: "withdrawal request",
			Status:      model.TxnPending,
			CreatedAt:   now,
		}
		if err := tx.Transactions().Create(ctx, debit); err != nil {
			return apperr.Wrap(err, "failed to record withdrawal debit")
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "withdrawal request failed")
	}
	return payment, nil
}

// SettleWithdrawal marks a withdrawal as paid out: the payment completes
// with the settlement reference and the pending debit becomes part of the
// settled ledger.
func (s *Service) SettleWithdrawal(ctx context.Context, paymentID, reference string) error {
	var userID string
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		payment, err := tx.Payments().Get(ctx, paymentID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("withdrawal not found")
		}
		if err != nil {
			return apperr.Wrap(err, "failed to fetch withdrawal")
		}
		if payment.PaymentType != model.PaymentWithdrawal {
			return apperr.InvalidState("payment is not a withdrawal")
		}
		if payment.Status == model.PaymentCompleted {
			return nil
		}
		if payment.Status != model.PaymentPending {
			return apperr.InvalidState("withdrawal is %s", payment.Status)
		}
		userID = payment.PayerID

		payment.Status = model.PaymentCompleted
		payment.TransactionID = reference
		if err := tx.Payments().Update(ctx, payment); err != nil {
			return apperr.Wrap(err, "failed to update withdrawal")
		}

		debit, err := tx.Transactions().GetByPayment(ctx, payment.ID, model.TxnDebit)
		if err != nil {
			return apperr.Wrap(err, "failed to fetch withdrawal debit")
		}
		debit.Status = model.TxnCompleted
		if err := tx.Transactions().Update(ctx, debit); err != nil {
			return apperr.Wrap(err, "failed to complete withdrawal debit")
		}
		return nil
	})
	if err != nil {
		return apperr.Wrap(err, "withdrawal settlement failed")
	}

	if userID != "" {
		s.enqueue(notify.Event{
			Kind:      notify.KindWithdrawalSettled,
			UserID:    userID,
			Reference: paymentID,
			Message:   "your withdrawal was settled",
		})
	}
	return nil
}

func (s *Service) ListTransactions(ctx context.Context, actor model.Actor, f storage.TxnFilter) ([]*model.Transaction, error) {
	out, err := s.store.Transactions().ListByUser(ctx, actor.ID, f)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list transactions")
	}
	return out, nil
}

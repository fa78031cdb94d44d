// Package escrow moves money: funding a contract's escrow, settling a
// payment into the double-entry ledger and gating the final release.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openlancer/openlancer/internal/apperr"
	"github.com/openlancer/openlancer/internal/model"
	"github.com/openlancer/openlancer/internal/notify"
	"github.com/openlancer/openlancer/internal/policy"
	"github.com/openlancer/openlancer/internal/storage"
)

type Service struct {
	store      storage.Store
	feePercent decimal.Decimal
	notifier   *notify.Queue
}

func New(store storage.Store, feePercent decimal.Decimal, notifier *notify.Queue) *Service {
	return &Service{store: store, feePercent: feePercent, notifier: notifier}
}

func (s *Service) enqueue(e notify.Event) {
	if s.notifier != nil {
		s.notifier.Enqueue(e)
	}
}

// CreateEscrowInput describes an escrow funding request.
type CreateEscrowInput struct {
	ContractID string
	Amount     decimal.Decimal
	Method     string
	Gateway    string
}

// CreateEscrow records a pending escrow payment and adds the amount to the
// contract's held total. Funding may arrive in several installments; the
// escrow amount only grows until a refund.
func (s *Service) CreateEscrow(ctx context.Context, actor model.Actor, in CreateEscrowInput) (*model.Payment, error) {
	if !in.Amount.IsPositive() {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	if in.Method == "" {
		in.Method = "wallet"
	}

	var payment *model.Payment
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		contract, err := tx.Contracts().Get(ctx, in.ContractID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("contract not found")
		}
		if err != nil {
			return apperr.Wrap(err, "failed to fetch contract")
		}
		if !policy.CanFundEscrow(actor, contract) {
			return apperr.Forbidden("not authorized to fund this contract")
		}
		if contract.Status.Terminal() {
			return apperr.InvalidState("contract is %s", contract.Status)
		}

		fee, _ := model.FeeSplit(in.Amount, s.feePercent)
		now := time.Now()
		payment = &model.Payment{
			ID:          uuid.New().String(),
			ContractID:  contract.ID,
			PayerID:     contract.BuyerID,
			ReceiverID:  contract.FreelancerID,
			Amount:      in.Amount,
			Currency:    contract.Currency,
			PlatformFee: fee,
			Method:      in.Method,
			Gateway:     in.Gateway,
			Status:      model.PaymentPending,
			PaymentType: model.PaymentEscrow,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Payments().Create(ctx, payment); err != nil {
			return apperr.Wrap(err, "failed to create payment")
		}

		contract.EscrowAmount = contract.EscrowAmount.Add(in.Amount)
		contract.PaymentStatus = model.PayEscrowed
		if contract.Status == model.ContractPending {
			contract.Status = model.ContractActive
		}
		if err := tx.Contracts().Update(ctx, contract); err != nil {
			return apperr.Wrap(err, "failed to update contract")
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "escrow creation failed")
	}
	return payment, nil
}

// ProcessPayment settles a payment: the payment goes to completed with a
// transaction id, a debit is posted against the payer for the full amount, a
// credit is posted to the receiver for the freelancer share, and the
// receiver's profile earnings grow by the same share. The four writes are
// one atomic group; a payment that is already completed is returned as-is
// and no completion notification is sent again.
func (s *Service) ProcessPayment(ctx context.Context, paymentID, externalTxnID string) (*model.Payment, error) {
	var payment *model.Payment
	settled := false
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		payment, err = tx.Payments().Get(ctx, paymentID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("payment not found")
		}
		if err != nil {
			return apperr.Wrap(err, "failed to fetch payment")
		}
		if payment.Status == model.PaymentCompleted {
			return nil
		}
		settled = true

		payment.Status = model.PaymentCompleted
		payment.TransactionID = externalTxnID
		if payment.TransactionID == "" {
			payment.TransactionID = fmt.Sprintf("TXN-%d", time.Now().UnixMilli())
		}
		if err := tx.Payments().Update(ctx, payment); err != nil {
			return apperr.Wrap(err, "failed to update payment")
		}

		receiverAmount := payment.Amount.Sub(payment.PlatformFee)
		now := time.Now()
		debit := &model.Transaction{
			ID:          uuid.New().String(),
			UserID:      payment.PayerID,
			PaymentID:   payment.ID,
			Type:        model.TxnDebit,
			Amount:      payment.Amount,
			Currency:    payment.Currency,
			Balance:     decimal.Zero,
			Description: "payment for contract " + payment.ContractID,
			Status:      model.TxnCompleted,
			CreatedAt:   now,
		}
		if err := tx.Transactions().Create(ctx, debit); err != nil {
			return apperr.Wrap(err, "failed to record debit")
		}

		credit := &model.Transaction{
			ID:          uuid.New().String(),
			UserID:      payment.ReceiverID,
			PaymentID:   payment.ID,
			Type:        model.TxnCredit,
			Amount:      receiverAmount,
			Currency:    payment.Currency,
			Balance:     decimal.Zero,
			Description: "payment received for contract " + payment.ContractID,
			Status:      model.TxnCompleted,
			CreatedAt:   now,
		}
		if err := tx.Transactions().Create(ctx, credit); err != nil {
			return apperr.Wrap(err, "failed to record credit")
		}

		profile, err := tx.Profiles().Get(ctx, payment.ReceiverID)
		if err != nil {
			return apperr.Wrap(err, "failed to fetch receiver profile")
		}
		profile.TotalEarnings = profile.TotalEarnings.Add(receiverAmount)
		if err := tx.Profiles().Update(ctx, profile); err != nil {
			return apperr.Wrap(err, "failed to update receiver earnings")
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "payment processing failed")
	}

	// A replay of an already-completed payment must not notify again.
	if settled {
		s.enqueue(notify.Event{
			Kind:      notify.KindPaymentCompleted,
			UserID:    payment.ReceiverID,
			Reference: payment.ID,
			Message:   "a payment to you was completed",
		})
	}
	return payment, nil
}

// ReleaseEscrow is an authorization gate, not a money movement: the buyer
// (or an admin) confirms the settled funds may be considered released.
func (s *Service) ReleaseEscrow(ctx context.Context, actor model.Actor, paymentID string) error {
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		payment, err := tx.Payments().Get(ctx, paymentID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("payment not found")
		}
		if err != nil {
			return apperr.Wrap(err, "failed to fetch payment")
		}
		if payment.ContractID == "" {
			return apperr.InvalidState("payment is not tied to a contract")
		}

		contract, err := tx.Contracts().Get(ctx, payment.ContractID)
		if err != nil {
			return apperr.Wrap(err, "failed to fetch contract")
		}
		if !policy.CanReleaseEscrow(actor, contract) {
			return apperr.Forbidden("not authorized to release this payment")
		}
		if payment.Status != model.PaymentCompleted {
			return apperr.InvalidState("payment must be completed before release")
		}

		contract.PaymentStatus = model.PayReleased
		if err := tx.Contracts().Update(ctx, contract); err != nil {
			return apperr.Wrap(err, "failed to update contract")
		}
		return nil
	})
	return apperr.Wrap(err, "escrow release failed")
}

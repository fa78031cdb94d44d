package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openlancer/openlancer/internal/apperr"
	"github.com/openlancer/openlancer/internal/model"
	"github.com/openlancer/openlancer/internal/storage"
	"github.com/openlancer/openlancer/internal/storage/memory"
)

var earner = model.Actor{ID: "free-1", Role: model.RoleFreelancer}

func newService(t *testing.T) (*Service, storage.Store) {
	t.Helper()
	store := memory.New()
	return New(store, decimal.RequireFromString("10"), "USD", nil), store
}

func seedProfile(t *testing.T, store storage.Store, userID string) {
	t.Helper()
	if err := store.Profiles().Create(context.Background(), &model.Profile{UserID: userID}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func credit(t *testing.T, store storage.Store, id, amount string, status model.TxnStatus) {
	t.Helper()
	err := store.Transactions().Create(context.Background(), &model.Transaction{
		ID: id, UserID: earner.ID, Type: model.TxnCredit,
		Amount: decimal.RequireFromString(amount), Currency: "USD",
		Status: status, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed credit: %v", err)
	}
}

func TestBalance(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	balance, err := svc.Balance(ctx, earner.ID, "")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !balance.IsZero() {
		t.Fatalf("empty ledger balance = %s, want 0", balance)
	}

	credit(t, store, "t1", "360", model.TxnCompleted)
	credit(t, store, "t2", "90", model.TxnCompleted)
	credit(t, store, "t3", "500", model.TxnPending) // not settled, not counted
	if err := store.Transactions().Create(ctx, &model.Transaction{
		ID: "t4", UserID: earner.ID, Type: model.TxnDebit,
		Amount: decimal.RequireFromString("50"), Currency: "USD",
		Status: model.TxnCompleted, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed debit: %v", err)
	}

	balance, err = svc.Balance(ctx, earner.ID, "USD")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if want := decimal.RequireFromString("400"); !balance.Equal(want) {
		t.Errorf("balance = %s, want %s", balance, want)
	}
}

func TestRequestWithdrawal(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	seedProfile(t, store, earner.ID)
	credit(t, store, "t1", "360", model.TxnCompleted)

	_, err := svc.RequestWithdrawal(ctx, earner, WithdrawalInput{
		Amount: decimal.RequireFromString("5"), Method: "bank",
	})
	if apperr.KindOf(err) != apperr.KindInvalidState {
		t.Fatalf("below minimum: kind = %v, want invalid state", apperr.KindOf(err))
	}
	if apperr.MessageOf(err) != "minimum withdrawal amount is 10 USD" {
		t.Errorf("message = %q", apperr.MessageOf(err))
	}

	_, err = svc.RequestWithdrawal(ctx, earner, WithdrawalInput{
		Amount: decimal.RequireFromString("1000"), Method: "bank",
	})
	if apperr.KindOf(err) != apperr.KindInvalidState {
		t.Fatalf("over balance: kind = %v, want invalid state", apperr.KindOf(err))
	}
	if apperr.MessageOf(err) != "insufficient balance" {
		t.Errorf("message = %q", apperr.MessageOf(err))
	}

	p, err := svc.RequestWithdrawal(ctx, earner, WithdrawalInput{
		Amount: decimal.RequireFromString("300"), Method: "bank",
		AccountDetails: map[string]any{"iban": "DE00"},
	})
	if err != nil {
		t.Fatalf("RequestWithdrawal: %v", err)
	}
	if p.Status != model.PaymentPending || p.PaymentType != model.PaymentWithdrawal {
		t.Errorf("payment = (%s, %s), want (pending, withdrawal)", p.Status, p.PaymentType)
	}

	debit, err := store.Transactions().GetByPayment(ctx, p.ID, model.TxnDebit)
	if err != nil {
		t.Fatalf("pending debit missing: %v", err)
	}
	if debit.Status != model.TxnPending {
		t.Errorf("debit status = %s, want pending", debit.Status)
	}
	if want := decimal.RequireFromString("60"); !debit.Balance.Equal(want) {
		t.Errorf("balance snapshot = %s, want %s", debit.Balance, want)
	}

	// Settled balance unchanged, available reduced by the pending debit.
	balance, _ := svc.Balance(ctx, earner.ID, "USD")
	if want := decimal.RequireFromString("360"); !balance.Equal(want) {
		t.Errorf("settled balance = %s, want %s", balance, want)
	}
	available, _ := svc.AvailableBalance(ctx, earner.ID, "USD")
	if want := decimal.RequireFromString("60"); !available.Equal(want) {
		t.Errorf("available balance = %s, want %s", available, want)
	}

	// The reserved funds cannot be withdrawn again.
	_, err = svc.RequestWithdrawal(ctx, earner, WithdrawalInput{
		Amount: decimal.RequireFromString("300"), Method: "bank",
	})
	if apperr.KindOf(err) != apperr.KindInvalidState || apperr.MessageOf(err) != "insufficient balance" {
		t.Errorf("double spend: err = %v", err)
	}
}

// The balance check serializes on the requester's profile row, so the row
// has to exist before any ledger sums are trusted.
func TestRequestWithdrawalLocksOwnerProfile(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	credit(t, store, "t1", "360", model.TxnCompleted)

	_, err := svc.RequestWithdrawal(ctx, earner, WithdrawalInput{
		Amount: decimal.RequireFromString("100"), Method: "bank",
	})
	if err == nil {
		t.Fatal("withdrawal without a profile row succeeded")
	}

	seedProfile(t, store, earner.ID)
	if _, err := svc.RequestWithdrawal(ctx, earner, WithdrawalInput{
		Amount: decimal.RequireFromString("100"), Method: "bank",
	}); err != nil {
		t.Fatalf("RequestWithdrawal with profile: %v", err)
	}
}

// Two simultaneous requests for more than half the balance must not both be
// admitted; exactly one reserves the funds.
func TestRequestWithdrawalConcurrent(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	seedProfile(t, store, earner.ID)
	credit(t, store, "t1", "360", model.TxnCompleted)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RequestWithdrawal(ctx, earner, WithdrawalInput{
				Amount: decimal.RequireFromString("300"), Method: "bank",
			})
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperr.KindOf(err) == apperr.KindInvalidState:
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("succeeded = %d, rejected = %d, want exactly one of each", succeeded, rejected)
	}

	available, err := svc.AvailableBalance(ctx, earner.ID, "USD")
	if err != nil {
		t.Fatalf("AvailableBalance: %v", err)
	}
	if want := decimal.RequireFromString("60"); !available.Equal(want) {
		t.Errorf("available after concurrent requests = %s, want %s", available, want)
	}
}

func TestSettleWithdrawal(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	seedProfile(t, store, earner.ID)
	credit(t, store, "t1", "360", model.TxnCompleted)

	p, err := svc.RequestWithdrawal(ctx, earner, WithdrawalInput{
		Amount: decimal.RequireFromString("100"), Method: "bank",
	})
	if err != nil {
		t.Fatalf("RequestWithdrawal: %v", err)
	}

	if err := svc.SettleWithdrawal(ctx, p.ID, "ref-1"); err != nil {
		t.Fatalf("SettleWithdrawal: %v", err)
	}
	got, _ := store.Payments().Get(ctx, p.ID)
	if got.Status != model.PaymentCompleted || got.TransactionID != "ref-1" {
		t.Errorf("payment = (%s, %s), want (completed, ref-1)", got.Status, got.TransactionID)
	}
	debit, _ := store.Transactions().GetByPayment(ctx, p.ID, model.TxnDebit)
	if debit.Status != model.TxnCompleted {
		t.Errorf("debit status = %s, want completed", debit.Status)
	}

	balance, _ := svc.Balance(ctx, earner.ID, "USD")
	if want := decimal.RequireFromString("260"); !balance.Equal(want) {
		t.Errorf("balance after settlement = %s, want %s", balance, want)
	}
	available, _ := svc.AvailableBalance(ctx, earner.ID, "USD")
	if !available.Equal(balance) {
		t.Errorf("available = %s, want equal to settled %s", available, balance)
	}

	// Settling twice is a no-op.
	if err := svc.SettleWithdrawal(ctx, p.ID, "ref-2"); err != nil {
		t.Fatalf("second settlement: %v", err)
	}
	got, _ = store.Payments().Get(ctx, p.ID)
	if got.TransactionID != "ref-1" {
		t.Errorf("reference changed on resettlement: %s", got.TransactionID)
	}
}

func TestSettleWithdrawalWrongType(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	if err := store.Payments().Create(ctx, &model.Payment{
		ID: "pay-1", PayerID: "u1", ReceiverID: "u2",
		Amount: decimal.RequireFromString("10"), Currency: "USD",
		Status: model.PaymentPending, PaymentType: model.PaymentEscrow, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	err := svc.SettleWithdrawal(ctx, "pay-1", "ref-1")
	if apperr.KindOf(err) != apperr.KindInvalidState {
		t.Fatalf("settling an escrow payment: kind = %v, want invalid state", apperr.KindOf(err))
	}
}

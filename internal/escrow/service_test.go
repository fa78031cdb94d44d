package escrow

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openlancer/openlancer/internal/apperr"
	"github.com/openlancer/openlancer/internal/model"
	"github.com/openlancer/openlancer/internal/notify"
	"github.com/openlancer/openlancer/internal/storage"
	"github.com/openlancer/openlancer/internal/storage/memory"
)

var (
	buyer      = model.Actor{ID: "buyer-1", Role: model.RoleBuyer}
	freelancer = model.Actor{ID: "free-1", Role: model.RoleFreelancer}
	admin      = model.Actor{ID: "admin-1", Role: model.RoleAdmin}
)

func newService(t *testing.T) (*Service, storage.Store) {
	t.Helper()
	store := memory.New()
	return New(store, decimal.RequireFromString("10"), nil), store
}

func seedContract(t *testing.T, store storage.Store) *model.Contract {
	t.Helper()
	ctx := context.Background()
	fee, net := model.FeeSplit(decimal.RequireFromString("400"), decimal.RequireFromString("10"))
	c := &model.Contract{
		ID:               "con-1",
		JobID:            "job-1",
		BuyerID:          buyer.ID,
		FreelancerID:     freelancer.ID,
		Title:            "landing page",
		TotalAmount:      decimal.RequireFromString("400"),
		Currency:         "USD",
		PlatformFee:      fee,
		FreelancerAmount: net,
		ContractType:     model.BudgetFixed,
		Status:           model.ContractPending,
		PaymentStatus:    model.PayPending,
		EscrowAmount:     decimal.Zero,
		CreatedAt:        time.Now(),
	}
	if err := store.Contracts().Create(ctx, c); err != nil {
		t.Fatalf("seed contract: %v", err)
	}
	if err := store.Profiles().Create(ctx, &model.Profile{UserID: freelancer.ID}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return c
}

func TestCreateEscrow(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	seedContract(t, store)

	if _, err := svc.CreateEscrow(ctx, freelancer, CreateEscrowInput{
		ContractID: "con-1", Amount: decimal.RequireFromString("100"),
	}); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("freelancer funding escrow: kind = %v, want forbidden", apperr.KindOf(err))
	}

	p, err := svc.CreateEscrow(ctx, buyer, CreateEscrowInput{
		ContractID: "con-1", Amount: decimal.RequireFromString("100"),
	})
	if err != nil {
		t.Fatalf("CreateEscrow: %v", err)
	}
	if p.Status != model.PaymentPending || p.PaymentType != model.PaymentEscrow {
		t.Errorf("payment = (%s, %s), want (pending, escrow)", p.Status, p.PaymentType)
	}
	if !p.PlatformFee.Equal(decimal.RequireFromString("10")) {
		t.Errorf("payment fee = %s, want 10", p.PlatformFee)
	}
	if p.Method != "wallet" {
		t.Errorf("method = %s, want default wallet", p.Method)
	}

	c, _ := store.Contracts().Get(ctx, "con-1")
	if !c.EscrowAmount.Equal(decimal.RequireFromString("100")) {
		t.Errorf("escrow amount = %s, want 100", c.EscrowAmount)
	}
	if c.Status != model.ContractActive {
		t.Errorf("contract status = %s, want active after funding", c.Status)
	}
	if c.PaymentStatus != model.PayEscrowed {
		t.Errorf("payment state = %s, want escrowed", c.PaymentStatus)
	}

	// Installments accumulate.
	if _, err := svc.CreateEscrow(ctx, buyer, CreateEscrowInput{
		ContractID: "con-1", Amount: decimal.RequireFromString("50"),
	}); err != nil {
		t.Fatalf("second installment: %v", err)
	}
	c, _ = store.Contracts().Get(ctx, "con-1")
	if !c.EscrowAmount.Equal(decimal.RequireFromString("150")) {
		t.Errorf("escrow amount = %s, want 150", c.EscrowAmount)
	}
}

func TestCreateEscrowTerminalContract(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	c := seedContract(t, store)
	c.Status = model.ContractCancelled
	if err := store.Contracts().Update(ctx, c); err != nil {
		t.Fatalf("update contract: %v", err)
	}

	_, err := svc.CreateEscrow(ctx, buyer, CreateEscrowInput{
		ContractID: "con-1", Amount: decimal.RequireFromString("100"),
	})
	if apperr.KindOf(err) != apperr.KindInvalidState {
		t.Fatalf("funding cancelled contract: kind = %v, want invalid state", apperr.KindOf(err))
	}
}

func TestProcessPayment(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	seedContract(t, store)

	p, err := svc.CreateEscrow(ctx, buyer, CreateEscrowInput{
		ContractID: "con-1", Amount: decimal.RequireFromString("400"),
	})
	if err != nil {
		t.Fatalf("CreateEscrow: %v", err)
	}

	done, err := svc.ProcessPayment(ctx, p.ID, "gw-12345")
	if err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}
	if done.Status != model.PaymentCompleted {
		t.Errorf("payment status = %s, want completed", done.Status)
	}
	if done.TransactionID != "gw-12345" {
		t.Errorf("transaction id = %s, want gw-12345", done.TransactionID)
	}

	debit, err := store.Transactions().GetByPayment(ctx, p.ID, model.TxnDebit)
	if err != nil {
		t.Fatalf("debit missing: %v", err)
	}
	if debit.UserID != buyer.ID || !debit.Amount.Equal(decimal.RequireFromString("400")) {
		t.Errorf("debit = (%s, %s), want buyer debited full 400", debit.UserID, debit.Amount)
	}
	credit, err := store.Transactions().GetByPayment(ctx, p.ID, model.TxnCredit)
	if err != nil {
		t.Fatalf("credit missing: %v", err)
	}
	if credit.UserID != freelancer.ID || !credit.Amount.Equal(decimal.RequireFromString("360")) {
		t.Errorf("credit = (%s, %s), want freelancer credited 360", credit.UserID, credit.Amount)
	}

	profile, _ := store.Profiles().Get(ctx, freelancer.ID)
	if !profile.TotalEarnings.Equal(decimal.RequireFromString("360")) {
		t.Errorf("total earnings = %s, want 360", profile.TotalEarnings)
	}

	// Completed payments are returned as-is; no second ledger entries.
	again, err := svc.ProcessPayment(ctx, p.ID, "gw-other")
	if err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	if again.TransactionID != "gw-12345" {
		t.Errorf("transaction id changed on reprocess: %s", again.TransactionID)
	}
	profile, _ = store.Profiles().Get(ctx, freelancer.ID)
	if !profile.TotalEarnings.Equal(decimal.RequireFromString("360")) {
		t.Errorf("earnings double-counted: %s", profile.TotalEarnings)
	}
}

func TestProcessPaymentReplayDoesNotRenotify(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	var mu sync.Mutex
	var events []notify.Event
	q := notify.NewQueue(func(e notify.Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	svc := New(store, decimal.RequireFromString("10"), q)
	seedContract(t, store)

	p, err := svc.CreateEscrow(ctx, buyer, CreateEscrowInput{
		ContractID: "con-1", Amount: decimal.RequireFromString("400"),
	})
	if err != nil {
		t.Fatalf("CreateEscrow: %v", err)
	}
	if _, err := svc.ProcessPayment(ctx, p.ID, "gw-1"); err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}
	if _, err := svc.ProcessPayment(ctx, p.ID, "gw-retry"); err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	q.Close()

	completed := 0
	for _, e := range events {
		if e.Kind == notify.KindPaymentCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("%d completion notifications sent, want exactly 1", completed)
	}
}

func TestProcessPaymentSynthesizesTransactionID(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	seedContract(t, store)

	p, err := svc.CreateEscrow(ctx, buyer, CreateEscrowInput{
		ContractID: "con-1", Amount: decimal.RequireFromString("100"),
	})
	if err != nil {
		t.Fatalf("CreateEscrow: %v", err)
	}
	done, err := svc.ProcessPayment(ctx, p.ID, "")
	if err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}
	if !strings.HasPrefix(done.TransactionID, "TXN-") {
		t.Errorf("transaction id = %q, want TXN- prefix", done.TransactionID)
	}
}

func TestProcessPaymentRollsBackAsOne(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	// Contract whose receiver has no profile: the last write of the group
	// fails, so none of the earlier ones may survive.
	c := &model.Contract{
		ID: "con-1", JobID: "job-1", BuyerID: buyer.ID, FreelancerID: "ghost",
		TotalAmount: decimal.RequireFromString("400"), Currency: "USD",
		PlatformFee: decimal.RequireFromString("40"), FreelancerAmount: decimal.RequireFromString("360"),
		Status: model.ContractPending, PaymentStatus: model.PayPending,
		EscrowAmount: decimal.Zero, CreatedAt: time.Now(),
	}
	if err := store.Contracts().Create(ctx, c); err != nil {
		t.Fatalf("seed contract: %v", err)
	}
	p, err := svc.CreateEscrow(ctx, buyer, CreateEscrowInput{
		ContractID: "con-1", Amount: decimal.RequireFromString("400"),
	})
	if err != nil {
		t.Fatalf("CreateEscrow: %v", err)
	}

	if _, err := svc.ProcessPayment(ctx, p.ID, "gw-1"); err == nil {
		t.Fatal("ProcessPayment should fail without a receiver profile")
	}

	got, _ := store.Payments().Get(ctx, p.ID)
	if got.Status != model.PaymentPending {
		t.Errorf("payment status = %s, want still pending after rollback", got.Status)
	}
	if _, err := store.Transactions().GetByPayment(ctx, p.ID, model.TxnDebit); err == nil {
		t.Error("debit survived a rolled back settlement")
	}
	if _, err := store.Transactions().GetByPayment(ctx, p.ID, model.TxnCredit); err == nil {
		t.Error("credit survived a rolled back settlement")
	}
}

func TestReleaseEscrow(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	seedContract(t, store)

	p, err := svc.CreateEscrow(ctx, buyer, CreateEscrowInput{
		ContractID: "con-1", Amount: decimal.RequireFromString("400"),
	})
	if err != nil {
		t.Fatalf("CreateEscrow: %v", err)
	}

	err = svc.ReleaseEscrow(ctx, buyer, p.ID)
	if apperr.KindOf(err) != apperr.KindInvalidState {
		t.Fatalf("releasing unsettled payment: kind = %v, want invalid state", apperr.KindOf(err))
	}
	if apperr.MessageOf(err) != "payment must be completed before release" {
		t.Errorf("message = %q", apperr.MessageOf(err))
	}

	if _, err := svc.ProcessPayment(ctx, p.ID, "gw-1"); err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}

	if err := svc.ReleaseEscrow(ctx, freelancer, p.ID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("freelancer releasing: kind = %v, want forbidden", apperr.KindOf(err))
	}

	if err := svc.ReleaseEscrow(ctx, buyer, p.ID); err != nil {
		t.Fatalf("ReleaseEscrow: %v", err)
	}
	c, _ := store.Contracts().Get(ctx, "con-1")
	if c.PaymentStatus != model.PayReleased {
		t.Errorf("payment state = %s, want released", c.PaymentStatus)
	}

	// Admin may release on the buyer's behalf.
	if err := svc.ReleaseEscrow(ctx, admin, p.ID); err != nil {
		t.Errorf("admin release: %v", err)
	}
}

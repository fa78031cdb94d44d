package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/openlancer/openlancer/internal/model"
	"github.com/openlancer/openlancer/internal/storage"
)

func TestWithTxCommit(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx storage.Store) error {
		return tx.Jobs().Create(ctx, &model.Job{ID: "job-1", Title: "build a site"})
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if _, err := s.Jobs().Get(ctx, "job-1"); err != nil {
		t.Fatalf("committed job should be readable: %v", err)
	}
}

func TestWithTxRollback(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.Jobs().Create(ctx, &model.Job{ID: "job-1"}); err != nil {
			return err
		}
		if err := tx.Transactions().Create(ctx, &model.Transaction{ID: "txn-1", UserID: "u1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v, want boom", err)
	}
	if _, err := s.Jobs().Get(ctx, "job-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("job should have been rolled back, got %v", err)
	}
	if _, err := s.Transactions().Get(ctx, "txn-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("transaction should have been rolled back, got %v", err)
	}
}

func TestWithTxNestedJoinsEnclosing(t *testing.T) {
	s := New()
	ctx := context.Background()
	fail := errors.New("outer fails")

	err := s.WithTx(ctx, func(tx storage.Store) error {
		inner := tx.WithTx(ctx, func(tx2 storage.Store) error {
			return tx2.Jobs().Create(ctx, &model.Job{ID: "job-1"})
		})
		if inner != nil {
			return inner
		}
		return fail
	})
	if !errors.Is(err, fail) {
		t.Fatalf("WithTx error = %v, want outer failure", err)
	}
	// The nested group joined the outer one, so its write rolls back too.
	if _, err := s.Jobs().Get(ctx, "job-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("nested write should roll back with the outer group, got %v", err)
	}
}

func TestBidUniquePerJobAndFreelancer(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Bids().Create(ctx, &model.Bid{ID: "b1", JobID: "j1", FreelancerID: "f1"}); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	err := s.Bids().Create(ctx, &model.Bid{ID: "b2", JobID: "j1", FreelancerID: "f1"})
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("second bid error = %v, want ErrDuplicate", err)
	}
	if err := s.Bids().Create(ctx, &model.Bid{ID: "b3", JobID: "j2", FreelancerID: "f1"}); err != nil {
		t.Fatalf("bid on another job: %v", err)
	}
}

func TestRejectPendingSiblings(t *testing.T) {
	s := New()
	ctx := context.Background()

	bids := []*model.Bid{
		{ID: "b1", JobID: "j1", FreelancerID: "f1", Status: model.BidPending},
		{ID: "b2", JobID: "j1", FreelancerID: "f2", Status: model.BidPending},
		{ID: "b3", JobID: "j1", FreelancerID: "f3", Status: model.BidWithdrawn},
		{ID: "b4", JobID: "j2", FreelancerID: "f1", Status: model.BidPending},
	}
	for _, b := range bids {
		if err := s.Bids().Create(ctx, b); err != nil {
			t.Fatalf("seed bid %s: %v", b.ID, err)
		}
	}

	n, err := s.Bids().RejectPendingSiblings(ctx, "j1", "b1")
	if err != nil {
		t.Fatalf("RejectPendingSiblings: %v", err)
	}
	if n != 1 {
		t.Fatalf("rejected %d bids, want 1", n)
	}
	for id, want := range map[string]model.BidStatus{
		"b1": model.BidPending,
		"b2": model.BidRejected,
		"b3": model.BidWithdrawn,
		"b4": model.BidPending,
	} {
		b, err := s.Bids().Get(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if b.Status != want {
			t.Errorf("bid %s status = %s, want %s", id, b.Status, want)
		}
	}
}

func TestTransactionSum(t *testing.T) {
	s := New()
	ctx := context.Background()

	txns := []*model.Transaction{
		{ID: "t1", UserID: "u1", Currency: "USD", Type: model.TxnCredit, Status: model.TxnCompleted, Amount: decimal.RequireFromString("100")},
		{ID: "t2", UserID: "u1", Currency: "USD", Type: model.TxnCredit, Status: model.TxnCompleted, Amount: decimal.RequireFromString("50.25")},
		{ID: "t3", UserID: "u1", Currency: "USD", Type: model.TxnDebit, Status: model.TxnCompleted, Amount: decimal.RequireFromString("30")},
		{ID: "t4", UserID: "u1", Currency: "USD", Type: model.TxnCredit, Status: model.TxnPending, Amount: decimal.RequireFromString("999")},
		{ID: "t5", UserID: "u1", Currency: "EUR", Type: model.TxnCredit, Status: model.TxnCompleted, Amount: decimal.RequireFromString("77")},
		{ID: "t6", UserID: "u2", Currency: "USD", Type: model.TxnCredit, Status: model.TxnCompleted, Amount: decimal.RequireFromString("12")},
	}
	for _, txn := range txns {
		if err := s.Transactions().Create(ctx, txn); err != nil {
			t.Fatalf("seed %s: %v", txn.ID, err)
		}
	}

	credits, err := s.Transactions().Sum(ctx, "u1", "USD", model.TxnCredit, model.TxnCompleted)
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if want := decimal.RequireFromString("150.25"); !credits.Equal(want) {
		t.Errorf("completed USD credits = %s, want %s", credits, want)
	}
	debits, err := s.Transactions().Sum(ctx, "u1", "USD", model.TxnDebit, model.TxnCompleted)
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if want := decimal.RequireFromString("30"); !debits.Equal(want) {
		t.Errorf("completed USD debits = %s, want %s", debits, want)
	}
}

func TestReviewCountAndAverage(t *testing.T) {
	s := New()
	ctx := context.Background()

	count, avg, err := s.Reviews().CountAndAverage(ctx, "u1")
	if err != nil {
		t.Fatalf("CountAndAverage: %v", err)
	}
	if count != 0 || !avg.IsZero() {
		t.Fatalf("empty aggregate = (%d, %s), want (0, 0)", count, avg)
	}

	reviews := []*model.Review{
		{ID: "r1", ContractID: "c1", ReviewerID: "a", RevieweeID: "u1", Rating: 5},
		{ID: "r2", ContractID: "c2", ReviewerID: "b", RevieweeID: "u1", Rating: 4},
		{ID: "r3", ContractID: "c3", ReviewerID: "c", RevieweeID: "u1", Rating: 4},
	}
	for _, rv := range reviews {
		if err := s.Reviews().Create(ctx, rv); err != nil {
			t.Fatalf("seed %s: %v", rv.ID, err)
		}
	}

	count, avg, err = s.Reviews().CountAndAverage(ctx, "u1")
	if err != nil {
		t.Fatalf("CountAndAverage: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if want := decimal.RequireFromString("4.33"); !avg.Equal(want) {
		t.Errorf("average = %s, want %s", avg, want)
	}
}

package review

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openlancer/openlancer/internal/apperr"
	"github.com/openlancer/openlancer/internal/model"
	"github.com/openlancer/openlancer/internal/storage"
	"github.com/openlancer/openlancer/internal/storage/memory"
)

var (
	buyer      = model.Actor{ID: "buyer-1", Role: model.RoleBuyer}
	freelancer = model.Actor{ID: "free-1", Role: model.RoleFreelancer}
	stranger   = model.Actor{ID: "other", Role: model.RoleBuyer}
)

func newService(t *testing.T) (*Service, storage.Store) {
	t.Helper()
	store := memory.New()
	return New(store, nil), store
}

func seedCompletedContract(t *testing.T, store storage.Store, id string) {
	t.Helper()
	ctx := context.Background()
	if err := store.Contracts().Create(ctx, &model.Contract{
		ID: id, JobID: "job-" + id, BuyerID: buyer.ID, FreelancerID: freelancer.ID,
		TotalAmount: decimal.RequireFromString("400"), Currency: "USD",
		Status: model.ContractCompleted, PaymentStatus: model.PayReleased,
		CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed contract %s: %v", id, err)
	}
}

func seedProfiles(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()
	for _, id := range []string{buyer.ID, freelancer.ID} {
		if err := store.Profiles().Create(ctx, &model.Profile{UserID: id}); err != nil {
			t.Fatalf("seed profile %s: %v", id, err)
		}
	}
}

func TestCreateReview(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	seedProfiles(t, store)
	seedCompletedContract(t, store, "con-1")
	seedCompletedContract(t, store, "con-2")

	if _, err := svc.Create(ctx, buyer, CreateInput{ContractID: "con-1", Rating: 0}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("rating 0: kind = %v, want validation", apperr.KindOf(err))
	}
	if _, err := svc.Create(ctx, buyer, CreateInput{ContractID: "con-1", Rating: 6}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("rating 6: kind = %v, want validation", apperr.KindOf(err))
	}
	if _, err := svc.Create(ctx, stranger, CreateInput{ContractID: "con-1", Rating: 5}); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("stranger reviewing: kind = %v, want forbidden", apperr.KindOf(err))
	}

	rv, err := svc.Create(ctx, buyer, CreateInput{ContractID: "con-1", Rating: 5, Comment: "great work"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rv.RevieweeID != freelancer.ID {
		t.Errorf("reviewee = %s, want the other party %s", rv.RevieweeID, freelancer.ID)
	}

	profile, _ := store.Profiles().Get(ctx, freelancer.ID)
	if profile.TotalReviews != 1 || !profile.Rating.Equal(decimal.RequireFromString("5")) {
		t.Errorf("aggregate = (%d, %s), want (1, 5)", profile.TotalReviews, profile.Rating)
	}

	// Second review from another contract updates the running average.
	if _, err := svc.Create(ctx, buyer, CreateInput{ContractID: "con-2", Rating: 3}); err != nil {
		t.Fatalf("second review: %v", err)
	}
	profile, _ = store.Profiles().Get(ctx, freelancer.ID)
	if profile.TotalReviews != 2 {
		t.Errorf("total reviews = %d, want 2", profile.TotalReviews)
	}
	if want := decimal.RequireFromString("4"); !profile.Rating.Equal(want) {
		t.Errorf("rating = %s, want %s", profile.Rating, want)
	}

	// One review per contract per reviewer.
	if _, err := svc.Create(ctx, buyer, CreateInput{ContractID: "con-1", Rating: 1}); apperr.KindOf(err) != apperr.KindInvalidState {
		t.Errorf("duplicate review: kind = %v, want invalid state", apperr.KindOf(err))
	}

	// The freelancer reviews the buyer on the same contract.
	rv, err = svc.Create(ctx, freelancer, CreateInput{ContractID: "con-1", Rating: 4})
	if err != nil {
		t.Fatalf("counterpart review: %v", err)
	}
	if rv.RevieweeID != buyer.ID {
		t.Errorf("reviewee = %s, want buyer", rv.RevieweeID)
	}
	profile, _ = store.Profiles().Get(ctx, buyer.ID)
	if profile.TotalReviews != 1 || !profile.Rating.Equal(decimal.RequireFromString("4")) {
		t.Errorf("buyer aggregate = (%d, %s), want (1, 4)", profile.TotalReviews, profile.Rating)
	}
}

func TestCreateReviewRequiresCompletedContract(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	seedProfiles(t, store)
	if err := store.Contracts().Create(ctx, &model.Contract{
		ID: "con-1", JobID: "job-1", BuyerID: buyer.ID, FreelancerID: freelancer.ID,
		Status: model.ContractActive, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed contract: %v", err)
	}

	_, err := svc.Create(ctx, buyer, CreateInput{ContractID: "con-1", Rating: 5})
	if apperr.KindOf(err) != apperr.KindInvalidState {
		t.Fatalf("reviewing active contract: kind = %v, want invalid state", apperr.KindOf(err))
	}
}

func TestListForUser(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	seedProfiles(t, store)
	seedCompletedContract(t, store, "con-1")

	if _, err := svc.Create(ctx, buyer, CreateInput{ContractID: "con-1", Rating: 5}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := svc.ListForUser(ctx, freelancer.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d reviews, want 1", len(out))
	}

	// Oversized limit falls back to the default.
	if _, err := svc.ListForUser(ctx, freelancer.ID, 9999, 0); err != nil {
		t.Fatalf("ListForUser with big limit: %v", err)
	}
}

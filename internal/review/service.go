// Package review creates contract reviews and keeps the reviewee's profile
// aggregate (average rating, review count) in step.
package review

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/openlancer/openlancer/internal/apperr"
	"github.com/openlancer/openlancer/internal/model"
	"github.com/openlancer/openlancer/internal/notify"
	"github.com/openlancer/openlancer/internal/policy"
	"github.com/openlancer/openlancer/internal/storage"
)

type Service struct {
	store    storage.Store
	notifier *notify.Queue
}

func New(store storage.Store, notifier *notify.Queue) *Service {
	return &Service{store: store, notifier: notifier}
}

// CreateInput carries one party's review of a completed contract.
type CreateInput struct {
	ContractID string
	Rating     int
	Comment    string
	Categories map[string]int
}

// Create inserts a review and recomputes the reviewee's aggregate rating in
// the same transaction. The reviewee is always the other party of the
// contract. Recomputation is a full scan of the reviewee's reviews; fine at
// marketplace scale.
func (s *Service) Create(ctx context.Context, actor model.Actor, in CreateInput) (*model.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}
	if len(in.Comment) > 1000 {
		return nil, apperr.Validation("comment too long (max 1000 characters)")
	}

	var review *model.Review
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		contract, err := tx.Contracts().Get(ctx, in.ContractID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("contract not found")
		}
		if err != nil {
			return apperr.Wrap(err, "failed to fetch contract")
		}
		if !policy.CanReview(actor, contract) {
			return apperr.Forbidden("only contract parties can leave a review")
		}
		if contract.Status != model.ContractCompleted {
			return apperr.InvalidState("contract must be completed before reviewing")
		}

		revieweeID := contract.FreelancerID
		if actor.ID == contract.FreelancerID {
			revieweeID = contract.BuyerID
		}

		review = &model.Review{
			ID:         uuid.New().String(),
			ContractID: contract.ID,
			ReviewerID: actor.ID,
			RevieweeID: revieweeID,
			Rating:     in.Rating,
			Comment:    in.Comment,
			Categories: in.Categories,
			CreatedAt:  time.Now(),
		}
		if err := tx.Reviews().Create(ctx, review); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return apperr.InvalidState("you have already reviewed this contract")
			}
			return apperr.Wrap(err, "failed to create review")
		}

		count, avg, err := tx.Reviews().CountAndAverage(ctx, revieweeID)
		if err != nil {
			return apperr.Wrap(err, "failed to aggregate reviews")
		}
		profile, err := tx.Profiles().Get(ctx, revieweeID)
		if err != nil {
			return apperr.Wrap(err, "failed to fetch reviewee profile")
		}
		profile.Rating = avg
		profile.TotalReviews = count
		if err := tx.Profiles().Update(ctx, profile); err != nil {
			return apperr.Wrap(err, "failed to update reviewee rating")
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "review creation failed")
	}

	if s.notifier != nil {
		s.notifier.Enqueue(notify.Event{
			Kind:      notify.KindReviewReceived,
			UserID:    review.RevieweeID,
			Reference: review.ID,
			Message:   "you received a new review",
		})
	}
	return review, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*model.Review, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	out, err := s.store.Reviews().ListByReviewee(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list reviews")
	}
	return out, nil
}

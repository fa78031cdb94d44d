// Package engagement owns the job and bid lifecycle: posting, bidding and
// the atomic hire step that turns an accepted bid into a contract.
package engagement

import (
	"context"
	"errors"
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
	store           storage.Store
	feePercent      decimal.Decimal
	defaultCurrency string
	notifier        *notify.Queue
}

// New builds the service. The platform fee percent is fixed at construction
// so in-flight acceptances are never affected by config changes.
func New(store storage.Store, feePercent decimal.Decimal, defaultCurrency string, notifier *notify.Queue) *Service {
	return &Service{
		store:           store,
		feePercent:      feePercent,
		defaultCurrency: defaultCurrency,
		notifier:        notifier,
	}
}

func (s *Service) enqueue(e notify.Event) {
	if s.notifier != nil {
		s.notifier.Enqueue(e)
	}
}

// PostJobInput carries a buyer's new job posting.
type PostJobInput struct {
	Category    string
	Title       string
	Description string
	Budget      decimal.Decimal
	Currency    string
	BudgetType  model.BudgetType
}

func (s *Service) PostJob(ctx context.Context, actor model.Actor, in PostJobInput) (*model.Job, error) {
	if actor.Role != model.RoleBuyer && !actor.IsAdmin() {
		return nil, apperr.Forbidden("only buyers can post jobs")
	}
	if in.Title == "" || in.Description == "" {
		return nil, apperr.Validation("title and description are required")
	}
	if !in.Budget.IsPositive() {
		return nil, apperr.Validation("budget must be greater than zero")
	}
	if !in.BudgetType.Valid() {
		return nil, apperr.Validation("budget type must be fixed or hourly")
	}
	if in.Currency == "" {
		in.Currency = s.defaultCurrency
	}

	now := time.Now()
	job := &model.Job{
		ID:          uuid.New().String(),
		BuyerID:     actor.ID,
		Category:    in.Category,
		Title:       in.Title,
		Description: in.Description,
		Budget:      in.Budget,
		Currency:    in.Currency,
		BudgetType:  in.BudgetType,
		Status:      model.JobPosted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Jobs().Create(ctx, job); err != nil {
		return nil, apperr.Wrap(err, "failed to create job")
	}
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.store.Jobs().Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("job not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err, "failed to fetch job")
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context, f storage.JobFilter) ([]*model.Job, error) {
	jobs, err := s.store.Jobs().List(ctx, f)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list jobs")
	}
	return jobs, nil
}

// SubmitBidInput carries a freelancer's proposal for a job.
type SubmitBidInput struct {
	Amount       decimal.Decimal
	Currency     string
	DeliveryDays int
	Proposal     string
}

// SubmitBid places a bid, bumps the job's bid counter and moves a freshly
// posted job into bidding, all in one atomic group.
func (s *Service) SubmitBid(ctx context.Context, actor model.Actor, jobID string, in SubmitBidInput) (*model.Bid, error) {
	if !policy.CanBid(actor) {
		return nil, apperr.Forbidden("only freelancers can place bids")
	}
	if !in.Amount.IsPositive() {
		return nil, apperr.Validation("bid amount must be greater than zero")
	}
	if in.Proposal == "" {
		return nil, apperr.Validation("proposal is required")
	}
	if in.DeliveryDays <= 0 {
		return nil, apperr.Validation("delivery time must be at least one day")
	}

	var bid *model.Bid
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		job, err := tx.Jobs().Get(ctx, jobID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("job not found")
		}
		if err != nil {
			return apperr.Wrap(err, "failed to fetch job")
		}
		if !job.Status.AcceptsBids() {
			return apperr.InvalidState("job is not accepting bids")
		}
		if job.BuyerID == actor.ID {
			return apperr.Forbidden("you cannot bid on your own job")
		}

		currency := in.Currency
		if currency == "" {
			currency = job.Currency
		}
		now := time.Now()
		bid = &model.Bid{
			ID:           uuid.New().String(),
			JobID:        job.ID,
			FreelancerID: actor.ID,
			Amount:       in.Amount,
			Currency:     currency,
			DeliveryDays: in.DeliveryDays,
			Proposal:     in.Proposal,
			Status:       model.BidPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Bids().Create(ctx, bid); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return apperr.InvalidState("you have already placed a bid on this job")
			}
			return apperr.Wrap(err, "failed to create bid")
		}

		job.BidsCount++
		if job.Status == model.JobPosted {
			job.Status = model.JobBidding
		}
		if err := tx.Jobs().Update(ctx, job); err != nil {
			return apperr.Wrap(err, "failed to update job")
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "bid submission failed")
	}
	return bid, nil
}

// WithdrawBid retracts a pending bid and decrements the job's bid counter.
// Locks follow the same job-then-bid order as AcceptBid.
func (s *Service) WithdrawBid(ctx context.Context, actor model.Actor, bidID string) error {
	bid, err := s.store.Bids().Get(ctx, bidID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("bid not found")
	}
	if err != nil {
		return apperr.Wrap(err, "failed to fetch bid")
	}

	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		job, err := tx.Jobs().Get(ctx, bid.JobID)
		if err != nil {
			return apperr.Wrap(err, "failed to fetch job")
		}

		bid, err = tx.Bids().Get(ctx, bidID)
		if err != nil {
			return apperr.Wrap(err, "failed to fetch bid")
		}
		if !policy.CanWithdrawBid(actor, bid) {
			return apperr.Forbidden("not authorized to withdraw this bid")
		}
		if bid.Status != model.BidPending {
			return apperr.InvalidState("only pending bids can be withdrawn")
		}

		bid.Status = model.BidWithdrawn
		if err := tx.Bids().Update(ctx, bid); err != nil {
			return apperr.Wrap(err, "failed to update bid")
		}

		if job.BidsCount > 0 {
			job.BidsCount--
		}
		if err := tx.Jobs().Update(ctx, job); err != nil {
			return apperr.Wrap(err, "failed to update job")
		}
		return nil
	})
	return apperr.Wrap(err, "bid withdrawal failed")
}

// AcceptBid executes the hire step as one atomic group: accept the target
// bid, reject its pending siblings, mark the job hired and create the
// contract with the fee split applied once. The bid is first resolved with an
// unlocked read; inside the transaction the job row is locked before the bid
// row, so concurrent acceptances on one job all queue on the job and never
// hold bid locks against each other. The bid status is re-read under the
// lock, so of two concurrent acceptances exactly one wins; the loser observes
// the bid no longer pending.
func (s *Service) AcceptBid(ctx context.Context, actor model.Actor, bidID string) (*model.Bid, *model.Contract, error) {
	bid, err := s.store.Bids().Get(ctx, bidID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, apperr.NotFound("bid not found")
	}
	if err != nil {
		return nil, nil, apperr.Wrap(err, "failed to fetch bid")
	}

	var contract *model.Contract
	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		job, err := tx.Jobs().Get(ctx, bid.JobID)
		if err != nil {
			return apperr.Wrap(err, "failed to fetch job")
		}
		if !policy.CanAcceptBid(actor, job) {
			return apperr.Forbidden("not authorized to accept this bid")
		}

		bid, err = tx.Bids().Get(ctx, bidID)
		if err != nil {
			return apperr.Wrap(err, "failed to fetch bid")
		}
		if bid.Status != model.BidPending {
			return apperr.InvalidState("bid is not in pending status")
		}

		bid.Status = model.BidAccepted
		if err := tx.Bids().Update(ctx, bid); err != nil {
			return apperr.Wrap(err, "failed to update bid")
		}
		if _, err := tx.Bids().RejectPendingSiblings(ctx, bid.JobID, bid.ID); err != nil {
			return apperr.Wrap(err, "failed to reject competing bids")
		}

		job.Status = model.JobHired
		job.HiredFreelancerID = bid.FreelancerID
		if err := tx.Jobs().Update(ctx, job); err != nil {
			return apperr.Wrap(err, "failed to update job")
		}

		fee, net := model.FeeSplit(bid.Amount, s.feePercent)
		now := time.Now()
		contract = &model.Contract{
			ID:               uuid.New().String(),
			JobID:            job.ID,
			BuyerID:          job.BuyerID,
			FreelancerID:     bid.FreelancerID,
			Title:            job.Title,
			Description:      job.Description,
			TotalAmount:      bid.Amount,
			Currency:         bid.Currency,
			PlatformFee:      fee,
			FreelancerAmount: net,
			ContractType:     job.BudgetType,
			Status:           model.ContractPending,
			PaymentStatus:    model.PayPending,
			EscrowAmount:     decimal.Zero,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Contracts().Create(ctx, contract); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return apperr.InvalidState("a contract already exists for this job")
			}
			return apperr.Wrap(err, "failed to create contract")
		}
		return nil
	})
	if err != nil {
		return nil, nil, apperr.Wrap(err, "bid acceptance failed")
	}

	s.enqueue(notify.Event{
		Kind:      notify.KindContractCreated,
		UserID:    contract.FreelancerID,
		Reference: contract.ID,
		Message:   "your bid was accepted and a contract was created",
	})
	if siblings, err := s.store.Bids().ListByJob(ctx, bid.JobID); err == nil {
		for _, sib := range siblings {
			if sib.Status == model.BidRejected {
				s.enqueue(notify.Event{
					Kind:      notify.KindBidRejected,
					UserID:    sib.FreelancerID,
					Reference: sib.ID,
					Message:   "another bid was accepted for this job",
				})
			}
		}
	}
	return bid, contract, nil
}

func (s *Service) ListJobBids(ctx context.Context, jobID string) ([]*model.Bid, error) {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	bids, err := s.store.Bids().ListByJob(ctx, jobID)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list bids")
	}
	return bids, nil
}

func (s *Service) ListMyBids(ctx context.Context, actor model.Actor) ([]*model.Bid, error) {
	bids, err := s.store.Bids().ListByFreelancer(ctx, actor.ID)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list bids")
	}
	return bids, nil
}

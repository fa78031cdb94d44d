// Package contract owns the milestone workflow and the completion gate that
// closes a contract and its job.
package contract

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
	store    storage.Store
	notifier *notify.Queue
}

func New(store storage.Store, notifier *notify.Queue) *Service {
	return &Service{store: store, notifier: notifier}
}

func (s *Service) enqueue(e notify.Event) {
	if s.notifier != nil {
		s.notifier.Enqueue(e)
	}
}

func (s *Service) Get(ctx context.Context, actor model.Actor, id string) (*model.Contract, error) {
	c, err := s.store.Contracts().Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("contract not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err, "failed to fetch contract")
	}
	if !policy.CanViewContract(actor, c) {
		return nil, apperr.Forbidden("not authorized to view this contract")
	}
	return c, nil
}

func (s *Service) ListForUser(ctx context.Context, actor model.Actor, status model.ContractStatus) ([]*model.Contract, error) {
	out, err := s.store.Contracts().ListForUser(ctx, actor.ID, status)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list contracts")
	}
	return out, nil
}

// MilestoneInput is one entry of a batch milestone creation.
type MilestoneInput struct {
	Title       string
	Description string
	Amount      decimal.Decimal
	DueDate     time.Time
}

// CreateMilestones adds the buyer's milestones in submission order; order
// numbers continue after any existing milestones on the contract.
func (s *Service) CreateMilestones(ctx context.Context, actor model.Actor, contractID string, inputs []MilestoneInput) ([]*model.Milestone, error) {
	if len(inputs) == 0 {
		return nil, apperr.Validation("at least one milestone is required")
	}
	for _, in := range inputs {
		if in.Title == "" {
			return nil, apperr.Validation("milestone title is required")
		}
		if !in.Amount.IsPositive() {
			return nil, apperr.Validation("milestone amount must be greater than zero")
		}
		if in.DueDate.IsZero() {
			return nil, apperr.Validation("milestone due date is required")
		}
	}

	var created []*model.Milestone
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		contract, err := tx.Contracts().Get(ctx, contractID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("contract not found")
		}
		if err != nil {
			return apperr.Wrap(err, "failed to fetch contract")
		}
		if !policy.CanManageMilestones(actor, contract) {
			return apperr.Forbidden("not authorized to create milestones")
		}
		if contract.Status.Terminal() {
			return apperr.InvalidState("contract is %s", contract.Status)
		}

		existing, err := tx.Milestones().ListByContract(ctx, contractID)
		if err != nil {
			return apperr.Wrap(err, "failed to list milestones")
		}

		now := time.Now()
		for i, in := range inputs {
			m := &model.Milestone{
				ID:          uuid.New().String(),
				ContractID:  contract.ID,
				Title:       in.Title,
				Description: in.Description,
				Amount:      in.Amount,
				Currency:    contract.Currency,
				DueDate:     in.DueDate,
				Status:      model.MilestonePending,
				Order:       len(existing) + i + 1,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.Milestones().Create(ctx, m); err != nil {
				return apperr.Wrap(err, "failed to create milestone")
			}
			created = append(created, m)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "milestone creation failed")
	}
	return created, nil
}

// UpdateMilestoneStatus applies one transition of the milestone state
// machine. The freelancer moves work forward (including rework after a
// rejection), the buyer judges completed work. An allowed state-machine move
// attempted by the wrong party is Forbidden; a move the state machine does
// not define is InvalidState.
func (s *Service) UpdateMilestoneStatus(ctx context.Context, actor model.Actor, milestoneID string, next model.MilestoneStatus) (*model.Milestone, error) {
	var milestone *model.Milestone
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		milestone, err = tx.Milestones().Get(ctx, milestoneID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("milestone not found")
		}
		if err != nil {
			return apperr.Wrap(err, "failed to fetch milestone")
		}

		contract, err := tx.Contracts().Get(ctx, milestone.ContractID)
		if err != nil {
			return apperr.Wrap(err, "failed to fetch contract")
		}
		if !policy.CanViewContract(actor, contract) {
			return apperr.Forbidden("not authorized")
		}
		if !milestone.Status.CanTransition(next) {
			return apperr.InvalidState("milestone cannot move from %s to %s", milestone.Status, next)
		}
		if !policy.MilestoneMove(actor, contract, milestone.Status, next) {
			return apperr.Forbidden("not authorized to move milestone to %s", next)
		}

		milestone.Status = next
		if next == model.MilestoneCompleted {
			now := time.Now()
			milestone.CompletedDate = &now
		}
		if err := tx.Milestones().Update(ctx, milestone); err != nil {
			return apperr.Wrap(err, "failed to update milestone")
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "milestone update failed")
	}

	s.enqueue(notify.Event{
		Kind:      notify.KindMilestoneUpdated,
		UserID:    actor.ID,
		Reference: milestone.ID,
		Message:   "milestone moved to " + string(milestone.Status),
	})
	return milestone, nil
}

// CompleteContract closes the contract once every milestone is approved (a
// contract with no milestones completes unconditionally) and closes the
// linked job in the same atomic group.
func (s *Service) CompleteContract(ctx context.Context, actor model.Actor, contractID string) (*model.Contract, error) {
	var contract *model.Contract
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		contract, err = tx.Contracts().Get(ctx, contractID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("contract not found")
		}
		if err != nil {
			return apperr.Wrap(err, "failed to fetch contract")
		}
		if !policy.CanManageMilestones(actor, contract) {
			return apperr.Forbidden("only the buyer can complete the contract")
		}
		if contract.Status.Terminal() {
			return apperr.InvalidState("contract is already %s", contract.Status)
		}

		milestones, err := tx.Milestones().ListByContract(ctx, contractID)
		if err != nil {
			return apperr.Wrap(err, "failed to list milestones")
		}
		for _, m := range milestones {
			if m.Status != model.MilestoneApproved {
				return apperr.InvalidState("all milestones must be approved before completing the contract")
			}
		}

		now := time.Now()
		contract.Status = model.ContractCompleted
		contract.CompletedDate = &now
		if err := tx.Contracts().Update(ctx, contract); err != nil {
			return apperr.Wrap(err, "failed to update contract")
		}

		job, err := tx.Jobs().Get(ctx, contract.JobID)
		if err != nil {
			return apperr.Wrap(err, "failed to fetch job")
		}
		job.Status = model.JobCompleted
		if err := tx.Jobs().Update(ctx, job); err != nil {
			return apperr.Wrap(err, "failed to update job")
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "contract completion failed")
	}

	s.enqueue(notify.Event{
		Kind:      notify.KindContractCompleted,
		UserID:    contract.FreelancerID,
		Reference: contract.ID,
		Message:   "contract completed",
	})
	return contract, nil
}

// CancelContract is an admin action available before any payment has been
// settled. Escrowed but unsettled funds are flagged refunded and their
// pending payments cancelled.
func (s *Service) CancelContract(ctx context.Context, actor model.Actor, contractID string) (*model.Contract, error) {
	var contract *model.Contract
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		contract, err = tx.Contracts().Get(ctx, contractID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("contract not found")
		}
		if err != nil {
			return apperr.Wrap(err, "failed to fetch contract")
		}
		if !policy.CanCancelContract(actor, contract) {
			return apperr.Forbidden("only an admin can cancel a contract")
		}
		if contract.Status.Terminal() {
			return apperr.InvalidState("contract is already %s", contract.Status)
		}

		payments, err := tx.Payments().ListByContract(ctx, contractID)
		if err != nil {
			return apperr.Wrap(err, "failed to list payments")
		}
		for _, p := range payments {
			if p.Status == model.PaymentCompleted {
				return apperr.InvalidState("contract has settled payments and cannot be cancelled")
			}
		}
		for _, p := range payments {
			if p.Status == model.PaymentPending {
				p.Status = model.PaymentCancelled
				if err := tx.Payments().Update(ctx, p); err != nil {
					return apperr.Wrap(err, "failed to cancel payment")
				}
			}
		}

		contract.Status = model.ContractCancelled
		if contract.PaymentStatus == model.PayEscrowed {
			contract.PaymentStatus = model.PayRefunded
		}
		if err := tx.Contracts().Update(ctx, contract); err != nil {
			return apperr.Wrap(err, "failed to update contract")
		}

		job, err := tx.Jobs().Get(ctx, contract.JobID)
		if err != nil {
			return apperr.Wrap(err, "failed to fetch job")
		}
		job.Status = model.JobCancelled
		if err := tx.Jobs().Update(ctx, job); err != nil {
			return apperr.Wrap(err, "failed to update job")
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "contract cancellation failed")
	}

	s.enqueue(notify.Event{
		Kind:      notify.KindContractCancelled,
		UserID:    contract.FreelancerID,
		Reference: contract.ID,
		Message:   "contract cancelled",
	})
	return contract, nil
}

func (s *Service) ListMilestones(ctx context.Context, actor model.Actor, contractID string) ([]*model.Milestone, error) {
	if _, err := s.Get(ctx, actor, contractID); err != nil {
		return nil, err
	}
	out, err := s.store.Milestones().ListByContract(ctx, contractID)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list milestones")
	}
	return out, nil
}

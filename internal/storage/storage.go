package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/openlancer/openlancer/internal/model"
)

// Sentinel errors repos return; services translate them into their error
// taxonomy at the boundary.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// Store bundles the entity repositories behind a single handle. WithTx runs
// fn against a transactional view of the same store: if fn returns nil the
// writes commit, on error (or panic) every write inside fn is rolled back.
// Single-row reads performed inside a transaction see and lock current row
// state, never a pre-transaction snapshot.
type Store interface {
	WithTx(ctx context.Context, fn func(Store) error) error

	Users() UserRepo
	Profiles() ProfileRepo
	Jobs() JobRepo
	Bids() BidRepo
	Contracts() ContractRepo
	Milestones() MilestoneRepo
	Payments() PaymentRepo
	Transactions() TransactionRepo
	Reviews() ReviewRepo
}

type UserRepo interface {
	Create(ctx context.Context, u *model.User) error
	Get(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type ProfileRepo interface {
	Create(ctx context.Context, p *model.Profile) error
	Get(ctx context.Context, userID string) (*model.Profile, error)
	Update(ctx context.Context, p *model.Profile) error
}

// JobFilter narrows ListJobs; zero values mean "no constraint".
type JobFilter struct {
	Status   model.JobStatus
	Category string
	BuyerID  string
	Limit    int
	Offset   int
}

type JobRepo interface {
	Create(ctx context.Context, j *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	Update(ctx context.Context, j *model.Job) error
	List(ctx context.Context, f JobFilter) ([]*model.Job, error)
}

type BidRepo interface {
	Create(ctx context.Context, b *model.Bid) error
	Get(ctx context.Context, id string) (*model.Bid, error)
	Update(ctx context.Context, b *model.Bid) error
	ListByJob(ctx context.Context, jobID string) ([]*model.Bid, error)
	ListByFreelancer(ctx context.Context, freelancerID string) ([]*model.Bid, error)
	FindByJobAndFreelancer(ctx context.Context, jobID, freelancerID string) (*model.Bid, error)
	// RejectPendingSiblings moves every pending bid on the job except keepID
	// to rejected and returns how many were rejected.
	RejectPendingSiblings(ctx context.Context, jobID, keepID string) (int, error)
}

type ContractRepo interface {
	Create(ctx context.Context, c *model.Contract) error
	Get(ctx context.Context, id string) (*model.Contract, error)
	GetByJob(ctx context.Context, jobID string) (*model.Contract, error)
	Update(ctx context.Context, c *model.Contract) error
	ListForUser(ctx context.Context, userID string, status model.ContractStatus) ([]*model.Contract, error)
}

type MilestoneRepo interface {
	Create(ctx context.Context, m *model.Milestone) error
	Get(ctx context.Context, id string) (*model.Milestone, error)
	Update(ctx context.Context, m *model.Milestone) error
	ListByContract(ctx context.Context, contractID string) ([]*model.Milestone, error)
}

type PaymentRepo interface {
	Create(ctx context.Context, p *model.Payment) error
	Get(ctx context.Context, id string) (*model.Payment, error)
	Update(ctx context.Context, p *model.Payment) error
	ListByContract(ctx context.Context, contractID string) ([]*model.Payment, error)
}

// TxnFilter narrows transaction listings.
type TxnFilter struct {
	Type   model.TxnType
	Limit  int
	Offset int
}

type TransactionRepo interface {
	Create(ctx context.Context, t *model.Transaction) error
	Get(ctx context.Context, id string) (*model.Transaction, error)
	Update(ctx context.Context, t *model.Transaction) error
	GetByPayment(ctx context.Context, paymentID string, typ model.TxnType) (*model.Transaction, error)
	ListByUser(ctx context.Context, userID string, f TxnFilter) ([]*model.Transaction, error)
	// Sum totals transaction amounts for a user in a currency, scoped by
	// type and status. The ledger balance is derived entirely from this.
	Sum(ctx context.Context, userID, currency string, typ model.TxnType, status model.TxnStatus) (decimal.Decimal, error)
}

type ReviewRepo interface {
	Create(ctx context.Context, r *model.Review) error
	FindByContractAndReviewer(ctx context.Context, contractID, reviewerID string) (*model.Review, error)
	ListByReviewee(ctx context.Context, revieweeID string, limit, offset int) ([]*model.Review, error)
	CountAndAverage(ctx context.Context, revieweeID string) (int, decimal.Decimal, error)
}

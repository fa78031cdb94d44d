package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile carries the externally owned aggregates the core writes through
// side effects: rating and review count (review service) and total earnings
// (escrow service).
type Profile struct {
	UserID        string          `json:"user_id"`
	DisplayName   string          `json:"display_name"`
	Rating        decimal.Decimal `json:"rating"`
	TotalReviews  int             `json:"total_reviews"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
}

type Job struct {
	ID                string          `json:"id"`
	BuyerID           string          `json:"buyer_id"`
	Category          string          `json:"category"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Budget            decimal.Decimal `json:"budget"`
	Currency          string          `json:"currency"`
	BudgetType        BudgetType      `json:"budget_type"`
	Status            JobStatus       `json:"status"`
	HiredFreelancerID string          `json:"hired_freelancer_id,omitempty"`
	BidsCount         int             `json:"bids_count"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type Bid struct {
	ID           string          `json:"id"`
	JobID        string          `json:"job_id"`
	FreelancerID string          `json:"freelancer_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	DeliveryDays int             `json:"delivery_days"`
	Proposal     string          `json:"proposal"`
	Status       BidStatus       `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type Contract struct {
	ID               string          `json:"id"`
	JobID            string          `json:"job_id"`
	BuyerID          string          `json:"buyer_id"`
	FreelancerID     string          `json:"freelancer_id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Currency         string          `json:"currency"`
	PlatformFee      decimal.Decimal `json:"platform_fee"`
	FreelancerAmount decimal.Decimal `json:"freelancer_amount"`
	ContractType     BudgetType      `json:"contract_type"`
	Status           ContractStatus  `json:"status"`
	PaymentStatus    PaymentState    `json:"payment_status"`
	EscrowAmount     decimal.Decimal `json:"escrow_amount"`
	CompletedDate    *time.Time      `json:"completed_date,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type Milestone struct {
	ID            string          `json:"id"`
	ContractID    string          `json:"contract_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	DueDate       time.Time       `json:"due_date"`
	Status        MilestoneStatus `json:"status"`
	CompletedDate *time.Time      `json:"completed_date,omitempty"`
	Order         int             `json:"order"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Payment struct {
	ID            string          `json:"id"`
	ContractID    string          `json:"contract_id,omitempty"`
	PayerID       string          `json:"payer_id"`
	ReceiverID    string          `json:"receiver_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PlatformFee   decimal.Decimal `json:"platform_fee"`
	Method        string          `json:"method"`
	Gateway       string          `json:"gateway,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Status        PaymentStatus   `json:"status"`
	PaymentType   PaymentType     `json:"payment_type"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Transaction is an append-mostly ledger row. Once Status is completed the
// row is immutable history; a user's balance in a currency is the sum of
// completed credits minus completed debits.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	PaymentID   string          `json:"payment_id,omitempty"`
	Type        TxnType         `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Balance     decimal.Decimal `json:"balance"`
	Description string          `json:"description"`
	Status      TxnStatus       `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Review struct {
	ID         string         `json:"id"`
	ContractID string         `json:"contract_id"`
	ReviewerID string         `json:"reviewer_id"`
	RevieweeID string         `json:"reviewee_id"`
	Rating     int            `json:"rating"`
	Comment    string         `json:"comment"`
	Categories map[string]int `json:"categories,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// FeeSplit applies a platform fee percentage to an amount, rounding the fee
// to 2 decimal places. total == fee + net always holds because net is
// derived by subtraction.
func FeeSplit(amount, percent decimal.Decimal) (fee, net decimal.Decimal) {
	fee = amount.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
	net = amount.Sub(fee)
	return fee, net
}

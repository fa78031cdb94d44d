package model

// Status fields are closed typed strings. Transition tables below are the
// single source of truth for what the services may do; nothing mutates a
// status field without going through them.

type Role string

const (
	RoleBuyer      Role = "buyer"
	RoleFreelancer Role = "freelancer"
	RoleAdmin      Role = "admin"
)

type JobStatus string

const (
	JobPosted     JobStatus = "posted"
	JobBidding    JobStatus = "bidding"
	JobHired      JobStatus = "hired"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
	JobDisputed   JobStatus = "disputed"
)

// AcceptsBids reports whether new bids may be placed on a job.
func (s JobStatus) AcceptsBids() bool {
	return s == JobPosted || s == JobBidding
}

type BudgetType string

const (
	BudgetFixed  BudgetType = "fixed"
	BudgetHourly BudgetType = "hourly"
)

func (b BudgetType) Valid() bool {
	return b == BudgetFixed || b == BudgetHourly
}

type BidStatus string

const (
	BidPending   BidStatus = "pending"
	BidAccepted  BidStatus = "accepted"
	BidRejected  BidStatus = "rejected"
	BidWithdrawn BidStatus = "withdrawn"
)

type ContractStatus string

const (
	ContractPending   ContractStatus = "pending"
	ContractActive    ContractStatus = "active"
	ContractCompleted ContractStatus = "completed"
	ContractCancelled ContractStatus = "cancelled"
	ContractDisputed  ContractStatus = "disputed"
)

// Terminal reports whether no further contract transition is allowed.
func (s ContractStatus) Terminal() bool {
	return s == ContractCompleted || s == ContractCancelled
}

type PaymentState string

const (
	PayPending    PaymentState = "pending"
	PayEscrowed   PaymentState = "escrowed"
	PayReleased   PaymentState = "released"
	PayRefunded   PaymentState = "refunded"
)

type MilestoneStatus string

const (
	MilestonePending    MilestoneStatus = "pending"
	MilestoneInProgress MilestoneStatus = "in_progress"
	MilestoneCompleted  MilestoneStatus = "completed"
	MilestoneApproved   MilestoneStatus = "approved"
	MilestoneRejected   MilestoneStatus = "rejected"
)

// milestoneTransitions maps a current status to the set of statuses a party
// may move it to. Who may perform which move is enforced by policy; rejected
// milestones may be reworked (rejected -> in_progress).
var milestoneTransitions = map[MilestoneStatus][]MilestoneStatus{
	MilestonePending:    {MilestoneInProgress, MilestoneCompleted},
	MilestoneInProgress: {MilestoneCompleted},
	MilestoneCompleted:  {MilestoneApproved, MilestoneRejected},
	MilestoneRejected:   {MilestoneInProgress},
}

// CanTransition reports whether a milestone may move from s to next.
func (s MilestoneStatus) CanTransition(next MilestoneStatus) bool {
	for _, allowed := range milestoneTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentCancelled  PaymentStatus = "cancelled"
)

type PaymentType string

const (
	PaymentEscrow     PaymentType = "escrow"
	PaymentMilestone  PaymentType = "milestone"
	PaymentWithdrawal PaymentType = "withdrawal"
	PaymentDeposit    PaymentType = "deposit"
	PaymentRefund     PaymentType = "refund"
)

type TxnType string

const (
	TxnCredit TxnType = "credit"
	TxnDebit  TxnType = "debit"
)

type TxnStatus string

const (
	TxnPending   TxnStatus = "pending"
	TxnCompleted TxnStatus = "completed"
	TxnFailed    TxnStatus = "failed"
	TxnCancelled TxnStatus = "cancelled"
)

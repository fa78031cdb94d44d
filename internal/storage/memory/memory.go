// Package memory is an in-memory Store used by tests and local development.
// A single mutex serializes transactions; rollback restores a snapshot of
// the entity maps. Stored structs are never mutated in place, so a shallow
// copy of each map is a correct snapshot.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/openlancer/openlancer/internal/model"
	"github.com/openlancer/openlancer/internal/storage"
)

type data struct {
	users        map[string]*model.User
	usersByEmail map[string]string
	profiles     map[string]*model.Profile
	jobs         map[string]*model.Job
	bids         map[string]*model.Bid
	contracts    map[string]*model.Contract
	milestones   map[string]*model.Milestone
	payments     map[string]*model.Payment
	transactions map[string]*model.Transaction
	reviews      map[string]*model.Review
}

func (d *data) clone() *data {
	cp := &data{
		users:        make(map[string]*model.User, len(d.users)),
		usersByEmail: make(map[string]string, len(d.usersByEmail)),
		profiles:     make(map[string]*model.Profile, len(d.profiles)),
		jobs:         make(map[string]*model.Job, len(d.jobs)),
		bids:         make(map[string]*model.Bid, len(d.bids)),
		contracts:    make(map[string]*model.Contract, len(d.contracts)),
		milestones:   make(map[string]*model.Milestone, len(d.milestones)),
		payments:     make(map[string]*model.Payment, len(d.payments)),
		transactions: make(map[string]*model.Transaction, len(d.transactions)),
		reviews:      make(map[string]*model.Review, len(d.reviews)),
	}
	for k, v := range d.users {
		cp.users[k] = v
	}
	for k, v := range d.usersByEmail {
		cp.usersByEmail[k] = v
	}
	for k, v := range d.profiles {
		cp.profiles[k] = v
	}
	for k, v := range d.jobs {
		cp.jobs[k] = v
	}
	for k, v := range d.bids {
		cp.bids[k] = v
	}
	for k, v := range d.contracts {
		cp.contracts[k] = v
	}
	for k, v := range d.milestones {
		cp.milestones[k] = v
	}
	for k, v := range d.payments {
		cp.payments[k] = v
	}
	for k, v := range d.transactions {
		cp.transactions[k] = v
	}
	for k, v := range d.reviews {
		cp.reviews[k] = v
	}
	return cp
}

// Store implements storage.Store in memory.
type Store struct {
	mu   *sync.Mutex
	d    *data
	inTx bool
}

func New() *Store {
	return &Store{
		mu: &sync.Mutex{},
		d: &data{
			users:        make(map[string]*model.User),
			usersByEmail: make(map[string]string),
			profiles:     make(map[string]*model.Profile),
			jobs:         make(map[string]*model.Job),
			bids:         make(map[string]*model.Bid),
			contracts:    make(map[string]*model.Contract),
			milestones:   make(map[string]*model.Milestone),
			payments:     make(map[string]*model.Payment),
			transactions: make(map[string]*model.Transaction),
			reviews:      make(map[string]*model.Review),
		},
	}
}

func (s *Store) lock() {
	if !s.inTx {
		s.mu.Lock()
	}
}

func (s *Store) unlock() {
	if !s.inTx {
		s.mu.Unlock()
	}
}

// WithTx serializes the whole group under the store mutex and restores the
// pre-transaction snapshot when fn fails or panics.
func (s *Store) WithTx(ctx context.Context, fn func(storage.Store) error) error {
	if s.inTx {
		// Nested groups join the enclosing transaction.
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	tx := &Store{mu: s.mu, d: s.d, inTx: true}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.d = snapshot
				panic(r)
			}
		}()
		err = fn(tx)
	}()
	if err != nil {
		s.d = snapshot
		return err
	}
	return nil
}

func (s *Store) Users() storage.UserRepo               { return userRepo{s} }
func (s *Store) Profiles() storage.ProfileRepo         { return profileRepo{s} }
func (s *Store) Jobs() storage.JobRepo                 { return jobRepo{s} }
func (s *Store) Bids() storage.BidRepo                 { return bidRepo{s} }
func (s *Store) Contracts() storage.ContractRepo       { return contractRepo{s} }
func (s *Store) Milestones() storage.MilestoneRepo     { return milestoneRepo{s} }
func (s *Store) Payments() storage.PaymentRepo         { return paymentRepo{s} }
func (s *Store) Transactions() storage.TransactionRepo { return txnRepo{s} }
func (s *Store) Reviews() storage.ReviewRepo           { return reviewRepo{s} }

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *model.User) error {
	r.s.lock()
	defer r.s.unlock()
	if _, ok := r.s.d.usersByEmail[u.Email]; ok {
		return storage.ErrDuplicate
	}
	cp := *u
	r.s.d.users[cp.ID] = &cp
	r.s.d.usersByEmail[cp.Email] = cp.ID
	return nil
}

func (r userRepo) Get(_ context.Context, id string) (*model.User, error) {
	r.s.lock()
	defer r.s.unlock()
	u, ok := r.s.d.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.lock()
	id, ok := r.s.d.usersByEmail[email]
	r.s.unlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return r.Get(ctx, id)
}

type profileRepo struct{ s *Store }

func (r profileRepo) Create(_ context.Context, p *model.Profile) error {
	r.s.lock()
	defer r.s.unlock()
	if _, ok := r.s.d.profiles[p.UserID]; ok {
		return storage.ErrDuplicate
	}
	cp := *p
	r.s.d.profiles[cp.UserID] = &cp
	return nil
}

func (r profileRepo) Get(_ context.Context, userID string) (*model.Profile, error) {
	r.s.lock()
	defer r.s.unlock()
	p, ok := r.s.d.profiles[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r profileRepo) Update(_ context.Context, p *model.Profile) error {
	r.s.lock()
	defer r.s.unlock()
	if _, ok := r.s.d.profiles[p.UserID]; !ok {
		return storage.ErrNotFound
	}
	cp := *p
	r.s.d.profiles[cp.UserID] = &cp
	return nil
}

type jobRepo struct{ s *Store }

func (r jobRepo) Create(_ context.Context, j *model.Job) error {
	r.s.lock()
	defer r.s.unlock()
	cp := *j
	r.s.d.jobs[cp.ID] = &cp
	return nil
}

func (r jobRepo) Get(_ context.Context, id string) (*model.Job, error) {
	r.s.lock()
	defer r.s.unlock()
	j, ok := r.s.d.jobs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r jobRepo) Update(_ context.Context, j *model.Job) error {
	r.s.lock()
	defer r.s.unlock()
	if _, ok := r.s.d.jobs[j.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *j
	r.s.d.jobs[cp.ID] = &cp
	return nil
}

func (r jobRepo) List(_ context.Context, f storage.JobFilter) ([]*model.Job, error) {
	r.s.lock()
	defer r.s.unlock()
	var out []*model.Job
	for _, j := range r.s.d.jobs {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.Category != "" && j.Category != f.Category {
			continue
		}
		if f.BuyerID != "" && j.BuyerID != f.BuyerID {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return paginate(out, f.Limit, f.Offset), nil
}

type bidRepo struct{ s *Store }

func (r bidRepo) Create(_ context.Context, b *model.Bid) error {
	r.s.lock()
	defer r.s.unlock()
	for _, existing := range r.s.d.bids {
		if existing.JobID == b.JobID && existing.FreelancerID == b.FreelancerID {
			return storage.ErrDuplicate
		}
	}
	cp := *b
	r.s.d.bids[cp.ID] = &cp
	return nil
}

func (r bidRepo) Get(_ context.Context, id string) (*model.Bid, error) {
	r.s.lock()
	defer r.s.unlock()
	b, ok := r.s.d.bids[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r bidRepo) Update(_ context.Context, b *model.Bid) error {
	r.s.lock()
	defer r.s.unlock()
	if _, ok := r.s.d.bids[b.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *b
	r.s.d.bids[cp.ID] = &cp
	return nil
}

func (r bidRepo) ListByJob(_ context.Context, jobID string) ([]*model.Bid, error) {
	r.s.lock()
	defer r.s.unlock()
	var out []*model.Bid
	for _, b := range r.s.d.bids {
		if b.JobID == jobID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

func (r bidRepo) ListByFreelancer(_ context.Context, freelancerID string) ([]*model.Bid, error) {
	r.s.lock()
	defer r.s.unlock()
	var out []*model.Bid
	for _, b := range r.s.d.bids {
		if b.FreelancerID == freelancerID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out, nil
}

func (r bidRepo) FindByJobAndFreelancer(_ context.Context, jobID, freelancerID string) (*model.Bid, error) {
	r.s.lock()
	defer r.s.unlock()
	for _, b := range r.s.d.bids {
		if b.JobID == jobID && b.FreelancerID == freelancerID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r bidRepo) RejectPendingSiblings(_ context.Context, jobID, keepID string) (int, error) {
	r.s.lock()
	defer r.s.unlock()
	n := 0
	for id, b := range r.s.d.bids {
		if b.JobID == jobID && b.ID != keepID && b.Status == model.BidPending {
			cp := *b
			cp.Status = model.BidRejected
			r.s.d.bids[id] = &cp
			n++
		}
	}
	return n, nil
}

type contractRepo struct{ s *Store }

func (r contractRepo) Create(_ context.Context, c *model.Contract) error {
	r.s.lock()
	defer r.s.unlock()
	for _, existing := range r.s.d.contracts {
		if existing.JobID == c.JobID {
			return storage.ErrDuplicate
		}
	}
	cp := *c
	r.s.d.contracts[cp.ID] = &cp
	return nil
}

func (r contractRepo) Get(_ context.Context, id string) (*model.Contract, error) {
	r.s.lock()
	defer r.s.unlock()
	c, ok := r.s.d.contracts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r contractRepo) GetByJob(_ context.Context, jobID string) (*model.Contract, error) {
	r.s.lock()
	defer r.s.unlock()
	for _, c := range r.s.d.contracts {
		if c.JobID == jobID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r contractRepo) Update(_ context.Context, c *model.Contract) error {
	r.s.lock()
	defer r.s.unlock()
	if _, ok := r.s.d.contracts[c.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *c
	r.s.d.contracts[cp.ID] = &cp
	return nil
}

func (r contractRepo) ListForUser(_ context.Context, userID string, status model.ContractStatus) ([]*model.Contract, error) {
	r.s.lock()
	defer r.s.unlock()
	var out []*model.Contract
	for _, c := range r.s.d.contracts {
		if c.BuyerID != userID && c.FreelancerID != userID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out, nil
}

type milestoneRepo struct{ s *Store }

func (r milestoneRepo) Create(_ context.Context, m *model.Milestone) error {
	r.s.lock()
	defer r.s.unlock()
	cp := *m
	r.s.d.milestones[cp.ID] = &cp
	return nil
}

func (r milestoneRepo) Get(_ context.Context, id string) (*model.Milestone, error) {
	r.s.lock()
	defer r.s.unlock()
	m, ok := r.s.d.milestones[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r milestoneRepo) Update(_ context.Context, m *model.Milestone) error {
	r.s.lock()
	defer r.s.unlock()
	if _, ok := r.s.d.milestones[m.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *m
	r.s.d.milestones[cp.ID] = &cp
	return nil
}

func (r milestoneRepo) ListByContract(_ context.Context, contractID string) ([]*model.Milestone, error) {
	r.s.lock()
	defer r.s.unlock()
	var out []*model.Milestone
	for _, m := range r.s.d.milestones {
		if m.ContractID == contractID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Order < out[k].Order })
	return out, nil
}

type paymentRepo struct{ s *Store }

func (r paymentRepo) Create(_ context.Context, p *model.Payment) error {
	r.s.lock()
	defer r.s.unlock()
	cp := *p
	r.s.d.payments[cp.ID] = &cp
	return nil
}

func (r paymentRepo) Get(_ context.Context, id string) (*model.Payment, error) {
	r.s.lock()
	defer r.s.unlock()
	p, ok := r.s.d.payments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r paymentRepo) Update(_ context.Context, p *model.Payment) error {
	r.s.lock()
	defer r.s.unlock()
	if _, ok := r.s.d.payments[p.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *p
	r.s.d.payments[cp.ID] = &cp
	return nil
}

func (r paymentRepo) ListByContract(_ context.Context, contractID string) ([]*model.Payment, error) {
	r.s.lock()
	defer r.s.unlock()
	var out []*model.Payment
	for _, p := range r.s.d.payments {
		if p.ContractID == contractID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

type txnRepo struct{ s *Store }

func (r txnRepo) Create(_ context.Context, t *model.Transaction) error {
	r.s.lock()
	defer r.s.unlock()
	cp := *t
	r.s.d.transactions[cp.ID] = &cp
	return nil
}

func (r txnRepo) Get(_ context.Context, id string) (*model.Transaction, error) {
	r.s.lock()
	defer r.s.unlock()
	t, ok := r.s.d.transactions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r txnRepo) Update(_ context.Context, t *model.Transaction) error {
	r.s.lock()
	defer r.s.unlock()
	if _, ok := r.s.d.transactions[t.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *t
	r.s.d.transactions[cp.ID] = &cp
	return nil
}

func (r txnRepo) GetByPayment(_ context.Context, paymentID string, typ model.TxnType) (*model.Transaction, error) {
	r.s.lock()
	defer r.s.unlock()
	for _, t := range r.s.d.transactions {
		if t.PaymentID == paymentID && t.Type == typ {
			cp := *t
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r txnRepo) ListByUser(_ context.Context, userID string, f storage.TxnFilter) ([]*model.Transaction, error) {
	r.s.lock()
	defer r.s.unlock()
	var out []*model.Transaction
	for _, t := range r.s.d.transactions {
		if t.UserID != userID {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return paginate(out, f.Limit, f.Offset), nil
}

func (r txnRepo) Sum(_ context.Context, userID, currency string, typ model.TxnType, status model.TxnStatus) (decimal.Decimal, error) {
	r.s.lock()
	defer r.s.unlock()
	total := decimal.Zero
	for _, t := range r.s.d.transactions {
		if t.UserID == userID && t.Currency == currency && t.Type == typ && t.Status == status {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

type reviewRepo struct{ s *Store }

func (r reviewRepo) Create(_ context.Context, rv *model.Review) error {
	r.s.lock()
	defer r.s.unlock()
	for _, existing := range r.s.d.reviews {
		if existing.ContractID == rv.ContractID && existing.ReviewerID == rv.ReviewerID {
			return storage.ErrDuplicate
		}
	}
	cp := *rv
	r.s.d.reviews[cp.ID] = &cp
	return nil
}

func (r reviewRepo) FindByContractAndReviewer(_ context.Context, contractID, reviewerID string) (*model.Review, error) {
	r.s.lock()
	defer r.s.unlock()
	for _, rv := range r.s.d.reviews {
		if rv.ContractID == contractID && rv.ReviewerID == reviewerID {
			cp := *rv
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r reviewRepo) ListByReviewee(_ context.Context, revieweeID string, limit, offset int) ([]*model.Review, error) {
	r.s.lock()
	defer r.s.unlock()
	var out []*model.Review
	for _, rv := range r.s.d.reviews {
		if rv.RevieweeID == revieweeID {
			cp := *rv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (r reviewRepo) CountAndAverage(_ context.Context, revieweeID string) (int, decimal.Decimal, error) {
	r.s.lock()
	defer r.s.unlock()
	count := 0
	sum := decimal.Zero
	for _, rv := range r.s.d.reviews {
		if rv.RevieweeID == revieweeID {
			count++
			sum = sum.Add(decimal.NewFromInt(int64(rv.Rating)))
		}
	}
	if count == 0 {
		return 0, decimal.Zero, nil
	}
	return count, sum.Div(decimal.NewFromInt(int64(count))).Round(2), nil
}

func paginate[T any](in []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(in) {
			return nil
		}
		in = in[offset:]
	}
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

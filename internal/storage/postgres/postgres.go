// Package postgres implements storage.Store on pgx/v5. WithTx wraps a
// pgx.Tx; repos running inside a transaction lock single rows with
// FOR UPDATE so read-modify-write sequences never trust a pre-transaction
// snapshot.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openlancer/openlancer/internal/model"
	"github.com/openlancer/openlancer/internal/storage"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

// Connect opens the pool, verifies connectivity and bootstraps the schema.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	log.Println("connected to postgres")
	if err := ensureSchema(ctx, pool); err != nil {
		return nil, err
	}
	return &Store{pool: pool, q: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// forUpdate appends a row lock when running inside a transaction.
func (s *Store) forUpdate() string {
	if s.inTx {
		return " FOR UPDATE"
	}
	return ""
}

func (s *Store) WithTx(ctx context.Context, fn func(storage.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{pool: s.pool, q: tx, inTx: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
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

// mapErr converts driver errors into the storage sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return storage.ErrDuplicate
	}
	return err
}

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, u *model.User) error {
	_, err := r.s.q.Exec(ctx,
		`INSERT INTO users (id, email, name, password, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.CreatedAt)
	return mapErr(err)
}

func (r userRepo) Get(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	err := r.s.q.QueryRow(ctx,
		`SELECT id, email, name, password, role, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	err := r.s.q.QueryRow(ctx,
		`SELECT id, email, name, password, role, created_at FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

type profileRepo struct{ s *Store }

func (r profileRepo) Create(ctx context.Context, p *model.Profile) error {
	_, err := r.s.q.Exec(ctx,
		`INSERT INTO profiles (user_id, display_name, rating, total_reviews, total_earnings)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.UserID, p.DisplayName, p.Rating, p.TotalReviews, p.TotalEarnings)
	return mapErr(err)
}

func (r profileRepo) Get(ctx context.Context, userID string) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.s.q.QueryRow(ctx,
		`SELECT user_id, display_name, rating, total_reviews, total_earnings
		 FROM profiles WHERE user_id = $1`+r.s.forUpdate(), userID,
	).Scan(&p.UserID, &p.DisplayName, &p.Rating, &p.TotalReviews, &p.TotalEarnings)
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func (r profileRepo) Update(ctx context.Context, p *model.Profile) error {
	tag, err := r.s.q.Exec(ctx,
		`UPDATE profiles SET display_name = $2, rating = $3, total_reviews = $4, total_earnings = $5
		 WHERE user_id = $1`,
		p.UserID, p.DisplayName, p.Rating, p.TotalReviews, p.TotalEarnings)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const jobCols = `id, buyer_id, category, title, description, budget, currency, budget_type,
	status, COALESCE(hired_freelancer_id::text, ''), bids_count, created_at, updated_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	j := &model.Job{}
	err := row.Scan(&j.ID, &j.BuyerID, &j.Category, &j.Title, &j.Description, &j.Budget,
		&j.Currency, &j.BudgetType, &j.Status, &j.HiredFreelancerID, &j.BidsCount,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return j, nil
}

type jobRepo struct{ s *Store }

func (r jobRepo) Create(ctx context.Context, j *model.Job) error {
	_, err := r.s.q.Exec(ctx,
		`INSERT INTO jobs (id, buyer_id, category, title, description, budget, currency,
		   budget_type, status, bids_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		j.ID, j.BuyerID, j.Category, j.Title, j.Description, j.Budget, j.Currency,
		j.BudgetType, j.Status, j.BidsCount, j.CreatedAt, j.UpdatedAt)
	return mapErr(err)
}

func (r jobRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	return scanJob(r.s.q.QueryRow(ctx,
		`SELECT `+jobCols+` FROM jobs WHERE id = $1`+r.s.forUpdate(), id))
}

func (r jobRepo) Update(ctx context.Context, j *model.Job) error {
	hired := any(nil)
	if j.HiredFreelancerID != "" {
		hired = j.HiredFreelancerID
	}
	tag, err := r.s.q.Exec(ctx,
		`UPDATE jobs SET status = $2, hired_freelancer_id = $3, bids_count = $4, updated_at = NOW()
		 WHERE id = $1`,
		j.ID, j.Status, hired, j.BidsCount)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r jobRepo) List(ctx context.Context, f storage.JobFilter) ([]*model.Job, error) {
	query := `SELECT ` + jobCols + ` FROM jobs WHERE 1=1`
	args := []any{}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if f.BuyerID != "" {
		args = append(args, f.BuyerID)
		query += fmt.Sprintf(" AND buyer_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

const bidCols = `id, job_id, freelancer_id, amount, currency, delivery_days, proposal,
	status, created_at, updated_at`

func scanBid(row pgx.Row) (*model.Bid, error) {
	b := &model.Bid{}
	err := row.Scan(&b.ID, &b.JobID, &b.FreelancerID, &b.Amount, &b.Currency,
		&b.DeliveryDays, &b.Proposal, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return b, nil
}

type bidRepo struct{ s *Store }

func (r bidRepo) Create(ctx context.Context, b *model.Bid) error {
	_, err := r.s.q.Exec(ctx,
		`INSERT INTO bids (id, job_id, freelancer_id, amount, currency, delivery_days,
		   proposal, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.JobID, b.FreelancerID, b.Amount, b.Currency, b.DeliveryDays,
		b.Proposal, b.Status, b.CreatedAt, b.UpdatedAt)
	return mapErr(err)
}

func (r bidRepo) Get(ctx context.Context, id string) (*model.Bid, error) {
	return scanBid(r.s.q.QueryRow(ctx,
		`SELECT `+bidCols+` FROM bids WHERE id = $1`+r.s.forUpdate(), id))
}

func (r bidRepo) Update(ctx context.Context, b *model.Bid) error {
	tag, err := r.s.q.Exec(ctx,
		`UPDATE bids SET status = $2, updated_at = NOW() WHERE id = $1`, b.ID, b.Status)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r bidRepo) ListByJob(ctx context.Context, jobID string) ([]*model.Bid, error) {
	return r.list(ctx, `SELECT `+bidCols+` FROM bids WHERE job_id = $1 ORDER BY amount ASC, created_at DESC`, jobID)
}

func (r bidRepo) ListByFreelancer(ctx context.Context, freelancerID string) ([]*model.Bid, error) {
	return r.list(ctx, `SELECT `+bidCols+` FROM bids WHERE freelancer_id = $1 ORDER BY created_at DESC`, freelancerID)
}

func (r bidRepo) list(ctx context.Context, query string, arg any) ([]*model.Bid, error) {
	rows, err := r.s.q.Query(ctx, query, arg)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r bidRepo) FindByJobAndFreelancer(ctx context.Context, jobID, freelancerID string) (*model.Bid, error) {
	return scanBid(r.s.q.QueryRow(ctx,
		`SELECT `+bidCols+` FROM bids WHERE job_id = $1 AND freelancer_id = $2`, jobID, freelancerID))
}

func (r bidRepo) RejectPendingSiblings(ctx context.Context, jobID, keepID string) (int, error) {
	tag, err := r.s.q.Exec(ctx,
		`UPDATE bids SET status = 'rejected', updated_at = NOW()
		 WHERE job_id = $1 AND id <> $2 AND status = 'pending'`, jobID, keepID)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}

const contractCols = `id, job_id, buyer_id, freelancer_id, title, description, total_amount,
	currency, platform_fee, freelancer_amount, contract_type, status, payment_status,
	escrow_amount, completed_date, created_at, updated_at`

func scanContract(row pgx.Row) (*model.Contract, error) {
	c := &model.Contract{}
	err := row.Scan(&c.ID, &c.JobID, &c.BuyerID, &c.FreelancerID, &c.Title, &c.Description,
		&c.TotalAmount, &c.Currency, &c.PlatformFee, &c.FreelancerAmount, &c.ContractType,
		&c.Status, &c.PaymentStatus, &c.EscrowAmount, &c.CompletedDate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return c, nil
}

type contractRepo struct{ s *Store }

func (r contractRepo) Create(ctx context.Context, c *model.Contract) error {
	_, err := r.s.q.Exec(ctx,
		`INSERT INTO contracts (id, job_id, buyer_id, freelancer_id, title, description,
		   total_amount, currency, platform_fee, freelancer_amount, contract_type, status,
		   payment_status, escrow_amount, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.ID, c.JobID, c.BuyerID, c.FreelancerID, c.Title, c.Description,
		c.TotalAmount, c.Currency, c.PlatformFee, c.FreelancerAmount, c.ContractType,
		c.Status, c.PaymentStatus, c.EscrowAmount, c.CreatedAt, c.UpdatedAt)
	return mapErr(err)
}

func (r contractRepo) Get(ctx context.Context, id string) (*model.Contract, error) {
	return scanContract(r.s.q.QueryRow(ctx,
		`SELECT `+contractCols+` FROM contracts WHERE id = $1`+r.s.forUpdate(), id))
}

func (r contractRepo) GetByJob(ctx context.Context, jobID string) (*model.Contract, error) {
	return scanContract(r.s.q.QueryRow(ctx,
		`SELECT `+contractCols+` FROM contracts WHERE job_id = $1`, jobID))
}

func (r contractRepo) Update(ctx context.Context, c *model.Contract) error {
	tag, err := r.s.q.Exec(ctx,
		`UPDATE contracts SET status = $2, payment_status = $3, escrow_amount = $4,
		   completed_date = $5, updated_at = NOW()
		 WHERE id = $1`,
		c.ID, c.Status, c.PaymentStatus, c.EscrowAmount, c.CompletedDate)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r contractRepo) ListForUser(ctx context.Context, userID string, status model.ContractStatus) ([]*model.Contract, error) {
	query := `SELECT ` + contractCols + ` FROM contracts WHERE (buyer_id = $1 OR freelancer_id = $1)`
	args := []any{userID}
	if status != "" {
		args = append(args, status)
		query += " AND status = $2"
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const milestoneCols = `id, contract_id, title, description, amount, currency, due_date,
	status, completed_date, sort_order, created_at, updated_at`

func scanMilestone(row pgx.Row) (*model.Milestone, error) {
	m := &model.Milestone{}
	err := row.Scan(&m.ID, &m.ContractID, &m.Title, &m.Description, &m.Amount, &m.Currency,
		&m.DueDate, &m.Status, &m.CompletedDate, &m.Order, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return m, nil
}

type milestoneRepo struct{ s *Store }

func (r milestoneRepo) Create(ctx context.Context, m *model.Milestone) error {
	_, err := r.s.q.Exec(ctx,
		`INSERT INTO milestones (id, contract_id, title, description, amount, currency,
		   due_date, status, sort_order, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.ContractID, m.Title, m.Description, m.Amount, m.Currency,
		m.DueDate, m.Status, m.Order, m.CreatedAt, m.UpdatedAt)
	return mapErr(err)
}

func (r milestoneRepo) Get(ctx context.Context, id string) (*model.Milestone, error) {
	return scanMilestone(r.s.q.QueryRow(ctx,
		`SELECT `+milestoneCols+` FROM milestones WHERE id = $1`+r.s.forUpdate(), id))
}

func (r milestoneRepo) Update(ctx context.Context, m *model.Milestone) error {
	tag, err := r.s.q.Exec(ctx,
		`UPDATE milestones SET status = $2, completed_date = $3, updated_at = NOW() WHERE id = $1`,
		m.ID, m.Status, m.CompletedDate)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r milestoneRepo) ListByContract(ctx context.Context, contractID string) ([]*model.Milestone, error) {
	rows, err := r.s.q.Query(ctx,
		`SELECT `+milestoneCols+` FROM milestones WHERE contract_id = $1 ORDER BY sort_order ASC`, contractID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const paymentCols = `id, COALESCE(contract_id::text, ''), payer_id, receiver_id, amount, currency,
	platform_fee, method, COALESCE(gateway, ''), COALESCE(transaction_id, ''), status,
	payment_type, metadata, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	err := row.Scan(&p.ID, &p.ContractID, &p.PayerID, &p.ReceiverID, &p.Amount, &p.Currency,
		&p.PlatformFee, &p.Method, &p.Gateway, &p.TransactionID, &p.Status,
		&p.PaymentType, &p.Metadata, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

type paymentRepo struct{ s *Store }

func (r paymentRepo) Create(ctx context.Context, p *model.Payment) error {
	contractID := any(nil)
	if p.ContractID != "" {
		contractID = p.ContractID
	}
	_, err := r.s.q.Exec(ctx,
		`INSERT INTO payments (id, contract_id, payer_id, receiver_id, amount, currency,
		   platform_fee, method, gateway, status, payment_type, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, contractID, p.PayerID, p.ReceiverID, p.Amount, p.Currency,
		p.PlatformFee, p.Method, p.Gateway, p.Status, p.PaymentType, p.Metadata,
		p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

func (r paymentRepo) Get(ctx context.Context, id string) (*model.Payment, error) {
	return scanPayment(r.s.q.QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE id = $1`+r.s.forUpdate(), id))
}

func (r paymentRepo) Update(ctx context.Context, p *model.Payment) error {
	txnID := any(nil)
	if p.TransactionID != "" {
		txnID = p.TransactionID
	}
	tag, err := r.s.q.Exec(ctx,
		`UPDATE payments SET status = $2, transaction_id = $3, updated_at = NOW() WHERE id = $1`,
		p.ID, p.Status, txnID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r paymentRepo) ListByContract(ctx context.Context, contractID string) ([]*model.Payment, error) {
	rows, err := r.s.q.Query(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE contract_id = $1 ORDER BY created_at ASC`, contractID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const txnCols = `id, user_id, COALESCE(payment_id::text, ''), type, amount, currency,
	balance, COALESCE(description, ''), status, created_at`

func scanTxn(row pgx.Row) (*model.Transaction, error) {
	t := &model.Transaction{}
	err := row.Scan(&t.ID, &t.UserID, &t.PaymentID, &t.Type, &t.Amount, &t.Currency,
		&t.Balance, &t.Description, &t.Status, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return t, nil
}

type txnRepo struct{ s *Store }

func (r txnRepo) Create(ctx context.Context, t *model.Transaction) error {
	paymentID := any(nil)
	if t.PaymentID != "" {
		paymentID = t.PaymentID
	}
	_, err := r.s.q.Exec(ctx,
		`INSERT INTO transactions (id, user_id, payment_id, type, amount, currency,
		   balance, description, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.UserID, paymentID, t.Type, t.Amount, t.Currency,
		t.Balance, t.Description, t.Status, t.CreatedAt)
	return mapErr(err)
}

func (r txnRepo) Get(ctx context.Context, id string) (*model.Transaction, error) {
	return scanTxn(r.s.q.QueryRow(ctx,
		`SELECT `+txnCols+` FROM transactions WHERE id = $1`+r.s.forUpdate(), id))
}

func (r txnRepo) Update(ctx context.Context, t *model.Transaction) error {
	tag, err := r.s.q.Exec(ctx,
		`UPDATE transactions SET status = $2 WHERE id = $1`, t.ID, t.Status)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r txnRepo) GetByPayment(ctx context.Context, paymentID string, typ model.TxnType) (*model.Transaction, error) {
	return scanTxn(r.s.q.QueryRow(ctx,
		`SELECT `+txnCols+` FROM transactions WHERE payment_id = $1 AND type = $2`+r.s.forUpdate(),
		paymentID, typ))
}

func (r txnRepo) ListByUser(ctx context.Context, userID string, f storage.TxnFilter) ([]*model.Transaction, error) {
	query := `SELECT ` + txnCols + ` FROM transactions WHERE user_id = $1`
	args := []any{userID}
	if f.Type != "" {
		args = append(args, f.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r txnRepo) Sum(ctx context.Context, userID, currency string, typ model.TxnType, status model.TxnStatus) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.s.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions
		 WHERE user_id = $1 AND currency = $2 AND type = $3 AND status = $4`,
		userID, currency, typ, status,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, mapErr(err)
	}
	return total, nil
}

type reviewRepo struct{ s *Store }

func (r reviewRepo) Create(ctx context.Context, rv *model.Review) error {
	_, err := r.s.q.Exec(ctx,
		`INSERT INTO reviews (id, contract_id, reviewer_id, reviewee_id, rating, comment,
		   categories, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rv.ID, rv.ContractID, rv.ReviewerID, rv.RevieweeID, rv.Rating, rv.Comment,
		rv.Categories, rv.CreatedAt)
	return mapErr(err)
}

func (r reviewRepo) FindByContractAndReviewer(ctx context.Context, contractID, reviewerID string) (*model.Review, error) {
	rv := &model.Review{}
	err := r.s.q.QueryRow(ctx,
		`SELECT id, contract_id, reviewer_id, reviewee_id, rating, COALESCE(comment, ''), categories, created_at
		 FROM reviews WHERE contract_id = $1 AND reviewer_id = $2`,
		contractID, reviewerID,
	).Scan(&rv.ID, &rv.ContractID, &rv.ReviewerID, &rv.RevieweeID, &rv.Rating, &rv.Comment,
		&rv.Categories, &rv.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return rv, nil
}

func (r reviewRepo) ListByReviewee(ctx context.Context, revieweeID string, limit, offset int) ([]*model.Review, error) {
	rows, err := r.s.q.Query(ctx,
		`SELECT id, contract_id, reviewer_id, reviewee_id, rating, COALESCE(comment, ''), categories, created_at
		 FROM reviews WHERE reviewee_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		revieweeID, limit, offset)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Review
	for rows.Next() {
		rv := &model.Review{}
		if err := rows.Scan(&rv.ID, &rv.ContractID, &rv.ReviewerID, &rv.RevieweeID,
			&rv.Rating, &rv.Comment, &rv.Categories, &rv.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r reviewRepo) CountAndAverage(ctx context.Context, revieweeID string) (int, decimal.Decimal, error) {
	var count int
	var avg decimal.Decimal
	err := r.s.q.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(ROUND(AVG(rating), 2), 0) FROM reviews WHERE reviewee_id = $1`,
		revieweeID,
	).Scan(&count, &avg)
	if err != nil {
		return 0, decimal.Zero, mapErr(err)
	}
	return count, avg, nil
}

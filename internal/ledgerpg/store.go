// Package ledgerpg is the Postgres-backed escrow ledger. Every mutating
// operation runs in a single transaction with a row lock on the service,
// so fund movement and flag updates commit together or not at all, and
// concurrent operations on one service id serialize on the row lock.
package ledgerpg

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/gigvault/internal/ledger"
)

type Store struct {
	pool *pgxpool.Pool
}

// New returns a ledger over the given pool. The schema is ensured by
// db.Init.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// OfferService inserts a new listing and returns its sequential id.
func (s *Store) OfferService(ctx context.Context, freelancer, title string, price int64) (int64, error) {
	if freelancer == "" || title == "" || price <= 0 {
		return 0, ledger.ErrInvalidInput
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO services (freelancer_id, title, price, is_active, created_at)
		 VALUES ($1, $2, $3, TRUE, $4)
		 RETURNING id`,
		freelancer, title, price, time.Now(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert service: %w", err)
	}
	return id, nil
}

// HireFreelancer escrows the client's payment for a service. The payment
// must equal the listed price exactly and is debited from the client's
// wallet inside the same transaction.
func (s *Store) HireFreelancer(ctx context.Context, client string, serviceID, payment int64) error {
	if client == "" {
		return ledger.ErrUnauthorized
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		clientID *string
		price    int64
		isActive bool
	)
	err = tx.QueryRow(ctx,
		`SELECT client_id, price, is_active FROM services WHERE id = $1 FOR UPDATE`,
		serviceID,
	).Scan(&clientID, &price, &isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.ErrNotFound
		}
		return fmt.Errorf("fetch service: %w", err)
	}

	if !isActive || clientID != nil {
		return ledger.ErrNotActive
	}
	if payment != price {
		return ledger.ErrPaymentMismatch
	}

	ct, err := tx.Exec(ctx,
		`UPDATE wallets SET balance = balance - $1 WHERE user_id = $2 AND balance >= $1`,
		payment, client,
	)
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ledger.ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx,
		`UPDATE services SET client_id = $1, escrowed = $2 WHERE id = $3`,
		client, payment, serviceID,
	)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}

	if err := insertTransaction(ctx, tx, client, payment, "debit", "escrow_hold", serviceID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ReleasePayment moves the escrowed funds to the freelancer and closes
// the service.
func (s *Store) ReleasePayment(ctx context.Context, caller string, serviceID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := lockService(ctx, tx, serviceID)
	if err != nil {
		return err
	}
	if caller == "" || rec.client == nil || caller != *rec.client {
		return ledger.ErrUnauthorized
	}
	if rec.isPaid || !rec.isActive {
		return ledger.ErrAlreadySettled
	}

	_, err = tx.Exec(ctx,
		`UPDATE services SET escrowed = 0, is_paid = TRUE, is_active = FALSE WHERE id = $1`,
		serviceID,
	)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}

	if err := creditWallet(ctx, tx, rec.freelancer, rec.escrowed); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, *rec.client, rec.escrowed, "debit", "escrow_release", serviceID); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, rec.freelancer, rec.escrowed, "credit", "payout", serviceID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RefundClient returns the escrowed funds to the client and closes the
// service without marking it paid.
func (s *Store) RefundClient(ctx context.Context, caller string, serviceID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := lockService(ctx, tx, serviceID)
	if err != nil {
		return err
	}
	if caller == "" || rec.client == nil || caller != *rec.client {
		return ledger.ErrUnauthorized
	}
	if rec.isPaid || !rec.isActive {
		return ledger.ErrAlreadySettled
	}

	_, err = tx.Exec(ctx,
		`UPDATE services SET escrowed = 0, is_active = FALSE WHERE id = $1`,
		serviceID,
	)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}

	if err := creditWallet(ctx, tx, *rec.client, rec.escrowed); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, *rec.client, rec.escrowed, "credit", "refund", serviceID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RateService records the one-time 1-5 rating and bumps the freelancer
// aggregate in the same transaction.
func (s *Store) RateService(ctx context.Context, caller string, serviceID int64, rating int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := lockService(ctx, tx, serviceID)
	if err != nil {
		return err
	}
	if caller == "" || rec.client == nil || caller != *rec.client {
		return ledger.ErrUnauthorized
	}
	if !rec.isPaid {
		return ledger.ErrNotYetSettled
	}
	if rec.rating != 0 {
		return ledger.ErrAlreadyRated
	}
	if rating < 1 || rating > 5 {
		return ledger.ErrInvalidRating
	}

	_, err = tx.Exec(ctx, `UPDATE services SET rating = $1 WHERE id = $2`, rating, serviceID)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO freelancer_ratings (freelancer_id, rating_sum, rating_count)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (freelancer_id)
		 DO UPDATE SET rating_sum = freelancer_ratings.rating_sum + $2,
		               rating_count = freelancer_ratings.rating_count + 1`,
		rec.freelancer, rating,
	)
	if err != nil {
		return fmt.Errorf("update rating aggregate: %w", err)
	}
	return tx.Commit(ctx)
}

// Deposit credits a user's wallet balance.
func (s *Store) Deposit(ctx context.Context, user string, amount int64) error {
	if user == "" || amount <= 0 {
		return ledger.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := creditWallet(ctx, tx, user, amount); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, user, amount, "credit", "topup", -1); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ServiceCount returns the total number of services ever created.
func (s *Store) ServiceCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM services`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count services: %w", err)
	}
	return count, nil
}

// Service returns the current record for an id.
func (s *Store) Service(ctx context.Context, id int64) (ledger.Service, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, freelancer_id, client_id, title, price, escrowed, is_active, is_paid, rating, created_at
		 FROM services WHERE id = $1`, id)
	svc, err := scanService(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Service{}, ledger.ErrNotFound
		}
		return ledger.Service{}, fmt.Errorf("fetch service: %w", err)
	}
	return svc, nil
}

// Services returns all current records in id order.
func (s *Store) Services(ctx context.Context) ([]ledger.Service, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, freelancer_id, client_id, title, price, escrowed, is_active, is_paid, rating, created_at
		 FROM services ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("fetch services: %w", err)
	}
	defer rows.Close()

	var out []ledger.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

// EscrowedFunds returns the amount currently held for a service.
func (s *Store) EscrowedFunds(ctx context.Context, id int64) (int64, error) {
	var escrowed int64
	err := s.pool.QueryRow(ctx, `SELECT escrowed FROM services WHERE id = $1`, id).Scan(&escrowed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ledger.ErrNotFound
		}
		return 0, fmt.Errorf("fetch escrow: %w", err)
	}
	return escrowed, nil
}

// AverageRating returns the freelancer's mean rating, 0 with no ratings.
func (s *Store) AverageRating(ctx context.Context, freelancer string) (float64, error) {
	var sum, count int64
	err := s.pool.QueryRow(ctx,
		`SELECT rating_sum, rating_count FROM freelancer_ratings WHERE freelancer_id = $1`,
		freelancer,
	).Scan(&sum, &count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("fetch rating aggregate: %w", err)
	}
	if count == 0 {
		return 0, nil
	}
	return float64(sum) / float64(count), nil
}

// RatingCount returns how many ratings the freelancer has received.
func (s *Store) RatingCount(ctx context.Context, freelancer string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT rating_count FROM freelancer_ratings WHERE freelancer_id = $1`,
		freelancer,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("fetch rating aggregate: %w", err)
	}
	return count, nil
}

// Balance returns a user's wallet balance, 0 when no wallet row exists.
func (s *Store) Balance(ctx context.Context, user string) (int64, error) {
	var balance int64
	err := s.pool.QueryRow(ctx, `SELECT balance FROM wallets WHERE user_id = $1`, user).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("fetch balance: %w", err)
	}
	return balance, nil
}

// Transactions returns a user's fund movements, newest first.
func (s *Store) Transactions(ctx context.Context, user string) ([]ledger.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT id, user_id, amount, type, status, COALESCE(reference, ''), created_at
		 FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`, user)
}

// AllTransactions returns every fund movement, newest first.
func (s *Store) AllTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT id, user_id, amount, type, status, COALESCE(reference, ''), created_at
		 FROM transactions ORDER BY created_at DESC`)
}

// TotalEscrowed returns the sum held across all services.
func (s *Store) TotalEscrowed(ctx context.Context) (int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(escrowed), 0) FROM services`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum escrow: %w", err)
	}
	return total, nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		var t ledger.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Status, &t.Reference, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type serviceRow struct {
	freelancer string
	client     *string
	price      int64
	escrowed   int64
	isActive   bool
	isPaid     bool
	rating     int
}

// lockService takes the per-service row lock that serializes mutating
// operations on one id.
func lockService(ctx context.Context, tx pgx.Tx, id int64) (serviceRow, error) {
	var rec serviceRow
	err := tx.QueryRow(ctx,
		`SELECT freelancer_id, client_id, price, escrowed, is_active, is_paid, rating
		 FROM services WHERE id = $1 FOR UPDATE`, id,
	).Scan(&rec.freelancer, &rec.client, &rec.price, &rec.escrowed, &rec.isActive, &rec.isPaid, &rec.rating)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rec, ledger.ErrNotFound
		}
		return rec, fmt.Errorf("fetch service: %w", err)
	}
	return rec, nil
}

func creditWallet(ctx context.Context, tx pgx.Tx, user string, amount int64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO wallets (user_id, balance, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + $2`,
		user, amount, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	return nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, user string, amount int64, typ, status string, serviceID int64) error {
	var ref *string
	if serviceID >= 0 {
		v := strconv.FormatInt(serviceID, 10)
		ref = &v
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO transactions (id, user_id, amount, type, status, reference, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), user, amount, typ, status, ref, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanService(row scannable) (ledger.Service, error) {
	var (
		svc    ledger.Service
		client *string
	)
	err := row.Scan(&svc.ID, &svc.Freelancer, &client, &svc.Title, &svc.Price,
		&svc.Escrowed, &svc.IsActive, &svc.IsPaid, &svc.Rating, &svc.CreatedAt)
	if err != nil {
		return ledger.Service{}, err
	}
	if client != nil {
		svc.Client = *client
	}
	return svc, nil
}

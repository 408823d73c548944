package ledger

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service is one fixed-price listing. IDs are sequential starting at 0
// and are never reused; Client stays empty until the service is hired.
type Service struct {
	ID         int64     `json:"id"`
	Freelancer string    `json:"freelancer"`
	Client     string    `json:"client,omitempty"`
	Title      string    `json:"title"`
	Price      int64     `json:"price"`
	Escrowed   int64     `json:"escrowed"`
	IsActive   bool      `json:"is_active"`
	IsPaid     bool      `json:"is_paid"`
	Rating     int       `json:"rating"`
	CreatedAt  time.Time `json:"created_at"`
}

// Transaction is one immutable fund movement record.
type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Type      string    `json:"type"`   // credit | debit
	Status    string    `json:"status"` // topup | escrow_hold | escrow_release | payout | refund
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ratingTotals struct {
	sum   int64
	count int64
}

// Ledger is the embedded escrow ledger. All mutating operations run
// under one write lock, so each is atomic and serializable: funds and
// flags always move together or not at all.
type Ledger struct {
	mu       sync.RWMutex
	services []*Service
	balances map[string]int64
	ratings  map[string]ratingTotals
	txlog    []Transaction
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances: make(map[string]int64),
		ratings:  make(map[string]ratingTotals),
	}
}

// OfferService lists a new service for the freelancer and returns its id.
// The id is always the previous service count.
func (l *Ledger) OfferService(_ context.Context, freelancer, title string, price int64) (int64, error) {
	if freelancer == "" || title == "" || price <= 0 {
		return 0, ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	s := &Service{
		ID:         int64(len(l.services)),
		Freelancer: freelancer,
		Title:      title,
		Price:      price,
		IsActive:   true,
		CreatedAt:  time.Now(),
	}
	l.services = append(l.services, s)
	return s.ID, nil
}

// HireFreelancer escrows the client's payment for a service. The payment
// must match the listed price exactly and is debited from the client's
// wallet balance; a service can be hired once.
func (l *Ledger) HireFreelancer(_ context.Context, client string, serviceID, payment int64) error {
	if client == "" {
		return ErrUnauthorized
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.lookup(serviceID)
	if err != nil {
		return err
	}
	if !s.IsActive || s.Client != "" {
		return ErrNotActive
	}
	if payment != s.Price {
		return ErrPaymentMismatch
	}
	if l.balances[client] < payment {
		return ErrInsufficientFunds
	}

	l.balances[client] -= payment
	s.Client = client
	s.Escrowed = payment
	l.record(client, payment, "debit", "escrow_hold", s.ID)
	return nil
}

// ReleasePayment moves the escrowed funds to the freelancer and closes
// the service. Only the hiring client may release, and only once.
func (l *Ledger) ReleasePayment(_ context.Context, caller string, serviceID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.lookup(serviceID)
	if err != nil {
		return err
	}
	if caller == "" || caller != s.Client {
		return ErrUnauthorized
	}
	if s.IsPaid || !s.IsActive {
		return ErrAlreadySettled
	}

	amount := s.Escrowed
	l.balances[s.Freelancer] += amount
	s.Escrowed = 0
	s.IsPaid = true
	s.IsActive = false
	l.record(s.Client, amount, "debit", "escrow_release", s.ID)
	l.record(s.Freelancer, amount, "credit", "payout", s.ID)
	return nil
}

// RefundClient returns the escrowed funds to the client and closes the
// service. Impossible once payment has been released.
func (l *Ledger) RefundClient(_ context.Context, caller string, serviceID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.lookup(serviceID)
	if err != nil {
		return err
	}
	if caller == "" || caller != s.Client {
		return ErrUnauthorized
	}
	if s.IsPaid || !s.IsActive {
		return ErrAlreadySettled
	}

	amount := s.Escrowed
	l.balances[s.Client] += amount
	s.Escrowed = 0
	s.IsActive = false
	l.record(s.Client, amount, "credit", "refund", s.ID)
	return nil
}

// RateService records the client's one-time 1-5 rating for settled work
// and updates the freelancer's aggregate in the same step.
func (l *Ledger) RateService(_ context.Context, caller string, serviceID int64, rating int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.lookup(serviceID)
	if err != nil {
		return err
	}
	if caller == "" || caller != s.Client {
		return ErrUnauthorized
	}
	if !s.IsPaid {
		return ErrNotYetSettled
	}
	if s.Rating != 0 {
		return ErrAlreadyRated
	}
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	s.Rating = rating
	t := l.ratings[s.Freelancer]
	t.sum += int64(rating)
	t.count++
	l.ratings[s.Freelancer] = t
	return nil
}

// Deposit credits a user's wallet balance.
func (l *Ledger) Deposit(_ context.Context, user string, amount int64) error {
	if user == "" || amount <= 0 {
		return ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[user] += amount
	l.record(user, amount, "credit", "topup", -1)
	return nil
}

// ServiceCount returns the total number of services ever created.
func (l *Ledger) ServiceCount(_ context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.services)), nil
}

// Service returns a copy of the current record for an id.
func (l *Ledger) Service(_ context.Context, id int64) (Service, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, err := l.lookup(id)
	if err != nil {
		return Service{}, err
	}
	return *s, nil
}

// Services returns copies of all current records in id order.
func (l *Ledger) Services(_ context.Context) ([]Service, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Service, len(l.services))
	for i, s := range l.services {
		out[i] = *s
	}
	return out, nil
}

// EscrowedFunds returns the amount currently held for a service: 0 when
// never hired or already settled.
func (l *Ledger) EscrowedFunds(_ context.Context, id int64) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, err := l.lookup(id)
	if err != nil {
		return 0, err
	}
	return s.Escrowed, nil
}

// AverageRating returns the freelancer's mean rating, 0 with no ratings.
func (l *Ledger) AverageRating(_ context.Context, freelancer string) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t := l.ratings[freelancer]
	if t.count == 0 {
		return 0, nil
	}
	return float64(t.sum) / float64(t.count), nil
}

// RatingCount returns how many ratings the freelancer has received.
func (l *Ledger) RatingCount(_ context.Context, freelancer string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ratings[freelancer].count, nil
}

// Balance returns a user's wallet balance.
func (l *Ledger) Balance(_ context.Context, user string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[user], nil
}

// Transactions returns a user's fund movements, newest first.
func (l *Ledger) Transactions(_ context.Context, user string) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Transaction
	for i := len(l.txlog) - 1; i >= 0; i-- {
		if l.txlog[i].UserID == user {
			out = append(out, l.txlog[i])
		}
	}
	return out, nil
}

// AllTransactions returns every fund movement, newest first.
func (l *Ledger) AllTransactions(_ context.Context) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Transaction, len(l.txlog))
	for i := range l.txlog {
		out[i] = l.txlog[len(l.txlog)-1-i]
	}
	return out, nil
}

// TotalEscrowed returns the sum held across all services. It must always
// equal the value the ledger holds on behalf of clients.
func (l *Ledger) TotalEscrowed(_ context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total int64
	for _, s := range l.services {
		total += s.Escrowed
	}
	return total, nil
}

// lookup requires l.mu held.
func (l *Ledger) lookup(id int64) (*Service, error) {
	if id < 0 || id >= int64(len(l.services)) {
		return nil, ErrNotFound
	}
	return l.services[id], nil
}

// record requires l.mu held. reference < 0 means no service reference.
func (l *Ledger) record(user string, amount int64, typ, status string, reference int64) {
	ref := ""
	if reference >= 0 {
		ref = strconv.FormatInt(reference, 10)
	}
	l.txlog = append(l.txlog, Transaction{
		ID:        uuid.New().String(),
		UserID:    user,
		Amount:    amount,
		Type:      typ,
		Status:    status,
		Reference: ref,
		CreatedAt: time.Now(),
	})
}

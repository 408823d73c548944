package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func fund(t *testing.T, l *Ledger, user string, amount int64) {
	t.Helper()
	if err := l.Deposit(context.Background(), user, amount); err != nil {
		t.Fatalf("Deposit(%s, %d): %v", user, amount, err)
	}
}

func TestOfferService(t *testing.T) {
	ctx := context.Background()
	l := New()

	id, err := l.OfferService(ctx, "freelancer-1", "Logo Design", 100)
	if err != nil {
		t.Fatalf("OfferService: %v", err)
	}
	if id != 0 {
		t.Fatalf("expected first id 0, got %d", id)
	}

	s, err := l.Service(ctx, id)
	if err != nil {
		t.Fatalf("Service: %v", err)
	}
	if s.Freelancer != "freelancer-1" || s.Title != "Logo Design" || s.Price != 100 {
		t.Fatalf("unexpected service record: %+v", s)
	}
	if !s.IsActive || s.IsPaid || s.Client != "" || s.Rating != 0 || s.Escrowed != 0 {
		t.Fatalf("unexpected initial state: %+v", s)
	}

	id2, err := l.OfferService(ctx, "freelancer-2", "Copywriting", 50)
	if err != nil {
		t.Fatalf("OfferService: %v", err)
	}
	if id2 != 1 {
		t.Fatalf("expected sequential id 1, got %d", id2)
	}
}

func TestOfferServiceRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	l := New()

	if _, err := l.OfferService(ctx, "freelancer-1", "", 100); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty title: expected ErrInvalidInput, got %v", err)
	}
	if _, err := l.OfferService(ctx, "freelancer-1", "Logo", 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("zero price: expected ErrInvalidInput, got %v", err)
	}
	if _, err := l.OfferService(ctx, "freelancer-1", "Logo", -5); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative price: expected ErrInvalidInput, got %v", err)
	}

	count, err := l.ServiceCount(ctx)
	if err != nil {
		t.Fatalf("ServiceCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed offers must not allocate ids, count = %d", count)
	}
}

func TestHireFreelancer(t *testing.T) {
	ctx := context.Background()
	l := New()
	id, _ := l.OfferService(ctx, "F", "Logo Design", 100)
	fund(t, l, "C", 250)

	if err := l.HireFreelancer(ctx, "C", id, 100); err != nil {
		t.Fatalf("HireFreelancer: %v", err)
	}

	s, _ := l.Service(ctx, id)
	if s.Client != "C" || !s.IsActive || s.Escrowed != 100 {
		t.Fatalf("unexpected post-hire state: %+v", s)
	}
	if bal, _ := l.Balance(ctx, "C"); bal != 150 {
		t.Fatalf("expected client balance 150, got %d", bal)
	}
	if held, _ := l.EscrowedFunds(ctx, id); held != 100 {
		t.Fatalf("expected escrow 100, got %d", held)
	}
}

func TestHireFreelancerRejections(t *testing.T) {
	ctx := context.Background()
	l := New()
	id, _ := l.OfferService(ctx, "F", "Logo Design", 100)
	fund(t, l, "C", 500)
	fund(t, l, "C2", 500)

	if err := l.HireFreelancer(ctx, "C", 42, 100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id: expected ErrNotFound, got %v", err)
	}
	if err := l.HireFreelancer(ctx, "C", id, 99); !errors.Is(err, ErrPaymentMismatch) {
		t.Fatalf("underpayment: expected ErrPaymentMismatch, got %v", err)
	}
	if err := l.HireFreelancer(ctx, "C", id, 101); !errors.Is(err, ErrPaymentMismatch) {
		t.Fatalf("overpayment: expected ErrPaymentMismatch, got %v", err)
	}
	if held, _ := l.EscrowedFunds(ctx, id); held != 0 {
		t.Fatalf("failed hires must leave escrow untouched, held = %d", held)
	}
	if bal, _ := l.Balance(ctx, "C"); bal != 500 {
		t.Fatalf("failed hires must not retain funds, balance = %d", bal)
	}

	if err := l.HireFreelancer(ctx, "C", id, 100); err != nil {
		t.Fatalf("HireFreelancer: %v", err)
	}
	// Second hire always fails regardless of caller or amount.
	if err := l.HireFreelancer(ctx, "C2", id, 100); !errors.Is(err, ErrNotActive) {
		t.Fatalf("double hire: expected ErrNotActive, got %v", err)
	}
	if err := l.HireFreelancer(ctx, "C", id, 100); !errors.Is(err, ErrNotActive) {
		t.Fatalf("re-hire by same client: expected ErrNotActive, got %v", err)
	}
}

func TestHireFreelancerInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	l := New()
	id, _ := l.OfferService(ctx, "F", "Logo Design", 100)
	fund(t, l, "C", 40)

	if err := l.HireFreelancer(ctx, "C", id, 100); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if bal, _ := l.Balance(ctx, "C"); bal != 40 {
		t.Fatalf("failed hire must not move funds, balance = %d", bal)
	}
	s, _ := l.Service(ctx, id)
	if s.Client != "" || !s.IsActive {
		t.Fatalf("failed hire must leave the service unhired: %+v", s)
	}
}

// Full release lifecycle from the reference scenario: offer, hire, double
// hire rejected, release, refund now impossible, one rating accepted.
func TestReleaseScenario(t *testing.T) {
	ctx := context.Background()
	l := New()
	fund(t, l, "C", 100)
	fund(t, l, "C2", 100)

	id, err := l.OfferService(ctx, "F", "Logo Design", 100)
	if err != nil {
		t.Fatalf("OfferService: %v", err)
	}
	if id != 0 {
		t.Fatalf("expected id 0, got %d", id)
	}
	if err := l.HireFreelancer(ctx, "C", id, 100); err != nil {
		t.Fatalf("HireFreelancer: %v", err)
	}
	if held, _ := l.EscrowedFunds(ctx, id); held != 100 {
		t.Fatalf("expected escrow 100, got %d", held)
	}
	if err := l.HireFreelancer(ctx, "C2", id, 100); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}

	if err := l.ReleasePayment(ctx, "C", id); err != nil {
		t.Fatalf("ReleasePayment: %v", err)
	}
	if held, _ := l.EscrowedFunds(ctx, id); held != 0 {
		t.Fatalf("expected escrow 0 after release, got %d", held)
	}
	if bal, _ := l.Balance(ctx, "F"); bal != 100 {
		t.Fatalf("expected freelancer balance 100, got %d", bal)
	}
	s, _ := l.Service(ctx, id)
	if !s.IsPaid || s.IsActive {
		t.Fatalf("expected paid+inactive, got %+v", s)
	}

	if err := l.RefundClient(ctx, "C", id); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("refund after release: expected ErrAlreadySettled, got %v", err)
	}
	if err := l.ReleasePayment(ctx, "C", id); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("double release: expected ErrAlreadySettled, got %v", err)
	}

	if err := l.RateService(ctx, "C", id, 5); err != nil {
		t.Fatalf("RateService: %v", err)
	}
	if avg, _ := l.AverageRating(ctx, "F"); avg != 5 {
		t.Fatalf("expected average 5, got %v", avg)
	}
	if n, _ := l.RatingCount(ctx, "F"); n != 1 {
		t.Fatalf("expected rating count 1, got %d", n)
	}
	if err := l.RateService(ctx, "C", id, 3); !errors.Is(err, ErrAlreadyRated) {
		t.Fatalf("second rating: expected ErrAlreadyRated, got %v", err)
	}
}

// Refund lifecycle from the reference scenario.
func TestRefundScenario(t *testing.T) {
	ctx := context.Background()
	l := New()
	fund(t, l, "C", 50)

	// A prior listing so the refunded service gets id 1.
	if _, err := l.OfferService(ctx, "F", "Logo Design", 100); err != nil {
		t.Fatalf("OfferService: %v", err)
	}
	id, err := l.OfferService(ctx, "F", "Logo", 50)
	if err != nil {
		t.Fatalf("OfferService: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}
	if err := l.HireFreelancer(ctx, "C", id, 50); err != nil {
		t.Fatalf("HireFreelancer: %v", err)
	}
	if err := l.RefundClient(ctx, "C", id); err != nil {
		t.Fatalf("RefundClient: %v", err)
	}

	if held, _ := l.EscrowedFunds(ctx, id); held != 0 {
		t.Fatalf("expected escrow 0 after refund, got %d", held)
	}
	if bal, _ := l.Balance(ctx, "C"); bal != 50 {
		t.Fatalf("expected client balance restored to 50, got %d", bal)
	}
	s, _ := l.Service(ctx, id)
	if s.IsActive || s.IsPaid {
		t.Fatalf("expected inactive+unpaid after refund, got %+v", s)
	}

	if err := l.RateService(ctx, "C", id, 4); !errors.Is(err, ErrNotYetSettled) {
		t.Fatalf("rating refunded work: expected ErrNotYetSettled, got %v", err)
	}
	if err := l.ReleasePayment(ctx, "C", id); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("release after refund: expected ErrAlreadySettled, got %v", err)
	}
}

func TestAuthorizationChecks(t *testing.T) {
	ctx := context.Background()
	l := New()
	fund(t, l, "C", 100)
	id, _ := l.OfferService(ctx, "F", "Logo Design", 100)
	if err := l.HireFreelancer(ctx, "C", id, 100); err != nil {
		t.Fatalf("HireFreelancer: %v", err)
	}

	if err := l.ReleasePayment(ctx, "intruder", id); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("release by non-client: expected ErrUnauthorized, got %v", err)
	}
	if err := l.RefundClient(ctx, "F", id); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("refund by freelancer: expected ErrUnauthorized, got %v", err)
	}
	if err := l.ReleasePayment(ctx, "C", id); err != nil {
		t.Fatalf("ReleasePayment: %v", err)
	}
	if err := l.RateService(ctx, "F", id, 5); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("rating by freelancer: expected ErrUnauthorized, got %v", err)
	}
}

func TestReleaseRefundOnUnhiredService(t *testing.T) {
	ctx := context.Background()
	l := New()
	id, _ := l.OfferService(ctx, "F", "Logo Design", 100)

	// Client is unset, so no caller can ever match it.
	if err := l.ReleasePayment(ctx, "C", id); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := l.RefundClient(ctx, "C", id); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRateServiceRange(t *testing.T) {
	ctx := context.Background()
	l := New()
	fund(t, l, "C", 100)
	id, _ := l.OfferService(ctx, "F", "Logo Design", 100)
	if err := l.HireFreelancer(ctx, "C", id, 100); err != nil {
		t.Fatalf("HireFreelancer: %v", err)
	}
	if err := l.ReleasePayment(ctx, "C", id); err != nil {
		t.Fatalf("ReleasePayment: %v", err)
	}

	for _, bad := range []int{0, 6, -1, 100} {
		err := l.RateService(ctx, "C", id, bad)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("rating %d: expected ErrInvalidInput, got %v", bad, err)
		}
		if !errors.Is(err, ErrInvalidRating) {
			t.Fatalf("rating %d: expected ErrInvalidRating, got %v", bad, err)
		}
	}
	if n, _ := l.RatingCount(ctx, "F"); n != 0 {
		t.Fatalf("rejected ratings must not count, got %d", n)
	}
}

func TestAverageRating(t *testing.T) {
	ctx := context.Background()
	l := New()

	// No ratings yet: defined sentinel, no division by zero.
	if avg, err := l.AverageRating(ctx, "F"); err != nil || avg != 0 {
		t.Fatalf("expected 0 average with no ratings, got %v (%v)", avg, err)
	}

	fund(t, l, "C", 300)
	for i, rating := range []int{5, 3} {
		id, _ := l.OfferService(ctx, "F", "Gig", 100)
		if id != int64(i) {
			t.Fatalf("expected id %d, got %d", i, id)
		}
		if err := l.HireFreelancer(ctx, "C", id, 100); err != nil {
			t.Fatalf("HireFreelancer: %v", err)
		}
		if err := l.ReleasePayment(ctx, "C", id); err != nil {
			t.Fatalf("ReleasePayment: %v", err)
		}
		if err := l.RateService(ctx, "C", id, rating); err != nil {
			t.Fatalf("RateService: %v", err)
		}
	}

	if avg, _ := l.AverageRating(ctx, "F"); avg != 4.0 {
		t.Fatalf("expected average 4.0 after {5,3}, got %v", avg)
	}
	if n, _ := l.RatingCount(ctx, "F"); n != 2 {
		t.Fatalf("expected count 2, got %d", n)
	}
}

// Solvency: across a mixed operation sequence the sum of per-service
// escrow always equals deposits minus wallet balances held by users.
func TestSolvencyInvariant(t *testing.T) {
	ctx := context.Background()
	l := New()

	users := []string{"C1", "C2", "C3"}
	var deposited int64
	for _, u := range users {
		fund(t, l, u, 1000)
		deposited += 1000
	}

	check := func(step string) {
		t.Helper()
		held, _ := l.TotalEscrowed(ctx)
		var balances int64
		for _, u := range append([]string{"F1", "F2"}, users...) {
			b, _ := l.Balance(ctx, u)
			balances += b
		}
		if held+balances != deposited {
			t.Fatalf("%s: solvency broken: escrow %d + balances %d != deposits %d",
				step, held, balances, deposited)
		}
	}

	ids := make([]int64, 6)
	for i := range ids {
		freelancer := "F1"
		if i%2 == 1 {
			freelancer = "F2"
		}
		id, err := l.OfferService(ctx, freelancer, "Gig", int64(50+10*i))
		if err != nil {
			t.Fatalf("OfferService: %v", err)
		}
		ids[i] = id
	}
	check("after offers")

	for i, id := range ids {
		client := users[i%len(users)]
		if err := l.HireFreelancer(ctx, client, id, int64(50+10*i)); err != nil {
			t.Fatalf("HireFreelancer(%d): %v", id, err)
		}
	}
	check("after hires")

	// Settle half each way, leave some in escrow.
	if err := l.ReleasePayment(ctx, users[0], ids[0]); err != nil {
		t.Fatalf("ReleasePayment: %v", err)
	}
	check("after release")
	if err := l.RefundClient(ctx, users[1], ids[1]); err != nil {
		t.Fatalf("RefundClient: %v", err)
	}
	check("after refund")
	if err := l.ReleasePayment(ctx, users[2], ids[2]); err != nil {
		t.Fatalf("ReleasePayment: %v", err)
	}
	check("after second release")

	// Failed operations must not move value either.
	_ = l.HireFreelancer(ctx, users[0], ids[3], 1)
	_ = l.ReleasePayment(ctx, "intruder", ids[3])
	_ = l.RefundClient(ctx, users[1], ids[1])
	check("after rejected operations")
}

// Two concurrent hires on the same unhired service: exactly one wins.
func TestConcurrentHireSingleWinner(t *testing.T) {
	ctx := context.Background()
	l := New()
	id, _ := l.OfferService(ctx, "F", "Gig", 100)

	const clients = 8
	for i := 0; i < clients; i++ {
		fund(t, l, "C"+string(rune('0'+i)), 100)
	}

	var wg sync.WaitGroup
	errs := make([]error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = l.HireFreelancer(ctx, "C"+string(rune('0'+i)), id, 100)
		}(i)
	}
	wg.Wait()

	var won int
	for i, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrNotActive):
		default:
			t.Fatalf("client %d: unexpected error %v", i, err)
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly one successful hire, got %d", won)
	}
	if held, _ := l.EscrowedFunds(ctx, id); held != 100 {
		t.Fatalf("expected escrow 100, got %d", held)
	}
}

func TestTransactionLog(t *testing.T) {
	ctx := context.Background()
	l := New()
	fund(t, l, "C", 100)
	id, _ := l.OfferService(ctx, "F", "Gig", 100)
	if err := l.HireFreelancer(ctx, "C", id, 100); err != nil {
		t.Fatalf("HireFreelancer: %v", err)
	}
	if err := l.ReleasePayment(ctx, "C", id); err != nil {
		t.Fatalf("ReleasePayment: %v", err)
	}

	txs, err := l.Transactions(ctx, "C")
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 client transactions, got %d", len(txs))
	}
	// Newest first: escrow_release, escrow_hold, topup.
	if txs[0].Status != "escrow_release" || txs[1].Status != "escrow_hold" || txs[2].Status != "topup" {
		t.Fatalf("unexpected transaction order: %s %s %s", txs[0].Status, txs[1].Status, txs[2].Status)
	}

	ftxs, _ := l.Transactions(ctx, "F")
	if len(ftxs) != 1 || ftxs[0].Status != "payout" || ftxs[0].Amount != 100 {
		t.Fatalf("unexpected freelancer transactions: %+v", ftxs)
	}

	all, _ := l.AllTransactions(ctx)
	if len(all) != 4 {
		t.Fatalf("expected 4 total transactions, got %d", len(all))
	}
}

func TestGetServiceNotFound(t *testing.T) {
	ctx := context.Background()
	l := New()
	if _, err := l.Service(ctx, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := l.EscrowedFunds(ctx, 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

package alerts

import "time"

// Task type constants
const (
	TaskWelcomeEmail    = "email:welcome"
	TaskServiceOffered  = "ledger:service_offered"
	TaskEscrowFunded    = "ledger:escrow_funded"
	TaskPaymentReleased = "ledger:payment_released"
	TaskClientRefunded  = "ledger:client_refunded"
)

// Common envelope for email-like notifications
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Welcome email payload
type WelcomeEmailPayload struct {
	UserID   string        `json:"user_id"`
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Envelope EmailEnvelope `json:"envelope"`
	SentAt   time.Time     `json:"sent_at"`
}

// ServiceOfferedPayload is the creation record for a new listing; it
// carries the sequential service id assigned by the ledger.
type ServiceOfferedPayload struct {
	ServiceID  int64     `json:"service_id"`
	Freelancer string    `json:"freelancer"`
	Title      string    `json:"title"`
	Price      int64     `json:"price"`
	SentAt     time.Time `json:"sent_at"`
}

// EscrowFundedPayload marks a successful hire.
type EscrowFundedPayload struct {
	ServiceID int64     `json:"service_id"`
	Client    string    `json:"client"`
	Amount    int64     `json:"amount"`
	SentAt    time.Time `json:"sent_at"`
}

// PaymentReleasedPayload marks escrow paid out to the freelancer.
type PaymentReleasedPayload struct {
	ServiceID int64     `json:"service_id"`
	Client    string    `json:"client"`
	SentAt    time.Time `json:"sent_at"`
}

// ClientRefundedPayload marks escrow returned to the client.
type ClientRefundedPayload struct {
	ServiceID int64     `json:"service_id"`
	Client    string    `json:"client"`
	SentAt    time.Time `json:"sent_at"`
}

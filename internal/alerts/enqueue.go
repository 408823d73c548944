package alerts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// enqueue marshals the payload and hands it to asynq. Notifications are
// best-effort: with no initialized client (alerts disabled, tests) this
// is a no-op.
func enqueue(taskType string, payload any, queue string) error {
	if client == nil {
		return nil
	}
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(taskType, b)
	_, err := client.Enqueue(task, asynq.Queue(queue))
	return err
}

// EnqueueWelcomeEmail schedules a welcome email to the user
func EnqueueWelcomeEmail(userID, email, name string) error {
	env := EmailEnvelope{
		To:      email,
		Subject: fmt.Sprintf("Welcome to GigVault, %s!", name),
		Body:    fmt.Sprintf("Hi %s, thanks for joining GigVault. Top up your wallet to start hiring, or list your first service.", name),
	}
	return enqueue(TaskWelcomeEmail, WelcomeEmailPayload{
		UserID: userID, Name: name, Email: email, Envelope: env, SentAt: time.Now(),
	}, "emails")
}

// EnqueueServiceOffered publishes the creation record for a new listing.
// It carries the assigned service id; callers can also derive the id
// deterministically as the previous service count.
func EnqueueServiceOffered(serviceID int64, freelancer, title string, price int64) error {
	return enqueue(TaskServiceOffered, ServiceOfferedPayload{
		ServiceID: serviceID, Freelancer: freelancer, Title: title, Price: price, SentAt: time.Now(),
	}, "ledger")
}

// EnqueueEscrowFunded records a successful hire
func EnqueueEscrowFunded(serviceID int64, client string, amount int64) error {
	return enqueue(TaskEscrowFunded, EscrowFundedPayload{
		ServiceID: serviceID, Client: client, Amount: amount, SentAt: time.Now(),
	}, "ledger")
}

// EnqueuePaymentReleased records a payout to the freelancer
func EnqueuePaymentReleased(serviceID int64, client string) error {
	return enqueue(TaskPaymentReleased, PaymentReleasedPayload{
		ServiceID: serviceID, Client: client, SentAt: time.Now(),
	}, "ledger")
}

// EnqueueClientRefunded records an escrow refund
func EnqueueClientRefunded(serviceID int64, client string) error {
	return enqueue(TaskClientRefunded, ClientRefundedPayload{
		ServiceID: serviceID, Client: client, SentAt: time.Now(),
	}, "ledger")
}

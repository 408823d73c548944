package alerts

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/hibiken/asynq"
)

var (
	client *asynq.Client
	server *asynq.Server
)

// Init starts the Asynq server and initializes a shared client.
func Init() {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		host := os.Getenv("REDIS_HOST")
		if host == "" {
			host = "127.0.0.1"
		}
		port := os.Getenv("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		redisAddr = host + ":" + port
	}

	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client = asynq.NewClient(opts)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskWelcomeEmail, handleWelcomeEmail)
	mux.HandleFunc(TaskServiceOffered, handleServiceOffered)
	mux.HandleFunc(TaskEscrowFunded, handleEscrowFunded)
	mux.HandleFunc(TaskPaymentReleased, handlePaymentReleased)
	mux.HandleFunc(TaskClientRefunded, handleClientRefunded)

	server = asynq.NewServer(opts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			"emails": 5,
			"ledger": 10,
		},
	})
	go func() {
		if err := server.Run(mux); err != nil {
			log.Printf("Asynq server stopped: %v", err)
		}
	}()

	log.Printf("Asynq initialized (addr=%s)", redisAddr)
}

// Close releases client and stops server.
func Close() {
	if client != nil {
		_ = client.Close()
	}
	if server != nil {
		server.Shutdown()
	}
}

// Handlers below parse payloads and log; the welcome email goes out via
// the configured mailer.

func handleWelcomeEmail(_ context.Context, t *asynq.Task) error {
	var p WelcomeEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	if err := SendEmail(p.Email, p.Envelope.Subject, p.Envelope.Body); err != nil {
		log.Printf("[notify][ERROR] WelcomeEmail send failed: %v", err)
		return err
	}
	log.Printf("[notify] WelcomeEmail sent -> to=%s user=%s", p.Email, p.UserID)
	return nil
}

func handleServiceOffered(_ context.Context, t *asynq.Task) error {
	var p ServiceOfferedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	log.Printf("[ledger] ServiceOffered -> id=%d freelancer=%s price=%d", p.ServiceID, p.Freelancer, p.Price)
	return nil
}

func handleEscrowFunded(_ context.Context, t *asynq.Task) error {
	var p EscrowFundedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	log.Printf("[ledger] EscrowFunded -> id=%d client=%s amount=%d", p.ServiceID, p.Client, p.Amount)
	return nil
}

func handlePaymentReleased(_ context.Context, t *asynq.Task) error {
	var p PaymentReleasedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	log.Printf("[ledger] PaymentReleased -> id=%d client=%s", p.ServiceID, p.Client)
	return nil
}

func handleClientRefunded(_ context.Context, t *asynq.Task) error {
	var p ClientRefundedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	log.Printf("[ledger] ClientRefunded -> id=%d client=%s", p.ServiceID, p.Client)
	return nil
}

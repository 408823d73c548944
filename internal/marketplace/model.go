package marketplace

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/gigvault/internal/ledger"
)

// Escrow is the ledger surface the HTTP layer drives. Both the embedded
// ledger and the Postgres store satisfy it.
type Escrow interface {
	OfferService(ctx context.Context, freelancer, title string, price int64) (int64, error)
	HireFreelancer(ctx context.Context, client string, serviceID, payment int64) error
	ReleasePayment(ctx context.Context, caller string, serviceID int64) error
	RefundClient(ctx context.Context, caller string, serviceID int64) error
	RateService(ctx context.Context, caller string, serviceID int64, rating int) error

	ServiceCount(ctx context.Context) (int64, error)
	Service(ctx context.Context, id int64) (ledger.Service, error)
	Services(ctx context.Context) ([]ledger.Service, error)
	EscrowedFunds(ctx context.Context, id int64) (int64, error)
	AverageRating(ctx context.Context, freelancer string) (float64, error)
	RatingCount(ctx context.Context, freelancer string) (int64, error)
}

// Ledger is set once at startup before any route is served.
var Ledger Escrow

// Init wires the ledger backend used by all marketplace handlers.
func Init(l Escrow) {
	Ledger = l
}

type OfferServiceRequest struct {
	Title string `json:"title"`
	Price int64  `json:"price"`
}

type HireRequest struct {
	Payment int64 `json:"payment"`
}

type RateRequest struct {
	Rating int `json:"rating"`
}

// respondLedgerError maps a ledger rejection onto an HTTP status plus a
// stable code the front-end can switch on. A failed call is always a
// no-op on ledger state.
func respondLedgerError(c echo.Context, err error) error {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrNotActive),
		errors.Is(err, ledger.ErrAlreadySettled),
		errors.Is(err, ledger.ErrAlreadyRated),
		errors.Is(err, ledger.ErrNotYetSettled):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidInput),
		errors.Is(err, ledger.ErrPaymentMismatch),
		errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusBadRequest
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": "internal"})
	}
	return c.JSON(status, echo.Map{"error": err.Error(), "code": ledger.Code(err)})
}

package wallet

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/gigvault/internal/ledger"
)

// Funds is the wallet surface the HTTP layer drives. Both the embedded
// ledger and the Postgres store satisfy it.
type Funds interface {
	Balance(ctx context.Context, user string) (int64, error)
	Deposit(ctx context.Context, user string, amount int64) error
	Transactions(ctx context.Context, user string) ([]ledger.Transaction, error)
	AllTransactions(ctx context.Context) ([]ledger.Transaction, error)
	TotalEscrowed(ctx context.Context) (int64, error)
}

// Store is set once at startup before any route is served.
var Store Funds

// Init wires the wallet backend used by all wallet handlers.
func Init(f Funds) {
	Store = f
}

type TopupRequest struct {
	Amount int64 `json:"amount"`
}

// GetBalance returns the requester's wallet balance.
func GetBalance(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	balance, err := Store.Balance(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch balance"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user_id": userID,
		"balance": balance,
	})
}

// Topup credits the requester's wallet immediately.
func Topup(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req TopupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be positive", "code": ledger.Code(ledger.ErrInvalidInput)})
	}

	if err := Store.Deposit(c.Request().Context(), userID, req.Amount); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "topup failed"})
	}

	balance, err := Store.Balance(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch balance"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "wallet credited",
		"balance": balance,
	})
}

// GetUserTransactions lists the requester's fund movements, newest first.
func GetUserTransactions(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	txs, err := Store.Transactions(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch transactions"})
	}
	if txs == nil {
		txs = []ledger.Transaction{}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"transactions": txs,
		"count":        len(txs),
	})
}

// AdminGetAllTransactions lists every fund movement plus the total
// currently held in escrow. Admin only.
func AdminGetAllTransactions(c echo.Context) error {
	txs, err := Store.AllTransactions(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch transactions"})
	}
	if txs == nil {
		txs = []ledger.Transaction{}
	}

	escrowed, err := Store.TotalEscrowed(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not compute escrow total"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"transactions":   txs,
		"count":          len(txs),
		"total_escrowed": escrowed,
	})
}

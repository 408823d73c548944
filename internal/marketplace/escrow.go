package marketplace

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/gigvault/internal/alerts"
)

// HireFreelancer escrows the client's payment for a service. The payment
// must match the listed price exactly; the ledger debits it from the
// client's wallet and holds it until release or refund.
func HireFreelancer(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	id, err := parseServiceID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service id"})
	}

	var req HireRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := Ledger.HireFreelancer(context.Background(), uid, id, req.Payment); err != nil {
		return respondLedgerError(c, err)
	}

	_ = alerts.EnqueueEscrowFunded(id, uid, req.Payment)

	return c.JSON(http.StatusOK, echo.Map{
		"service_id": id,
		"message":    "freelancer hired, payment held in escrow",
	})
}

// ReleasePayment pays the escrowed funds out to the freelancer. Only the
// hiring client may release, and only once.
func ReleasePayment(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	id, err := parseServiceID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service id"})
	}

	if err := Ledger.ReleasePayment(context.Background(), uid, id); err != nil {
		return respondLedgerError(c, err)
	}

	_ = alerts.EnqueuePaymentReleased(id, uid)

	return c.JSON(http.StatusOK, echo.Map{
		"service_id": id,
		"message":    "escrow released to freelancer",
	})
}

// RefundClient returns the escrowed funds to the client. Impossible once
// payment has been released; whichever settlement happens first wins.
func RefundClient(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	id, err := parseServiceID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service id"})
	}

	if err := Ledger.RefundClient(context.Background(), uid, id); err != nil {
		return respondLedgerError(c, err)
	}

	_ = alerts.EnqueueClientRefunded(id, uid)

	return c.JSON(http.StatusOK, echo.Map{
		"service_id": id,
		"message":    "escrow refunded to client",
	})
}

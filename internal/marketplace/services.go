package marketplace

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/gigvault/internal/alerts"
)

// OfferService lists a new fixed-price service for the authenticated
// freelancer and returns the sequential service id.
func OfferService(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req OfferServiceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	id, err := Ledger.OfferService(context.Background(), uid, req.Title, req.Price)
	if err != nil {
		return respondLedgerError(c, err)
	}

	// Creation record (best-effort); the id also travels in the response.
	_ = alerts.EnqueueServiceOffered(id, uid, req.Title, req.Price)

	return c.JSON(http.StatusCreated, echo.Map{
		"service_id": id,
		"message":    "service listed successfully",
	})
}

// GetAllServices returns every listing; filtering and sorting belong to
// the presentation layer.
func GetAllServices(c echo.Context) error {
	services, err := Ledger.Services(context.Background())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch services"})
	}
	return c.JSON(http.StatusOK, echo.Map{"services": services})
}

// GetServiceCount returns the total number of services ever created.
func GetServiceCount(c echo.Context) error {
	count, err := Ledger.ServiceCount(context.Background())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch service count"})
	}
	return c.JSON(http.StatusOK, echo.Map{"count": count})
}

// GetService returns the full current record for one service id.
func GetService(c echo.Context) error {
	id, err := parseServiceID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service id"})
	}

	svc, err := Ledger.Service(context.Background(), id)
	if err != nil {
		return respondLedgerError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"service": svc})
}

// GetEscrowedFunds returns the amount currently held for a service.
func GetEscrowedFunds(c echo.Context) error {
	id, err := parseServiceID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service id"})
	}

	held, err := Ledger.EscrowedFunds(context.Background(), id)
	if err != nil {
		return respondLedgerError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"service_id": id, "escrowed": held})
}

func parseServiceID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

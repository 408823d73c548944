package marketplace

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// RateService records the client's one-time 1-5 rating for settled work.
func RateService(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	id, err := parseServiceID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service id"})
	}

	var req RateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := Ledger.RateService(context.Background(), uid, id, req.Rating); err != nil {
		return respondLedgerError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"service_id": id,
		"rating":     req.Rating,
		"message":    "rating recorded",
	})
}

// GetFreelancerRating returns a freelancer's rating summary. A
// freelancer with no ratings gets average 0 and count 0.
func GetFreelancerRating(c echo.Context) error {
	freelancerID := c.Param("id")
	if freelancerID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing freelancer id"})
	}

	ctx := context.Background()
	avg, err := Ledger.AverageRating(ctx, freelancerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch rating summary"})
	}
	count, err := Ledger.RatingCount(ctx, freelancerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch rating summary"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"freelancer_id":  freelancerID,
		"average_rating": avg,
		"rating_count":   count,
	})
}

package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/inventory"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, v ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, v...), errBadRequest)
}

// writeError maps domain errors onto status codes. Anything unknown is logged and hidden behind a 500.
func (s *Server) writeError(c *gin.Context, err error) {
	if inputErr := booking.IsInputError(err); inputErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "fields": inputErr.Fields()})

		return
	}

	if policyErr := booking.IsPolicyError(err); policyErr != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": policyErr.Message, "rule": policyErr.Rule})

		return
	}

	if shortErr := inventory.IsInsufficientInventoryError(err); shortErr != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "insufficient inventory",
			"date":      inventory.DateKey(shortErr.Date),
			"needed":    shortErr.Needed,
			"available": shortErr.Available,
			"shortfall": shortErr.Shortfall(),
		})

		return
	}

	if transitionErr := booking.IsTransitionError(err); transitionErr != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":  transitionErr.Error(),
			"status": transitionErr.From,
			"action": transitionErr.Action,
		})

		return
	}

	if pricingErr := inventory.IsPricingUnavailableError(err); pricingErr != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": pricingErr.Error(), "date": inventory.DateKey(pricingErr.Date)})

		return
	}

	switch {
	case booking.IsNotFound(err), inventory.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errBadRequest), errors.Is(err, inventory.ErrInvalidStay), errors.Is(err, inventory.ErrInvalidCount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, inventory.ErrBlockNotActive), errors.Is(err, booking.ErrBufferEntryResolved):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.l.LogErrorf("Request %s %s failed: %v", c.Request.Method, c.FullPath(), err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
	}
}

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/monetahq/moneta/internal/audit/domain"
	budgetdomain "github.com/monetahq/moneta/internal/budget/domain"
	liabilitydomain "github.com/monetahq/moneta/internal/liability/domain"
	obligationdomain "github.com/monetahq/moneta/internal/obligation/domain"
	"github.com/monetahq/moneta/internal/recurrence"
	trackingdomain "github.com/monetahq/moneta/internal/tracking/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

// ErrorHandlingMiddleware translates the last recorded gin error into a JSON
// body once the handler chain is done.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

var notFoundErrors = []error{
	obligationdomain.ErrContainerNotFound,
	liabilitydomain.ErrLiabilityNotFound,
	budgetdomain.ErrBudgetNotFound,
	gorm.ErrRecordNotFound,
}

var validationErrors = []error{
	ErrInvalidRequest,
	obligationdomain.ErrInvalidRecurrence,
	trackingdomain.ErrInvalidFundType,
	trackingdomain.ErrInvalidCategoryID,
	trackingdomain.ErrMissingLinkedAccount,
	trackingdomain.ErrUnknownTrackingMethod,
	liabilitydomain.ErrOwedBelowBalance,
	liabilitydomain.ErrPaymentTooSmall,
	liabilitydomain.ErrInvalidPolicy,
	liabilitydomain.ErrInvalidTerm,
	budgetdomain.ErrInvalidRenewal,
	budgetdomain.ErrInvalidRecurrent,
	auditdomain.ErrInvalidAction,
	recurrence.ErrInvalidFrequency,
	recurrence.ErrInvalidInterval,
	recurrence.ErrEmptyWeekdaySet,
}

func mapError(err error) (int, errorPayload) {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return http.StatusNotFound, errorPayload{Type: "not_found", Message: err.Error()}
		}
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: err.Error()}
		}
	}
	if errors.Is(err, budgetdomain.ErrBudgetInactive) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return http.StatusConflict, errorPayload{Type: "conflict", Message: err.Error()}
	}
	return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
}

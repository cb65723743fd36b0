package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	liabilitydomain "github.com/monetahq/moneta/internal/liability/domain"
	"github.com/shopspring/decimal"
)

type adjustmentRequest struct {
	Policy     string  `json:"policy" binding:"required"`
	TotalOwed  *string `json:"total_owed"`
	Balance    *string `json:"balance"`
	AnnualRate *string `json:"annual_rate"`
	Payment    *string `json:"payment"`
	EndDate    *string `json:"end_date"`
}

// changes parses the request's decimal and date strings. Amounts travel as
// strings to keep exact 2-dp values off the float path.
func (r adjustmentRequest) changes() (liabilitydomain.Changes, error) {
	var changes liabilitydomain.Changes

	parse := func(raw *string, dst **decimal.Decimal) error {
		if raw == nil {
			return nil
		}
		value, err := decimal.NewFromString(*raw)
		if err != nil {
			return ErrInvalidRequest
		}
		*dst = &value
		return nil
	}
	if err := parse(r.TotalOwed, &changes.TotalOwed); err != nil {
		return changes, err
	}
	if err := parse(r.Balance, &changes.Balance); err != nil {
		return changes, err
	}
	if err := parse(r.AnnualRate, &changes.AnnualRate); err != nil {
		return changes, err
	}
	if err := parse(r.Payment, &changes.Payment); err != nil {
		return changes, err
	}
	if r.EndDate != nil {
		parsed, err := time.Parse(time.DateOnly, *r.EndDate)
		if err != nil {
			return changes, ErrInvalidRequest
		}
		changes.EndDate = &parsed
	}
	return changes, nil
}

func (s *Server) getLiability(c *gin.Context) {
	liability, err := s.liabilitySvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, liability)
}

func (s *Server) previewAdjustment(c *gin.Context) {
	var req adjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	changes, err := req.changes()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	impact, err := s.liabilitySvc.PreviewAdjustment(c.Request.Context(), c.Param("id"),
		changes, liabilitydomain.AdjustmentPolicy(req.Policy))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, impact)
}

func (s *Server) applyAdjustment(c *gin.Context) {
	var req adjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	changes, err := req.changes()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	impact, err := s.liabilitySvc.ApplyAdjustment(c.Request.Context(), c.Param("id"),
		changes, liabilitydomain.AdjustmentPolicy(req.Policy))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, impact)
}

func (s *Server) regenerateSchedules(c *gin.Context) {
	if err := s.liabilitySvc.RegenerateSchedules(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "regenerated"})
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	budgetdomain "github.com/monetahq/moneta/internal/budget/domain"
	"github.com/monetahq/moneta/internal/recurrence"
)

func (s *Server) getBudget(c *gin.Context) {
	budget, err := s.budgetSvc.Recompute(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, budget)
}

func (s *Server) budgetReflection(c *gin.Context) {
	summary, err := s.budgetSvc.PrepareForReflection(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type renewalRequest struct {
	Action     string `json:"action" binding:"required"`
	ResetSpent bool   `json:"reset_spent"`
	Frequency  string `json:"frequency"`
	Interval   int    `json:"interval"`
}

func (s *Server) budgetRenewal(c *gin.Context) {
	var req renewalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	budget, err := s.budgetSvc.ExecuteRenewalDecision(c.Request.Context(), c.Param("id"),
		budgetdomain.RenewalDecision{
			Action:     budgetdomain.RenewalAction(req.Action),
			ResetSpent: req.ResetSpent,
			Frequency:  recurrence.Frequency(req.Frequency),
			Interval:   req.Interval,
		})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, budget)
}

package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	obligationdomain "github.com/monetahq/moneta/internal/obligation/domain"
	trackingdomain "github.com/monetahq/moneta/internal/tracking/domain"
)

func (s *Server) listContainers(c *gin.Context) {
	containers, err := s.obligationSvc.ListActiveAutoCreate(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"containers": containers})
}

func (s *Server) getContainer(c *gin.Context) {
	container, err := s.obligationSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, container)
}

// listCycles expands a container's recurrence into its numbered cycles. The
// optional window_end query bound defaults to one year out.
func (s *Server) listCycles(c *gin.Context) {
	req := obligationdomain.GenerateCyclesRequest{ContainerID: c.Param("id")}
	if raw := c.Query("window_end"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		req.WindowEnd = parsed
	}

	cycles, err := s.obligationSvc.GenerateCycles(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": cycles})
}

// dispatchContainer materializes tracking artifacts for one container's
// cycles that fall within its lead window, same as the daily batch but on
// demand.
func (s *Server) dispatchContainer(c *gin.Context) {
	ctx := c.Request.Context()
	container, err := s.obligationSvc.GetByID(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	today := s.clock.Now()
	cycles, err := s.obligationSvc.GenerateCycles(ctx, obligationdomain.GenerateCyclesRequest{
		ContainerID: container.ID.String(),
		WindowEnd:   today.AddDate(0, 0, s.obligationSvc.EffectiveLeadDays(container)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	artifacts := make([]trackingdomain.Artifact, 0, 4)
	for _, cycle := range s.obligationSvc.CyclesNeedingTracking(container, cycles, today) {
		artifact, err := s.trackingSvc.EnsureTracking(ctx, container, cycle)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		artifacts = append(artifacts, artifact)
	}
	c.JSON(http.StatusOK, gin.H{"artifacts": artifacts})
}

func (s *Server) listReminders(c *gin.Context) {
	reminders, err := s.trackingSvc.RemindersDueToday(c.Request.Context(), s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminders": reminders})
}

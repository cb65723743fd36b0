package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// runSchedulerOnce triggers a full scheduler pass. The jobs are idempotent,
// so operators can fire this freely after incidents.
func (s *Server) runSchedulerOnce(c *gin.Context) {
	if err := s.scheduler.RunOnce(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

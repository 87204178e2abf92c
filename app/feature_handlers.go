package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/2456Zebra/novahunt-sub001/app/models"
)

// The search and reveal services are external collaborators; these handlers
// return canned results and exist to exercise the quota gate.

type contactResult struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Title   string `json:"title"`
	Domain  string `json:"domain"`
}

var mockContacts = []contactResult{
	{Name: "Dana Whitfield", Company: "Brightline Analytics", Title: "VP Marketing", Domain: "brightline.io"},
	{Name: "Marcus Okafor", Company: "Northgate Labs", Title: "Head of Growth", Domain: "northgatelabs.com"},
	{Name: "Priya Raman", Company: "Cloudmesa", Title: "Director of Sales", Domain: "cloudmesa.dev"},
}

type searchRequest struct {
	Query string `json:"query"`
}

// ContactSearch consumes one search unit, then returns mock results.
func (s *Server) ContactSearch(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	if err := s.consume(c, id.UserID, models.QuotaSearch); err != nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   req.Query,
		"results": mockContacts,
	})
}

type revealRequest struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// ContactReveal consumes one reveal unit, then returns a mock email address.
func (s *Server) ContactReveal(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	var req revealRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" || req.Domain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and domain are required"})
		return
	}

	if err := s.consume(c, id.UserID, models.QuotaReveal); err != nil {
		return
	}

	local := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(req.Name), " ", "."))
	c.JSON(http.StatusOK, gin.H{
		"email":      fmt.Sprintf("%s@%s", local, req.Domain),
		"confidence": 0.92,
	})
}

// QuotaStatus reports the remaining metered actions for the session's user.
func (s *Server) QuotaStatus(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	quota, err := s.quotas.Snapshot(c.Request.Context(), id.UserID)
	if err != nil {
		s.log.Error("quota snapshot failed", zap.String("user_id", id.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load quota"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"searchesRemaining": quota.SearchesRemaining,
		"revealsRemaining":  quota.RevealsRemaining,
	})
}

// consume takes one quota unit and writes the denial response itself. The
// returned error only signals the caller to stop.
func (s *Server) consume(c *gin.Context, userID string, kind models.QuotaKind) error {
	err := s.quotas.Consume(c.Request.Context(), userID, kind)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrQuotaExhausted) {
		quotaDenials.WithLabelValues(string(kind)).Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": "quota exhausted"})
		return err
	}
	s.log.Error("quota consume failed",
		zap.String("user_id", userID), zap.String("kind", string(kind)), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check quota"})
	return err
}

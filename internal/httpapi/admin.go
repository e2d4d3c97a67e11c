package httpapi

import (
	"errors"
	"net/http"
	"time"

	"call-platform/internal/reporting"

	"github.com/gin-gonic/gin"
)

const defaultSummaryWindow = 24 * time.Hour

// parseRange reads from/to (RFC3339) query params. Missing bounds default
// to the last 24 hours ending now.
func parseRange(c *gin.Context, now time.Time) (reporting.TimeRange, error) {
	r := reporting.TimeRange{From: now.Add(-defaultSummaryWindow), To: now}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return r, err
		}
		r.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return r, err
		}
		r.To = t
	}
	return r, nil
}

// CallsSummary reports call outcomes in the caller's workspace.
func (h Handlers) CallsSummary(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	rng, err := parseRange(c, time.Now().UTC())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from/to must be RFC3339"})
		return
	}
	out, err := h.Reporting.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		WorkspaceID: id.WorkspaceID,
		Range:       rng,
		Kind:        c.Query("kind"),
	})
	if err != nil {
		reportError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// UserSummary reports one member's call activity in the caller's workspace.
func (h Handlers) UserSummary(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	rng, err := parseRange(c, time.Now().UTC())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from/to must be RFC3339"})
		return
	}
	out, err := h.Reporting.UserSummary(c.Request.Context(), reporting.UserSummaryRequest{
		WorkspaceID: id.WorkspaceID,
		UserID:      c.Param("user_id"),
		Range:       rng,
	})
	if err != nil {
		reportError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Sweep runs one janitor pass immediately.
func (h Handlers) Sweep(c *gin.Context) {
	if h.Janitor == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "janitor not configured"})
		return
	}
	n, err := h.Janitor.Sweep(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"missed": n})
}

func reportError(c *gin.Context, err error) {
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	writeError(c, err)
}

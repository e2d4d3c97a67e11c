package httpapi

import (
	"errors"
	"net/http"

	"call-platform/internal/calls"
	"call-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

var errorTable = []struct {
	err    error
	code   string
	status int
}{
	{calls.ErrSessionNotFound, "SESSION_NOT_FOUND", http.StatusNotFound},
	{calls.ErrSessionTerminal, "SESSION_TERMINAL", http.StatusConflict},
	{calls.ErrInvalidParticipants, "INVALID_PARTICIPANTS", http.StatusBadRequest},
	{calls.ErrNotOwner, "NOT_OWNER", http.StatusForbidden},
	{calls.ErrOwnerMustTransfer, "OWNER_MUST_TRANSFER", http.StatusConflict},
	{calls.ErrTransferNotSupported, "TRANSFER_NOT_SUPPORTED", http.StatusBadRequest},
	{calls.ErrVersionConflict, "VERSION_CONFLICT", http.StatusConflict},
	{calls.ErrMediaProviderFailure, "MEDIA_PROVIDER_FAILURE", http.StatusBadGateway},
	{calls.ErrNotParticipant, "NOT_PARTICIPANT", http.StatusForbidden},
	{calls.ErrInvalidTransition, "INVALID_TRANSITION", http.StatusConflict},
	{calls.ErrCallInProgress, "CALL_IN_PROGRESS", http.StatusConflict},
}

// errorStatus maps an orchestrator error to its wire code and HTTP status.
func errorStatus(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.FromGin(c).Error("calls: request failed", "err", err)
		msg = "internal error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}

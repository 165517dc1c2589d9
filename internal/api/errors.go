package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"libreserve-backend/internal/libraryerr"
	"libreserve-backend/internal/parse"
)

type errorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	BookedTime string `json:"bookedTime,omitempty"`
}

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{parse.ErrEmpty, "invalid_identifier", http.StatusBadRequest},
	{parse.ErrMalformed, "invalid_identifier", http.StatusBadRequest},
	{libraryerr.ErrReservationNotFound, "reservation_not_found", http.StatusNotFound},
	{libraryerr.ErrStudentNotFound, "student_not_found", http.StatusNotFound},
	{libraryerr.ErrUserNotInLibrary, "user_not_in_library", http.StatusNotFound},
	{libraryerr.ErrInvalidReservation, "invalid_reservation", http.StatusConflict},
	{libraryerr.ErrEarlyCheckIn, "early_check_in", http.StatusForbidden},
	{libraryerr.ErrLateCheckIn, "late_check_in", http.StatusForbidden},
	{libraryerr.ErrAccountLocked, "account_locked", http.StatusLocked},
	{libraryerr.ErrLibraryRuntimeFault, "library_runtime_fault", http.StatusInternalServerError},
}

// writeError maps err onto a status and a stable error code. Unknown errors
// are logged and reported without detail.
func (h *Handler) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	for _, e := range errorCodes {
		if !errors.Is(err, e.err) {
			continue
		}
		resp := errorResponse{Error: e.code, Message: err.Error()}
		var early *libraryerr.EarlyCheckInError
		if errors.As(err, &early) {
			resp.BookedTime = early.BookedAt.Format("15:04")
		}
		c.AbortWithStatusJSON(e.status, resp)
		return
	}

	h.logger.Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: "internal server error"})
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"libreserve-backend/internal/admission"
	"libreserve-backend/internal/parse"
)

// VerifyReservationCode handles GET /api/reservations/code/:code.
func (h *Handler) VerifyReservationCode(c *gin.Context) {
	code, err := parse.ReservationCode(c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	view, err := h.admissions.VerifyReservationCode(c.Request.Context(), code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ReservationsForToday handles GET /api/reservations/today.
func (h *Handler) ReservationsForToday(c *gin.Context) {
	h.writeViews(c)(h.admissions.ReservationsForToday(c.Request.Context()))
}

// StudentsInLibrary handles GET /api/occupancy/students.
func (h *Handler) StudentsInLibrary(c *gin.Context) {
	h.writeViews(c)(h.admissions.StudentsInLibrary())
}

// StudentReservations handles GET /api/students/:matric/reservations.
func (h *Handler) StudentReservations(c *gin.Context) {
	matric, err := parse.MatricNumber(c.Param("matric"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeViews(c)(h.admissions.StudentReservations(c.Request.Context(), matric))
}

// StudentReservationsForToday handles GET /api/students/:matric/reservations/today.
func (h *Handler) StudentReservationsForToday(c *gin.Context) {
	matric, err := parse.MatricNumber(c.Param("matric"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeViews(c)(h.admissions.StudentReservationsForToday(c.Request.Context(), matric))
}

func (h *Handler) writeViews(c *gin.Context) func([]admission.ReservationView, error) {
	return func(views []admission.ReservationView, err error) {
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, views)
	}
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"libreserve-backend/internal/admission"
	"libreserve-backend/internal/mw"
	"libreserve-backend/internal/parse"
	"libreserve-backend/internal/reservation"
)

type signInResponse struct {
	Reservation    admission.ReservationView `json:"reservation"`
	PreviousStatus reservation.Status        `json:"previousStatus"`
}

func newSignInResponse(res admission.Result) signInResponse {
	return signInResponse{Reservation: admission.NewView(res.Record), PreviousStatus: res.PreviousStatus}
}

// SignInByMatricNumber handles POST /api/admissions/students/matric/:matric.
func (h *Handler) SignInByMatricNumber(c *gin.Context) {
	matric, err := parse.MatricNumber(c.Param("matric"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	res, err := h.admissions.SignInByMatricNumber(c.Request.Context(), matric)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSignInResponse(res))
}

// SignInByReservationCode handles POST /api/admissions/students/code/:code.
func (h *Handler) SignInByReservationCode(c *gin.Context) {
	code, err := parse.ReservationCode(c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	res, err := h.admissions.SignInByReservationCode(c.Request.Context(), code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSignInResponse(res))
}

// SignOutStudent handles POST /api/admissions/students/matric/:matric/sign-out.
func (h *Handler) SignOutStudent(c *gin.Context) {
	matric, err := parse.MatricNumber(c.Param("matric"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	r, err := h.admissions.SignOutStudent(c.Request.Context(), matric)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, admission.NewView(r))
}

// KickOutByMatricNumber handles DELETE /api/occupancy/students/matric/:matric.
func (h *Handler) KickOutByMatricNumber(c *gin.Context) {
	matric, err := parse.MatricNumber(c.Param("matric"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	r, err := h.admissions.KickOutByMatricNumber(c.Request.Context(), matric)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, admission.NewView(r))
}

// KickOutByReservationCode handles DELETE /api/occupancy/students/code/:code.
func (h *Handler) KickOutByReservationCode(c *gin.Context) {
	code, err := parse.ReservationCode(c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	r, err := h.admissions.KickOutByReservationCode(c.Request.Context(), code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, admission.NewView(r))
}

// BlacklistStudent handles POST /api/students/:matric/blacklist.
func (h *Handler) BlacklistStudent(c *gin.Context) {
	matric, err := parse.MatricNumber(c.Param("matric"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	s, err := h.admissions.BlacklistStudent(c.Request.Context(), matric)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"matricNumber": s.MatricNumber,
		"notLocked":    s.Account.NotLocked,
		"wasInLibrary": len(s.Reservations) > 0,
	})
}

// SignInLibrarian handles POST /api/librarians/sign-in for the token's subject.
func (h *Handler) SignInLibrarian(c *gin.Context) {
	staff, err := parse.StaffNumber(mw.Claims(c).Subject)
	if err != nil {
		h.writeError(c, err)
		return
	}
	res, err := h.admissions.SignInLibrarian(c.Request.Context(), staff)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSignInResponse(res))
}

// SignOutLibrarian handles POST /api/librarians/sign-out. The bearer token is
// revoked whether or not a session was open.
func (h *Handler) SignOutLibrarian(c *gin.Context) {
	staff, err := parse.StaffNumber(mw.Claims(c).Subject)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.admissions.SignOutLibrarian(c.Request.Context(), staff, mw.BearerToken(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"libreserve-backend/internal/libraryerr"
	"libreserve-backend/internal/model"
	"libreserve-backend/internal/parse"
	"libreserve-backend/internal/reservation"
	"libreserve-backend/internal/store"
)

type putSubscriptionRequest struct {
	Endpoint        string `json:"endpoint" binding:"required"`
	P256DH          string `json:"p256dh" binding:"required"`
	Auth            string `json:"auth" binding:"required"`
	OwnerID         string `json:"owner_id" binding:"required"`
	ReservationCode string `json:"reservation_code" binding:"required"`
}

// PutSubscription handles the creation or replacement of a subscription.
//
// Students hold no access token, so the route is public. Instead the caller
// proves it speaks for owner_id with one of that student's reservation codes;
// a code that is unknown or belongs to someone else is refused with 403.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	owner, err := parse.MatricNumber(req.OwnerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	code, err := parse.ReservationCode(req.ReservationCode)
	if err != nil {
		h.writeError(c, err)
		return
	}
	view, err := h.admissions.VerifyReservationCode(c.Request.Context(), code)
	if err != nil && !errors.Is(err, libraryerr.ErrReservationNotFound) {
		h.writeError(c, err)
		return
	}
	if err != nil || view.OwnerKind != reservation.KindStudent || view.OwnerID != owner {
		c.JSON(http.StatusForbidden, gin.H{"error": "reservation code does not belong to owner"})
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
		OwnerID:  owner,
	}
	if err := h.subscriptions.Put(c.Request.Context(), subscription); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.subscriptions.Delete(c.Request.Context(), req.Endpoint); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscription reports who an endpoint is subscribed for.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint must be a URL"})
		return
	}

	sub, err := h.subscriptions.Get(c.Request.Context(), endpoint)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"owner_id": sub.OwnerID})
}

// GetVAPIDPublicKey returns the VAPID public key to the client.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vapid keys are not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}

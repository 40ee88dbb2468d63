package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/tenderbid/internal/tender"
)

// errorMapping pairs a session error with its HTTP status and error code.
type errorMapping struct {
	err    error
	status int
	code   string
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{tender.ErrInvalidAddress, http.StatusBadRequest, "invalid_address"},
	{tender.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{tender.ErrInvalidDuration, http.StatusBadRequest, "invalid_duration"},
	{tender.ErrNotOwner, http.StatusForbidden, "not_owner"},
	{tender.ErrNotWhitelisted, http.StatusForbidden, "not_whitelisted"},
	{tender.ErrNotLoaded, http.StatusConflict, "not_loaded"},
	{tender.ErrBiddingClosed, http.StatusConflict, "bidding_closed"},
	{tender.ErrBoundaryRejected, http.StatusUnprocessableEntity, "rejected"},
	{tender.ErrMalformedPayload, http.StatusBadGateway, "malformed_payload"},
	{tender.ErrBoundaryUnavailable, http.StatusServiceUnavailable, "unavailable"},
}

// statusFor maps err to an HTTP status and error code.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	body := gin.H{
		"error":   code,
		"message": err.Error(),
	}
	var be *tender.BoundaryError
	if errors.As(err, &be) {
		body["method"] = be.Method
		if be.TxHash != "" {
			body["txHash"] = be.TxHash
		}
	}
	c.JSON(status, body)
}

package server

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/tenderbid/internal/countdown"
	"github.com/mbd888/tenderbid/internal/tender"
	"github.com/mbd888/tenderbid/internal/validation"
)

// Handler provides HTTP endpoints for the tender session and the factory.
type Handler struct {
	session     *tender.Session
	deployments *tender.Deployments
	now         func() time.Time
}

// NewHandler creates a new tender handler.
func NewHandler(session *tender.Session, deployments *tender.Deployments) *Handler {
	return &Handler{session: session, deployments: deployments, now: time.Now}
}

// RegisterRoutes sets up the session and factory routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	session := r.Group("/session")
	session.GET("", h.GetSession)
	session.POST("/load", h.Load)
	session.GET("/countdown", h.GetCountdown)
	session.GET("/bids", h.GetBids)
	session.POST("/bids", h.SubmitBid)
	session.POST("/bids/refresh", h.RefreshBids)
	session.GET("/whitelist", h.GetWhitelist)
	session.POST("/whitelist", h.AddWhitelist)
	session.DELETE("/whitelist/:address", validation.AddressParamMiddleware(), h.RemoveWhitelist)
	session.POST("/whitelist/refresh", h.RefreshWhitelist)
	session.POST("/whitelist/check", h.CheckWhitelisted)
	session.POST("/duration", h.SetBidDuration)
	session.POST("/status/refresh", h.RefreshStatus)
	session.POST("/end", h.EndBidding)
	session.GET("/operations", h.ListOperations)

	r.GET("/contracts", h.ListContracts)
	r.POST("/contracts", h.CreateContract)
}

// LoadRequest selects the contract to work with.
type LoadRequest struct {
	Address string `json:"address"`
}

// WhitelistRequest names a bidder.
type WhitelistRequest struct {
	Address string `json:"address"`
}

// BidRequest carries the bid amount exactly as typed.
type BidRequest struct {
	Amount string `json:"amount"`
}

// DurationRequest opens the bidding window for Seconds from now.
type DurationRequest struct {
	Seconds int64 `json:"seconds"`
}

// SessionView is the session as shown to a display layer.
type SessionView struct {
	tender.State
	Connected   bool   `json:"connected"`
	BiddingOpen bool   `json:"biddingOpen"`
	Countdown   string `json:"countdown"`
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return false
	}
	return true
}

func validationFailed(c *gin.Context, errs validation.ValidationErrors) bool {
	if len(errs) == 0 {
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "validation_error",
		"message": errs.Error(),
		"details": errs,
	})
	return true
}

func (h *Handler) style(c *gin.Context) (countdown.Style, bool) {
	style, err := countdown.ParseStyle(c.Query("style"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_style",
			"message": err.Error(),
		})
		return style, false
	}
	return style, true
}

// loadedState writes ErrNotLoaded and returns false if nothing is loaded.
func (h *Handler) loadedState(c *gin.Context) (tender.State, bool) {
	st, ok := h.session.Snapshot()
	if !ok {
		writeError(c, tender.ErrNotLoaded)
	}
	return st, ok
}

func (h *Handler) view(st tender.State, style countdown.Style) SessionView {
	now := h.now()
	return SessionView{
		State:       st,
		Connected:   h.session.Connected(),
		BiddingOpen: h.session.BiddingOpen(now),
		Countdown:   h.session.Countdown(now, style),
	}
}

// GetSession handles GET /v1/session
func (h *Handler) GetSession(c *gin.Context) {
	style, ok := h.style(c)
	if !ok {
		return
	}
	st, ok := h.loadedState(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": h.view(st, style)})
}

// Load handles POST /v1/session/load
func (h *Handler) Load(c *gin.Context) {
	var req LoadRequest
	if !bindJSON(c, &req) {
		return
	}
	if validationFailed(c, validation.Validate(
		validation.Required("address", req.Address),
		validation.ValidAddress("address", req.Address),
	)) {
		return
	}

	st, err := h.session.Load(c.Request.Context(), req.Address)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": h.view(st, countdown.StyleLetters)})
}

// GetCountdown handles GET /v1/session/countdown?style=letters|colon
func (h *Handler) GetCountdown(c *gin.Context) {
	style, ok := h.style(c)
	if !ok {
		return
	}
	st, ok := h.loadedState(c)
	if !ok {
		return
	}
	now := h.now()
	c.JSON(http.StatusOK, gin.H{
		"countdown":      h.session.Countdown(now, style),
		"biddingEndTime": st.EndTime,
		"open":           h.session.BiddingOpen(now),
	})
}

// GetBids handles GET /v1/session/bids
func (h *Handler) GetBids(c *gin.Context) {
	st, ok := h.loadedState(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bids":   st.Ledger.Bids,
		"lowest": st.Ledger.Lowest,
	})
}

// SubmitBid handles POST /v1/session/bids
func (h *Handler) SubmitBid(c *gin.Context) {
	var req BidRequest
	if !bindJSON(c, &req) {
		return
	}

	// The session checks the window and whitelist before the amount.
	receipt, err := h.session.SubmitBid(c.Request.Context(), req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"receipt": receipt})
}

// RefreshBids handles POST /v1/session/bids/refresh
func (h *Handler) RefreshBids(c *gin.Context) {
	if err := h.session.RefreshBids(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.GetBids(c)
}

// GetWhitelist handles GET /v1/session/whitelist
func (h *Handler) GetWhitelist(c *gin.Context) {
	st, ok := h.loadedState(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"whitelist": st.Whitelist})
}

// AddWhitelist handles POST /v1/session/whitelist
func (h *Handler) AddWhitelist(c *gin.Context) {
	var req WhitelistRequest
	if !bindJSON(c, &req) {
		return
	}
	if validationFailed(c, validation.Validate(
		validation.Required("address", req.Address),
		validation.ValidAddress("address", req.Address),
	)) {
		return
	}

	receipt, err := h.session.AddWhitelist(c.Request.Context(), req.Address)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"receipt": receipt})
}

// RemoveWhitelist handles DELETE /v1/session/whitelist/:address
func (h *Handler) RemoveWhitelist(c *gin.Context) {
	receipt, err := h.session.RemoveWhitelist(c.Request.Context(), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipt": receipt})
}

// RefreshWhitelist handles POST /v1/session/whitelist/refresh
func (h *Handler) RefreshWhitelist(c *gin.Context) {
	if err := h.session.RefreshWhitelist(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.GetWhitelist(c)
}

// CheckWhitelisted handles POST /v1/session/whitelist/check
func (h *Handler) CheckWhitelisted(c *gin.Context) {
	whitelisted, err := h.session.CheckWhitelisted(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"whitelisted": whitelisted})
}

// SetBidDuration handles POST /v1/session/duration
func (h *Handler) SetBidDuration(c *gin.Context) {
	var req DurationRequest
	if !bindJSON(c, &req) {
		return
	}
	if validationFailed(c, validation.Validate(
		validation.ValidDuration("seconds", req.Seconds),
	)) {
		return
	}

	receipt, err := h.session.SetBidDuration(c.Request.Context(), req.Seconds)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipt": receipt})
}

// RefreshStatus handles POST /v1/session/status/refresh
func (h *Handler) RefreshStatus(c *gin.Context) {
	if err := h.session.RefreshStatus(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.GetCountdown(c)
}

// EndBidding handles POST /v1/session/end
func (h *Handler) EndBidding(c *gin.Context) {
	receipt, err := h.session.EndBidding(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	st, _ := h.session.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"receipt": receipt,
		"bids":    st.Ledger.Bids,
		"lowest":  st.Ledger.Lowest,
	})
}

// ListOperations handles GET /v1/session/operations?kind=submit_bid
func (h *Handler) ListOperations(c *gin.Context) {
	ops := append(h.session.Operations(), h.deployments.Operations()...)
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].StartedAt.Before(ops[j].StartedAt)
	})
	if kind := strings.TrimSpace(c.Query("kind")); kind != "" {
		filtered := ops[:0]
		for _, op := range ops {
			if string(op.Kind) == kind {
				filtered = append(filtered, op)
			}
		}
		ops = filtered
	}
	c.JSON(http.StatusOK, gin.H{"operations": ops, "count": len(ops)})
}

// ListContracts handles GET /v1/contracts
func (h *Handler) ListContracts(c *gin.Context) {
	list, err := h.deployments.Contracts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contracts": list, "count": len(list)})
}

// CreateContract handles POST /v1/contracts
func (h *Handler) CreateContract(c *gin.Context) {
	receipt, list, err := h.deployments.Create(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"receipt": receipt, "contracts": list})
}

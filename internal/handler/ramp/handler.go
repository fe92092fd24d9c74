package ramp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	model "github.com/flowsend/flowsend/backend/internal/model/ramp"
	rampservice "github.com/flowsend/flowsend/backend/internal/service/ramp"
	"github.com/flowsend/flowsend/backend/pkg/utils"
)

// Issuer abstracts session token issuance so the handler can degrade to
// fallback URLs when issuance is unavailable or failing.
type Issuer interface {
	IssueSessionToken(ctx context.Context, addresses []model.Address, assets []string) (*model.SessionCredential, error)
}

// Handler serves hosted onramp/offramp URL generation and standalone
// session token issuance.
type Handler struct {
	issuer Issuer
	urls   *rampservice.URLBuilder
}

func New(issuer Issuer, urls *rampservice.URLBuilder) *Handler {
	return &Handler{issuer: issuer, urls: urls}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleSessionToken)
	r.Post("/onramp", h.handleOnrampURL)
	r.Post("/offramp", h.handleOfframpURL)
}

type sessionTokenRequest struct {
	Address     string   `json:"address"`
	Blockchains []string `json:"blockchains"`
	Assets      []string `json:"assets"`
}

func (h *Handler) handleSessionToken(w http.ResponseWriter, r *http.Request) {
	if h.issuer == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "session token issuance is not configured")
		return
	}

	var req sessionTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Address == "" {
		utils.RespondError(w, http.StatusBadRequest, "address is required")
		return
	}
	if len(req.Blockchains) == 0 {
		req.Blockchains = []string{"base"}
	}
	if len(req.Assets) == 0 {
		req.Assets = []string{"USDC"}
	}

	credential, err := h.issuer.IssueSessionToken(r.Context(),
		[]model.Address{{Address: req.Address, Blockchains: req.Blockchains}}, req.Assets)
	if err != nil {
		zap.L().Warn("session token issuance failed", zap.Error(err))
		utils.RespondError(w, http.StatusBadGateway, "failed to issue a session token")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"token":     credential.Token,
		"channelId": credential.ChannelID,
		"expiresAt": credential.ExpiresAt,
	})
}

type urlRequest struct {
	Address       string           `json:"address"`
	Asset         string           `json:"asset"`
	Network       string           `json:"network"`
	Amount        *decimal.Decimal `json:"amount"`
	FiatCurrency  string           `json:"fiatCurrency"`
	PaymentMethod string           `json:"paymentMethod"`
	RedirectURL   string           `json:"redirectUrl"`
}

func (h *Handler) handleOnrampURL(w http.ResponseWriter, r *http.Request) {
	h.handleRampURL(w, r, model.DirectionOnramp)
}

func (h *Handler) handleOfframpURL(w http.ResponseWriter, r *http.Request) {
	h.handleRampURL(w, r, model.DirectionOfframp)
}

func (h *Handler) handleRampURL(w http.ResponseWriter, r *http.Request, direction model.Direction) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Address == "" {
		utils.RespondError(w, http.StatusBadRequest, "address is required")
		return
	}
	// Amount validation runs before any token issuance so an invalid
	// request never consumes a credential.
	if req.Amount == nil {
		utils.RespondError(w, http.StatusBadRequest, "amount is required")
		return
	}
	if req.Amount.LessThan(model.MinFiatAmount) {
		utils.RespondError(w, http.StatusBadRequest,
			"minimum amount is "+model.MinFiatAmount.String())
		return
	}

	rampReq := model.Request{
		Direction:     direction,
		Asset:         req.Asset,
		Network:       req.Network,
		FiatCurrency:  req.FiatCurrency,
		PaymentMethod: req.PaymentMethod,
		UserAddress:   req.Address,
		RedirectURL:   req.RedirectURL,
	}
	rampReq.FiatAmount = *req.Amount

	network := req.Network
	if network == "" {
		network = "base"
	}
	asset := req.Asset
	if asset == "" {
		asset = "USDC"
	}

	// Issuance failure is not fatal: the builder degrades to appId-based
	// initialization.
	if h.issuer != nil {
		credential, err := h.issuer.IssueSessionToken(r.Context(),
			[]model.Address{{Address: req.Address, Blockchains: []string{network}}},
			[]string{asset})
		if err != nil {
			zap.L().Warn("falling back to appId ramp URL", zap.Error(err))
		} else {
			rampReq.Credential = credential
		}
	}

	var (
		rampURL string
		mode    rampservice.Mode
	)
	if direction == model.DirectionOfframp {
		rampURL, mode = h.urls.BuildOfframpURL(rampReq)
	} else {
		rampURL, mode = h.urls.BuildOnrampURL(rampReq)
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"url":  rampURL,
		"mode": string(mode),
	})
}

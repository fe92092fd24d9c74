package sponsorship

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/flowsend/flowsend/backend/internal/service/sponsorship"
	"github.com/flowsend/flowsend/backend/pkg/utils"
)

// Handler answers gas sponsorship eligibility checks for USDC transfers.
type Handler struct {
	checker      *sponsorship.Checker
	usdcContract common.Address
}

func New(checker *sponsorship.Checker, usdcContract string) *Handler {
	return &Handler{
		checker:      checker,
		usdcContract: common.HexToAddress(usdcContract),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sponsorship/check", h.handleCheck)
}

type checkRequest struct {
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "sponsorship checks are not configured")
		return
	}

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Sender) {
		utils.RespondError(w, http.StatusBadRequest, "sender must be a hex address")
		return
	}
	if !common.IsHexAddress(req.Recipient) {
		utils.RespondError(w, http.StatusBadRequest, "recipient must be a hex address")
		return
	}

	callData, err := sponsorship.TransferCallData(common.HexToAddress(req.Recipient), req.Amount)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision := h.checker.CheckLatest(r.Context(),
		common.HexToAddress(req.Sender), h.usdcContract, nil, callData)

	utils.RespondJSON(w, http.StatusOK, decision)
}

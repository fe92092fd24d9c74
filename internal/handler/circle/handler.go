package circle

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flowsend/flowsend/backend/internal/service/circle"
	"github.com/flowsend/flowsend/backend/internal/service/orchestrator"
	"github.com/flowsend/flowsend/backend/pkg/utils"
)

// Handler exposes the ledger operations over REST: bank account management,
// wire payouts, wallet transfers, and deposit addresses.
type Handler struct {
	client *circle.Client
}

func New(client *circle.Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/circle", func(r chi.Router) {
		r.Get("/test", h.handleTest)
		r.Get("/balances", h.handleBalances)
		r.Get("/bank-accounts", h.handleListBankAccounts)
		r.Post("/bank-accounts", h.handleCreateBankAccount)
		r.Get("/wire-instructions", h.handleWireInstructions)
		r.Post("/withdraw", h.handleWithdraw)
		r.Get("/withdraw", h.handleGetPayout)
		r.Post("/deposit/transfer-to-wallet", h.handleTransferToWallet)
		r.Get("/deposit-address", h.handleListDepositAddresses)
		r.Post("/deposit-address", h.handleCreateDepositAddress)
	})
}

func (h *Handler) configured(w http.ResponseWriter) bool {
	if h.client == nil {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   "Circle API is not configured on this server.",
		})
		return false
	}
	return true
}

func (h *Handler) handleTest(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	cfg, err := h.client.GetConfiguration(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"configuration": cfg,
	})
}

func (h *Handler) handleBalances(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	balances, err := h.client.GetBalances(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"balances": balances,
	})
}

func (h *Handler) handleListBankAccounts(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	accounts, err := h.client.ListBankAccounts(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"bankAccounts": accounts,
	})
}

type createBankAccountRequest struct {
	AccountNumber string `json:"accountNumber"`
	RoutingNumber string `json:"routingNumber"`
	HolderName    string `json:"holderName"`
	Line1         string `json:"line1"`
	City          string `json:"city"`
	District      string `json:"district"`
	PostalCode    string `json:"postalCode"`
	Country       string `json:"country"`
	BankName      string `json:"bankName"`
}

func (h *Handler) handleCreateBankAccount(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}

	var req createBankAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountNumber == "" || req.RoutingNumber == "" || req.HolderName == "" {
		utils.RespondError(w, http.StatusBadRequest, "accountNumber, routingNumber and holderName are required")
		return
	}

	account, err := h.client.CreateBankAccount(r.Context(), circle.BankAccountParams{
		AccountNumber: req.AccountNumber,
		RoutingNumber: req.RoutingNumber,
		HolderName:    req.HolderName,
		Line1:         req.Line1,
		City:          req.City,
		District:      req.District,
		PostalCode:    req.PostalCode,
		Country:       req.Country,
		BankName:      req.BankName,
	})
	if err != nil {
		respondFailure(w, err)
		return
	}

	zap.L().Info("bank account linked", zap.String("bank_account_id", account.ID))
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"bankAccount": account,
	})
}

func (h *Handler) handleWireInstructions(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	bankAccountID := r.URL.Query().Get("bankAccountId")
	if bankAccountID == "" {
		utils.RespondError(w, http.StatusBadRequest, "bankAccountId query parameter is required")
		return
	}
	instructions, err := h.client.WireInstructions(r.Context(), bankAccountID)
	if err != nil {
		respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"instructions": instructions,
	})
}

type withdrawRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	BankAccountID string          `json:"bankAccountId"`
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}

	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BankAccountID == "" {
		utils.RespondError(w, http.StatusBadRequest, "bankAccountId is required")
		return
	}
	if req.Amount.LessThan(orchestrator.MinAmount) {
		utils.RespondError(w, http.StatusBadRequest,
			"minimum withdrawal amount is "+orchestrator.MinAmount.String()+" USDC")
		return
	}

	payout, err := h.client.CreatePayout(r.Context(), circle.PayoutParams{
		Amount:        req.Amount,
		BankAccountID: req.BankAccountID,
	})
	if err != nil {
		respondFailure(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"payout":  payout,
	})
}

func (h *Handler) handleGetPayout(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	payoutID := r.URL.Query().Get("payoutId")
	if payoutID == "" {
		utils.RespondError(w, http.StatusBadRequest, "payoutId query parameter is required")
		return
	}
	payout, err := h.client.GetPayout(r.Context(), payoutID)
	if err != nil {
		respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"payout":  payout,
	})
}

type transferToWalletRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	WalletAddress string          `json:"walletAddress"`
}

func (h *Handler) handleTransferToWallet(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}

	var req transferToWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WalletAddress == "" {
		utils.RespondError(w, http.StatusBadRequest, "walletAddress is required")
		return
	}
	if req.Amount.LessThan(orchestrator.MinAmount) {
		utils.RespondError(w, http.StatusBadRequest,
			"minimum deposit amount is "+orchestrator.MinAmount.String()+" USDC")
		return
	}

	addressID, err := h.resolveRecipient(r, req.WalletAddress)
	if err != nil {
		respondFailure(w, err)
		return
	}

	transfer, err := h.client.CreateTransfer(r.Context(), circle.TransferParams{
		AddressID: addressID,
		Amount:    req.Amount,
	})
	if err != nil {
		respondFailure(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"transfer": transfer,
	})
}

// resolveRecipient reuses an existing address book entry for the wallet or
// registers a new one.
func (h *Handler) resolveRecipient(r *http.Request, walletAddress string) (string, error) {
	recipients, err := h.client.ListRecipientAddresses(r.Context())
	if err != nil {
		return "", err
	}
	for _, recipient := range recipients {
		if strings.EqualFold(recipient.Address, walletAddress) && recipient.Chain == "BASE" {
			return recipient.ID, nil
		}
	}
	created, err := h.client.CreateRecipientAddress(r.Context(), circle.RecipientParams{
		Address:     walletAddress,
		Chain:       "BASE",
		Currency:    "USD",
		Description: "Base Wallet: " + walletAddress,
	})
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (h *Handler) handleListDepositAddresses(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	addresses, err := h.client.ListBlockchainAddresses(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"addresses": addresses,
	})
}

func (h *Handler) handleCreateDepositAddress(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	address, err := h.client.CreateBlockchainAddress(r.Context(), "USD", "BASE")
	if err != nil {
		respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"address": address,
	})
}

// respondFailure maps ledger errors onto the {success:false, error} shape
// the client renders inline.
func respondFailure(w http.ResponseWriter, err error) {
	zap.L().Warn("circle request failed", zap.Error(err))
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}

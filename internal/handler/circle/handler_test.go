package circle

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/flowsend/flowsend/backend/internal/config"
	circleservice "github.com/flowsend/flowsend/backend/internal/service/circle"
)

func setupRouter(t *testing.T, provider http.HandlerFunc) *chi.Mux {
	t.Helper()

	var client *circleservice.Client
	if provider != nil {
		server := httptest.NewServer(provider)
		t.Cleanup(server.Close)

		var err error
		client, err = circleservice.NewClient(config.CircleConfig{APIKey: "test-key", BaseURL: server.URL})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	handler := New(client)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var decoded map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return decoded
}

func TestNotConfiguredShape(t *testing.T) {
	r := setupRouter(t, nil)

	resp := do(t, r, http.MethodGet, "/circle/bank-accounts", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected graceful 200, got %d", resp.Code)
	}
	decoded := decode(t, resp)
	if decoded["success"] != false {
		t.Fatalf("expected success=false, got %+v", decoded)
	}
	if decoded["error"] == "" {
		t.Fatalf("expected an error message, got %+v", decoded)
	}
}

func TestListBankAccounts(t *testing.T) {
	r := setupRouter(t, func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": "acc-1"}},
		})
	})

	resp := do(t, r, http.MethodGet, "/circle/bank-accounts", nil)
	decoded := decode(t, resp)
	if decoded["success"] != true {
		t.Fatalf("expected success, got %+v", decoded)
	}
	accounts, _ := decoded["bankAccounts"].([]any)
	if len(accounts) != 1 {
		t.Fatalf("expected one account, got %+v", decoded["bankAccounts"])
	}
}

func TestWithdrawBelowMinimum(t *testing.T) {
	called := false
	r := setupRouter(t, func(w http.ResponseWriter, req *http.Request) {
		called = true
	})

	resp := do(t, r, http.MethodPost, "/circle/withdraw", map[string]any{
		"amount":        "5",
		"bankAccountId": "acc-1",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if called {
		t.Fatal("provider must not be called below the minimum")
	}
}

func TestWithdrawCreatesPayout(t *testing.T) {
	r := setupRouter(t, func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": "payout-1", "status": "pending"},
		})
	})

	resp := do(t, r, http.MethodPost, "/circle/withdraw", map[string]any{
		"amount":        "50",
		"bankAccountId": "acc-1",
	})
	decoded := decode(t, resp)
	if decoded["success"] != true {
		t.Fatalf("expected success, got %+v", decoded)
	}
	payout, _ := decoded["payout"].(map[string]any)
	if payout["id"] != "payout-1" {
		t.Fatalf("expected payout-1, got %+v", decoded["payout"])
	}
}

func TestWithdrawMissingBankAccount(t *testing.T) {
	r := setupRouter(t, func(w http.ResponseWriter, req *http.Request) {})

	resp := do(t, r, http.MethodPost, "/circle/withdraw", map[string]any{"amount": "50"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestProviderErrorSurfacesInline(t *testing.T) {
	r := setupRouter(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"message": "insufficient funds"})
	})

	resp := do(t, r, http.MethodPost, "/circle/withdraw", map[string]any{
		"amount":        "50",
		"bankAccountId": "acc-1",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected inline 200 failure, got %d", resp.Code)
	}
	decoded := decode(t, resp)
	if decoded["success"] != false || decoded["error"] != "insufficient funds" {
		t.Fatalf("expected provider error inline, got %+v", decoded)
	}
}

func TestTransferToWalletResolvesRecipient(t *testing.T) {
	r := setupRouter(t, func(w http.ResponseWriter, req *http.Request) {
		switch {
		case req.Method == http.MethodGet && req.URL.Path == "/v1/addressBook/recipients":
			json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
		case req.Method == http.MethodPost && req.URL.Path == "/v1/addressBook/recipients":
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "recipient-1"}})
		case req.Method == http.MethodPost && req.URL.Path == "/v1/transfers":
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "transfer-1"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	resp := do(t, r, http.MethodPost, "/circle/deposit/transfer-to-wallet", map[string]any{
		"amount":        "25",
		"walletAddress": "0xAbCd000000000000000000000000000000000001",
	})
	decoded := decode(t, resp)
	if decoded["success"] != true {
		t.Fatalf("expected success, got %+v", decoded)
	}
	transfer, _ := decoded["transfer"].(map[string]any)
	if transfer["id"] != "transfer-1" {
		t.Fatalf("expected transfer-1, got %+v", decoded["transfer"])
	}
}

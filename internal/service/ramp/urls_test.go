package ramp

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flowsend/flowsend/backend/internal/config"
	model "github.com/flowsend/flowsend/backend/internal/model/ramp"
)

func testBuilder() *URLBuilder {
	return NewURLBuilder(config.RampConfig{
		AppID:              "app-123",
		OnrampRedirectURL:  "https://flowsend.example/onramp/success",
		OfframpRedirectURL: "https://flowsend.example/offramp/success",
	})
}

func parseQuery(t *testing.T, rawURL string) (string, url.Values) {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("built URL did not parse: %v", err)
	}
	return parsed.Scheme + "://" + parsed.Host + parsed.Path, parsed.Query()
}

func testCredential() *model.SessionCredential {
	now := time.Now()
	return &model.SessionCredential{
		Token:     "session-token-1",
		IssuedAt:  now,
		ExpiresAt: now.Add(2 * time.Minute),
	}
}

func TestBuildOnrampURLSecure(t *testing.T) {
	amount := decimal.NewFromInt(100)
	rawURL, mode := testBuilder().BuildOnrampURL(model.Request{
		Direction:     model.DirectionOnramp,
		FiatAmount:    amount,
		PaymentMethod: "card",
		UserAddress:   "0xAbCd000000000000000000000000000000000001",
		Credential:    testCredential(),
	})

	if mode != ModeSecure {
		t.Fatalf("expected secure mode, got %s", mode)
	}

	base, query := parseQuery(t, rawURL)
	if base != onrampBaseURL {
		t.Fatalf("unexpected base URL %s", base)
	}
	if query.Get("sessionToken") != "session-token-1" {
		t.Fatalf("expected session token param, got %q", query.Get("sessionToken"))
	}
	if query.Get("appId") != "" {
		t.Fatal("secure URLs must not carry appId")
	}
	if query.Get("presetFiatAmount") != "100" {
		t.Fatalf("expected amount 100, got %q", query.Get("presetFiatAmount"))
	}
	if query.Get("defaultAsset") != "USDC" || query.Get("defaultNetwork") != "base" {
		t.Fatalf("expected USDC/base defaults, got %q/%q", query.Get("defaultAsset"), query.Get("defaultNetwork"))
	}
	if query.Get("defaultPaymentMethod") != "CARD" {
		t.Fatalf("expected uppercased payment method, got %q", query.Get("defaultPaymentMethod"))
	}
	if query.Get("fiatCurrency") != "USD" {
		t.Fatalf("expected USD default, got %q", query.Get("fiatCurrency"))
	}
	if query.Get("redirectUrl") != "https://flowsend.example/onramp/success" {
		t.Fatalf("expected configured redirect, got %q", query.Get("redirectUrl"))
	}
}

func TestBuildOnrampURLFallback(t *testing.T) {
	rawURL, mode := testBuilder().BuildOnrampURL(model.Request{
		UserAddress: "0xAbCd000000000000000000000000000000000001",
		Network:     "base",
	})

	if mode != ModeFallback {
		t.Fatalf("expected fallback mode, got %s", mode)
	}

	_, query := parseQuery(t, rawURL)
	if query.Get("sessionToken") != "" {
		t.Fatal("fallback URLs must not carry a session token")
	}
	if query.Get("appId") != "app-123" {
		t.Fatalf("expected appId, got %q", query.Get("appId"))
	}

	var addresses map[string][]string
	if err := json.Unmarshal([]byte(query.Get("addresses")), &addresses); err != nil {
		t.Fatalf("addresses param is not valid JSON: %v", err)
	}
	if chains := addresses["0xAbCd000000000000000000000000000000000001"]; len(chains) != 1 || chains[0] != "base" {
		t.Fatalf("unexpected addresses map %+v", addresses)
	}

	var assets []string
	if err := json.Unmarshal([]byte(query.Get("assets")), &assets); err != nil {
		t.Fatalf("assets param is not valid JSON: %v", err)
	}
	if len(assets) != 1 || assets[0] != "USDC" {
		t.Fatalf("unexpected assets %v", assets)
	}
}

func TestBuildOfframpURL(t *testing.T) {
	rawURL, mode := testBuilder().BuildOfframpURL(model.Request{
		Direction:     model.DirectionOfframp,
		FiatAmount:    decimal.NewFromInt(50),
		PaymentMethod: "ach_bank_account",
		UserAddress:   "0x1234",
		Credential:    testCredential(),
	})

	if mode != ModeSecure {
		t.Fatalf("expected secure mode, got %s", mode)
	}

	base, query := parseQuery(t, rawURL)
	if base != offrampBaseURL {
		t.Fatalf("unexpected base URL %s", base)
	}
	if query.Get("defaultCashoutMethod") != "ACH_BANK_ACCOUNT" {
		t.Fatalf("expected cashout method, got %q", query.Get("defaultCashoutMethod"))
	}
	if query.Get("redirectUrl") != "https://flowsend.example/offramp/success" {
		t.Fatalf("expected offramp redirect, got %q", query.Get("redirectUrl"))
	}
}

func TestExpiredCredentialStillUsesToken(t *testing.T) {
	// Expiry is enforced by the remote provider, not re-checked locally.
	credential := &model.SessionCredential{
		Token:     "stale-token",
		IssuedAt:  time.Now().Add(-10 * time.Minute),
		ExpiresAt: time.Now().Add(-8 * time.Minute),
	}
	rawURL, mode := testBuilder().BuildOnrampURL(model.Request{
		UserAddress: "0x1234",
		Credential:  credential,
	})

	if mode != ModeSecure {
		t.Fatalf("expected secure mode, got %s", mode)
	}
	_, query := parseQuery(t, rawURL)
	if query.Get("sessionToken") != "stale-token" {
		t.Fatalf("expected token passthrough, got %q", query.Get("sessionToken"))
	}
}

func TestRequestRedirectOverridesDefault(t *testing.T) {
	rawURL, _ := testBuilder().BuildOnrampURL(model.Request{
		UserAddress: "0x1234",
		RedirectURL: "https://other.example/done",
	})

	_, query := parseQuery(t, rawURL)
	if query.Get("redirectUrl") != "https://other.example/done" {
		t.Fatalf("expected request redirect to win, got %q", query.Get("redirectUrl"))
	}
}

func TestPartnerUserIDTruncation(t *testing.T) {
	long := "0x" + strings.Repeat("a", 60)
	rawURL, _ := testBuilder().BuildOnrampURL(model.Request{UserAddress: long})

	_, query := parseQuery(t, rawURL)
	got := query.Get("partnerUserId")
	if len(got) != partnerUserIDMaxLen {
		t.Fatalf("expected %d-char partnerUserId, got %d", partnerUserIDMaxLen, len(got))
	}
	if !strings.HasPrefix(long, got) {
		t.Fatalf("expected a prefix of the address, got %q", got)
	}
}

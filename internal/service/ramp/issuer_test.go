package ramp

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/flowsend/flowsend/backend/internal/config"
	model "github.com/flowsend/flowsend/backend/internal/model/ramp"
)

func generateTestKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	return key, string(pemData)
}

func newTestIssuer(t *testing.T, key *ecdsa.PrivateKey, pemData string, handler http.HandlerFunc) *Issuer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	issuer, err := NewIssuer(config.RampConfig{
		KeyName:   "organizations/test/apiKeys/key-1",
		KeySecret: pemData,
		TokenURL:  server.URL,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return issuer
}

func TestNewIssuerRequiresCredentials(t *testing.T) {
	if _, err := NewIssuer(config.RampConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewIssuerRejectsNonPEMSecret(t *testing.T) {
	_, err := NewIssuer(config.RampConfig{KeyName: "key", KeySecret: "not a pem"})
	if err == nil {
		t.Fatal("expected error for non-PEM secret")
	}
}

func TestNewIssuerNormalizesEscapedNewlines(t *testing.T) {
	_, pemData := generateTestKey(t)
	escaped := strings.ReplaceAll(pemData, "\n", `\n`)

	if _, err := NewIssuer(config.RampConfig{
		KeyName:   "key",
		KeySecret: escaped,
		TokenURL:  "http://localhost",
	}); err != nil {
		t.Fatalf("expected escaped PEM to parse, got %v", err)
	}
}

func TestIssueSessionTokenSignsValidBearer(t *testing.T) {
	key, pemData := generateTestKey(t)

	var gotBearer string
	var gotBody map[string]any
	issuer := newTestIssuer(t, key, pemData, func(w http.ResponseWriter, r *http.Request) {
		gotBearer = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"token": "session-token-1", "channel_id": "chan-1"})
	})

	before := time.Now()
	credential, err := issuer.IssueSessionToken(context.Background(),
		[]model.Address{{Address: "0x1234", Blockchains: []string{"base"}}},
		[]string{"USDC"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if credential.Token != "session-token-1" || credential.ChannelID != "chan-1" {
		t.Fatalf("unexpected credential %+v", credential)
	}
	if !credential.Valid() {
		t.Fatal("expected a valid credential")
	}
	if got := credential.ExpiresAt.Sub(credential.IssuedAt); got != credentialTTL {
		t.Fatalf("expected %s validity window, got %s", credentialTTL, got)
	}

	parsed, err := jwt.Parse(gotBearer, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodES256 {
			return nil, errors.New("unexpected signing method")
		}
		return &key.PublicKey, nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("bearer did not verify: %v", err)
	}

	if kid, _ := parsed.Header["kid"].(string); kid != "organizations/test/apiKeys/key-1" {
		t.Fatalf("expected kid header with key name, got %v", parsed.Header["kid"])
	}
	nonce, _ := parsed.Header["nonce"].(string)
	if len(nonce) != 32 {
		t.Fatalf("expected 32-char hex nonce, got %q", nonce)
	}

	claims := parsed.Claims.(jwt.MapClaims)
	if claims["uri"] != "POST /onramp/v1/token" {
		t.Fatalf("expected uri claim, got %v", claims["uri"])
	}
	if claims["iss"] != "organizations/test/apiKeys/key-1" || claims["sub"] != "organizations/test/apiKeys/key-1" {
		t.Fatalf("expected iss/sub claims with key name, got %v/%v", claims["iss"], claims["sub"])
	}
	exp, _ := claims["exp"].(float64)
	nbf, _ := claims["nbf"].(float64)
	if int64(exp)-int64(nbf) != int64(credentialTTL/time.Second) {
		t.Fatalf("expected %s bearer window, got %v..%v", credentialTTL, nbf, exp)
	}
	if time.Unix(int64(nbf), 0).After(before.Add(5 * time.Second)) {
		t.Fatal("nbf claim is in the future")
	}

	addresses, _ := gotBody["addresses"].([]any)
	if len(addresses) != 1 {
		t.Fatalf("expected one address in body, got %v", gotBody["addresses"])
	}
}

func TestIssueSessionTokenRequiresAddresses(t *testing.T) {
	key, pemData := generateTestKey(t)
	issuer := newTestIssuer(t, key, pemData, func(w http.ResponseWriter, r *http.Request) {
		t.Error("endpoint must not be called without addresses")
	})

	if _, err := issuer.IssueSessionToken(context.Background(), nil, []string{"USDC"}); err == nil {
		t.Fatal("expected error for empty addresses")
	}
}

func TestIssueSessionTokenRejectedUpstream(t *testing.T) {
	key, pemData := generateTestKey(t)
	issuer := newTestIssuer(t, key, pemData, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid signature"})
	})

	_, err := issuer.IssueSessionToken(context.Background(),
		[]model.Address{{Address: "0x1234", Blockchains: []string{"base"}}}, []string{"USDC"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "invalid signature") {
		t.Fatalf("expected upstream message, got %v", err)
	}
}

func TestIssueSessionTokenEmptyToken(t *testing.T) {
	key, pemData := generateTestKey(t)
	issuer := newTestIssuer(t, key, pemData, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": ""})
	})

	_, err := issuer.IssueSessionToken(context.Background(),
		[]model.Address{{Address: "0x1234", Blockchains: []string{"base"}}}, []string{"USDC"})
	if err == nil {
		t.Fatal("expected error for empty token")
	}
}

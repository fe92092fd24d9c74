package ramp

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/flowsend/flowsend/backend/internal/config"
	model "github.com/flowsend/flowsend/backend/internal/model/ramp"
)

// ErrNotConfigured is returned when the onramp credentials are absent.
var ErrNotConfigured = errors.New("ramp: credential issuer is not configured")

// credentialTTL bounds both the signed bearer and the credential we hand out.
const credentialTTL = 120 * time.Second

// Issuer exchanges a signed ES256 bearer for a short-lived session token at
// the provider's token endpoint.
type Issuer struct {
	keyName    string
	privateKey *ecdsa.PrivateKey
	tokenURL   string
	httpClient *http.Client
}

// NewIssuer parses the configured EC private key. Key material arriving via
// env vars usually carries literal "\n" sequences, which are normalized
// before PEM decoding.
func NewIssuer(cfg config.RampConfig) (*Issuer, error) {
	if cfg.KeyName == "" || cfg.KeySecret == "" {
		return nil, ErrNotConfigured
	}

	pemData := normalizePEM(cfg.KeySecret)
	if !strings.Contains(pemData, "-----BEGIN") {
		return nil, fmt.Errorf("ramp: key secret is not a PEM-encoded EC private key")
	}

	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(pemData))
	if err != nil {
		return nil, fmt.Errorf("ramp: parse EC private key: %w", err)
	}

	return &Issuer{
		keyName:    cfg.KeyName,
		privateKey: key,
		tokenURL:   cfg.TokenURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// IssueSessionToken requests a session credential bound to the given wallet
// addresses and asset tickers. At least one address is required.
func (i *Issuer) IssueSessionToken(ctx context.Context, addresses []model.Address, assets []string) (*model.SessionCredential, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("ramp: at least one address is required")
	}

	now := time.Now()
	bearer, err := i.signBearer(now)
	if err != nil {
		return nil, fmt.Errorf("ramp: sign bearer: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"addresses": addresses,
		"assets":    assets,
	})
	if err != nil {
		return nil, fmt.Errorf("ramp: encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.tokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ramp: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ramp: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ramp: read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		zap.L().Warn("session token request rejected",
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("ramp: token endpoint returned %d: %s", resp.StatusCode, extractIssuerError(body))
	}

	var decoded struct {
		Token     string `json:"token"`
		ChannelID string `json:"channel_id"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("ramp: decode token response: %w", err)
	}
	if decoded.Token == "" {
		return nil, fmt.Errorf("ramp: token endpoint returned an empty token")
	}

	zap.L().Info("issued ramp session token",
		zap.Int("addresses", len(addresses)),
		zap.Bool("has_channel", decoded.ChannelID != ""))

	return &model.SessionCredential{
		Token:     decoded.Token,
		ChannelID: decoded.ChannelID,
		IssuedAt:  now,
		ExpiresAt: now.Add(credentialTTL),
	}, nil
}

// signBearer builds the ES256 request JWT: kid and a one-time nonce in the
// header, the token endpoint bound into the uri claim.
func (i *Issuer) signBearer(now time.Time) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": i.keyName,
		"sub": i.keyName,
		"nbf": now.Unix(),
		"exp": now.Add(credentialTTL).Unix(),
		"uri": "POST /onramp/v1/token",
	})
	token.Header["kid"] = i.keyName
	token.Header["nonce"] = hex.EncodeToString(nonce)

	return token.SignedString(i.privateKey)
}

func normalizePEM(secret string) string {
	return strings.ReplaceAll(secret, `\n`, "\n")
}

func extractIssuerError(body []byte) string {
	var decoded struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Message != "" {
		return decoded.Message
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "no response body"
	}
	return trimmed
}

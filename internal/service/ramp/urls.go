package ramp

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/flowsend/flowsend/backend/internal/config"
	model "github.com/flowsend/flowsend/backend/internal/model/ramp"
)

// Mode reports which credential path a built URL took.
type Mode string

const (
	// ModeSecure means the URL carries a server-issued session token.
	ModeSecure Mode = "secure"
	// ModeFallback means the URL falls back to appId-based initialization.
	ModeFallback Mode = "fallback"
)

const (
	onrampBaseURL  = "https://pay.coinbase.com/buy/select-asset"
	offrampBaseURL = "https://pay.coinbase.com/v3/sell/input"

	// The provider rejects partnerUserId values longer than 49 characters.
	partnerUserIDMaxLen = 49
)

// URLBuilder assembles hosted onramp/offramp URLs, preferring a session
// token and degrading to appId initialization when none is available.
type URLBuilder struct {
	appID              string
	onrampRedirectURL  string
	offrampRedirectURL string
}

func NewURLBuilder(cfg config.RampConfig) *URLBuilder {
	return &URLBuilder{
		appID:              cfg.AppID,
		onrampRedirectURL:  cfg.OnrampRedirectURL,
		offrampRedirectURL: cfg.OfframpRedirectURL,
	}
}

// BuildOnrampURL builds the hosted buy URL for the request.
func (b *URLBuilder) BuildOnrampURL(req model.Request) (string, Mode) {
	params := url.Values{}
	mode := b.commonParams(params, req, b.onrampRedirectURL)

	if req.PaymentMethod != "" {
		params.Set("defaultPaymentMethod", strings.ToUpper(req.PaymentMethod))
	}
	currency := req.FiatCurrency
	if currency == "" {
		currency = "USD"
	}
	params.Set("fiatCurrency", currency)

	return onrampBaseURL + "?" + params.Encode(), mode
}

// BuildOfframpURL builds the hosted sell URL for the request.
func (b *URLBuilder) BuildOfframpURL(req model.Request) (string, Mode) {
	params := url.Values{}
	mode := b.commonParams(params, req, b.offrampRedirectURL)

	if req.PaymentMethod != "" {
		params.Set("defaultCashoutMethod", strings.ToUpper(req.PaymentMethod))
	}

	return offrampBaseURL + "?" + params.Encode(), mode
}

// commonParams fills the parameters shared by both directions and reports
// which credential mode applies.
func (b *URLBuilder) commonParams(params url.Values, req model.Request, fallbackRedirect string) Mode {
	asset := req.Asset
	if asset == "" {
		asset = "USDC"
	}
	network := req.Network
	if network == "" {
		network = "base"
	}

	if req.FiatAmount.IsPositive() {
		params.Set("presetFiatAmount", req.FiatAmount.String())
	}
	params.Set("defaultAsset", asset)
	params.Set("defaultNetwork", network)
	params.Set("partnerUserId", truncateID(req.UserAddress))
	params.Set("redirectUrl", b.redirectURL(req, fallbackRedirect))

	if req.Credential.Valid() {
		params.Set("sessionToken", req.Credential.Token)
		return ModeSecure
	}

	params.Set("appId", b.appID)
	addresses, _ := json.Marshal(map[string][]string{req.UserAddress: {network}})
	params.Set("addresses", string(addresses))
	assets, _ := json.Marshal([]string{asset})
	params.Set("assets", string(assets))
	return ModeFallback
}

func (b *URLBuilder) redirectURL(req model.Request, fallback string) string {
	if req.RedirectURL != "" {
		return req.RedirectURL
	}
	return fallback
}

func truncateID(id string) string {
	if len(id) > partnerUserIDMaxLen {
		return id[:partnerUserIDMaxLen]
	}
	return id
}

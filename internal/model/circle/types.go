package circle

// Provider DTOs for the Circle ledger API. Fields the sandbox omits are
// modeled as optional and normalized through accessors instead of being
// probed ad hoc by callers.

// BillingDetails identifies the account holder of a wire bank account.
type BillingDetails struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1,omitempty"`
	City       string `json:"city,omitempty"`
	District   string `json:"district,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// BankAccount is a provider-issued wire bank account reference.
type BankAccount struct {
	ID             string          `json:"id"`
	Status         string          `json:"status,omitempty"`
	Description    string          `json:"description,omitempty"`
	AccountNumber  string          `json:"accountNumber,omitempty"`
	TrackingRef    string          `json:"trackingRef,omitempty"`
	BillingDetails *BillingDetails `json:"billingDetails,omitempty"`
}

// DisplayName returns the billing name with a defined default.
func (b BankAccount) DisplayName() string {
	if b.BillingDetails != nil && b.BillingDetails.Name != "" {
		return b.BillingDetails.Name
	}
	return "Bank Account"
}

// Last4 returns the trailing digits of the account number, masked when the
// provider withheld them.
func (b BankAccount) Last4() string {
	if n := len(b.AccountNumber); n >= 4 {
		return b.AccountNumber[n-4:]
	}
	return "****"
}

// Amount is the provider's string-typed money pair.
type Amount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// Payout is a withdrawal to a wire bank account.
type Payout struct {
	ID           string  `json:"id"`
	Status       string  `json:"status,omitempty"`
	Amount       *Amount `json:"amount,omitempty"`
	TrackingRef  string  `json:"trackingRef,omitempty"`
	ErrorCode    string  `json:"errorCode,omitempty"`
	CreateDate   string  `json:"createDate,omitempty"`
	ExternalRef  string  `json:"externalRef,omitempty"`
	SourceWallet string  `json:"sourceWalletId,omitempty"`
}

// Transfer is a ledger-to-chain transfer to a verified recipient address.
type Transfer struct {
	ID              string  `json:"id"`
	Status          string  `json:"status,omitempty"`
	Amount          *Amount `json:"amount,omitempty"`
	TransactionHash string  `json:"transactionHash,omitempty"`
	CreateDate      string  `json:"createDate,omitempty"`
}

// RecipientAddress is a verified blockchain address in the provider's
// address book. Transfers reference it by id, never by raw address.
type RecipientAddress struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	Chain       string `json:"chain"`
	Currency    string `json:"currency,omitempty"`
	Description string `json:"description,omitempty"`
}

// DepositAddress is a provider-hosted blockchain deposit address.
type DepositAddress struct {
	Address  string `json:"address"`
	Chain    string `json:"chain"`
	Currency string `json:"currency"`
}

// Balance is one entry of the business-account balance report.
type Balance struct {
	Available []Amount `json:"available,omitempty"`
	Unsettled []Amount `json:"unsettled,omitempty"`
}

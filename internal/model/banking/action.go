package banking

import "github.com/shopspring/decimal"

// ActionType enumerates the closed vocabulary of banking intents the
// classifier may emit.
type ActionType string

const (
	ActionGetBankAccounts ActionType = "get_bank_accounts"
	ActionDeposit         ActionType = "deposit_usdc"
	ActionWithdraw        ActionType = "withdraw_usdc"
	ActionSend            ActionType = "send_usdc"
	ActionNone            ActionType = "none"
)

// KnownActionType reports whether raw is part of the closed vocabulary.
func KnownActionType(raw ActionType) bool {
	switch raw {
	case ActionGetBankAccounts, ActionDeposit, ActionWithdraw, ActionSend, ActionNone:
		return true
	default:
		return false
	}
}

// ActionParams carries the parameters extracted from an utterance. Partial
// extraction is expected; absent fields stay at their zero value.
type ActionParams struct {
	Amount           *decimal.Decimal `json:"amount,omitempty"`
	BankAccountID    string           `json:"bankAccountId,omitempty"`
	RecipientAddress string           `json:"recipient_address,omitempty"`
}

// Action is the structured result of intent classification.
type Action struct {
	Type   ActionType   `json:"type"`
	Params ActionParams `json:"params"`
}

// None is the "no banking intent detected" action.
func None() Action {
	return Action{Type: ActionNone}
}

// IsBanking reports whether the action should be orchestrated rather than
// handed to the general assistant.
func (a Action) IsBanking() bool {
	return a.Type != "" && a.Type != ActionNone
}

// HasAmount reports whether an amount was extracted.
func (a Action) HasAmount() bool {
	return a.Params.Amount != nil
}

// Amount returns the extracted amount, or zero when absent.
func (a Action) Amount() decimal.Decimal {
	if a.Params.Amount == nil {
		return decimal.Zero
	}
	return *a.Params.Amount
}

package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flowsend/flowsend/backend/internal/model/banking"
	circlemodel "github.com/flowsend/flowsend/backend/internal/model/circle"
	circleservice "github.com/flowsend/flowsend/backend/internal/service/circle"
)

// Ledger is the subset of ledger operations the orchestrator dispatches to.
type Ledger interface {
	ListBankAccounts(ctx context.Context) ([]circlemodel.BankAccount, error)
	CreatePayout(ctx context.Context, p circleservice.PayoutParams) (*circlemodel.Payout, error)
	ListRecipientAddresses(ctx context.Context) ([]circlemodel.RecipientAddress, error)
	CreateRecipientAddress(ctx context.Context, p circleservice.RecipientParams) (*circlemodel.RecipientAddress, error)
	CreateTransfer(ctx context.Context, p circleservice.TransferParams) (*circlemodel.Transfer, error)
}

// MinAmount is the smallest deposit/withdrawal the boundary accepts.
var MinAmount = decimal.NewFromInt(10)

// Outcome is the single user-facing result of one orchestration pass. The
// orchestrator never returns an error: upstream failures become failure
// replies, missing parameters become follow-up prompts.
type Outcome struct {
	Reply                string          `json:"reply"`
	RequiresConfirmation bool            `json:"requiresConfirmation,omitempty"`
	Action               *banking.Action `json:"action,omitempty"`
	Executed             bool            `json:"executed,omitempty"`
}

// Service runs the request-scoped action state machine: AwaitingParams →
// Ready → Executing → Succeeded/Failed. There is no persisted continuation;
// callers that want multi-turn slot filling replay the conversation.
type Service struct {
	ledger Ledger
}

// NewService wires the orchestrator to a ledger. A nil ledger degrades every
// ledger-backed action to a "not configured" reply.
func NewService(ledger Ledger) *Service {
	return &Service{ledger: ledger}
}

// Handle dispatches a classified action. Missing required parameters yield
// slot-filling prompts; complete withdrawals yield a confirmation request
// rather than an immediate payout.
func (s *Service) Handle(ctx context.Context, action banking.Action, walletAddress string) Outcome {
	switch action.Type {
	case banking.ActionGetBankAccounts:
		return s.listBankAccounts(ctx)
	case banking.ActionDeposit:
		return s.deposit(ctx, action, walletAddress)
	case banking.ActionWithdraw:
		return s.withdraw(ctx, action, walletAddress)
	case banking.ActionSend:
		return s.send(action, walletAddress)
	default:
		return Outcome{}
	}
}

// HandleConfirmed executes a previously confirmed action, short-circuiting
// the slot-filling phase. Only payout-bearing actions are gated this way.
func (s *Service) HandleConfirmed(ctx context.Context, action banking.Action, walletAddress string) Outcome {
	if action.Type != banking.ActionWithdraw {
		return s.Handle(ctx, action, walletAddress)
	}

	if !action.HasAmount() || action.Params.BankAccountID == "" {
		return Outcome{Reply: "The confirmed withdrawal is missing its amount or bank account. Please start over."}
	}
	if below, reply := belowMinimum(action.Amount(), "withdraw"); below {
		return Outcome{Reply: reply}
	}
	if s.ledger == nil {
		return Outcome{Reply: notConfiguredReply}
	}

	return s.executePayout(ctx, action)
}

func (s *Service) listBankAccounts(ctx context.Context) Outcome {
	if s.ledger == nil {
		return Outcome{Reply: notConfiguredReply}
	}

	accounts, err := s.ledger.ListBankAccounts(ctx)
	if err != nil {
		return failure("I couldn't fetch your bank accounts", err)
	}

	if len(accounts) == 0 {
		return Outcome{Reply: "You do not have any bank accounts linked yet. Would you like help adding a bank account?"}
	}

	return Outcome{Reply: "Here are your linked bank accounts:\n\n" + formatAccounts(accounts) +
		"\n\nYou can use the account ID to deposit or withdraw funds."}
}

func (s *Service) deposit(ctx context.Context, action banking.Action, walletAddress string) Outcome {
	if walletAddress == "" {
		return Outcome{Reply: "Please connect your wallet first to deposit USDC."}
	}
	if !action.HasAmount() {
		return Outcome{Reply: "I can help you deposit USDC from your Circle account to your wallet. How much USDC would you like to deposit?"}
	}
	if below, reply := belowMinimum(action.Amount(), "deposit"); below {
		return Outcome{Reply: reply}
	}
	if s.ledger == nil {
		return Outcome{Reply: notConfiguredReply}
	}

	addressID, err := s.resolveRecipient(ctx, walletAddress)
	if err != nil {
		return failure("❌ Deposit failed", err)
	}

	transfer, err := s.ledger.CreateTransfer(ctx, circleservice.TransferParams{
		AddressID: addressID,
		Amount:    action.Amount(),
	})
	if err != nil {
		return failure("❌ Deposit failed", err,
			"Please make sure you have sufficient USD balance in your Circle account.")
	}

	zap.L().Info("deposit transfer created",
		zap.String("transfer_id", transfer.ID),
		zap.String("amount", action.Amount().String()))

	return Outcome{
		Executed: true,
		Reply: fmt.Sprintf("✅ Successfully initiated deposit of %s USDC to your wallet!\n\nTransaction ID: %s\n\nThe USDC should appear in your wallet shortly.",
			action.Amount().String(), orNA(transfer.ID)),
	}
}

func (s *Service) withdraw(ctx context.Context, action banking.Action, walletAddress string) Outcome {
	if walletAddress == "" {
		return Outcome{Reply: "Please connect your wallet first to withdraw USDC."}
	}
	if !action.HasAmount() {
		return Outcome{Reply: "I can help you withdraw USDC to your bank account. How much USDC would you like to withdraw?"}
	}
	if below, reply := belowMinimum(action.Amount(), "withdraw"); below {
		return Outcome{Reply: reply}
	}
	if s.ledger == nil {
		return Outcome{Reply: notConfiguredReply}
	}

	if action.Params.BankAccountID == "" {
		// Disambiguation runs inside the slot-filling phase: one list call,
		// never a payout.
		accounts, err := s.ledger.ListBankAccounts(ctx)
		if err != nil {
			return failure("I couldn't fetch your bank accounts", err)
		}
		if len(accounts) == 0 {
			return Outcome{Reply: "You need to add a bank account first before withdrawing. Please go to the 'Withdraw' or 'Deposit' tab to add your bank account details."}
		}
		return Outcome{Reply: fmt.Sprintf("Great! I'll help you withdraw %s USDC. Which bank account would you like to use?\n\n%s\n\nPlease tell me the account ID.",
			action.Amount().String(), formatAccounts(accounts))}
	}

	// Payouts are irreversible on the provider side, so a complete withdraw
	// round-trips through the client for confirmation.
	confirmed := action
	return Outcome{
		RequiresConfirmation: true,
		Action:               &confirmed,
		Reply: fmt.Sprintf("You are about to withdraw %s USDC to bank account %s. Confirm to proceed.",
			action.Amount().String(), action.Params.BankAccountID),
	}
}

func (s *Service) executePayout(ctx context.Context, action banking.Action) Outcome {
	payout, err := s.ledger.CreatePayout(ctx, circleservice.PayoutParams{
		Amount:        action.Amount(),
		BankAccountID: action.Params.BankAccountID,
	})
	if err != nil {
		return failure("❌ Withdrawal failed", err,
			"Please make sure you have sufficient USDC balance.")
	}

	zap.L().Info("payout created",
		zap.String("payout_id", payout.ID),
		zap.String("amount", action.Amount().String()))

	return Outcome{
		Executed: true,
		Reply: fmt.Sprintf("✅ Successfully initiated withdrawal of %s USDC to your bank account!\n\nPayout ID: %s\n\nThe funds should arrive in your bank account within 1-2 business days.",
			action.Amount().String(), orNA(payout.ID)),
	}
}

// send never executes a transfer; the on-chain send belongs to the wallet
// layer and the orchestrator only hands off instructions.
func (s *Service) send(action banking.Action, walletAddress string) Outcome {
	if !action.HasAmount() || action.Params.RecipientAddress == "" {
		return Outcome{Reply: "To send USDC, I need both the amount and the recipient address. For example: 'send 10 USDC to 0x123...'"}
	}
	if walletAddress == "" {
		return Outcome{Reply: "Please connect your wallet first to send USDC."}
	}

	return Outcome{Reply: fmt.Sprintf("To send %s USDC to %s:\n\n1. Go to the 'Send' tab above\n2. Enter the recipient address: %s\n3. Enter the amount: %s USDC\n4. Click 'Send Payment'\n\nThis will be a gasless transaction - you won't need ETH for gas fees!",
		action.Amount().String(), action.Params.RecipientAddress,
		action.Params.RecipientAddress, action.Amount().String())}
}

// resolveRecipient finds the verified recipient id for the wallet, creating
// one when it is not yet on the provider's address book.
func (s *Service) resolveRecipient(ctx context.Context, walletAddress string) (string, error) {
	recipients, err := s.ledger.ListRecipientAddresses(ctx)
	if err != nil {
		return "", err
	}

	for _, r := range recipients {
		if strings.EqualFold(r.Address, walletAddress) && r.Chain == "BASE" {
			return r.ID, nil
		}
	}

	created, err := s.ledger.CreateRecipientAddress(ctx, circleservice.RecipientParams{
		Address:     walletAddress,
		Chain:       "BASE",
		Currency:    "USD",
		Description: "Base Wallet: " + walletAddress,
	})
	if err != nil {
		return "", err
	}
	if created == nil || created.ID == "" {
		return "", fmt.Errorf("failed to create recipient address")
	}
	return created.ID, nil
}

const notConfiguredReply = "Banking operations are not configured on this server yet."

func belowMinimum(amount decimal.Decimal, verb string) (bool, string) {
	if amount.GreaterThanOrEqual(MinAmount) {
		return false, ""
	}
	return true, fmt.Sprintf("The minimum %s amount is %s USDC. Please choose a larger amount.", verb, MinAmount.String())
}

// failure converts an upstream error into a user-facing reply carrying the
// provider's error text verbatim.
func failure(prefix string, err error, hints ...string) Outcome {
	msg := prefix + ": " + err.Error() + "."
	if len(hints) > 0 {
		msg += " " + strings.Join(hints, " ")
	}
	zap.L().Warn("banking action failed", zap.String("prefix", prefix), zap.Error(err))
	return Outcome{Reply: msg}
}

func formatAccounts(accounts []circlemodel.BankAccount) string {
	lines := make([]string, 0, len(accounts))
	for i, acc := range accounts {
		lines = append(lines, fmt.Sprintf("%d. %s (ID: %s) - Account ending in %s",
			i+1, acc.DisplayName(), acc.ID, acc.Last4()))
	}
	return strings.Join(lines, "\n")
}

func orNA(id string) string {
	if id == "" {
		return "N/A"
	}
	return id
}

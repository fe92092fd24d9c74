package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/flowsend/flowsend/backend/internal/model/banking"
)

type stubChatModel struct {
	content string
	err     error
}

func (s *stubChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.content, nil), nil
}

func (s *stubChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestParseActionTable(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    banking.ActionType
		wantErr bool
	}{
		{
			name:    "plain json",
			content: `{"type": "deposit_usdc", "params": {"amount": 100}}`,
			want:    banking.ActionDeposit,
		},
		{
			name:    "fenced json",
			content: "```json\n{\"type\": \"withdraw_usdc\", \"params\": {\"amount\": 50}}\n```",
			want:    banking.ActionWithdraw,
		},
		{
			name:    "json wrapped in prose",
			content: `Sure! Here is the result: {"type": "get_bank_accounts", "params": {}} Hope that helps.`,
			want:    banking.ActionGetBankAccounts,
		},
		{
			name:    "missing type defaults to none",
			content: `{"params": {}}`,
			want:    banking.ActionNone,
		},
		{
			name:    "no json object",
			content: `the user wants to deposit`,
			wantErr: true,
		},
		{
			name:    "unknown type",
			content: `{"type": "transfer_all_funds", "params": {}}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			content: `{"type": "deposit_usdc", "params": {`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			action, err := ParseAction(tc.content)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got action %+v", action)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if action.Type != tc.want {
				t.Fatalf("expected type %q, got %q", tc.want, action.Type)
			}
		})
	}
}

func TestParseActionExtractsParams(t *testing.T) {
	action, err := ParseAction(`{"type": "send_usdc", "params": {"amount": 10, "recipient_address": "0x1234"}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !action.HasAmount() || action.Amount().String() != "10" {
		t.Fatalf("expected amount 10, got %+v", action.Params.Amount)
	}
	if action.Params.RecipientAddress != "0x1234" {
		t.Fatalf("expected recipient 0x1234, got %q", action.Params.RecipientAddress)
	}
}

func TestParseActionNeverFabricatesFields(t *testing.T) {
	action, err := ParseAction(`{"type": "withdraw_usdc", "params": {"amount": 50}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Params.BankAccountID != "" {
		t.Fatalf("expected empty bank account id, got %q", action.Params.BankAccountID)
	}
	if action.Params.RecipientAddress != "" {
		t.Fatalf("expected empty recipient, got %q", action.Params.RecipientAddress)
	}
}

func TestClassifyBankingIntent(t *testing.T) {
	svc := NewService(&stubChatModel{content: `{"type": "deposit_usdc", "params": {"amount": 100}}`})

	action := svc.Classify(context.Background(), "deposit 100 usdc")
	if action.Type != banking.ActionDeposit {
		t.Fatalf("expected deposit action, got %q", action.Type)
	}
	if action.Amount().String() != "100" {
		t.Fatalf("expected amount 100, got %s", action.Amount())
	}
}

func TestClassifyModelErrorDegradesToNone(t *testing.T) {
	svc := NewService(&stubChatModel{err: errors.New("backend unavailable")})

	action := svc.Classify(context.Background(), "deposit 100 usdc")
	if action.Type != banking.ActionNone {
		t.Fatalf("expected none on model error, got %q", action.Type)
	}
}

func TestClassifyUnparseableOutputDegradesToNone(t *testing.T) {
	svc := NewService(&stubChatModel{content: "I think the user wants to deposit funds."})

	action := svc.Classify(context.Background(), "deposit 100 usdc")
	if action.Type != banking.ActionNone {
		t.Fatalf("expected none on unparseable output, got %q", action.Type)
	}
}

func TestClassifyEmptyUtterance(t *testing.T) {
	svc := NewService(&stubChatModel{content: `{"type": "deposit_usdc", "params": {}}`})

	action := svc.Classify(context.Background(), "   ")
	if action.Type != banking.ActionNone {
		t.Fatalf("expected none on empty utterance, got %q", action.Type)
	}
}

func TestClassifyNilModel(t *testing.T) {
	svc := NewService(nil)

	action := svc.Classify(context.Background(), "deposit 100 usdc")
	if action.Type != banking.ActionNone {
		t.Fatalf("expected none with nil model, got %q", action.Type)
	}
}

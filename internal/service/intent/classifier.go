package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/flowsend/flowsend/backend/internal/model/banking"
)

// Classifier maps a raw user utterance to a structured banking action.
// Implementations must degrade to banking.None on any backend failure;
// classification is never an error surfaced to the caller.
type Classifier interface {
	Classify(ctx context.Context, utterance string) banking.Action
}

// Service classifies utterances with a chat model held to a strict JSON
// output contract.
type Service struct {
	chatModel model.BaseChatModel
}

// NewService creates a model-backed classifier. A nil chat model yields a
// classifier that always reports no banking intent.
func NewService(chatModel model.BaseChatModel) *Service {
	return &Service{chatModel: chatModel}
}

// Classify returns exactly one action variant. Ambiguous utterances resolve
// to the nearest action with a partial parameter set; unavailable or
// unparseable backends resolve to None.
func (s *Service) Classify(ctx context.Context, utterance string) banking.Action {
	utterance = strings.TrimSpace(utterance)
	if s == nil || s.chatModel == nil || utterance == "" {
		return banking.None()
	}

	msg, err := s.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(classifierSystemPrompt),
		schema.UserMessage(utterance),
	})
	if err != nil {
		zap.L().Warn("intent classification failed, treating as no banking intent",
			zap.Error(err))
		return banking.None()
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return banking.None()
	}

	action, err := ParseAction(msg.Content)
	if err != nil {
		zap.L().Warn("intent classifier returned unparseable output",
			zap.Error(err))
		return banking.None()
	}

	return action
}

// ParseAction extracts the first balanced brace-delimited substring of a
// free-text model response and decodes it as an action. The scan is
// deliberately permissive: models often wrap the JSON in prose or fences.
func ParseAction(content string) (banking.Action, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end <= start {
		return banking.None(), fmt.Errorf("no json object in classifier output")
	}

	var action banking.Action
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &action); err != nil {
		return banking.None(), fmt.Errorf("decode classifier output: %w", err)
	}

	if action.Type == "" {
		action.Type = banking.ActionNone
	}
	if !banking.KnownActionType(action.Type) {
		return banking.None(), fmt.Errorf("unknown action type %q", action.Type)
	}

	return action, nil
}

const classifierSystemPrompt = `You are the intent parser of a USDC banking assistant. Analyze the user message and determine whether it is a banking action request. Extract parameters even if incomplete. Respond ONLY with a single valid JSON object and no other text.

Allowed types: "get_bank_accounts", "deposit_usdc", "withdraw_usdc", "send_usdc", "none".

Examples:
- "deposit 100 usdc" -> {"type": "deposit_usdc", "params": {"amount": 100}}
- "withdraw 50 USDC" -> {"type": "withdraw_usdc", "params": {"amount": 50}}
- "withdraw to account abc123" -> {"type": "withdraw_usdc", "params": {"bankAccountId": "abc123"}}
- "send 10 USDC to 0x1234" -> {"type": "send_usdc", "params": {"amount": 10, "recipient_address": "0x1234"}}
- "show my bank accounts" -> {"type": "get_bank_accounts", "params": {}}
- "what is defi" -> {"type": "none", "params": {}}

Include only parameters that literally appear in the message. Never invent an address, amount, or account id.`

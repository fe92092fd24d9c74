package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/flowsend/flowsend/backend/internal/config"
	"github.com/flowsend/flowsend/backend/internal/model/banking"
)

// Service generates general conversational replies for messages that carry
// no banking intent.
type Service struct {
	cfg   config.AIConfig
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the assistant prompt chain around the shared chat model.
func NewService(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile assistant chain: %w", err)
	}

	return &Service{cfg: cfg, chain: runnable}, nil
}

// StreamingEnabled reports whether SSE streaming is configured.
func (s *Service) StreamingEnabled() bool {
	return s != nil && s.cfg.Stream
}

// Reply generates a single assistant response over the replayed transcript.
func (s *Service) Reply(ctx context.Context, turns []banking.Turn, walletAddress string) (*schema.Message, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(turns, walletAddress))
	if err != nil {
		return nil, fmt.Errorf("failed to run assistant chain: %w", err)
	}

	zap.L().Info("assistant reply generated",
		zap.Int("history_turns", len(turns)),
		zap.Int("length", len(response.Content)))
	return response, nil
}

// StreamReply streams the assistant response chunk by chunk.
func (s *Service) StreamReply(ctx context.Context, turns []banking.Turn, walletAddress string) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	stream, err := s.chain.Stream(ctx, s.buildChainInput(turns, walletAddress))
	if err != nil {
		return nil, fmt.Errorf("failed to stream assistant chain output: %w", err)
	}
	return stream, nil
}

func (s *Service) buildChainInput(turns []banking.Turn, walletAddress string) map[string]any {
	query := banking.LatestUtterance(turns)
	history := turns
	if len(history) > 0 {
		history = history[:len(history)-1]
	}

	return map[string]any{
		"system":  buildSystemPrompt(walletAddress),
		"history": buildHistoryMessages(history),
		"query":   query,
	}
}

func buildSystemPrompt(walletAddress string) string {
	var builder strings.Builder
	builder.WriteString(assistantSystemPrompt)

	if walletAddress != "" {
		builder.WriteString("\n\nUser connected wallet: ")
		builder.WriteString(walletAddress)
		builder.WriteString("\nNetwork: Base Sepolia Testnet")
	} else {
		builder.WriteString("\n\nThe user has not connected their wallet yet.")
	}

	return builder.String()
}

func buildHistoryMessages(turns []banking.Turn) []*schema.Message {
	const historyLimit = 10

	if len(turns) == 0 {
		return nil
	}

	startIdx := 0
	if len(turns) > historyLimit {
		startIdx = len(turns) - historyLimit
	}

	history := make([]*schema.Message, 0, len(turns)-startIdx)
	for _, turn := range turns[startIdx:] {
		switch turn.Role {
		case banking.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case banking.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}

	return history
}

const assistantSystemPrompt = `You are the assistant of FlowSend, a stablecoin banking mini app on Base. You help users understand their wallet and balances, guide them through USDC transfers, and explain crypto concepts like DeFi and smart wallets.

Capabilities of the app you can point users to:
- Show linked bank accounts ("show my bank accounts")
- Deposit USDC from the linked ledger account to the wallet ("deposit 100 USDC")
- Withdraw USDC to a bank account ("withdraw 50 USDC")
- Gasless USDC sends sponsored by a paymaster
- Buying and selling USDC through hosted on/off-ramp sessions

For deposits and withdrawals users need a linked bank account and sufficient balance. Be conversational, helpful, and clear, and always explain what is happening with a transaction.`

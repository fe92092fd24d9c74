package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/flowsend/flowsend/backend/internal/model/banking"
	"github.com/flowsend/flowsend/backend/internal/service/intent"
	"github.com/flowsend/flowsend/backend/internal/service/orchestrator"
	"github.com/flowsend/flowsend/backend/pkg/utils"
)

// Assistant generates conversational replies for non-banking turns.
type Assistant interface {
	Reply(ctx context.Context, turns []banking.Turn, walletAddress string) (*schema.Message, error)
	StreamReply(ctx context.Context, turns []banking.Turn, walletAddress string) (*schema.StreamReader[*schema.Message], error)
	StreamingEnabled() bool
}

// Handler serves the conversational endpoint: classify the latest utterance,
// orchestrate banking actions, fall through to the assistant otherwise.
type Handler struct {
	classifier   intent.Classifier
	assistant    Assistant
	orchestrator *orchestrator.Service
}

func New(classifier intent.Classifier, assistant Assistant, orch *orchestrator.Service) *Handler {
	return &Handler{classifier: classifier, assistant: assistant, orchestrator: orch}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/stream", h.handleStream)
}

type chatRequest struct {
	Messages      []banking.Turn  `json:"messages"`
	WalletAddress string          `json:"walletAddress"`
	Confirm       bool            `json:"confirm"`
	Action        *banking.Action `json:"action"`
}

type chatResponse struct {
	Reply                string          `json:"reply"`
	RequiresConfirmation bool            `json:"requiresConfirmation,omitempty"`
	Action               *banking.Action `json:"action,omitempty"`
	Executed             bool            `json:"executed,omitempty"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Confirmed actions skip classification entirely; the client echoes back
	// the action it was asked to confirm.
	if req.Confirm && req.Action != nil {
		outcome := h.orchestrator.HandleConfirmed(r.Context(), *req.Action, req.WalletAddress)
		utils.RespondJSON(w, http.StatusOK, chatResponse{
			Reply:    outcome.Reply,
			Executed: outcome.Executed,
		})
		return
	}

	utterance := banking.LatestUtterance(req.Messages)
	if utterance == "" {
		utils.RespondError(w, http.StatusBadRequest, "messages with a latest user utterance are required")
		return
	}

	action := banking.None()
	if h.classifier != nil {
		action = h.classifier.Classify(r.Context(), utterance)
	}

	if action.IsBanking() {
		outcome := h.orchestrator.Handle(r.Context(), action, req.WalletAddress)
		utils.RespondJSON(w, http.StatusOK, chatResponse{
			Reply:                outcome.Reply,
			RequiresConfirmation: outcome.RequiresConfirmation,
			Action:               outcome.Action,
			Executed:             outcome.Executed,
		})
		return
	}

	if h.assistant == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai assistant is not configured")
		return
	}

	reply, err := h.assistant.Reply(r.Context(), req.Messages, req.WalletAddress)
	if err != nil {
		zap.L().Error("assistant reply failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to generate a reply")
		return
	}

	utils.RespondJSON(w, http.StatusOK, chatResponse{Reply: reply.Content})
}

type streamChunk struct {
	Event    string `json:"event"`
	Content  string `json:"content,omitempty"`
	Finished bool   `json:"finished,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming is not supported")
		return
	}

	message := r.URL.Query().Get("message")
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	if h.assistant == nil || !h.assistant.StreamingEnabled() {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai streaming unavailable")
		return
	}

	walletAddress := r.URL.Query().Get("walletAddress")
	turns := []banking.Turn{{Role: banking.RoleUser, Content: message}}

	stream, err := h.assistant.StreamReply(r.Context(), turns, walletAddress)
	if err != nil {
		zap.L().Error("assistant stream failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to start the reply stream")
		return
	}
	defer stream.Close()

	utils.SetupSSEHeaders(w)
	utils.SendSSEChunk(w, flusher, streamChunk{Event: "start"})

	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			zap.L().Warn("stream receive failed", zap.Error(err))
			utils.SendSSEChunk(w, flusher, streamChunk{Event: "error", Error: "stream interrupted"})
			return
		}
		if msg.Content == "" {
			continue
		}
		utils.SendSSEChunk(w, flusher, streamChunk{Event: "message", Content: msg.Content})
	}

	utils.SendSSEChunk(w, flusher, streamChunk{Event: "end", Finished: true})
}

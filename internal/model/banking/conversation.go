package banking

import "strings"

// Turn is one entry of the visible conversation history. The history is
// append-only for the duration of a request and is never persisted; each
// request replays the full transcript it wants the models to see.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LatestUtterance returns the content of the most recent turn. The caller
// sends its own message last, so this is the utterance to classify.
func LatestUtterance(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	return strings.TrimSpace(turns[len(turns)-1].Content)
}

package context

import (
	"log/slog"
	"sync"

	"github.com/nextlevelbuilder/robun/internal/session"
	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("context: failed to load tiktoken encoding, falling back to a character-count token estimate", "error", err)
			return
		}
		enc = e
	})
	return enc
}

func countTokens(text string) int {
	e := encoding()
	if e == nil {
		return len(text) / 4 // rough fallback estimate
	}
	return len(e.Encode(text, nil, nil))
}

// TrimToBudget drops the oldest messages in window until the rendered
// transcript fits within maxTokens, supplementing the plain message-count
// HistoryWindow with a token-aware ceiling for providers with small context
// windows. Never drops below the most recent message.
func TrimToBudget(window []session.Message, maxTokens int) []session.Message {
	if maxTokens <= 0 || len(window) == 0 {
		return window
	}
	total := 0
	for _, m := range window {
		total += countTokens(m.Content)
	}
	start := 0
	for total > maxTokens && start < len(window)-1 {
		total -= countTokens(window[start].Content)
		start++
	}
	return window[start:]
}

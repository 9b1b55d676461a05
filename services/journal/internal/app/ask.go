package app

import (
	"context"
	"strings"

	"dreamdecode/internal/usertoken"
	"dreamdecode/internal/util"
	"dreamdecode/pkg/domain"
	"dreamdecode/services/journal/internal/aiclient"
)

// FallbackReply is shown when the gateway cannot answer. The conversation
// stays open so the user can try again.
const FallbackReply = "I couldn't process that right now. Please try again."

const historyLimit = 50

// AskResult is the assistant turn of an ask exchange.
type AskResult struct {
	Message  domain.ConversationMessage `json:"message"`
	Fallback bool                       `json:"fallback"`
}

// AskDream sends a follow-up question about a dream. Gateway failures turn
// into the fallback reply rather than an error; only answered exchanges
// are kept in the history.
func (a *App) AskDream(ctx context.Context, id usertoken.Identity, dreamID, message string) (AskResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return AskResult{}, ErrMessageRequired
	}
	dream, err := a.Dream(ctx, id, dreamID)
	if err != nil {
		return AskResult{}, err
	}
	logger := util.LoggerFromContext(ctx)

	history := []aiclient.HistoryMessage{}
	if a.remote != nil {
		prior, err := a.remote.ListMessages(ctx, dreamID, historyLimit)
		if err != nil {
			logger.Warn("load conversation failed", "dream_id", dreamID, "err", err)
		}
		for _, m := range prior {
			history = append(history, aiclient.HistoryMessage{Role: string(m.Role), Content: m.Content})
		}
	}
	history = append(history, aiclient.HistoryMessage{Role: string(domain.RoleUser), Content: message})
	asked := domain.ConversationMessage{Role: domain.RoleUser, Content: message, Timestamp: a.now().UTC()}

	reply, err := a.gateway.AskDream(ctx, aiclient.AskRequest{
		Message: message,
		History: history,
		DreamContext: &aiclient.DreamContext{
			Title:          dream.Title,
			Transcription:  dream.Transcription,
			Summary:        dream.Summary,
			Interpretation: dream.Interpretation,
		},
		VoiceLanguage: a.voiceLanguage(ctx, id.UserID),
	})
	answer := domain.ConversationMessage{Role: domain.RoleAssistant, Content: strings.TrimSpace(reply), Timestamp: a.now().UTC()}
	if err != nil || answer.Content == "" {
		logger.Warn("ask dream fell back", "dream_id", dreamID, "err", err)
		answer.Content = FallbackReply
		return AskResult{Message: answer, Fallback: true}, nil
	}

	if a.remote != nil {
		for _, m := range []domain.ConversationMessage{asked, answer} {
			if err := a.remote.AppendMessage(ctx, dreamID, m); err != nil {
				logger.Warn("save conversation failed", "dream_id", dreamID, "err", err)
				break
			}
		}
	}
	return AskResult{Message: answer}, nil
}

// Conversation returns the stored exchanges about a dream, oldest first.
func (a *App) Conversation(ctx context.Context, id usertoken.Identity, dreamID string) ([]domain.ConversationMessage, error) {
	if _, err := a.Dream(ctx, id, dreamID); err != nil {
		return nil, err
	}
	if a.remote == nil {
		return nil, ErrConversationDisabled
	}
	msgs, err := a.remote.ListMessages(ctx, dreamID, historyLimit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.ConversationMessage{}
	}
	return msgs, nil
}

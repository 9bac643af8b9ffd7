package gateway

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/msfrancis/mediguide/backend/internal/llm"
	chatModel "github.com/msfrancis/mediguide/backend/internal/model/chat"
)

// systemInstruction is the short guidance prefix sent with every request.
// The full persona and remedy catalog live with the deployment, not here.
const systemInstruction = "You are MediGuide, a warm health companion. You are NOT a doctor and cannot prescribe medicines. Keep answers short, caring and practical, and recommend professional care for anything serious."

// Service turns a {messages, language} chat request into an upstream model
// stream. It exists so a deployment without an external chat gateway can
// point the session's chat URL at its own /api/chat.
type Service struct {
	chatModel model.ChatModel
}

func NewService(chatModel model.ChatModel) *Service {
	return &Service{chatModel: chatModel}
}

// StreamCompletion opens the upstream stream for one request, localized via
// the request's language tag.
func (s *Service) StreamCompletion(ctx context.Context, messages []llm.ChatMessage, language string) (*schema.StreamReader[*schema.Message], error) {
	input := make([]*schema.Message, 0, len(messages)+1)
	input = append(input, schema.SystemMessage(buildSystemPrompt(language)))

	for _, m := range messages {
		switch m.Role {
		case chatModel.RoleAssistant:
			input = append(input, schema.AssistantMessage(m.Content, nil))
		default:
			input = append(input, schema.UserMessage(m.Content))
		}
	}

	reader, err := s.chatModel.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("stream upstream model output: %w", err)
	}
	return reader, nil
}

func buildSystemPrompt(language string) string {
	lang := chatModel.ParseLanguage(language)
	if lang == chatModel.LanguageEnglish {
		return systemInstruction
	}
	return systemInstruction + fmt.Sprintf("\n\nIMPORTANT: Respond ONLY in %s, using its native script.", lang.Name())
}

// Package aisvc implements mentor.ChatModel on Google's Gemini API.
package aisvc

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/studentbuddy/backend/core"
	"github.com/studentbuddy/backend/core/mentor"
)

type GeminiModel struct {
	client          *genai.Client
	model           string
	maxOutputTokens int32
}

var _ mentor.ChatModel = (*GeminiModel)(nil)

func NewGeminiModel(ctx context.Context, conf *core.Config) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(conf.Gemini.ApiKey))
	if err != nil {
		return nil, errors.Wrap(err, "creating gemini client")
	}
	return &GeminiModel{
		client:          client,
		model:           conf.Gemini.Model,
		maxOutputTokens: int32(conf.Gemini.MaxOutputTokens),
	}, nil
}

func (m *GeminiModel) Close() error {
	return m.client.Close()
}

func (m *GeminiModel) Reply(ctx context.Context, systemPrompt string, history []mentor.ChatMessage, message string) (string, error) {
	model := m.client.GenerativeModel(m.model)
	model.SetMaxOutputTokens(m.maxOutputTokens)

	cs := model.StartChat()
	if len(history) == 0 {
		// first exchange: the persona rides along with the message
		message = systemPrompt + "\n\n" + message
	} else {
		cs.History = chatHistory(history)
	}

	resp, err := cs.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", errors.Wrap(err, "calling gemini")
	}
	reply := responseText(resp)
	if reply == "" {
		return "", errors.New("gemini returned an empty reply")
	}
	return reply, nil
}

func chatHistory(history []mentor.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, len(history))
	for i, msg := range history {
		role := "user"
		if msg.Sender == mentor.SenderMentor {
			role = "model"
		}
		contents[i] = &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Message)},
		}
	}
	return contents
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}

package aisvc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core/mentor"
)

var ErrModelDisabled = errors.New("AI mentoring is not configured")

// disabledModel stands in when no Gemini API key is configured.
type disabledModel struct{}

var _ mentor.ChatModel = disabledModel{}

func NewDisabledModel() mentor.ChatModel {
	return disabledModel{}
}

func (disabledModel) Reply(context.Context, string, []mentor.ChatMessage, string) (string, error) {
	return "", ErrModelDisabled
}

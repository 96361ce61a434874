package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Morwran/yagpt"
)

// yandexCompletion sends a prepared conversation to YandexGPT.
type yandexCompletion func(ctx context.Context, msgs []yagpt.Message) (Response, error)

type YandexClient struct {
	complete yandexCompletion
}

func NewYandex(oauthToken, folderID string) (*YandexClient, error) {
	// IAM токен выпускается из OAuth токена один раз при старте
	iam, err := yagpt.NewYaIam(oauthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init yandex iam: %w", err)
	}
	token, err := iam.Create()
	if err != nil {
		return nil, fmt.Errorf("failed to create iam token: %w", err)
	}

	ya, err := yagpt.NewYagpt(folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to init yagpt: %w", err)
	}

	return &YandexClient{complete: func(ctx context.Context, msgs []yagpt.Message) (Response, error) {
		resp, err := ya.CompletionWithCtx(ctx, token.IamToken, msgs)
		if err != nil {
			return Response{}, err
		}
		if resp == nil || len(resp.Alternatives) == 0 {
			return Response{}, errors.New("yagpt returned empty response")
		}
		return Response{
			Content:          resp.Alternatives[0].Message.Content,
			Model:            yagpt.YaModelLite,
			PromptTokens:     int(resp.Usage.InputTextTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		}, nil
	}}, nil
}

// Generate maps the conversation onto YandexGPT roles. Empty messages are skipped
// and roles other than system/assistant are sent as user turns.
func (c *YandexClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	yaMsgs := make([]yagpt.Message, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		yaMsgs = append(yaMsgs, yagpt.Message{Role: yandexRole(m.Role), Content: m.Content})
	}
	if len(yaMsgs) == 0 {
		return Response{}, errors.New("yagpt: no messages to send")
	}

	resp, err := c.complete(ctx, yaMsgs)
	if err != nil {
		return Response{}, fmt.Errorf("yagpt completion failed: %w", err)
	}
	return resp, nil
}

func yandexRole(role string) string {
	switch r := strings.ToLower(strings.TrimSpace(role)); r {
	case "system", "assistant":
		return r
	}
	return "user"
}

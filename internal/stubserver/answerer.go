package stubserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Answerer produces an answer for a query that is not in the knowledge base,
// standing in for the production web-search pipeline.
type Answerer interface {
	Answer(ctx context.Context, query string) (string, error)
}

const answerSystemPrompt = "Eres un asistente de voz en español. Responde la consulta del usuario en una o dos frases claras, sin formato."

type openaiAnswerer struct {
	client *openai.Client
	model  string
}

// NewOpenAIAnswerer answers queries through a chat-completion model.
func NewOpenAIAnswerer(apiKey, baseURL, model string) Answerer {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &openaiAnswerer{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

func (a *openaiAnswerer) Answer(ctx context.Context, query string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type cannedAnswerer struct{}

// NewCannedAnswerer returns deterministic answers for offline development.
func NewCannedAnswerer() Answerer {
	return cannedAnswerer{}
}

func (cannedAnswerer) Answer(_ context.Context, query string) (string, error) {
	return fmt.Sprintf("Según la web, sobre \"%s\": esta es una respuesta generada para desarrollo.", strings.TrimSpace(query)), nil
}

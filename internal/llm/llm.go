// Package llm drafts multiple-choice questions with an OpenAI-compatible
// API. It is an optional authoring aid: drafts go to the teacher for review
// and are only persisted through the normal question-create path.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shabonaa/exambuilder/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Draft is one LLM-proposed question, not yet persisted.
type Draft struct {
	Topic       string   `json:"topic"`
	Text        string   `json:"text"`
	Options     []option `json:"options"`
	CorrectID   string   `json:"correct_id"`
	Explanation string   `json:"explanation"`
}

type option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question converts a draft into an unsaved question for the given exam.
func (d Draft) Question(examID string) model.Question {
	opts := make([]model.Option, len(d.Options))
	for i, o := range d.Options {
		opts[i] = model.Option{ID: o.ID, Text: o.Text}
	}
	return model.Question{
		ExamID:      examID,
		Topic:       d.Topic,
		Text:        d.Text,
		Options:     opts,
		CorrectID:   d.CorrectID,
		Explanation: d.Explanation,
	}
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// DraftQuestion asks the model for one four-option question on the given
// topic. The response is validated before it is returned: exactly the four
// option ids A-D, each with text, and a correct id among them.
func (c *Client) DraftQuestion(ctx context.Context, examTitle, topic string) (*Draft, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildDraftSystemPrompt(examTitle, topic)},
			{Role: openai.ChatMessageRoleUser, Content: "Write the question now."},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM draft response", "raw", raw)

	var draft Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	if err := validateDraft(draft); err != nil {
		return nil, fmt.Errorf("invalid LLM draft: %w (raw: %s)", err, raw)
	}
	if draft.Topic == "" {
		draft.Topic = topic
	}
	return &draft, nil
}

// Ping verifies the endpoint is reachable and the model responds.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Reply with OK."},
		},
		MaxTokens: 5,
	})
	if err != nil {
		return fmt.Errorf("LLM ping: %w", err)
	}
	return nil
}

func validateDraft(d Draft) error {
	if strings.TrimSpace(d.Text) == "" {
		return fmt.Errorf("empty question text")
	}
	if len(d.Options) != len(model.OptionIDs) {
		return fmt.Errorf("expected %d options, got %d", len(model.OptionIDs), len(d.Options))
	}
	for i, o := range d.Options {
		if o.ID != model.OptionIDs[i] {
			return fmt.Errorf("option %d has id %q, expected %q", i, o.ID, model.OptionIDs[i])
		}
		if strings.TrimSpace(o.Text) == "" {
			return fmt.Errorf("option %s has no text", o.ID)
		}
	}
	if !model.ValidOptionID(d.CorrectID) {
		return fmt.Errorf("correct id %q is not one of the options", d.CorrectID)
	}
	return nil
}

func buildDraftSystemPrompt(examTitle, topic string) string {
	var sb strings.Builder
	sb.WriteString("You are an assessment author writing one multiple-choice question.\n\n")
	if examTitle != "" {
		sb.WriteString("EXAM: " + examTitle + "\n")
	}
	sb.WriteString("TOPIC: " + topic + "\n\n")
	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString("- Write exactly one question with four answer options labeled A, B, C, and D.\n")
	sb.WriteString("- Exactly one option is correct; the other three are plausible distractors.\n")
	sb.WriteString("- Include a one- or two-sentence explanation of the correct answer.\n")
	sb.WriteString("\nRespond ONLY with a JSON object with these fields:\n")
	sb.WriteString(`{"topic": "<topic>", "text": "<question>", "options": [{"id": "A", "text": "..."}, {"id": "B", "text": "..."}, {"id": "C", "text": "..."}, {"id": "D", "text": "..."}], "correct_id": "<A|B|C|D>", "explanation": "<why>"}`)
	sb.WriteString("\n")

	return sb.String()
}

// Package extract is the adapter around the external LLM that turns free
// text and receipt images into structured transaction commands. The model is
// untrusted input: its output is cleaned, parsed into generic JSON and then
// transformed with typed field accessors; the manager re-validates every
// field before anything is persisted.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmarkov/finsight/internal/domain"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// DefaultModelName is the default Gemini model used for extraction.
const DefaultModelName = "gemini-2.5-flash"

// Model is the slice of the genai client the extractor needs; tests
// substitute a canned implementation.
type Model interface {
	GenerateContent(ctx context.Context, contents []*genai.Content) (string, error)
}

// Extractor converts unstructured input into domain.Command values.
type Extractor struct {
	model Model
	log   zerolog.Logger
}

// New creates an Extractor backed by the Gemini API. The API key is read
// from the environment by the genai client.
func New(ctx context.Context, log zerolog.Logger) (*Extractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("extract.New: create genai client: %w", err)
	}
	return &Extractor{model: &geminiModel{client: client, name: DefaultModelName}, log: log}, nil
}

// NewWithModel creates an Extractor on a caller-supplied model.
func NewWithModel(model Model, log zerolog.Logger) *Extractor {
	return &Extractor{model: model, log: log}
}

// geminiModel adapts the genai client to the Model interface.
type geminiModel struct {
	client *genai.Client
	name   string
}

func (m *geminiModel) GenerateContent(ctx context.Context, contents []*genai.Content) (string, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.name, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// ParseText converts a free-text entry ("coffee 4.50 yesterday", "delete the
// last two") into a command. exchangeRate multiplies amounts the model
// reports in a foreign currency; it is read from settings at call time so a
// stale in-memory rate can never leak between sessions.
func (e *Extractor) ParseText(ctx context.Context, text string, today string, exchangeRate float64) (*domain.Command, error) {
	prompt := textPrompt(text, today)
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	raw, err := e.model.GenerateContent(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("ParseText: %w", err)
	}

	parsed, err := decodeModelJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("ParseText: %w", err)
	}

	cmd, err := transformCommand(parsed, exchangeRate)
	if err != nil {
		return nil, fmt.Errorf("ParseText: %w", err)
	}
	e.log.Info().Str("action", string(cmd.Action)).Int("transactions", len(cmd.Transactions)).Msg("text input extracted")
	return cmd, nil
}

// ParseReceipt converts a receipt image into a single expense transaction
// payload.
func (e *Extractor) ParseReceipt(ctx context.Context, imageData []byte, mimeType string) (*domain.TransactionPayload, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: receiptPrompt()},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     imageData,
					},
				},
			},
		},
	}

	raw, err := e.model.GenerateContent(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("ParseReceipt: %w", err)
	}

	parsed, err := decodeModelJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("ParseReceipt: %w", err)
	}

	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("ParseReceipt: model returned %T, want JSON object", parsed)
	}
	payload, err := transformPayload(obj, 0)
	if err != nil {
		return nil, fmt.Errorf("ParseReceipt: %w", err)
	}
	return payload, nil
}

// decodeModelJSON strips any Markdown fences the model wrapped around its
// output and unmarshals the remainder.
func decodeModelJSON(raw string) (interface{}, error) {
	clean := cleanModelJSON(raw)

	var parsed interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal model JSON: %w\nraw response: %s", err, raw)
	}
	return parsed, nil
}

// cleanModelJSON removes ```json fences and surrounding junk if the model
// ignored the strict-JSON instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// If there is still junk around the JSON value, keep only from the first
	// opening delimiter to the matching last closing one.
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")
	switch {
	case arrStart != -1 && (objStart == -1 || arrStart < objStart):
		if end := strings.LastIndex(s, "]"); end > arrStart {
			s = strings.TrimSpace(s[arrStart : end+1])
		}
	case objStart != -1:
		if end := strings.LastIndex(s, "}"); end > objStart {
			s = strings.TrimSpace(s[objStart : end+1])
		}
	}
	return s
}

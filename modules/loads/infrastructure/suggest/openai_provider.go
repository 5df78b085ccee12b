package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
)

const systemPrompt = `You match spreadsheet column headers to canonical load fields.
Respond with a single JSON object mapping header text to a field name, using only
headers and field names from the request. Omit headers you are not confident about.
No prose, no code fences.`

type OpenAIProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *logrus.Logger
}

// OpenAIProvider asks a chat model which of the sheet's unmatched headers
// belong to the still-missing fields. Proposals outside the requested sets are
// discarded.
type OpenAIProvider struct {
	client openai.Client
	model  string
	log    *logrus.Logger
}

func NewOpenAIProvider(cfg OpenAIProviderConfig) *OpenAIProvider {
	var client openai.Client
	if cfg.BaseURL != "" {
		client = openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
		)
	} else {
		client = openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
		)
	}
	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &OpenAIProvider{client: client, model: model, log: cfg.Logger}
}

func (p *OpenAIProvider) SuggestHeaders(ctx context.Context, unmappedHeaders []string, missingFields []load.Field) (map[string]load.Field, error) {
	fieldNames := make([]string, 0, len(missingFields))
	for _, f := range missingFields {
		fieldNames = append(fieldNames, string(f))
	}
	prompt := fmt.Sprintf(
		"Headers: %s\nFields: %s",
		strings.Join(quoteAll(unmappedHeaders), ", "),
		strings.Join(fieldNames, ", "),
	)

	response, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(256),
	})
	if err != nil {
		return nil, errors.Wrap(err, "header suggestion request")
	}
	if len(response.Choices) == 0 {
		return nil, errors.New("no response from model")
	}

	raw := map[string]string{}
	content := stripFences(response.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, errors.Wrap(err, "header suggestion response is not a JSON object")
	}

	proposals := make(map[string]load.Field, len(raw))
	for header, field := range raw {
		if !containsHeader(unmappedHeaders, header) || !containsField(missingFields, load.Field(field)) {
			if p.log != nil {
				p.log.WithFields(logrus.Fields{
					"header": header,
					"field":  field,
				}).Warn("discarding out-of-scope header suggestion")
			}
			continue
		}
		proposals[header] = load.Field(field)
	}
	return proposals, nil
}

func quoteAll(values []string) []string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, fmt.Sprintf("%q", v))
	}
	return quoted
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func containsHeader(headers []string, header string) bool {
	for _, h := range headers {
		if h == header {
			return true
		}
	}
	return false
}

func containsField(fields []load.Field, field load.Field) bool {
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/ObiAU/pinyinfeed/internal/config"
	"github.com/ObiAU/pinyinfeed/internal/models"
)

// OpenAIProcessor talks to any OpenAI-compatible chat completion endpoint
// (Groq by default) in JSON mode.
type OpenAIProcessor struct {
	client       openai.Client
	model        string
	maxBodyChars int
	chunkChars   int
	now          func() time.Time
}

type articleResponse struct {
	TitleSentence *models.ProcessedSentence  `json:"titleSentence"`
	Sentences     []models.ProcessedSentence `json:"sentences"`
}

func NewOpenAIProcessor(cfg config.LLMConfig, opts ...option.RequestOption) *OpenAIProcessor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	return &OpenAIProcessor{
		client:       openai.NewClient(append(base, opts...)...),
		model:        cfg.Model,
		maxBodyChars: cfg.MaxBodyChars,
		chunkChars:   cfg.ChunkChars,
		now:          time.Now,
	}
}

func (p *OpenAIProcessor) Real() bool { return true }

func (p *OpenAIProcessor) ProcessArticle(ctx context.Context, body, title, articleID string) (*models.ProcessedArticle, error) {
	body = capRunes(strings.TrimSpace(body), p.maxBodyChars)
	chunks := chunkText(body, p.chunkChars)
	if len(chunks) == 0 {
		chunks = []string{body}
	}

	out := &models.ProcessedArticle{
		Sentences: []models.ProcessedSentence{},
		ArticleID: articleID,
	}
	for i, chunk := range chunks {
		parsed, err := p.complete(ctx, title, chunk)
		if err != nil {
			if len(chunks) > 1 {
				return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
			}
			return nil, err
		}
		if i == 0 {
			out.TitleSentence = parsed.TitleSentence
		}
		out.Sentences = append(out.Sentences, parsed.Sentences...)
	}
	if out.TitleSentence != nil {
		out.TitleEnglish = out.TitleSentence.English
	}
	out.ProcessedAt = timestamp(p.now)
	return out, nil
}

func (p *OpenAIProcessor) complete(ctx context.Context, title, body string) (*articleResponse, error) {
	response, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(buildPrompt(title, body)),
					},
				},
			},
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0.3),
	})
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, errors.New("empty response from llm")
	}

	content := response.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty content from llm (finish_reason=%q)", response.Choices[0].FinishReason)
	}
	var parsed articleResponse
	if err := decodeLLMJSON(content, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse llm response: %w", err)
	}
	if parsed.TitleSentence == nil && len(parsed.Sentences) == 0 {
		return nil, fmt.Errorf("llm response has no sentences (payload snippet: %s)", payloadSnippet(content))
	}
	return &parsed, nil
}

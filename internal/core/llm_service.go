package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"

	"github.com/jibzus/TLJ1/internal/config"
	"github.com/jibzus/TLJ1/internal/store"
)

const (
	defaultOpenAIChatModel    = openai.GPT4o
	defaultOpenAISummaryModel = openai.GPT4o
	defaultGeminiChatModel    = "gemini-1.5-flash-latest"
	defaultGeminiSummaryModel = "gemini-1.5-flash-latest"

	maxChatTokens = 1024

	chatSystemInstruction = "You are a warm, attentive journaling companion. " +
		"Ask gentle follow-up questions about the user's day, feelings and plans, " +
		"and keep your replies short and conversational. Do not lecture, and do not " +
		"invent details about the user's life."
)

// ContentBlock is one element of a block-shaped completion response. Only
// "text" blocks contribute to the summary.
type ContentBlock struct {
	Kind string
	Text string
}

// CompletionResult is the normalized form of a text-generation response.
// Providers either fill Text (flat completion shape) or Blocks (typed
// content-block shape); callers only ever see the result of Normalize, so
// nothing downstream branches on provider identity.
type CompletionResult struct {
	Text   string
	Blocks []ContentBlock
}

// Normalize collapses either shape into a single trimmed string. Returns
// ErrBlankSummary when the result is empty after trimming.
func (r CompletionResult) Normalize() (string, error) {
	text := r.Text
	if r.Blocks != nil {
		var b strings.Builder
		for _, block := range r.Blocks {
			if block.Kind == "text" {
				b.WriteString(block.Text)
			}
		}
		text = b.String()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrBlankSummary
	}
	return text, nil
}

// completionProvider is the seam between the LLM service and a concrete
// text-generation backend.
type completionProvider interface {
	complete(ctx context.Context, prompt string) (CompletionResult, error)
	chat(ctx context.Context, history []store.Message, userMessage string) (CompletionResult, error)
	close() error
}

type LLMService struct {
	provider completionProvider
}

func NewLLMService(cfg *config.Config) (*LLMService, error) {
	var (
		provider completionProvider
		err      error
	)
	switch cfg.LLMProvider {
	case "gemini":
		provider, err = newGeminiProvider(cfg)
	default:
		provider = newOpenAIProvider(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.LLMProvider, err)
	}
	return &LLMService{provider: provider}, nil
}

func (s *LLMService) Close() {
	if err := s.provider.close(); err != nil {
		log.Printf("Error closing LLM client: %v", err)
	}
}

// Summarize sends the rendered prompt to the configured model and returns
// the trimmed, non-empty completion text. No retries; the caller decides
// whether a failed attempt is worth repeating.
func (s *LLMService) Summarize(ctx context.Context, prompt string) (string, error) {
	result, err := s.provider.complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return result.Normalize()
}

// ChatReply generates the assistant's next turn given the conversation so
// far plus the incoming user message.
func (s *LLMService) ChatReply(ctx context.Context, history []store.Message, userMessage string) (string, error) {
	result, err := s.provider.chat(ctx, history, userMessage)
	if err != nil {
		return "", err
	}
	return result.Normalize()
}

// openAIProvider returns the flat completion-text shape.
type openAIProvider struct {
	client       *openai.Client
	chatModel    string
	summaryModel string
	maxTokens    int
	temperature  float32
}

func newOpenAIProvider(cfg *config.Config) *openAIProvider {
	p := &openAIProvider{
		client:       openai.NewClient(cfg.OpenAIAPIKey),
		chatModel:    cfg.ChatModel,
		summaryModel: cfg.SummaryModel,
		maxTokens:    cfg.MaxSummaryTokens,
		temperature:  float32(cfg.SummaryTemperature),
	}
	if p.chatModel == "" {
		p.chatModel = defaultOpenAIChatModel
	}
	if p.summaryModel == "" {
		p.summaryModel = defaultOpenAISummaryModel
	}
	return p
}

func (p *openAIProvider) complete(ctx context.Context, prompt string) (CompletionResult, error) {
	// gpt-4 class models are chat-only; the library rejects them on the
	// legacy completions endpoint, so the rendered prompt is sent as a
	// single user message instead.
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.summaryModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return CompletionResult{}, fmt.Errorf("openai completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, ErrEmptyResponse
	}
	return CompletionResult{Text: resp.Choices[0].Message.Content}, nil
}

func (p *openAIProvider) chat(ctx context.Context, history []store.Message, userMessage string) (CompletionResult, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: chatSystemInstruction},
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Sender == store.SenderAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userMessage})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.chatModel,
		Messages:  messages,
		MaxTokens: maxChatTokens,
	})
	if err != nil {
		return CompletionResult{}, fmt.Errorf("openai chat request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, ErrEmptyResponse
	}
	return CompletionResult{Text: resp.Choices[0].Message.Content}, nil
}

func (p *openAIProvider) close() error {
	return nil
}

// geminiProvider returns the typed content-block shape.
type geminiProvider struct {
	client       *genai.Client
	chatModel    string
	summaryModel string
	maxTokens    int32
	temperature  float32
}

func newGeminiProvider(cfg *config.Config) (*geminiProvider, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	p := &geminiProvider{
		client:       client,
		chatModel:    cfg.ChatModel,
		summaryModel: cfg.SummaryModel,
		maxTokens:    int32(cfg.MaxSummaryTokens),
		temperature:  float32(cfg.SummaryTemperature),
	}
	if p.chatModel == "" {
		p.chatModel = defaultGeminiChatModel
	}
	if p.summaryModel == "" {
		p.summaryModel = defaultGeminiSummaryModel
	}
	return p, nil
}

func (p *geminiProvider) complete(ctx context.Context, prompt string) (CompletionResult, error) {
	model := p.client.GenerativeModel(p.summaryModel)
	maxTokens := p.maxTokens
	temp := p.temperature
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return CompletionResult{}, fmt.Errorf("gemini completion request failed: %w", err)
	}
	return geminiBlocks(resp)
}

func (p *geminiProvider) chat(ctx context.Context, history []store.Message, userMessage string) (CompletionResult, error) {
	model := p.client.GenerativeModel(p.chatModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(chatSystemInstruction)},
	}
	maxTokens := int32(maxChatTokens)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
	}

	session := model.StartChat()
	for _, m := range history {
		role := "user"
		if m.Sender == store.SenderAssistant {
			role = "model"
		}
		session.History = append(session.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Text)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(userMessage))
	if err != nil {
		return CompletionResult{}, fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}
	return geminiBlocks(resp)
}

func geminiBlocks(resp *genai.GenerateContentResponse) (CompletionResult, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return CompletionResult{}, ErrEmptyResponse
	}

	blocks := make([]ContentBlock, 0, len(resp.Candidates[0].Content.Parts))
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			blocks = append(blocks, ContentBlock{Kind: "text", Text: string(txt)})
		} else {
			log.Printf("Gemini response part was not text: %T", part)
			blocks = append(blocks, ContentBlock{Kind: fmt.Sprintf("%T", part)})
		}
	}
	return CompletionResult{Blocks: blocks}, nil
}

func (p *geminiProvider) close() error {
	return p.client.Close()
}

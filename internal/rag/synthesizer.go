package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/llm"
	"github.com/youthpolicy/policyrag/internal/model"
)

// Generation parameters are fixed for every call
const (
	MaxTokens   = 1000
	Temperature = 0.7

	// HighConfidence is reported when at least one match exists
	HighConfidence = 0.9
	// LowConfidence is reported when nothing matched
	LowConfidence = 0.0

	summaryChars = 200
)

// Prompt fixes the persona, the wording around the context block and the
// template answer's framing
type Prompt struct {
	System       string
	ContextLabel string

	// Header is a format string taking the query
	Header string

	// SiteKey is the metadata key printed under SiteLabel
	SiteKey   string
	SiteLabel string

	Footer string

	// NoMatch is the whole answer when nothing matched
	NoMatch string
}

// PolicyPrompt is used for answers over the local index
var PolicyPrompt = Prompt{
	System:       "당신은 서울시 청년 정책 전문 상담사입니다. 사용자의 질문에 친절하고 정확하게 답변해주세요.",
	ContextLabel: "관련 정책 정보",
	Header:       "'%s'에 대한 관련 정책을 찾았습니다:",
	SiteLabel:    "신청사이트",
	SiteKey:      model.KeyApplicationSite,
	Footer:       "💡 더 자세한 정보는 각 정책의 신청사이트를 방문해보세요!",
	NoMatch:      "죄송합니다. 관련 정책을 찾을 수 없습니다.",
}

// WebPrompt is used for answers over web search results
var WebPrompt = Prompt{
	System:       "당신은 서울시 청년 정책 전문가입니다. 웹 검색 결과를 바탕으로 최신 정보와 출처를 포함해 친절하고 정확하게 답변해주세요.",
	ContextLabel: "웹 검색 결과",
	Header:       "'%s'에 대한 최신 웹 검색 결과입니다:",
	SiteLabel:    "링크",
	SiteKey:      model.KeyPageURL,
	Footer:       "💡 더 자세한 정보는 위 링크를 통해 확인하실 수 있습니다.",
	NoMatch:      "죄송합니다. 관련된 최신 정보를 찾을 수 없습니다.",
}

// UserMessage embeds the question and the assembled context
func (p Prompt) UserMessage(query, contextText string) string {
	return fmt.Sprintf("질문: %s\n\n%s:\n%s\n\n위 정보를 바탕으로 답변해주세요.", query, p.ContextLabel, contextText)
}

// Synthesis is the synthesizer output
type Synthesis struct {
	Text      string
	UsedModel bool
}

// Synthesizer turns matches and their context into an answer. The model path
// is tried once; any failure falls back to the template.
type Synthesizer struct {
	generator llm.Provider
	prompt    Prompt
	timeout   time.Duration
	logger    *zap.Logger
}

// NewSynthesizer creates a synthesizer. generator may be nil, which disables
// the model path.
func NewSynthesizer(generator llm.Provider, prompt Prompt, timeout time.Duration, logger *zap.Logger) *Synthesizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Synthesizer{
		generator: generator,
		prompt:    prompt,
		timeout:   timeout,
		logger:    logger,
	}
}

// HasModel reports whether a generation backend is configured
func (s *Synthesizer) HasModel() bool {
	return s.generator != nil
}

// Synthesize answers query. contextEmpty tells whether contextText is the
// no-match sentinel, in which case the model is never called.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, matches []model.Match, contextText string, contextEmpty, useModel bool) Synthesis {
	if useModel && s.generator != nil && len(matches) > 0 && !contextEmpty {
		text, err := s.generate(ctx, query, contextText)
		if err == nil {
			return Synthesis{Text: text, UsedModel: true}
		}
		s.logger.Warn("model answer failed, using template",
			zap.String("provider", s.generator.Name()),
			zap.Error(err))
	}

	return Synthesis{Text: s.RenderTemplate(query, matches)}
}

func (s *Synthesizer) generate(ctx context.Context, query, contextText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.generator.Generate(ctx, llm.GenerateRequest{
		System:      s.prompt.System,
		User:        s.prompt.UserMessage(query, contextText),
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return "", fmt.Errorf("%w: empty completion", ErrSynthesis)
	}

	s.logger.Debug("model answer",
		zap.String("model", resp.Model),
		zap.Int("tokens", resp.TokensUsed))
	return resp.Text, nil
}

// RenderTemplate is the deterministic answer used without a model
func (s *Synthesizer) RenderTemplate(query string, matches []model.Match) string {
	return RenderTemplate(s.prompt, query, matches)
}

// RenderTemplate lists every match in order with its key facts
func RenderTemplate(p Prompt, query string, matches []model.Match) string {
	if len(matches) == 0 {
		return p.NoMatch
	}

	lines := []string{
		fmt.Sprintf(p.Header, query),
		"",
	}

	for i, m := range matches {
		lines = append(lines, fmt.Sprintf("📋 %d. %s", i+1, m.Title()))
		if v := m.Get(model.KeyAgency); v != "" {
			lines = append(lines, "   주관기관: "+v)
		}
		if v := m.Get(model.KeyAgeRange); v != "" {
			lines = append(lines, "   연령: "+v)
		}
		if v := applyPeriod(m); v != "" {
			lines = append(lines, "   신청기간: "+v)
		}
		if v := m.Get(p.SiteKey); p.SiteKey != "" && v != "" {
			lines = append(lines, "   "+p.SiteLabel+": "+v)
		}
		lines = append(lines, "   요약: "+Truncate(m.Text, summaryChars), "")
	}

	lines = append(lines, p.Footer)
	return strings.Join(lines, "\n")
}

// Confidence is HighConfidence when anything matched
func Confidence(matches []model.Match) float64 {
	if len(matches) > 0 {
		return HighConfidence
	}
	return LowConfidence
}

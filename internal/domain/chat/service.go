package chat

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/obara/supportdesk/internal/domain/kb"
	"github.com/obara/supportdesk/internal/infra/llm/chatgpt"
	apperrors "github.com/obara/supportdesk/pkg/errors"
	"github.com/obara/supportdesk/pkg/metrics"
)

// Config holds runtime knobs for the chat domain.
type Config struct {
	Model            string
	Temperature      float32
	Prompt           string
	SummaryPrompt    string
	FallbackAnswer   string
	HistoryTurns     int
	MaxHistoryTokens int
	MaxSessionTurns  int
	AnswerCacheTTL   time.Duration
	CommonFaqCount   int
}

// Service exposes the support-chat pipeline: validate, retrieve, generate.
type Service interface {
	Ask(ctx context.Context, req Request) (Response, error)
	Summarize(ctx context.Context, sessionID string) (SummaryResponse, error)
	CommonFaqs(ctx context.Context, n int) ([]CommonFaq, error)
	Recompute(ctx context.Context) (RecomputeResult, error)
}

// Retriever selects the best grounding FAQ entries for a query.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]kb.Match, error)
}

// Knowledge exposes the embedding store operations the chat layer drives.
type Knowledge interface {
	Rebuild(ctx context.Context) (*kb.Snapshot, error)
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}

type service struct {
	cfg       Config
	retriever Retriever
	knowledge Knowledge
	common    kb.Source
	answers   AnswerStore
	client    chatClient
	history   *sessionHistory
	tokens    *tokenCounter
	logger    *slog.Logger
}

// NewService wires up the chat domain. common may be nil when no curated
// FAQ file is configured.
func NewService(cfg Config, retriever Retriever, knowledge Knowledge, common kb.Source, answers AnswerStore, client chatClient, logger *slog.Logger) Service {
	return &service{
		cfg:       cfg,
		retriever: retriever,
		knowledge: knowledge,
		common:    common,
		answers:   answers,
		client:    client,
		history:   newSessionHistory(cfg.MaxSessionTurns),
		tokens:    newTokenCounter(cfg.Model),
		logger:    logger.With("component", "chat.service"),
	}
}

// Ask runs one turn: validate, retrieve the grounding FAQ, answer with the
// LLM, record the turn. No match yields the configured fallback answer
// without an LLM call.
func (s *service) Ask(ctx context.Context, req Request) (Response, error) {
	started := time.Now()

	question := strings.TrimSpace(req.Question)
	if err := kb.ValidateQuestion(question); err != nil {
		return Response{}, err
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	matches, err := s.retriever.Query(ctx, question, 1)
	if err != nil {
		return Response{}, err
	}

	resp := Response{
		SessionID: sessionID,
		Question:  question,
	}

	if len(matches) == 0 {
		resp.Answer = s.cfg.FallbackAnswer
		resp.Source = SourceFallback
		s.record(sessionID, question, resp.Answer)
		resp.DurationMs = time.Since(started).Milliseconds()
		return resp, nil
	}

	match := matches[0]
	resp.MatchedQuestion = match.Entry.Question
	resp.MatchedAnswer = match.Entry.Answer
	resp.Score = match.Score

	// Only a session's first turn is cacheable; later answers depend on
	// the conversation so far.
	firstTurn := s.history.size(sessionID) == 0
	cacheKey := answerKey(match.Entry.Question)
	if firstTurn {
		cached, ok, err := s.answers.Get(ctx, cacheKey)
		if err != nil {
			s.logger.Warn("answer cache lookup failed", "error", err)
		} else if ok {
			resp.Answer = cached.Answer
			resp.Source = SourceCache
			s.record(sessionID, question, resp.Answer)
			resp.DurationMs = time.Since(started).Milliseconds()
			return resp, nil
		}
	}

	answer, usage, err := s.generate(ctx, sessionID, question, match.Entry)
	if err != nil {
		return Response{}, err
	}
	resp.Answer = answer
	resp.Source = SourceLLM
	if !usage.IsZero() {
		resp.TokenUsage = &usage
	}

	if firstTurn {
		record := AnswerRecord{
			Key:       cacheKey,
			Question:  match.Entry.Question,
			Answer:    answer,
			CreatedAt: time.Now(),
		}
		if err := s.answers.Save(ctx, record, s.cfg.AnswerCacheTTL); err != nil {
			s.logger.Warn("answer cache save failed", "error", err)
		}
	}

	s.record(sessionID, question, answer)
	resp.DurationMs = time.Since(started).Milliseconds()
	return resp, nil
}

// Summarize condenses the session's recent turns.
func (s *service) Summarize(ctx context.Context, sessionID string) (SummaryResponse, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return SummaryResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "session id cannot be empty", nil)
	}
	turns := s.history.recent(sessionID, s.cfg.HistoryTurns)
	if len(turns) == 0 {
		return SummaryResponse{SessionID: sessionID}, nil
	}

	var sb strings.Builder
	sb.WriteString(s.summaryPrompt())
	sb.WriteString("\n\n")
	for i := len(turns) - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", turns[i].Question, turns[i].Answer)
	}

	answer, _, err := s.complete(ctx, []chatgpt.Message{{Role: "user", Content: sb.String()}})
	if err != nil {
		return SummaryResponse{}, err
	}
	return SummaryResponse{
		SessionID: sessionID,
		Summary:   answer,
		Turns:     len(turns),
	}, nil
}

// CommonFaqs returns n random curated pairs, mirroring the pre-chat
// suggestions screen.
func (s *service) CommonFaqs(ctx context.Context, n int) ([]CommonFaq, error) {
	if s.common == nil {
		return nil, nil
	}
	if n <= 0 {
		n = s.cfg.CommonFaqCount
	}
	pairs, err := s.common.Read(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDataSource, "failed to read common faq source", err)
	}
	if len(pairs) == 0 {
		return nil, nil
	}
	idx := rand.Perm(len(pairs))
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]CommonFaq, 0, n)
	for _, i := range idx[:n] {
		out = append(out, CommonFaq{
			Question: pairs[i].Question,
			Answer:   pairs[i].Answer,
			Tags:     pairs[i].Tags,
		})
	}
	return out, nil
}

// Recompute discards the embedding cache and rebuilds it from the source.
func (s *service) Recompute(ctx context.Context) (RecomputeResult, error) {
	started := time.Now()
	snap, err := s.knowledge.Rebuild(ctx)
	if err != nil {
		return RecomputeResult{}, err
	}
	return RecomputeResult{
		Entries:    snap.Len(),
		Dimension:  snap.Dimension(),
		DurationMs: time.Since(started).Milliseconds(),
	}, nil
}

func (s *service) generate(ctx context.Context, sessionID, question string, ref kb.Entry) (string, metrics.TokenUsage, error) {
	system := fmt.Sprintf("%s\nReference FAQ question: %s\nReference FAQ answer: %s",
		s.systemPrompt(), ref.Question, ref.Answer)

	messages := []chatgpt.Message{{Role: "system", Content: system}}
	turns := trimToBudget(s.history.recent(sessionID, s.cfg.HistoryTurns), s.cfg.MaxHistoryTokens, s.tokens.count)
	for _, turn := range turns {
		messages = append(messages,
			chatgpt.Message{Role: "user", Content: turn.Question},
			chatgpt.Message{Role: "assistant", Content: turn.Answer},
		)
	}
	messages = append(messages, chatgpt.Message{Role: "user", Content: question})

	return s.complete(ctx, messages)
}

func (s *service) complete(ctx context.Context, messages []chatgpt.Message) (string, metrics.TokenUsage, error) {
	resp, err := s.client.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    messages,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return "", metrics.TokenUsage{}, apperrors.Wrap(apperrors.CodeLLM, "chatgpt request failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", metrics.TokenUsage{}, apperrors.Wrap(apperrors.CodeLLM, "chatgpt returned no choices", nil)
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", metrics.TokenUsage{}, apperrors.Wrap(apperrors.CodeLLM, "chatgpt response empty", nil)
	}
	usage := metrics.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	return answer, usage, nil
}

func (s *service) record(sessionID, question, answer string) {
	s.history.append(sessionID, Turn{Question: question, Answer: answer})
}

func (s *service) systemPrompt() string {
	if prompt := strings.TrimSpace(s.cfg.Prompt); prompt != "" {
		return prompt
	}
	return "You are a support specialist. Ground your answer in the reference FAQ below and keep it under 200 characters."
}

func (s *service) summaryPrompt() string {
	if prompt := strings.TrimSpace(s.cfg.SummaryPrompt); prompt != "" {
		return prompt
	}
	return "Summarize the key points of the following conversation in 200 characters or less."
}

// answerKey buckets cache entries by the matched question text.
func answerKey(question string) string {
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(strings.TrimSpace(strings.ToLower(question))))
	return fmt.Sprintf("%016x", hash.Sum64())
}

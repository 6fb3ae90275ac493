package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/cloo-solutions/askdoc/internal/domain"
	"go.uber.org/zap"
)

// RewriteHistoryTurns is how many recent turns the rewriter sees
const RewriteHistoryTurns = 3

// SummarySectionQuery targets the sections that summarize a document
const SummarySectionQuery = "Executive summary abstract conclusion main findings introduction"

const rewriteSystemPrompt = `Rewrite the user's question as a standalone search query for a document index.

Rules:
1. Resolve pronouns and references ("it", "that section", "bunu") using the chat history.
2. SPECIAL RULE: if the user asks to summarize the document, asks for an overview, or asks what the document is about, output exactly: "%s".
3. If the question is not in English, translate the query to English.
4. Output only the search query. No explanations, no labels, no quotes.`

// summarizationKeywords are matched against whole words of the question, so
// multi-word entries must appear as a contiguous run of words.
var summarizationKeywords = []string{
	"summarize", "summarise", "summarization", "overview", "tl dr", "tldr",
	"give me a summary", "document summary", "summary of the document", "summary of this document",
	"what is this document about", "what s this document about", "what is the document about",
	"give me the gist", "the gist of this document", "the gist of the document",
	"özetle", "özetler", "özet", "genel bakış",
	"bu belge ne hakkında", "bu doküman ne hakkında", "bu döküman ne hakkında", "ne anlatıyor",
}

var summaryStructuralTerms = []string{"summary", "abstract", "conclusion", "findings", "introduction"}

// wordRun lowercases s, splits it on anything that is not a letter or digit
// and rejoins the words padded with single spaces, so " kw " matches whole words.
func wordRun(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(words, " ") + " "
}

func containsWords(text string, keywords []string) bool {
	run := wordRun(text)
	for _, kw := range keywords {
		if strings.Contains(run, wordRun(kw)) {
			return true
		}
	}
	return false
}

// IsSummarizationIntent reports whether question asks for a summary or
// overview of the whole document, in English or Turkish.
func IsSummarizationIntent(question string) bool {
	return containsWords(question, summarizationKeywords)
}

func targetsSummarySections(query string) bool {
	return containsWords(query, summaryStructuralTerms)
}

// RewriterService turns a follow-up question into a standalone English query
type RewriterService struct {
	generator Generator
	logger    *zap.Logger
}

// NewRewriterService creates a new RewriterService
func NewRewriterService(generator Generator, logger *zap.Logger) *RewriterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RewriterService{generator: generator, logger: logger}
}

// Rewrite returns a standalone English search query for question. The model
// is consulted even without history so non-English first questions are
// translated.
func (s *RewriterService) Rewrite(ctx context.Context, history []domain.ChatTurn, question string) (string, error) {
	recent := history
	if len(recent) > RewriteHistoryTurns {
		recent = recent[len(recent)-RewriteHistoryTurns:]
	}

	historyText := domain.FormatHistory(recent)
	if historyText == "" {
		historyText = "(none)"
	}

	user := fmt.Sprintf("Chat History:\n%s\n\nUser Question: %s\n\nSearch Query:", historyText, question)
	reply, err := s.generator.Complete(ctx, domain.GenerationRequest{
		Messages: []domain.PromptMessage{
			{Role: domain.RoleSystem, Content: fmt.Sprintf(rewriteSystemPrompt, SummarySectionQuery)},
			{Role: domain.RoleUser, Content: user},
		},
	})
	if err != nil {
		return "", domain.ServiceFailure("query rewrite", err)
	}

	query := NormalizeQuery(reply)
	if query == "" {
		query = question
	}
	if IsSummarizationIntent(question) && !targetsSummarySections(query) {
		query = SummarySectionQuery
	}

	s.logger.Debug("rewrote query", zap.String("question", question), zap.String("query", query))
	return query, nil
}

// NormalizeQuery reduces a model reply to a single-line query.
func NormalizeQuery(reply string) string {
	q := strings.Join(strings.Fields(reply), " ")
	for _, label := range []string{"search query:", "query:", "standalone query:"} {
		if len(q) >= len(label) && strings.EqualFold(q[:len(label)], label) {
			q = strings.TrimSpace(q[len(label):])
		}
	}
	return strings.TrimSpace(strings.Trim(q, "\"'`“”"))
}

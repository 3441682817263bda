package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"crisp-academy/backend/config"
	"crisp-academy/backend/internal/model"
)

// TriviaGenerator produces the questions of a month's trivia.
type TriviaGenerator interface {
	Generate(ctx context.Context, month string, n int) ([]model.TriviaQuestion, error)
}

// NewTriviaGenerator uses Gemini when an API key is configured and the
// built-in pool otherwise. The returned close func releases the client.
func NewTriviaGenerator(cfg *config.TriviaConfig, logger *zap.Logger) (TriviaGenerator, func() error, error) {
	static := NewStaticTriviaGenerator()
	if cfg.GeminiAPIKey == "" {
		logger.Info("gemini api key not set, trivia uses the built-in question pool")
		return static, func() error { return nil }, nil
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, nil, fmt.Errorf("init gemini client: %w", err)
	}
	modelName := cfg.GeminiModel
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	gm := client.GenerativeModel(modelName)
	gm.ResponseMIMEType = "application/json"

	return &geminiTriviaGenerator{model: gm, fallback: static, logger: logger}, client.Close, nil
}

// ────────────────────── static pool ──────────────────────

type staticTriviaGenerator struct {
	pool []model.TriviaQuestion
}

// NewStaticTriviaGenerator picks from a fixed CRISP question pool,
// deterministically per month.
func NewStaticTriviaGenerator() TriviaGenerator {
	return &staticTriviaGenerator{pool: crispTriviaPool}
}

func (g *staticTriviaGenerator) Generate(_ context.Context, month string, n int) ([]model.TriviaQuestion, error) {
	if n <= 0 {
		return nil, errors.New("question count must be positive")
	}
	if n > len(g.pool) {
		n = len(g.pool)
	}

	h := fnv.New64a()
	h.Write([]byte(month))
	seed := h.Sum64()
	r := rand.New(rand.NewPCG(seed, seed>>1|1))

	order := r.Perm(len(g.pool))
	out := make([]model.TriviaQuestion, 0, n)
	for _, idx := range order[:n] {
		q := g.pool[idx]
		q.Options = append([]string(nil), q.Options...)
		out = append(out, q)
	}
	return out, nil
}

var crispTriviaPool = []model.TriviaQuestion{
	{Question: "What does the C in CRISP stand for?", Options: []string{"Compliance", "Community", "Courage", "Consistency"}, CorrectOption: 1, Points: 1},
	{Question: "What does the R in CRISP stand for?", Options: []string{"Respect", "Results", "Reliability", "Recognition"}, CorrectOption: 0, Points: 1},
	{Question: "What does the I in CRISP stand for?", Options: []string{"Innovation", "Inclusion", "Integrity", "Initiative"}, CorrectOption: 2, Points: 1},
	{Question: "What does the S in CRISP stand for?", Options: []string{"Safety", "Standards", "Strategy", "Service"}, CorrectOption: 3, Points: 1},
	{Question: "What does the P in CRISP stand for?", Options: []string{"Professionalism", "Performance", "Punctuality", "Partnership"}, CorrectOption: 0, Points: 1},
	{Question: "A colleague is struggling with a heavy workload. Which response best reflects Community?", Options: []string{"Ignore it, it is their job", "Offer help or flag it to the team lead", "Report them for slowness", "Wait until they ask twice"}, CorrectOption: 1, Points: 2},
	{Question: "Which behaviour best shows Respect in a meeting?", Options: []string{"Checking your phone while others speak", "Interrupting to save time", "Listening fully before responding", "Only addressing senior staff"}, CorrectOption: 2, Points: 1},
	{Question: "You notice a billing error in your favour. Integrity means you should:", Options: []string{"Keep quiet", "Report and correct it", "Wait to see if anyone notices", "Split the difference"}, CorrectOption: 1, Points: 2},
	{Question: "A client is upset about a delay. Which response reflects Service?", Options: []string{"Blame another department", "Acknowledge, explain and agree next steps", "Promise anything to end the call", "Transfer them without context"}, CorrectOption: 1, Points: 2},
	{Question: "Which of these is an example of Professionalism?", Options: []string{"Sharing client details on social media", "Arriving prepared and on time", "Using work email for personal sales", "Skipping mandatory training"}, CorrectOption: 1, Points: 1},
	{Question: "Integrity is best described as:", Options: []string{"Doing the right thing even when no one is watching", "Always agreeing with management", "Meeting targets at any cost", "Keeping information to yourself"}, CorrectOption: 0, Points: 1},
	{Question: "Which action strengthens Community across departments?", Options: []string{"Hoarding resources", "Sharing knowledge and lessons learned", "Competing for credit", "Avoiding cross-team meetings"}, CorrectOption: 1, Points: 1},
	{Question: "Respect for diversity at work includes:", Options: []string{"Valuing different backgrounds and perspectives", "Treating everyone exactly the same regardless of need", "Avoiding conversations about difference", "Assigning tasks by stereotype"}, CorrectOption: 0, Points: 1},
	{Question: "Good Service means following up with a customer:", Options: []string{"Only if they complain again", "When you said you would", "Never, the ticket is closed", "Only for large accounts"}, CorrectOption: 1, Points: 1},
	{Question: "You made a mistake that affected a report. Professionalism means:", Options: []string{"Hide it", "Own it, fix it and inform those affected", "Blame the tool", "Wait for the audit"}, CorrectOption: 1, Points: 2},
	{Question: "Which is a conflict of interest you should declare?", Options: []string{"A relative bidding for a contract you evaluate", "Lunch with your team", "Attending a public seminar", "Reading an industry newsletter"}, CorrectOption: 0, Points: 2},
	{Question: "Constructive feedback that shows Respect is:", Options: []string{"Public and personal", "Specific, timely and private", "Vague to avoid offence", "Only given in annual reviews"}, CorrectOption: 1, Points: 1},
	{Question: "Which habit supports Service excellence?", Options: []string{"Assuming what the customer needs", "Asking clarifying questions", "Using internal jargon", "Closing tickets quickly without checking"}, CorrectOption: 1, Points: 1},
	{Question: "Volunteering for a community outreach day mostly reflects:", Options: []string{"Community", "Integrity", "Professionalism", "Service"}, CorrectOption: 0, Points: 1},
	{Question: "Keeping confidential information secure mostly reflects:", Options: []string{"Community", "Respect", "Professionalism", "Service"}, CorrectOption: 2, Points: 1},
}

// ────────────────────── Gemini ──────────────────────

type geminiTriviaGenerator struct {
	model    *genai.GenerativeModel
	fallback TriviaGenerator
	logger   *zap.Logger
}

const geminiTriviaPrompt = `You write workplace values trivia for staff of an organisation whose values are CRISP:
Community, Respect, Integrity, Service, Professionalism.
Write %d multiple-choice questions for the month %s. Mix the five values.
Each question has 4 options and exactly one correct answer.
Respond with a JSON array only, each element shaped as:
{"question": string, "options": [string, string, string, string], "correct_option": 0-3 index, "points": 1 or 2}`

// Generate asks Gemini for questions and falls back to the static pool on any failure.
func (g *geminiTriviaGenerator) Generate(ctx context.Context, month string, n int) ([]model.TriviaQuestion, error) {
	questions, err := g.generate(ctx, month, n)
	if err != nil {
		g.logger.Warn("gemini trivia generation failed, using built-in pool", zap.String("month", month), zap.Error(err))
		return g.fallback.Generate(ctx, month, n)
	}
	return questions, nil
}

func (g *geminiTriviaGenerator) generate(ctx context.Context, month string, n int) ([]model.TriviaQuestion, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(fmt.Sprintf(geminiTriviaPrompt, n, month)))
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("empty response")
	}

	var raw strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			raw.WriteString(string(txt))
		}
	}
	return parseGeneratedTrivia(raw.String(), n)
}

// parseGeneratedTrivia decodes and validates model output, dropping invalid questions.
func parseGeneratedTrivia(raw string, n int) ([]model.TriviaQuestion, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var decoded []model.TriviaQuestion
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &decoded); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}

	out := make([]model.TriviaQuestion, 0, n)
	for _, q := range decoded {
		if err := validateTriviaQuestion(q); err != nil {
			continue
		}
		if q.Points <= 0 {
			q.Points = 1
		}
		out = append(out, q)
		if len(out) == n {
			break
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no valid questions in response")
	}
	return out, nil
}

func validateTriviaQuestion(q model.TriviaQuestion) error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("%w: question is empty", ErrTriviaQuestionInvalid)
	}
	if len(q.Options) < 2 || len(q.Options) > maxQuestionOptions {
		return fmt.Errorf("%w: between 2 and 6 options are required", ErrTriviaQuestionInvalid)
	}
	for _, o := range q.Options {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("%w: option is empty", ErrTriviaQuestionInvalid)
		}
	}
	if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
		return ErrCorrectOptionRange
	}
	return nil
}

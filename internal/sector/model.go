package sector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/goldenkey/internal/llm"
	"github.com/seenimoa/goldenkey/internal/logger"
	"github.com/seenimoa/goldenkey/pkg/models"
	"github.com/seenimoa/goldenkey/pkg/utils"
)

// System-level failure marker. A failed batch yields exactly one result
// under SystemErrorKey, distinct from any instrument's fallback tag.
const (
	SystemErrorKey = "⚠️ 시스템"
	FailedSector   = "분류 실패"
)

// ErrSchema reports model output that is not the expected JSON array.
var ErrSchema = errors.New("sector: model output does not match schema")

// OutcomeKind tags how a batched classification ended.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeSchemaError
	OutcomeTransportError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeSchemaError:
		return "schema_error"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the validated result of one batched model call. Consumers
// only ever see coerced results.
type Outcome struct {
	Kind    OutcomeKind                            `json:"kind"`
	Results map[string]models.ClassificationResult `json:"results"`
	Err     error                                  `json:"-"`
}

// OK reports whether the batch was classified.
func (o Outcome) OK() bool { return o.Kind == OutcomeOK }

func failedOutcome(kind OutcomeKind, err error) Outcome {
	return Outcome{
		Kind: kind,
		Results: map[string]models.ClassificationResult{
			SystemErrorKey: {
				Sectors:   []string{FailedSector},
				Rationale: err.Error(),
			},
		},
		Err: err,
	}
}

// ModelClassifier is the multi-label classifier backed by an LLM.
type ModelClassifier struct {
	provider llm.LLMProvider
	fallback string
	hints    []string
	opts     *llm.ChatOptions
	now      func() time.Time
	log      logrus.FieldLogger
}

// ModelOption configures a ModelClassifier.
type ModelOption func(*ModelClassifier)

// WithHints lists preferred tags to mention in the prompt.
func WithHints(tags ...string) ModelOption {
	return func(m *ModelClassifier) { m.hints = tags }
}

// WithChatOptions overrides the per-request chat options.
func WithChatOptions(opts *llm.ChatOptions) ModelOption {
	return func(m *ModelClassifier) { m.opts = opts }
}

// WithClock sets the clock used for the date in the prompt.
func WithClock(now func() time.Time) ModelOption {
	return func(m *ModelClassifier) { m.now = now }
}

// NewModelClassifier creates a classifier over provider, typically an
// *llm.Router.
func NewModelClassifier(provider llm.LLMProvider, fallback string, log logrus.FieldLogger, opts ...ModelOption) *ModelClassifier {
	if fallback == "" {
		fallback = models.FallbackSector
	}
	m := &ModelClassifier{
		provider: provider,
		fallback: fallback,
		opts:     &llm.ChatOptions{JSONMode: true},
		now:      utils.NowKST,
		log:      logger.WithComponent(log, "classifier"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Classify sends one request for the whole batch. Any provider error is an
// OutcomeTransportError; unparsable output is an OutcomeSchemaError.
// Names not present in headlines are discarded from the response.
func (m *ModelClassifier) Classify(ctx context.Context, headlines map[string][]string) Outcome {
	if len(headlines) == 0 {
		return Outcome{Kind: OutcomeOK, Results: map[string]models.ClassificationResult{}}
	}
	if m.provider == nil {
		return failedOutcome(OutcomeTransportError, llm.ErrNoProviders)
	}

	prompt, err := buildPrompt(headlines, m.hints, m.fallback, m.now())
	if err != nil {
		return failedOutcome(OutcomeSchemaError, err)
	}

	log := m.log.WithField("batch", len(headlines))
	resp, err := m.provider.Chat(ctx, []llm.Message{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(prompt),
	}, m.opts)
	if err != nil {
		log.WithError(err).Warn("model classification failed")
		return failedOutcome(OutcomeTransportError, err)
	}

	results, err := parseResults(resp.Content, headlines, m.fallback)
	if err != nil {
		log.WithError(err).WithField("response", truncate(resp.Content, 200)).Warn("model output rejected")
		return failedOutcome(OutcomeSchemaError, err)
	}
	log.WithFields(logrus.Fields{
		"classified": len(results),
		"provider":   resp.Provider,
		"latency":    resp.Latency,
	}).Info("model classification done")
	return Outcome{Kind: OutcomeOK, Results: results}
}

type rawResult struct {
	Name         any `json:"name"`
	Sectors      any `json:"sectors"`
	Rationale    any `json:"rationale"`
	EvidenceDate any `json:"evidence_date"`
}

// parseResults validates content against the array schema and coerces
// every entry. The first entry per requested name wins.
func parseResults(content string, requested map[string][]string, fallback string) (map[string]models.ClassificationResult, error) {
	body := extractArray(stripFence(content))
	if body == "" {
		return nil, fmt.Errorf("%w: no JSON array in response", ErrSchema)
	}

	var raw []rawResult
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	out := make(map[string]models.ClassificationResult, len(raw))
	for _, r := range raw {
		name := strings.TrimSpace(scalarString(r.Name))
		if _, ok := requested[name]; !ok {
			continue
		}
		if _, dup := out[name]; dup {
			continue
		}
		out[name] = models.ClassificationResult{
			Sectors:      CoerceSectors(r.Sectors, fallback),
			Rationale:    strings.TrimSpace(scalarString(r.Rationale)),
			EvidenceDate: strings.TrimSpace(scalarString(r.EvidenceDate)),
		}
	}
	return out, nil
}

var fencePattern = regexp.MustCompile("(?s)^\\s*```(?:json|JSON)?\\s*\\n?(.*?)\\n?\\s*```\\s*$")

// stripFence removes one optional markdown code fence around s.
func stripFence(s string) string {
	if m := fencePattern.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	}
	return strings.TrimSpace(s)
}

// extractArray returns the outermost [...] span, tolerating prose around it.
func extractArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

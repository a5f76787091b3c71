// Package actionplan enriches vulnerability matches with remediation plans produced
// by a local text generator.
package actionplan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/lcalzada-xor/zerotrace/internal/core/ports"
	"github.com/lcalzada-xor/zerotrace/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Placeholder texts returned in place of a plan. Callers never receive an error.
const (
	PlaceholderUnavailable = "⚠️ Ollama service unavailable. Please start Ollama to generate AI action plans."
	PlaceholderEmpty       = "⚠️ No action plan generated. Please try again."
	PlaceholderTimeout     = "⚠️ Request timed out. Ollama may be busy processing another request."
	placeholderStatus      = "⚠️ Error generating action plan: HTTP %d"
	placeholderFailure     = "⚠️ Error: %s"
)

// Outcome labels the result of one plan request in metrics.
type Outcome string

const (
	OutcomeGenerated   Outcome = "generated"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeEmpty       Outcome = "empty"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeHTTPError   Outcome = "http_error"
	OutcomeFailure     Outcome = "failure"
)

const DefaultRetryDelay = time.Second

// Config tunes the retry and probe behaviour.
type Config struct {
	// RetryDelay is the pause before the single retry after a non-success status.
	RetryDelay time.Duration
	// ProbeTTL caches a successful probe. Zero probes before every request.
	ProbeTTL time.Duration
}

// Service implements ports.ActionPlanner.
type Service struct {
	generator ports.TextGenerator
	cfg       Config

	// sleep is swapped in tests
	sleep func(ctx context.Context, d time.Duration)
	now   func() time.Time

	mu          sync.Mutex
	lastHealthy time.Time
}

// NewService creates an action plan service over generator.
func NewService(generator ports.TextGenerator, cfg Config) *Service {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Service{
		generator: generator,
		cfg:       cfg,
		sleep:     sleepContext,
		now:       time.Now,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// BuildPrompt renders the remediation prompt for a match. Identical matches
// always produce identical prompts.
func BuildPrompt(m domain.MatchResult) string {
	score := "N/A"
	if m.CVSSScore != nil {
		score = fmt.Sprintf("%.1f", *m.CVSSScore)
	}

	var b strings.Builder
	b.WriteString("You are a cybersecurity analyst. A vulnerability has been identified in a software asset:\n\n")
	fmt.Fprintf(&b, "CVE ID: %s\n", m.CVEID)
	fmt.Fprintf(&b, "Affected Software: %s version %s\n", m.Software, m.Version)
	fmt.Fprintf(&b, "Severity: %s (CVSS Score: %s)\n", m.Severity, score)
	fmt.Fprintf(&b, "Description: %s\n\n", m.Description)
	b.WriteString("Provide a concise 3-step remediation action plan. Be specific, actionable, and prioritize security. Format your response as:\n")
	b.WriteString("1. [First action]\n")
	b.WriteString("2. [Second action]\n")
	b.WriteString("3. [Third action]\n\n")
	b.WriteString("Action Plan:")
	return b.String()
}

// Available probes the generator. A successful probe is cached for ProbeTTL.
func (s *Service) Available(ctx context.Context) bool {
	if s.cfg.ProbeTTL > 0 {
		s.mu.Lock()
		fresh := !s.lastHealthy.IsZero() && s.now().Sub(s.lastHealthy) < s.cfg.ProbeTTL
		s.mu.Unlock()
		if fresh {
			return true
		}
	}

	if err := s.generator.Ping(ctx); err != nil {
		slog.Debug("Text generator probe failed", "error", err)
		s.mu.Lock()
		s.lastHealthy = time.Time{}
		s.mu.Unlock()
		return false
	}

	s.mu.Lock()
	s.lastHealthy = s.now()
	s.mu.Unlock()
	return true
}

// GeneratePlan probes the generator and returns a plan or a placeholder.
func (s *Service) GeneratePlan(ctx context.Context, match domain.MatchResult) string {
	if !s.Available(ctx) {
		s.record(OutcomeUnavailable)
		return PlaceholderUnavailable
	}
	return s.generate(ctx, match)
}

// generate runs one request with the retry policy. The generator must already be
// known to be available.
func (s *Service) generate(ctx context.Context, match domain.MatchResult) string {
	ctx, span := otel.Tracer("actionplan").Start(ctx, "GeneratePlan")
	defer span.End()
	span.SetAttributes(
		attribute.String("cve.id", match.CVEID),
		attribute.String("asset.software", match.Software),
	)

	prompt := BuildPrompt(match)

	var text string
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		start := time.Now()
		text, err = s.generator.Generate(ctx, prompt)
		telemetry.GenerationDuration.Observe(time.Since(start).Seconds())

		var statusErr *domain.GenerationStatusError
		if err == nil || !errors.As(err, &statusErr) || attempt == 1 {
			break
		}

		slog.Warn("Action plan request failed, retrying",
			"cve_id", match.CVEID, "status", statusErr.StatusCode, "delay", s.cfg.RetryDelay)
		s.sleep(ctx, s.cfg.RetryDelay)
	}

	plan, outcome := s.interpret(text, err)
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	if err != nil {
		span.RecordError(err)
		slog.Error("Action plan generation failed", "cve_id", match.CVEID, "outcome", outcome, "error", err)
	}
	s.record(outcome)
	return plan
}

func (s *Service) interpret(text string, err error) (string, Outcome) {
	var statusErr *domain.GenerationStatusError
	switch {
	case err == nil:
		plan := strings.TrimSpace(text)
		if plan == "" {
			return PlaceholderEmpty, OutcomeEmpty
		}
		return plan, OutcomeGenerated
	case errors.Is(err, domain.ErrGenerationTimeout):
		return PlaceholderTimeout, OutcomeTimeout
	case errors.As(err, &statusErr):
		return fmt.Sprintf(placeholderStatus, statusErr.StatusCode), OutcomeHTTPError
	default:
		return fmt.Sprintf(placeholderFailure, err.Error()), OutcomeFailure
	}
}

func (s *Service) record(o Outcome) {
	telemetry.ActionPlans.WithLabelValues(string(o)).Inc()
}

// GenerateAll fills ActionPlan on a copy of every match, strictly in input order.
// The generator is probed once. When it is unavailable every match receives the
// unavailable placeholder without further calls. progress, when non-nil, is called
// after each item with the number done and the total. The second result is the
// outcome of that probe.
func (s *Service) GenerateAll(ctx context.Context, matches []domain.MatchResult, progress func(done, total int)) ([]domain.MatchResult, bool) {
	ctx, span := otel.Tracer("actionplan").Start(ctx, "GenerateAll")
	defer span.End()
	span.SetAttributes(attribute.Int("matches.count", len(matches)))

	out := make([]domain.MatchResult, len(matches))
	copy(out, matches)
	total := len(out)

	available := s.Available(ctx)
	if !available {
		slog.Warn("Text generator unavailable, skipping action plans", "matches", total)
	}

	for i := range out {
		if available {
			out[i].ActionPlan = s.generate(ctx, out[i])
		} else {
			out[i].ActionPlan = PlaceholderUnavailable
			s.record(OutcomeUnavailable)
		}
		if progress != nil {
			progress(i+1, total)
		}
	}

	return out, available
}

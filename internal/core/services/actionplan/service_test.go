package actionplan

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockGenerator is a mock implementation of ports.TextGenerator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func newTestService(gen *MockGenerator, cfg Config) (*Service, *[]time.Duration) {
	svc := NewService(gen, cfg)
	var slept []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }
	return svc, &slept
}

func heartbleed() domain.MatchResult {
	score := 7.5
	return domain.MatchResult{
		CVEID:       "CVE-2014-0160",
		Description: "Heartbleed",
		Severity:    domain.SeverityHigh,
		CVSSScore:   &score,
		Software:    "OpenSSL",
		Version:     "1.0.1",
	}
}

func TestBuildPrompt(t *testing.T) {
	m := heartbleed()
	prompt := BuildPrompt(m)

	assert.Contains(t, prompt, "CVE ID: CVE-2014-0160\n")
	assert.Contains(t, prompt, "Affected Software: OpenSSL version 1.0.1\n")
	assert.Contains(t, prompt, "Severity: HIGH (CVSS Score: 7.5)\n")
	assert.Contains(t, prompt, "Description: Heartbleed\n")
	assert.True(t, strings.HasSuffix(prompt, "Action Plan:"))
	assert.Equal(t, prompt, BuildPrompt(m))

	m.CVSSScore = nil
	assert.Contains(t, BuildPrompt(m), "(CVSS Score: N/A)")
}

func TestGeneratePlan_Unavailable(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Ping", mock.Anything).Return(errors.New("connection refused"))

	svc, _ := newTestService(gen, Config{})
	plan := svc.GeneratePlan(context.Background(), heartbleed())

	assert.Equal(t, PlaceholderUnavailable, plan)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGeneratePlan_Success(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Ping", mock.Anything).Return(nil)
	gen.On("Generate", mock.Anything, BuildPrompt(heartbleed())).Return("\n 1. Upgrade OpenSSL\n2. Rotate keys\n3. Audit \n", nil)

	svc, slept := newTestService(gen, Config{})
	plan := svc.GeneratePlan(context.Background(), heartbleed())

	assert.Equal(t, "1. Upgrade OpenSSL\n2. Rotate keys\n3. Audit", plan)
	assert.Empty(t, *slept)
}

func TestGeneratePlan_RetryOnceThenSucceed(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Ping", mock.Anything).Return(nil)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", &domain.GenerationStatusError{StatusCode: 500}).Once()
	gen.On("Generate", mock.Anything, mock.Anything).Return("1. Patch", nil).Once()

	svc, slept := newTestService(gen, Config{})
	plan := svc.GeneratePlan(context.Background(), heartbleed())

	assert.Equal(t, "1. Patch", plan)
	assert.Equal(t, []time.Duration{DefaultRetryDelay}, *slept)
	gen.AssertNumberOfCalls(t, "Generate", 2)
}

func TestGeneratePlan_RetryExhausted(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Ping", mock.Anything).Return(nil)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", &domain.GenerationStatusError{StatusCode: 503})

	svc, slept := newTestService(gen, Config{RetryDelay: 10 * time.Millisecond})
	plan := svc.GeneratePlan(context.Background(), heartbleed())

	assert.Equal(t, "⚠️ Error generating action plan: HTTP 503", plan)
	assert.Len(t, *slept, 1)
	gen.AssertNumberOfCalls(t, "Generate", 2)
}

func TestGeneratePlan_TimeoutIsTerminal(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Ping", mock.Anything).Return(nil)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", domain.ErrGenerationTimeout)

	svc, slept := newTestService(gen, Config{})
	plan := svc.GeneratePlan(context.Background(), heartbleed())

	assert.Equal(t, PlaceholderTimeout, plan)
	assert.Empty(t, *slept)
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestGeneratePlan_TransportFailure(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Ping", mock.Anything).Return(nil)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("connection reset by peer"))

	svc, _ := newTestService(gen, Config{})
	plan := svc.GeneratePlan(context.Background(), heartbleed())

	assert.Equal(t, "⚠️ Error: connection reset by peer", plan)
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestGeneratePlan_EmptyResponse(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Ping", mock.Anything).Return(nil)
	gen.On("Generate", mock.Anything, mock.Anything).Return("   \n ", nil)

	svc, _ := newTestService(gen, Config{})
	assert.Equal(t, PlaceholderEmpty, svc.GeneratePlan(context.Background(), heartbleed()))
}

func TestAvailable_ProbeTTL(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Ping", mock.Anything).Return(nil)

	svc, _ := newTestService(gen, Config{ProbeTTL: time.Minute})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	assert.True(t, svc.Available(context.Background()))
	assert.True(t, svc.Available(context.Background()))
	gen.AssertNumberOfCalls(t, "Ping", 1)

	now = now.Add(2 * time.Minute)
	assert.True(t, svc.Available(context.Background()))
	gen.AssertNumberOfCalls(t, "Ping", 2)
}

func TestAvailable_NoTTLProbesEveryTime(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Ping", mock.Anything).Return(nil)

	svc, _ := newTestService(gen, Config{})
	svc.Available(context.Background())
	svc.Available(context.Background())
	gen.AssertNumberOfCalls(t, "Ping", 2)
}

func TestGenerateAll(t *testing.T) {
	first := heartbleed()
	second := heartbleed()
	second.CVEID = "CVE-2016-2107"

	gen := new(MockGenerator)
	gen.On("Ping", mock.Anything).Return(nil)
	gen.On("Generate", mock.Anything, BuildPrompt(first)).Return("plan A", nil)
	gen.On("Generate", mock.Anything, BuildPrompt(second)).Return("plan B", nil)

	svc, _ := newTestService(gen, Config{})

	var calls [][2]int
	input := []domain.MatchResult{first, second}
	out, available := svc.GenerateAll(context.Background(), input, func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})

	assert.True(t, available)
	require.Len(t, out, 2)
	assert.Equal(t, "plan A", out[0].ActionPlan)
	assert.Equal(t, "plan B", out[1].ActionPlan)
	assert.Empty(t, input[0].ActionPlan)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, calls)
	gen.AssertNumberOfCalls(t, "Ping", 1)
}

func TestGenerateAll_Unavailable(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Ping", mock.Anything).Return(errors.New("down"))

	svc, _ := newTestService(gen, Config{})

	done := 0
	out, available := svc.GenerateAll(context.Background(), []domain.MatchResult{heartbleed(), heartbleed(), heartbleed()},
		func(d, total int) { done = d })

	assert.False(t, available)
	require.Len(t, out, 3)
	for _, m := range out {
		assert.Equal(t, PlaceholderUnavailable, m.ActionPlan)
	}
	assert.Equal(t, 3, done)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	gen.AssertNumberOfCalls(t, "Ping", 1)
}

func TestGenerateAll_Empty(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Ping", mock.Anything).Return(nil)

	svc, _ := newTestService(gen, Config{})
	out, _ := svc.GenerateAll(context.Background(), nil, nil)
	assert.Empty(t, out)
}

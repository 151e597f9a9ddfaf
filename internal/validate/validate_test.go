package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/synth"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/validate"
)

var board = domain.BoardSource{Name: "Gyeonggi", URL: "https://goe.example/notice", Region: "경기"}

func synthesize(t *testing.T, set domain.SelectorSet, errCtx *domain.ErrorContext) domain.SynthesizedModule {
	t.Helper()
	mod, err := synth.New(logger.NewNop()).Synthesize(board, set, errCtx)
	require.NoError(t, err)
	return mod
}

func TestValidate_SynthesizedModuleCompiles(t *testing.T) {
	t.Parallel()

	v := validate.New(logger.NewNop())
	set := domain.DefaultSelectors()
	set.UsesTable = true

	diags := v.Validate(synthesize(t, set, nil).SourceText, 1)
	assert.True(t, diags.OK(), "unexpected diagnostics: %v", diags.Messages())
}

func TestValidate_RepairVariantsCompile(t *testing.T) {
	t.Parallel()

	v := validate.New(logger.NewNop())
	errCtx := &domain.ErrorContext{
		Attempt: 1,
		Errors: []domain.StepError{
			{Step: "detect-rows", Kind: domain.KindSelectorMismatch, Error: "no rows"},
			{Step: "page 1 row 2", Kind: domain.KindRowExtraction, Error: "title: no match"},
			{Step: "crawl", Kind: domain.KindFatalExecution, Error: "navigate: timeout"},
		},
	}

	diags := v.Validate(synthesize(t, domain.DefaultSelectors(), errCtx).SourceText, 2)
	assert.True(t, diags.OK(), "unexpected diagnostics: %v", diags.Messages())
}

func TestValidate_BacktickSelectorIsRejected(t *testing.T) {
	t.Parallel()

	set := domain.DefaultSelectors()
	set.Rows = []string{"tr`broken", "table tr"}

	diags := validate.New(logger.NewNop()).Validate(synthesize(t, set, nil).SourceText, 1)
	require.False(t, diags.OK())
	for _, d := range diags {
		assert.Equal(t, 1, d.Attempt)
		assert.Positive(t, d.Line)
		assert.NotEmpty(t, d.Message)
	}
}

func TestValidate_DisallowedImport(t *testing.T) {
	t.Parallel()

	src := `package boards

import (
	"context"
	"os/exec"
)

func CrawlX(ctx context.Context) error {
	return exec.CommandContext(ctx, "true").Run()
}
`
	diags := validate.New(logger.NewNop()).Validate(src, 3)
	require.Len(t, diags, 1)
	assert.Equal(t, `import not allowed: "os/exec"`, diags[0].Message)
	assert.Equal(t, 3, diags[0].Attempt)
	assert.Equal(t, 5, diags[0].Line)
}

func TestValidate_TypeErrorsAreReported(t *testing.T) {
	t.Parallel()

	src := `package boards

import "fmt"

func CrawlX() error {
	return fmt.Errorf("%d", missingValue)
}
`
	diags := validate.New(logger.NewNop()).Validate(src, 2)
	require.False(t, diags.OK())
	assert.Equal(t, 2, diags[0].Attempt)
	assert.Contains(t, diags[0].Message, "missingValue")
}

func TestValidate_EmptySource(t *testing.T) {
	t.Parallel()

	diags := validate.New(logger.NewNop()).Validate("", 1)
	assert.False(t, diags.OK())
}

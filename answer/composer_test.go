package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/primer/ai/mock"
	"github.com/poiesic/primer/chunker"
	"github.com/poiesic/primer/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewComposer(t *testing.T) {
	_, err := NewComposer(nil)
	assert.Equal(t, ErrGeneratorRequired, err)

	_, err = NewComposer(mock.NewMockGenerator(), WithGenerateTimeout(-time.Second))
	assert.Error(t, err)

	c, err := NewComposer(mock.NewMockGenerator(), WithLogger(nil))
	require.NoError(t, err)
	assert.NotNil(t, c.logger)
}

func TestComposer_ZeroPassagesSkipsGenerator(t *testing.T) {
	generator := mock.NewMockGenerator()
	c, err := NewComposer(generator)
	require.NoError(t, err)

	got, err := c.Answer(context.Background(), "What is Fourier analysis?", nil)
	require.NoError(t, err)
	assert.Equal(t, NoGroundingAnswer(), got)
	assert.False(t, got.Grounded)
	assert.Equal(t, 0, generator.CallCount())
}

func TestComposer_Answer(t *testing.T) {
	generator := mock.NewMockGenerator(
		`{"answer": "AC circuits are analysed with Fourier methods.", "source_chapter": "AC Circuits", "keywords": ["fourier"]}`,
	)
	catalog, err := chunker.NewCatalog(
		chunker.Chapter{Number: 1, Name: "DC Circuits", StartPage: 0},
		chunker.Chapter{Number: 2, Name: "AC Circuits", StartPage: 2},
	)
	require.NoError(t, err)

	c, err := NewComposer(generator, WithCatalog(catalog), WithGenerateTimeout(time.Second))
	require.NoError(t, err)

	got, err := c.Answer(context.Background(), "How are AC circuits analysed?", []string{
		"AC circuits use\nFourier analysis.",
		"DC circuits use constant voltage.",
	})
	require.NoError(t, err)
	assert.True(t, got.Grounded)
	assert.Equal(t, "AC Circuits", got.SourceChapter)
	assert.Equal(t, []string{"fourier"}, got.Keywords)

	assert.Equal(t, 1, generator.CallCount())
	prompt := generator.LastPrompt()
	assert.Contains(t, prompt, "Question: How are AC circuits analysed?")
	assert.Contains(t, prompt, "AC circuits use Fourier analysis.\n---\nDC circuits use constant voltage.")
	assert.Contains(t, prompt, "- 2: AC Circuits\n")
}

func TestComposer_MalformedReply(t *testing.T) {
	generator := mock.NewMockGenerator(`The answer is Fourier analysis.`)
	c, err := NewComposer(generator)
	require.NoError(t, err)

	_, err = c.Answer(context.Background(), "q", []string{"passage"})
	assert.ErrorIs(t, err, core.ErrMalformedAnswer)

	var malformedErr *MalformedAnswerError
	require.True(t, errors.As(err, &malformedErr))
	assert.Equal(t, "The answer is Fourier analysis.", malformedErr.Raw)
}

func TestComposer_GeneratorErrorIsNotRetried(t *testing.T) {
	boom := errors.New("model unavailable")
	generator := mock.NewMockGenerator()
	generator.GenerateFunc = func(context.Context, string) (string, error) {
		return "", boom
	}
	c, err := NewComposer(generator)
	require.NoError(t, err)

	_, err = c.Answer(context.Background(), "q", []string{"passage"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, generator.CallCount())
}

func TestComposer_GenerateTimeout(t *testing.T) {
	generator := mock.NewMockGenerator()
	generator.GenerateFunc = func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	c, err := NewComposer(generator, WithGenerateTimeout(10*time.Millisecond))
	require.NoError(t, err)

	_, err = c.Answer(context.Background(), "q", []string{"passage"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("  What is DC?  ", []string{"line one\nline two", "third\n\n passage"}, nil)

	assert.Contains(t, prompt, `"required": ["answer", "source_chapter", "keywords"]`)
	assert.Contains(t, prompt, "Question: What is DC?\n")
	assert.Contains(t, prompt, "line one line two"+PassageDelimiter+"third passage")
	assert.NotContains(t, prompt, "Chapters of this textbook")
	assert.Equal(t, 1, strings.Count(prompt, PassageDelimiter))
}

func TestFlattenPassage(t *testing.T) {
	assert.Equal(t, "a b c", flattenPassage("a\nb\r\n\tc"))
	assert.Equal(t, "", flattenPassage("\n\n"))
}

package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{"thought":"Build the landing page.","answer":"Created the landing page with a hero section.","plan":[],"questions":[],"files":{"app/index.html":"<h1>Hello</h1>"}}`

func feedInChunks(t *testing.T, d *StreamDecoder, raw string, chunkSize int) {
	t.Helper()
	for i := 0; i < len(raw); i += chunkSize {
		end := i + chunkSize
		if end > len(raw) {
			end = len(raw)
		}
		d.Write(raw[i:end])
	}
}

func TestStreamDecoderAnswerMonotonic(t *testing.T) {
	// The same response, cut at every possible chunk size, must always produce
	// a non-shrinking answer and the same final value.
	for chunkSize := 1; chunkSize <= 7; chunkSize++ {
		d := NewStreamDecoder()
		prevLen := 0
		for i := 0; i < len(sampleResponse); i += chunkSize {
			end := i + chunkSize
			if end > len(sampleResponse) {
				end = len(sampleResponse)
			}
			d.Write(sampleResponse[i:end])
			answer := d.Answer()
			require.GreaterOrEqual(t, len(answer), prevLen, "answer shrank at chunk size %d offset %d", chunkSize, i)
			prevLen = len(answer)
		}
		assert.Equal(t, "Created the landing page with a hero section.", d.Answer(), "chunk size %d", chunkSize)
	}
}

func TestStreamDecoderEscapesAcrossFragments(t *testing.T) {
	raw := `{"answer":"line one\nsaid \"hi\" é 😀 done","files":{}}`
	want := "line one\nsaid \"hi\" é 😀 done"

	// Byte-by-byte is the worst case: every escape straddles a boundary.
	d := NewStreamDecoder()
	feedInChunks(t, d, raw, 1)
	assert.Equal(t, want, d.Answer())

	// And again at an awkward odd size.
	d = NewStreamDecoder()
	feedInChunks(t, d, raw, 3)
	assert.Equal(t, want, d.Answer())
}

func TestStreamDecoderNeverEmitsPartialEscape(t *testing.T) {
	d := NewStreamDecoder()
	d.Write(`{"answer":"a\`)
	assert.Equal(t, "a", d.Answer(), "pending backslash must be withheld")
	d.Write(`n`)
	assert.Equal(t, "a\n", d.Answer())

	d = NewStreamDecoder()
	d.Write(`{"answer":"x\u26`)
	assert.Equal(t, "x", d.Answer(), "incomplete \\u sequence must be withheld")
	d.Write(`03"`)
	assert.Equal(t, "x☃", d.Answer())
}

func TestStreamDecoderStopsAtClosingQuote(t *testing.T) {
	d := NewStreamDecoder()
	d.Write(`{"answer":"done","files":{"a.js":"content"}}`)
	assert.Equal(t, "done", d.Answer())
}

func TestStreamDecoderPhaseTransitions(t *testing.T) {
	d := NewStreamDecoder()
	assert.Equal(t, PhaseReasoning, d.Phase())

	d.Write(`{"thought":"thinking about it"`)
	assert.Equal(t, PhaseReasoning, d.Phase())

	d.Write(`,"answer":"working"`)
	assert.Equal(t, PhaseAnswer, d.Phase())

	d.Write(`,"files":{"app/index.html":"<h1>Hi</h1>"}}`)
	assert.Equal(t, PhaseFiles, d.Phase())
}

func TestStreamDecoderPhaseMarkerAcrossFragments(t *testing.T) {
	d := NewStreamDecoder()
	d.Write(`{"thought":"t","ans`)
	assert.Equal(t, PhaseReasoning, d.Phase())
	d.Write(`wer":"hi","fil`)
	assert.Equal(t, PhaseAnswer, d.Phase())
	d.Write(`es":{}}`)
	assert.Equal(t, PhaseFiles, d.Phase())
}

func TestStreamDecoderFinal(t *testing.T) {
	d := NewStreamDecoder()
	feedInChunks(t, d, sampleResponse, 5)

	result, err := d.Final()
	require.NoError(t, err)
	assert.Equal(t, "Created the landing page with a hero section.", result.Answer)
	assert.Equal(t, "<h1>Hello</h1>", result.Files["app/index.html"])
	assert.Equal(t, "Build the landing page.", result.Thought)
}

func TestStreamDecoderFinalStripsFences(t *testing.T) {
	d := NewStreamDecoder()
	d.Write("```json\n" + sampleResponse + "\n```")

	result, err := d.Final()
	require.NoError(t, err)
	assert.Equal(t, "Created the landing page with a hero section.", result.Answer)
}

func TestStreamDecoderFinalRejectsTruncatedJSON(t *testing.T) {
	d := NewStreamDecoder()
	d.Write(`{"answer":"cut off mid`)

	_, err := d.Final()
	require.Error(t, err)

	var aiErr *Error
	require.True(t, errors.As(err, &aiErr))
	assert.Equal(t, KindSchema, aiErr.Kind)
}

package ai

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/shojbahmed330/oneclick-studio/models"
)

// Phase is a coarse progress indicator derived from which top-level keys have
// appeared in the accumulating JSON object. It drives the activity label in the
// dashboard and has no bearing on correctness.
type Phase int

const (
	PhaseReasoning Phase = iota
	PhaseAnswer
	PhaseFiles
)

func (p Phase) String() string {
	switch p {
	case PhaseFiles:
		return "Synthesizing Code..."
	case PhaseAnswer:
		return "Writing Response..."
	default:
		return "Reasoning Protocol..."
	}
}

var (
	answerKeyMarker = []byte(`"answer"`)
	filesKeyMarker  = []byte(`"files":`)
	answerSeen      = []byte(`"answer":`)
)

// StreamDecoder incrementally extracts the "answer" field from a JSON object
// that is still arriving as text fragments. The extracted value only ever
// grows, and a trailing partial escape sequence is never emitted. Full schema
// validation is deferred to Final once the stream has ended.
type StreamDecoder struct {
	buf []byte

	seenAnswer bool
	seenFiles  bool

	valStart int // offset just past the opening quote of the answer value; -1 while unknown
	valPos   int // next unconsumed byte of the value
	valEnd   bool
	val      strings.Builder
	pend     []byte // bytes of an escape sequence that is not yet complete

	lastAnswer string
}

func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{valStart: -1}
}

// Write appends one fragment to the accumulator and advances the extraction
// state machine. Fragments must be supplied in arrival order.
func (d *StreamDecoder) Write(fragment string) {
	prevLen := len(d.buf)
	d.buf = append(d.buf, fragment...)

	// Key markers can straddle a fragment boundary, so re-scan a short tail of
	// the previous buffer rather than the whole accumulator.
	scanFrom := prevLen - len(filesKeyMarker)
	if scanFrom < 0 {
		scanFrom = 0
	}
	if !d.seenFiles && bytes.Contains(d.buf[scanFrom:], filesKeyMarker) {
		d.seenFiles = true
	}
	if !d.seenAnswer && bytes.Contains(d.buf[scanFrom:], answerSeen) {
		d.seenAnswer = true
	}

	if d.valStart < 0 {
		d.valStart = findAnswerValue(d.buf)
		d.valPos = d.valStart
	}
	if d.valStart >= 0 && !d.valEnd {
		for d.valPos < len(d.buf) && !d.valEnd {
			d.consumeValueByte(d.buf[d.valPos])
			d.valPos++
		}
		d.lastAnswer = d.val.String()
	}
}

// Answer returns the currently-known value of the "answer" field. Successive
// calls never return a shorter value.
func (d *StreamDecoder) Answer() string {
	return d.lastAnswer
}

// Phase classifies progress by key presence, files taking priority over answer.
func (d *StreamDecoder) Phase() Phase {
	switch {
	case d.seenFiles:
		return PhaseFiles
	case d.seenAnswer:
		return PhaseAnswer
	default:
		return PhaseReasoning
	}
}

// Raw returns the full accumulator.
func (d *StreamDecoder) Raw() string {
	return string(d.buf)
}

// Final parses the complete accumulator as a GenerationResult. A parse failure
// here is fatal for the turn; partial extraction is not a fallback.
func (d *StreamDecoder) Final() (*models.GenerationResult, error) {
	return parseResult(string(d.buf))
}

// parseResult strips optional markdown fences and unmarshals the model output.
func parseResult(raw string) (*models.GenerationResult, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result models.GenerationResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, schemaError("AI response is not valid JSON", err)
	}
	return &result, nil
}

// findAnswerValue locates the opening quote of the answer value: the `"answer"`
// key, optional whitespace, a colon, optional whitespace, then `"`. Returns the
// offset just past the opening quote, or -1 if the value has not started yet.
func findAnswerValue(buf []byte) int {
	idx := bytes.Index(buf, answerKeyMarker)
	if idx < 0 {
		return -1
	}
	pos := idx + len(answerKeyMarker)
	for pos < len(buf) && (buf[pos] == ' ' || buf[pos] == '\t' || buf[pos] == '\n' || buf[pos] == '\r') {
		pos++
	}
	if pos >= len(buf) || buf[pos] != ':' {
		return -1
	}
	pos++
	for pos < len(buf) && (buf[pos] == ' ' || buf[pos] == '\t' || buf[pos] == '\n' || buf[pos] == '\r') {
		pos++
	}
	if pos >= len(buf) || buf[pos] != '"' {
		return -1
	}
	return pos + 1
}

func (d *StreamDecoder) consumeValueByte(c byte) {
	if len(d.pend) > 0 {
		d.pend = append(d.pend, c)
		d.tryFlushPend()
		return
	}
	switch c {
	case '\\':
		d.pend = append(d.pend, c)
	case '"':
		d.valEnd = true
	default:
		d.val.WriteByte(c)
	}
}

// tryFlushPend decodes the pending escape sequence once enough bytes have
// arrived. Incomplete sequences stay pending so a partial escape is never
// emitted; malformed ones degrade to a literal copy.
func (d *StreamDecoder) tryFlushPend() {
	p := d.pend
	if len(p) < 2 {
		return
	}
	switch p[1] {
	case '"', '\\', '/':
		d.val.WriteByte(p[1])
	case 'n':
		d.val.WriteByte('\n')
	case 't':
		d.val.WriteByte('\t')
	case 'r':
		d.val.WriteByte('\r')
	case 'b':
		d.val.WriteByte('\b')
	case 'f':
		d.val.WriteByte('\f')
	case 'u':
		d.flushUnicodePend()
		return
	default:
		// Unknown escape; keep the raw bytes so nothing is lost.
		d.val.Write(p)
	}
	d.pend = d.pend[:0]
	d.refeed(p[2:])
}

func (d *StreamDecoder) flushUnicodePend() {
	p := d.pend
	if len(p) < 6 {
		return
	}
	r, ok := parseHexRune(p[2:6])
	if !ok {
		d.pend = d.pend[:0]
		d.val.Write(p[:6])
		d.refeed(p[6:])
		return
	}
	if !utf16.IsSurrogate(r) {
		d.pend = d.pend[:0]
		d.val.WriteRune(r)
		d.refeed(p[6:])
		return
	}

	// A surrogate half must pair with an immediately following \uXXXX.
	if len(p) < 8 {
		return // wait for the pair to start (or the stream to move on)
	}
	if p[6] != '\\' || p[7] != 'u' {
		d.pend = d.pend[:0]
		d.val.WriteRune(utf8.RuneError)
		d.refeed(p[6:])
		return
	}
	if len(p) < 12 {
		return
	}
	r2, ok := parseHexRune(p[8:12])
	if !ok {
		d.pend = d.pend[:0]
		d.val.WriteRune(utf8.RuneError)
		d.refeed(p[6:])
		return
	}
	d.pend = d.pend[:0]
	if paired := utf16.DecodeRune(r, r2); paired != utf8.RuneError {
		d.val.WriteRune(paired)
	} else {
		d.val.WriteRune(utf8.RuneError)
		d.val.WriteRune(utf8.RuneError)
	}
	d.refeed(p[12:])
}

// refeed replays bytes that were buffered past a decoded escape sequence.
func (d *StreamDecoder) refeed(rest []byte) {
	for _, c := range rest {
		if d.valEnd {
			return
		}
		d.consumeValueByte(c)
	}
}

func parseHexRune(hex []byte) (rune, bool) {
	n, err := strconv.ParseUint(string(hex), 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(n), true
}

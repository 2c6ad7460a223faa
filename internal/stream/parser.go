// Package stream decodes the generation provider's streaming output into
// discrete progress and completion events.
//
// The provider speaks an SSE-style text protocol: newline-delimited lines,
// JSON payloads behind a "data: " prefix, and a "[DONE]" sentinel at stream
// end. The useful signals live inside free-form delta text (a localized
// progress phrase, a markdown link to the artifact, a success glyph), so
// extraction is an ordered list of pattern rules applied to each delta.
// Keeping the whole grammar here means supporting another provider is a
// matter of swapping this decoder, not editing the orchestrator.
package stream

import (
	"encoding/json"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	// dataPrefix marks lines carrying a JSON payload.
	dataPrefix = "data: "
	// doneSentinel is the literal payload of the stream-end line.
	doneSentinel = "[DONE]"
	// finishReasonStop is the payload finish reason that ends the stream.
	finishReasonStop = "stop"

	// successGlyph and successPhrase together form the success confirmation.
	successGlyph  = "✅"
	successPhrase = "视频生成成功"
)

var (
	// progressRe matches the provider's localized progress phrase, e.g. "进度：45%".
	progressRe = regexp.MustCompile(`进度[：:]\s*(\d+(?:\.\d+)?)\s*%`)
	// videoURLRe matches the markdown link carrying the artifact URL, e.g. "[点击这里](https://...)".
	videoURLRe = regexp.MustCompile(`\[点击这里\]\((https?://[^)]+)\)`)
)

// Kind identifies the type of an extracted event.
type Kind string

const (
	// KindProgress carries a progress percentage update.
	KindProgress Kind = "progress"
	// KindCompletion carries the final artifact URL.
	KindCompletion Kind = "completion"
)

// Event is a discrete signal extracted from the stream.
type Event struct {
	// Kind identifies the event type.
	Kind Kind
	// Progress is the percentage (0-100), set for KindProgress.
	Progress int
	// VideoURL is the artifact location, set for KindCompletion.
	VideoURL string
}

// payload mirrors the JSON shape of a "data: " line.
type payload struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Parser incrementally decodes the provider byte stream.
//
// It is resilient to payloads split across chunk boundaries: a growing text
// buffer holds the trailing partial line between Feed calls, so the event
// sequence is identical regardless of how the bytes were chunked. Malformed
// individual lines are logged and skipped, never fatal. The parser may emit a
// completion event more than once (the success confirmation can repeat across
// deltas); consumers must be idempotent against duplicates.
//
// Parser is not safe for concurrent use; each stream gets its own instance.
type Parser struct {
	logger *slog.Logger

	buf             string
	videoURL        string
	completionFired bool
	finished        bool
}

// NewParser creates a parser for a single stream.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Feed appends a chunk to the buffer and returns the events extracted from
// all complete lines. The trailing partial line is retained for the next call.
func (p *Parser) Feed(chunk []byte) []Event {
	p.buf += string(chunk)

	var events []Event
	for {
		nl := strings.IndexByte(p.buf, '\n')
		if nl < 0 {
			break
		}
		line := p.buf[:nl]
		p.buf = p.buf[nl+1:]
		events = append(events, p.processLine(line)...)
	}
	return events
}

// Flush processes whatever remains in the buffer as a final line.
// Call it once after the stream ends in case the last line had no newline.
func (p *Parser) Flush() []Event {
	if p.buf == "" {
		return nil
	}
	line := p.buf
	p.buf = ""
	return p.processLine(line)
}

// Finished reports whether the provider signalled stream end
// (finish_reason "stop"). The caller decides when to stop reading.
func (p *Parser) Finished() bool {
	return p.finished
}

// processLine decodes one complete line into zero or more events.
func (p *Parser) processLine(line string) []Event {
	line = strings.TrimSpace(line)
	if line == "" || line == dataPrefix+doneSentinel {
		return nil
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return nil
	}

	var data payload
	if err := json.Unmarshal([]byte(line[len(dataPrefix):]), &data); err != nil {
		p.logger.Warn("skipping malformed stream event",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if len(data.Choices) == 0 {
		return nil
	}

	var events []Event
	if content := data.Choices[0].Delta.Content; content != "" {
		for _, rule := range deltaRules {
			if ev := rule(p, content); ev != nil {
				events = append(events, *ev)
			}
		}
	}

	if fr := data.Choices[0].FinishReason; fr != nil && *fr == finishReasonStop {
		p.finished = true
		// Fallback finalization: if the success confirmation never arrived
		// but a URL was captured, complete on stream finish instead.
		if p.videoURL != "" && !p.completionFired {
			p.completionFired = true
			events = append(events, Event{Kind: KindCompletion, VideoURL: p.videoURL})
		}
	}
	return events
}

// deltaRule inspects one delta text and optionally yields an event.
// Rules run in order; later rules see state captured by earlier ones.
type deltaRule func(p *Parser, content string) *Event

// deltaRules is the extraction grammar applied to every delta.
var deltaRules = []deltaRule{
	extractProgress,
	captureVideoURL,
	confirmSuccess,
}

// extractProgress yields a progress event from the localized progress phrase.
func extractProgress(_ *Parser, content string) *Event {
	m := progressRe.FindStringSubmatch(content)
	if m == nil {
		return nil
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &Event{Kind: KindProgress, Progress: int(math.Round(value))}
}

// captureVideoURL remembers the artifact URL from the completion link.
// The URL is not acted upon until a success confirmation or stream finish.
func captureVideoURL(p *Parser, content string) *Event {
	if m := videoURLRe.FindStringSubmatch(content); m != nil {
		p.videoURL = m[1]
	}
	return nil
}

// confirmSuccess yields a completion event when the delta carries both the
// success glyph and the success phrase, and a URL was already captured.
func confirmSuccess(p *Parser, content string) *Event {
	if !strings.Contains(content, successGlyph) || !strings.Contains(content, successPhrase) {
		return nil
	}
	if p.videoURL == "" {
		return nil
	}
	p.completionFired = true
	return &Event{Kind: KindCompletion, VideoURL: p.videoURL}
}

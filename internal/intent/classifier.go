// Package intent classifies a completed call transcript as interested
// or not. Cheap keyword counting short-circuits the common cases; an
// LLM yes/no check breaks ties for ambiguous transcripts.
package intent

import (
	"context"
	"log/slog"
	"strings"
)

// Method records which decision rule produced a classification.
type Method string

const (
	MethodKeyword Method = "keyword"
	MethodLLM     Method = "llm"
	MethodDefault Method = "default"
)

// llmTranscriptWindow is how much of the transcript tail is sent to the
// completion collaborator for the tiebreak.
const llmTranscriptWindow = 200

// positiveSignals is the fixed interest vocabulary. Matching is
// case-insensitive substring; each vocabulary entry counts once.
var positiveSignals = []string{
	"yes", "interested", "sounds good", "tell me more", "how much",
	"price", "cost", "when", "start", "great", "perfect", "awesome",
	"definitely", "absolutely", "sure", "okay", "right", "correct",
}

// negativeSignals is the fixed disinterest vocabulary.
var negativeSignals = []string{
	"no", "not interested", "busy", "later", "call back", "bye",
	"goodbye", "hang up", "stop", "dont", "don't", "never",
}

// Completer answers the yes/no tiebreak for ambiguous transcripts.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error)
}

// Classifier judges interest from a transcript.
type Classifier struct {
	completer Completer
	logger    *slog.Logger
}

// NewClassifier creates a classifier. completer may be nil, in which
// case ambiguous transcripts classify as not interested.
func NewClassifier(completer Completer, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{completer: completer, logger: logger}
}

// Classify returns whether the transcript signals interest, and the
// method that decided it. Decision rules, in order:
//
//  1. positive count >= 2: interested, no collaborator call
//  2. negative count >= 2: not interested
//  3. positive count >= 1 or transcript longer than 200 characters:
//     ask the completion collaborator yes/no over the transcript tail
//  4. otherwise: not interested
//
// A collaborator failure in rule 3 degrades to not interested.
func (c *Classifier) Classify(ctx context.Context, transcript string) (bool, Method) {
	lowered := strings.ToLower(transcript)

	positive := countSignals(lowered, positiveSignals)
	if positive >= 2 {
		return true, MethodKeyword
	}

	negative := countSignals(lowered, negativeSignals)
	if negative >= 2 {
		return false, MethodKeyword
	}

	if (positive >= 1 || len(transcript) > llmTranscriptWindow) && c.completer != nil {
		interested, err := c.askCompleter(ctx, transcript)
		if err != nil {
			c.logger.Warn("intent tiebreak failed, defaulting to not interested", "error", err)
			return false, MethodDefault
		}
		return interested, MethodLLM
	}

	return false, MethodDefault
}

func (c *Classifier) askCompleter(ctx context.Context, transcript string) (bool, error) {
	tail := transcript
	if len(tail) > llmTranscriptWindow {
		tail = tail[len(tail)-llmTranscriptWindow:]
	}

	prompt := "Is this customer interested? Answer only YES or NO: " + tail
	reply, err := c.completer.Complete(ctx, "", prompt, 5, 0.1)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToUpper(reply), "YES"), nil
}

func countSignals(lowered string, vocabulary []string) int {
	count := 0
	for _, signal := range vocabulary {
		if strings.Contains(lowered, signal) {
			count++
		}
	}
	return count
}

package retry

import "strings"

// Class is the outcome of classifying captured tool output.
type Class int

const (
	// ClassTerminal failures are inherent to the request itself. No
	// other client identity will change the answer.
	ClassTerminal Class = iota
	// ClassRetriableAuth covers bot-detection and sign-in walls tied to
	// the current client identity.
	ClassRetriableAuth
	// ClassRetriableFormat covers format availability differing per
	// client identity.
	ClassRetriableFormat
)

func (c Class) Retriable() bool { return c != ClassTerminal }

var (
	authSignals = []string{
		"sign in",
		"bot",
		"confirm",
		"cookies",
		"authentication",
	}
	formatSignals = []string{
		"requested format",
		"not available",
		"format is not",
		"no video formats",
		"unavailable",
	}
)

// Classifier maps captured error text to a Class. The keyword matching is
// deliberately pluggable so the lists can be tested and extended without
// touching the retry loop.
type Classifier func(output string) Class

// Classify is the default Classifier: case-insensitive substring match
// against the known bot/authentication and format/availability signals.
func Classify(output string) Class {
	lower := strings.ToLower(output)

	for _, kw := range authSignals {
		if strings.Contains(lower, kw) {
			return ClassRetriableAuth
		}
	}
	for _, kw := range formatSignals {
		if strings.Contains(lower, kw) {
			return ClassRetriableFormat
		}
	}
	return ClassTerminal
}

package services

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
)

// Verdict is a classifier's answer for one text.
type Verdict struct {
	IsFake     bool
	Confidence float64
}

// Classifier decides whether a text is fake. Implementations must be safe
// for concurrent use; DetectionService calls Classify from many requests at
// once.
type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

// Default confidences reported by KeywordClassifier.
const (
	DefaultFakeConfidence = 0.9
	DefaultRealConfidence = 0.1
)

// KeywordClassifier flags a text as fake when it contains the trigger word,
// compared under Unicode case folding. It is a placeholder strategy, not a
// model.
type KeywordClassifier struct {
	trigger        string // already folded
	FakeConfidence float64
	RealConfidence float64
}

// NewKeywordClassifier returns a classifier for trigger with the default
// confidence pair.
func NewKeywordClassifier(trigger string) *KeywordClassifier {
	return &KeywordClassifier{
		trigger:        fold(strings.TrimSpace(trigger)),
		FakeConfidence: DefaultFakeConfidence,
		RealConfidence: DefaultRealConfidence,
	}
}

// Classify implements Classifier.
func (k *KeywordClassifier) Classify(ctx context.Context, text string) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}
	if k.trigger != "" && strings.Contains(fold(text), k.trigger) {
		return Verdict{IsFake: true, Confidence: k.FakeConfidence}, nil
	}
	return Verdict{IsFake: false, Confidence: k.RealConfidence}, nil
}

// fold builds a fresh Caser per call; a Caser keeps state and must not be
// shared across goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Package services – DetectionService
//
// DetectionService validates and truncates submitted text, asks the
// configured Classifier for a verdict and records the result in one
// transaction. With an idempotency key the detection and its key record
// commit together, so a retried request replays the stored row.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-newscheck-backend/internal/domain"
	"github.com/tbourn/go-newscheck-backend/internal/repo"
	"github.com/tbourn/go-newscheck-backend/internal/utils"
)

// DefaultMaxTextRunes caps stored and classified text.
const DefaultMaxTextRunes = 500

// DetectInput is one submission. UserID is optional and stored as given.
type DetectInput struct {
	Text   string
	UserID *int64
}

// DetectionService records classified submissions.
type DetectionService struct {
	DB         *gorm.DB
	Classifier Classifier

	// MaxTextRunes truncates input; <= 0 means DefaultMaxTextRunes.
	MaxTextRunes int
	// IdempotencyTTL bounds how long a key replays its detection.
	IdempotencyTTL time.Duration

	// Now is a test seam; nil means time.Now.
	Now func() time.Time
}

func (s *DetectionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *DetectionService) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return 24 * time.Hour
}

func (s *DetectionService) maxRunes() int {
	if s.MaxTextRunes > 0 {
		return s.MaxTextRunes
	}
	return DefaultMaxTextRunes
}

// Truncate keeps at most n runes of s. When it cuts, invalid UTF-8 bytes
// count as one rune each and come back as U+FFFD.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Detect rejects blank text, truncates it, classifies the truncated form and
// stores it. Any classifier or store failure is reported as
// ErrProcessingFailed wrapping the cause; nothing is persisted in that case.
func (s *DetectionService) Detect(ctx context.Context, in DetectInput) (*domain.DetectionResult, error) {
	res, _, err := s.detect(ctx, in, "", "")
	return res, err
}

// DetectIdempotent behaves like Detect but first looks up (scope, key). A
// live record replays the stored detection with replayed=true; otherwise the
// new detection and its key record commit together. Two concurrent requests
// with the same key produce a single row.
func (s *DetectionService) DetectIdempotent(ctx context.Context, in DetectInput, scope, key string) (*domain.DetectionResult, bool, error) {
	if strings.TrimSpace(key) == "" {
		return s.detect(ctx, in, "", "")
	}
	return s.detect(ctx, in, scope, key)
}

func (s *DetectionService) detect(ctx context.Context, in DetectInput, scope, key string) (*domain.DetectionResult, bool, error) {
	tr := otel.Tracer("services/DetectionService")
	ctx, span := tr.Start(ctx, "Detect",
		trace.WithAttributes(
			attribute.Bool("user.present", in.UserID != nil),
			attribute.Bool("idempotent", key != ""),
		),
	)
	defer span.End()

	if strings.TrimSpace(in.Text) == "" {
		return nil, false, ErrEmptyText
	}
	if s.Classifier == nil {
		return nil, false, fmt.Errorf("%w: no classifier configured", ErrProcessingFailed)
	}

	text := Truncate(in.Text, s.maxRunes())
	now := s.now()

	if key != "" {
		if prev, ok := s.replay(ctx, scope, key, now); ok {
			detectionsTotal.WithLabelValues("replayed").Inc()
			span.SetAttributes(attribute.Bool("replayed", true))
			return prev, true, nil
		}
	}

	verdict, err := s.classify(ctx, text)
	if err != nil {
		return nil, false, s.failed(span, err)
	}

	rec := &domain.DetectionResult{
		Text:       text,
		IsFake:     verdict.IsFake,
		Confidence: verdict.Confidence,
		UserID:     in.UserID,
		CreatedAt:  now,
	}
	err = repo.InTx(ctx, s.DB, func(tx *gorm.DB) error {
		if err := repo.CreateDetection(ctx, tx, rec); err != nil {
			return err
		}
		if key == "" {
			return nil
		}
		_, err := repo.CreateIdempotency(ctx, tx, scope, key, rec.ID, http.StatusOK, s.idempotencyTTL(), now)
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// lost the race against a concurrent request with the same key
		if prev, ok := s.replay(ctx, scope, key, now); ok {
			detectionsTotal.WithLabelValues("replayed").Inc()
			return prev, true, nil
		}
	}
	if err != nil {
		return nil, false, s.failed(span, err)
	}

	span.SetAttributes(attribute.Int64("detection.id", rec.ID), attribute.Bool("detection.fake", rec.IsFake))
	detectionsTotal.WithLabelValues(rec.Label()).Inc()
	return rec, false, nil
}

func (s *DetectionService) classify(ctx context.Context, text string) (Verdict, error) {
	tr := otel.Tracer("services/DetectionService")
	ctx, span := tr.Start(ctx, "classify",
		trace.WithAttributes(attribute.Int("text.runes", utf8.RuneCountInString(text))),
	)
	defer span.End()
	return s.Classifier.Classify(ctx, text)
}

// replay loads the detection recorded for (scope, key), if any.
func (s *DetectionService) replay(ctx context.Context, scope, key string, now time.Time) (*domain.DetectionResult, bool) {
	rec, err := repo.GetIdempotency(ctx, s.DB, scope, key, now)
	if err != nil {
		return nil, false
	}
	d, err := repo.GetDetection(ctx, s.DB, rec.DetectionID)
	if err != nil {
		return nil, false
	}
	return d, true
}

func (s *DetectionService) failed(span trace.Span, cause error) error {
	detectionsTotal.WithLabelValues("failed").Inc()
	span.RecordError(cause)
	span.SetStatus(codes.Error, "processing failed")
	return fmt.Errorf("%w: %w", ErrProcessingFailed, cause)
}

// History returns one page of userID's detections, newest first, and the
// total count.
func (s *DetectionService) History(ctx context.Context, userID int64, page, pageSize int) ([]domain.DetectionResult, int64, error) {
	tr := otel.Tracer("services/DetectionService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = utils.DefaultPageSize
	}

	total, err := repo.CountDetectionsByUser(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.DetectionResult{}, 0, nil
	}
	items, err := repo.ListDetectionsByUserPage(ctx, s.DB, userID, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}

// HistoryStats exposes the aggregate used to build the history ETag.
func (s *DetectionService) HistoryStats(ctx context.Context, userID int64) (count, maxID int64, err error) {
	count, maxID, _, err = repo.DetectionStats(ctx, s.DB, userID)
	return count, maxID, err
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nstr_report/internal/compose"
	"nstr_report/internal/config"
	"nstr_report/internal/domain"
	"nstr_report/internal/identity"
	"nstr_report/internal/nostr"
	"nstr_report/internal/publisher"
)

type ReportService struct {
	source     Source
	seen       SeenStore
	reports    ReportLog
	summarizer Summarizer
	composer   *compose.Composer
	keys       *identity.Keypair
	publisher  Publisher
	logger     *slog.Logger
	config     config.PublishConfig
}

func NewReportService(
	source Source,
	seen SeenStore,
	reports ReportLog,
	summarizer Summarizer,
	composer *compose.Composer,
	keys *identity.Keypair,
	pub Publisher,
	logger *slog.Logger,
	cfg config.PublishConfig,
) *ReportService {
	return &ReportService{
		source:     source,
		seen:       seen,
		reports:    reports,
		summarizer: summarizer,
		composer:   composer,
		keys:       keys,
		publisher:  pub,
		logger:     logger,
		config:     cfg,
	}
}

// Run executes one report cycle: fetch, diff against the seen state,
// compose, sign, publish, then persist. The seen state is persisted only
// after a successful publish (or when there is nothing to report), so a
// failed run leaves the same topics eligible for the next one.
func (s *ReportService) Run(ctx context.Context) (*domain.RunStats, error) {
	startTime := time.Now()
	stats := &domain.RunStats{State: domain.StateIdle}

	s.logger.Info("starting report run",
		"relays", len(s.config.Relays),
		"min_acks", s.config.MinAcks,
	)

	fresh, currentIDs, err := s.fetchAndDiff(ctx, stats)
	if err != nil {
		stats.State = domain.StateFailed
		return stats, err
	}

	if len(fresh) == 0 {
		if err := s.seen.MarkSeen(ctx, currentIDs); err != nil {
			stats.State = domain.StateFailed
			return stats, fmt.Errorf("persist seen state: %w", err)
		}
		stats.State = domain.StateNothingToReport
		stats.Duration = time.Since(startTime)
		s.logger.Info("nothing to report", "duration", stats.Duration)
		return stats, nil
	}

	narrative := s.narrative(ctx, fresh)

	publishedAt := time.Now().UTC()
	draft := s.composer.Compose(fresh, narrative, publishedAt)
	stats.State = domain.StateComposed

	event := draft.Event()
	if err := event.Sign(s.keys); err != nil {
		stats.State = domain.StateFailed
		return stats, fmt.Errorf("sign event: %w", err)
	}
	stats.State = domain.StateSigned
	stats.EventID = event.ID

	res, err := s.publisher.Publish(ctx, event, s.config.Relays)
	if err != nil {
		stats.State = domain.StateFailed
		return stats, fmt.Errorf("publish event: %w", err)
	}
	stats.State = domain.StatePublished
	stats.Acked = res.Acked
	stats.Rejected = res.Rejected
	stats.FailedNum = res.Failed

	if !res.Success {
		// Seen state stays untouched so these topics are retried on the
		// next scheduled run.
		stats.State = domain.StateFailed
		return stats, fmt.Errorf("publish event: %w", publisher.ErrQuorumNotReached)
	}

	if err := s.seen.MarkSeen(ctx, currentIDs); err != nil {
		stats.State = domain.StateFailed
		return stats, fmt.Errorf("persist seen state: %w", err)
	}

	if err := s.reports.Record(ctx, &domain.Report{
		EventID:     event.ID,
		Body:        draft.Body,
		TopicCount:  len(fresh),
		Acked:       res.Acked,
		PublishedAt: publishedAt,
	}); err != nil {
		// The event is out and the seen state is durable; a missing log
		// row is not worth failing the run over.
		s.logger.Warn("record report failed", "error", err)
	}

	stats.State = domain.StateDone
	stats.Duration = time.Since(startTime)

	s.logger.Info("report run completed",
		"event_id", stats.EventID,
		"new", stats.New,
		"skipped", stats.Skipped,
		"acked", stats.Acked,
		"rejected", stats.Rejected,
		"failed", stats.FailedNum,
		"duration", stats.Duration,
	)

	return stats, nil
}

// DryRun walks the same fetch, diff, compose, sign steps as Run but never
// contacts a relay and never writes state. Unlike Run it composes even when
// nothing is new, so the caller sees the exact no-activity report.
func (s *ReportService) DryRun(ctx context.Context) (*nostr.Event, *domain.RunStats, error) {
	stats := &domain.RunStats{State: domain.StateIdle}

	fresh, _, err := s.fetchAndDiff(ctx, stats)
	if err != nil {
		stats.State = domain.StateFailed
		return nil, stats, err
	}

	draft := s.composer.Compose(fresh, s.narrative(ctx, fresh), time.Now().UTC())
	stats.State = domain.StateComposed

	event := draft.Event()
	if err := event.Sign(s.keys); err != nil {
		stats.State = domain.StateFailed
		return nil, stats, fmt.Errorf("sign event: %w", err)
	}
	stats.State = domain.StateSigned
	stats.EventID = event.ID

	return event, stats, nil
}

func (s *ReportService) fetchAndDiff(ctx context.Context, stats *domain.RunStats) ([]domain.Topic, []string, error) {
	topics, err := s.source.FetchTopics(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch topics: %w", err)
	}
	stats.State = domain.StateFetched
	stats.Fetched = len(topics)

	seen, err := s.seen.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load seen state: %w", err)
	}

	fresh, currentIDs := diffTopics(topics, seen)
	stats.State = domain.StateDiffed
	stats.New = len(fresh)
	stats.Skipped = stats.Fetched - len(fresh)
	s.logger.Info("diffed against seen state", "fetched", stats.Fetched, "new", stats.New, "skipped", stats.Skipped)

	return fresh, currentIDs, nil
}

func (s *ReportService) narrative(ctx context.Context, fresh []domain.Topic) string {
	if s.summarizer == nil || len(fresh) == 0 {
		return ""
	}
	narrative, err := s.summarizer.Summarize(ctx, fresh)
	if err != nil {
		s.logger.Warn("summarizer unavailable, composing without narrative", "error", err)
		return ""
	}
	return narrative
}

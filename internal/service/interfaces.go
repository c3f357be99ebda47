package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"nstr_report/internal/domain"
	"nstr_report/internal/nostr"
	"nstr_report/internal/publisher"
)

type Source interface {
	FetchTopics(ctx context.Context) ([]domain.Topic, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, topics []domain.Topic) (string, error)
}

type SeenStore interface {
	Load(ctx context.Context) (map[string]struct{}, error)
	MarkSeen(ctx context.Context, ids []string) error
}

type ReportLog interface {
	Record(ctx context.Context, report *domain.Report) error
}

type Publisher interface {
	Publish(ctx context.Context, event *nostr.Event, relays []string) (*publisher.Result, error)
}

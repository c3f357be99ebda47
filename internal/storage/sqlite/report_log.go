package sqlite

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"nstr_report/internal/domain"
)

// ReportLog records published reports locally so operators can inspect what
// went out without querying relays.
type ReportLog struct {
	db *sqlx.DB
}

func NewReportLog(db *sqlx.DB) *ReportLog {
	return &ReportLog{db: db}
}

func (l *ReportLog) Record(ctx context.Context, r *domain.Report) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO reports (event_id, body, topic_count, acked, published_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.EventID, r.Body, r.TopicCount, r.Acked, r.PublishedAt,
	)
	return err
}

// Last returns the most recently published report, or nil when the log is
// empty.
func (l *ReportLog) Last(ctx context.Context) (*domain.Report, error) {
	var r domain.Report
	err := l.db.GetContext(ctx, &r,
		`SELECT id, event_id, body, topic_count, acked, published_at
		 FROM reports
		 ORDER BY published_at DESC, id DESC
		 LIMIT 1`)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

package domain

import "time"

// Report is one published report as recorded in the local log.
type Report struct {
	ID          int64     `db:"id"`
	EventID     string    `db:"event_id"`
	Body        string    `db:"body"`
	TopicCount  int       `db:"topic_count"`
	Acked       int       `db:"acked"`
	PublishedAt time.Time `db:"published_at"`
}

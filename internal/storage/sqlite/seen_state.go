package sqlite

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// SeenStore holds the ids of topics already covered by a published report.
// Ids are only ever added, so a run that fails to publish leaves its topics
// eligible for the next run.
type SeenStore struct {
	db *sqlx.DB
}

func NewSeenStore(db *sqlx.DB) *SeenStore {
	return &SeenStore{db: db}
}

func (s *SeenStore) Load(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, "SELECT id FROM seen_topics"); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return seen, nil
}

// MarkSeen records ids in a single transaction. Ids already present keep
// their original first_seen_at.
func (s *SeenStore) MarkSeen(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO seen_topics (id, first_seen_at) VALUES (?, ?)",
			id, now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

package domain

import "time"

// Topic is one discussion topic fetched from the forum. Immutable within a run.
type Topic struct {
	ID        string // stable identifier derived from slug and numeric id
	Title     string
	Slug      string
	Author    string
	Tags      []string
	URL       string
	CreatedAt time.Time
	BumpedAt  time.Time
	Posts     []Post
}

type Post struct {
	ID        int64
	Author    string
	Text      string
	Number    int
	CreatedAt time.Time
}

// IsNew reports whether the topic was created in the same window it was
// bumped, i.e. the activity is the topic itself and not a late reply.
func (t Topic) IsNew() bool {
	return t.CreatedAt.Year() == t.BumpedAt.Year() &&
		t.CreatedAt.YearDay() == t.BumpedAt.YearDay()
}

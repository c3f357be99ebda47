// Package compose renders the day's new topics into the report body and its
// tag list. Everything here is a pure data transform; the narrative text, if
// any, arrives already computed.
package compose

import (
	"fmt"
	"strings"
	"time"

	"nstr_report/internal/domain"
	"nstr_report/internal/nostr"
)

// NothingToReport is the exact body used when a run has no new activity.
const NothingToReport = "NSTR - Nothing Significant to Report"

type Config struct {
	Heading   string
	SourceURL string
}

type Composer struct {
	cfg Config
}

func New(cfg Config) *Composer {
	return &Composer{cfg: cfg}
}

// Draft is one composed, still unsigned report.
type Draft struct {
	Body      string
	Tags      []string
	CreatedAt time.Time
}

// Event shapes the draft as an unsigned wire event, one "t" tag per topic
// category.
func (d *Draft) Event() *nostr.Event {
	tags := make([][]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		tags = append(tags, []string{"t", t})
	}
	return &nostr.Event{
		CreatedAt: d.CreatedAt.Unix(),
		Kind:      nostr.KindTextNote,
		Tags:      tags,
		Content:   d.Body,
	}
}

// Compose renders the report for the given topics, in the order they were
// fetched. With no topics the body is exactly NothingToReport and carries no
// tags. A non-empty narrative is included verbatim above the topic list.
func (c *Composer) Compose(topics []domain.Topic, narrative string, now time.Time) *Draft {
	if len(topics) == 0 {
		return &Draft{Body: NothingToReport, Tags: []string{}, CreatedAt: now}
	}

	header := fmt.Sprintf("%s (%s)", c.cfg.Heading, now.UTC().Format("2006-01-02"))

	var lines []string
	if narrative != "" {
		lines = []string{header, "", narrative, "", "Topics:"}
	} else {
		count := fmt.Sprintf("%d topic%s with activity:", len(topics), pluralSuffix(len(topics)))
		lines = []string{header, "", count, ""}
	}
	for _, t := range topics {
		lines = append(lines, topicLine(t), "    "+t.URL)
	}
	lines = append(lines, "", "Source: "+c.cfg.SourceURL)

	return &Draft{
		Body:      strings.Join(lines, "\n"),
		Tags:      tagUnion(topics),
		CreatedAt: now,
	}
}

func topicLine(t domain.Topic) string {
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(t.Title)
	if len(t.Tags) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(t.Tags, ", "))
		b.WriteString("]")
	}
	if t.IsNew() {
		b.WriteString(" [NEW]")
	}
	fmt.Fprintf(&b, " (%d new post%s)", len(t.Posts), pluralSuffix(len(t.Posts)))
	return b.String()
}

// tagUnion collects every topic tag once, keeping first-occurrence order so
// the tag list reads in the same order as the report body.
func tagUnion(topics []domain.Topic) []string {
	seen := make(map[string]struct{})
	union := make([]string, 0)
	for _, t := range topics {
		for _, tag := range t.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			union = append(union, tag)
		}
	}
	return union
}

func pluralSuffix(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

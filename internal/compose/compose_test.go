package compose

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nstr_report/internal/domain"
	"nstr_report/internal/nostr"
)

var composeNow = time.Date(2026, 8, 23, 18, 30, 0, 0, time.UTC)

func testComposer() *Composer {
	return New(Config{Heading: "BNOC Daily Summary", SourceURL: "https://bnoc.xyz"})
}

func i2pTopic() domain.Topic {
	return domain.Topic{
		ID:        "attack-on-i2p/10",
		Title:     "Attack on I2P",
		Slug:      "attack-on-i2p",
		Author:    "alice",
		Tags:      []string{"p2p", "i2p"},
		URL:       "https://bnoc.xyz/t/attack-on-i2p/10",
		CreatedAt: composeNow.Add(-48 * time.Hour),
		BumpedAt:  composeNow.Add(-time.Hour),
	}
}

func TestComposeNothingToReport(t *testing.T) {
	d := testComposer().Compose(nil, "", composeNow)

	assert.Equal(t, NothingToReport, d.Body)
	assert.Empty(t, d.Tags)
	assert.Equal(t, composeNow, d.CreatedAt)
}

func TestComposeSingleTopic(t *testing.T) {
	d := testComposer().Compose([]domain.Topic{i2pTopic()}, "", composeNow)

	want := strings.Join([]string{
		"BNOC Daily Summary (2026-08-23)",
		"",
		"1 topic with activity:",
		"",
		"  Attack on I2P [p2p, i2p] (0 new posts)",
		"    https://bnoc.xyz/t/attack-on-i2p/10",
		"",
		"Source: https://bnoc.xyz",
	}, "\n")
	assert.Equal(t, want, d.Body)
	assert.Contains(t, d.Body, "Attack on I2P [p2p, i2p]")
	assert.Equal(t, []string{"p2p", "i2p"}, d.Tags)
}

func TestComposeWithNarrative(t *testing.T) {
	topic := i2pTopic()
	topic.Posts = []domain.Post{
		{ID: 1, Author: "bob", Text: "observed elevated churn", CreatedAt: composeNow.Add(-time.Hour)},
	}

	d := testComposer().Compose([]domain.Topic{topic}, "Operators reported elevated I2P churn.", composeNow)

	want := strings.Join([]string{
		"BNOC Daily Summary (2026-08-23)",
		"",
		"Operators reported elevated I2P churn.",
		"",
		"Topics:",
		"  Attack on I2P [p2p, i2p] (1 new post)",
		"    https://bnoc.xyz/t/attack-on-i2p/10",
		"",
		"Source: https://bnoc.xyz",
	}, "\n")
	assert.Equal(t, want, d.Body)
}

func TestComposeNewTopicMarker(t *testing.T) {
	topic := i2pTopic()
	topic.CreatedAt = composeNow.Add(-2 * time.Hour)
	topic.BumpedAt = composeNow.Add(-time.Hour)

	d := testComposer().Compose([]domain.Topic{topic}, "", composeNow)
	assert.Contains(t, d.Body, "Attack on I2P [p2p, i2p] [NEW] (0 new posts)")
}

func TestComposeNoTags(t *testing.T) {
	topic := i2pTopic()
	topic.Tags = nil

	d := testComposer().Compose([]domain.Topic{topic}, "", composeNow)
	assert.Contains(t, d.Body, "  Attack on I2P (0 new posts)")
	assert.Empty(t, d.Tags)
}

func TestComposeTagUnionKeepsFetchOrder(t *testing.T) {
	second := i2pTopic()
	second.ID = "relay-policy/11"
	second.Title = "Relay policy changes"
	second.Tags = []string{"i2p", "relays"}
	second.URL = "https://bnoc.xyz/t/relay-policy/11"

	d := testComposer().Compose([]domain.Topic{i2pTopic(), second}, "", composeNow)

	assert.Equal(t, []string{"p2p", "i2p", "relays"}, d.Tags)
	assert.Contains(t, d.Body, "2 topics with activity:")
}

func TestComposeDeterministic(t *testing.T) {
	topics := []domain.Topic{i2pTopic()}
	c := testComposer()

	first := c.Compose(topics, "narrative", composeNow)
	second := c.Compose(topics, "narrative", composeNow)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, first.Tags, second.Tags)
}

func TestDraftEvent(t *testing.T) {
	d := testComposer().Compose([]domain.Topic{i2pTopic()}, "", composeNow)
	e := d.Event()

	require.NotNil(t, e)
	assert.Equal(t, nostr.KindTextNote, e.Kind)
	assert.Equal(t, composeNow.Unix(), e.CreatedAt)
	assert.Equal(t, d.Body, e.Content)
	assert.Equal(t, [][]string{{"t", "p2p"}, {"t", "i2p"}}, e.Tags)
	assert.Empty(t, e.ID)
	assert.Empty(t, e.Sig)
}

func TestDraftEventNothingToReport(t *testing.T) {
	e := testComposer().Compose(nil, "", composeNow).Event()
	assert.Equal(t, NothingToReport, e.Content)
	assert.Empty(t, e.Tags)
}

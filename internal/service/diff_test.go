package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nstr_report/internal/domain"
)

func topicIDs(topics []domain.Topic) []string {
	ids := make([]string, len(topics))
	for i, t := range topics {
		ids[i] = t.ID
	}
	return ids
}

func seenSet(ids ...string) map[string]struct{} {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return seen
}

func TestDiffFirstRunEverythingIsNew(t *testing.T) {
	current := []domain.Topic{
		{ID: "attack-on-i2p/10", Title: "Attack on I2P", Tags: []string{"p2p", "i2p"}},
		{ID: "relay-policy/11", Title: "Relay policy"},
	}

	fresh, ids := diffTopics(current, seenSet())

	require.Equal(t, []string{"attack-on-i2p/10", "relay-policy/11"}, topicIDs(fresh))
	require.Equal(t, []string{"attack-on-i2p/10", "relay-policy/11"}, ids)
}

func TestDiffKeepsFetchOrder(t *testing.T) {
	// Fetch order is what the source returned, not identifier order.
	current := []domain.Topic{{ID: "z/3"}, {ID: "a/1"}, {ID: "m/2"}}

	fresh, _ := diffTopics(current, seenSet("a/1"))

	require.Equal(t, []string{"z/3", "m/2"}, topicIDs(fresh))
}

func TestDiffIsRepeatable(t *testing.T) {
	current := []domain.Topic{{ID: "a/1"}, {ID: "b/2"}}
	seen := seenSet("a/1")

	first, firstIDs := diffTopics(current, seen)
	second, secondIDs := diffTopics(current, seen)

	require.Equal(t, first, second)
	require.Equal(t, firstIDs, secondIDs)
}

func TestDiffWithUpdatedSeenYieldsNothing(t *testing.T) {
	current := []domain.Topic{{ID: "a/1"}, {ID: "b/2"}, {ID: "c/3"}}

	_, ids := diffTopics(current, seenSet("b/2"))

	fresh, _ := diffTopics(current, seenSet(ids...))
	require.Empty(t, fresh)
}

func TestDiffIDsCoverSeenTopicsToo(t *testing.T) {
	// Persisting the returned ids must grow the seen set by every current
	// topic, including the ones that were already seen.
	current := []domain.Topic{{ID: "a/1"}, {ID: "b/2"}}

	fresh, ids := diffTopics(current, seenSet("a/1"))

	require.Equal(t, []string{"b/2"}, topicIDs(fresh))
	require.Equal(t, []string{"a/1", "b/2"}, ids)
}

func TestDiffIgnoresUpstreamEdits(t *testing.T) {
	current := []domain.Topic{{ID: "a/1", Title: "Renamed thread", Tags: []string{"meta"}}}

	fresh, _ := diffTopics(current, seenSet("a/1"))

	require.Empty(t, fresh)
}

func TestDiffEmptyFetch(t *testing.T) {
	fresh, ids := diffTopics(nil, seenSet("a/1"))

	require.Empty(t, fresh)
	require.Empty(t, ids)
}

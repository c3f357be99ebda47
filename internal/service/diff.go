package service

import "nstr_report/internal/domain"

// diffTopics splits current into the topics whose id has not been seen yet,
// preserving fetch order. The returned id list covers every current topic,
// seen or not: persisting it grows the seen set by union, so a topic that
// was fetched but filtered out never resurfaces on a later run. Identity is
// the stable topic id alone; upstream edits to title or tags do not make a
// seen topic new again.
func diffTopics(current []domain.Topic, seen map[string]struct{}) ([]domain.Topic, []string) {
	var fresh []domain.Topic
	ids := make([]string, 0, len(current))
	for _, t := range current {
		ids = append(ids, t.ID)
		if _, ok := seen[t.ID]; ok {
			continue
		}
		fresh = append(fresh, t)
	}
	return fresh, ids
}

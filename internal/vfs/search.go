package vfs

import "github.com/sahilm/fuzzy"

// Search ranks file names against a fuzzy query, best match first.
// An empty query returns every name in insertion order.
func (s *Store) Search(query string) []string {
	names := s.List()
	if query == "" {
		return names
	}
	matches := fuzzy.Find(query, names)
	out := make([]string, 0, len(matches))
	for _, match := range matches {
		out = append(out, match.Str)
	}
	return out
}

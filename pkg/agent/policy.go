package agent

import "strings"

var (
	searchHints = []string{"search", "latest"}
	mapsHints   = []string{"location", "near me"}
)

// InferChatFlags is a plain case-insensitive substring match over the prompt.
// It misfires easily ("researcher" asks for search); swap it through
// Controller.SetFlagPolicy rather than editing the dispatch path.
func InferChatFlags(text string) (useSearch, useMaps bool) {
	lower := strings.ToLower(text)
	return containsAny(lower, searchHints), containsAny(lower, mapsHints)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

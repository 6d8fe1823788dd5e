package source

import (
	"sort"
	"time"

	"github.com/theirongolddev/cclog/internal/daterange"
	"github.com/theirongolddev/cclog/internal/transcript"
)

// FilterByDate keeps the entries whose timestamp falls inside r. Summaries and
// other entries without a timestamp are always kept. An empty range returns
// entries unchanged.
func FilterByDate(entries []transcript.Entry, r daterange.Range) []transcript.Entry {
	if r.IsZero() {
		return entries
	}
	out := make([]transcript.Entry, 0, len(entries))
	for _, e := range entries {
		ts, ok := transcript.Timestamp(e)
		if !ok || r.ContainsString(ts) {
			out = append(out, e)
		}
	}
	return out
}

// SortChronological orders entries by timestamp, in place and stably.
// Entries without a parseable timestamp sort first.
func SortChronological(entries []transcript.Entry) {
	keys := make(map[transcript.Entry]time.Time, len(entries))
	for _, e := range entries {
		if ts, ok := transcript.Timestamp(e); ok {
			if t, err := daterange.ParseTimestamp(ts); err == nil {
				keys[e] = t
			}
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return keys[entries[i]].Before(keys[entries[j]])
	})
}

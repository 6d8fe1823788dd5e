// Package pipeline keeps a project's transcript cache fresh and derives the
// session and project rollups stored in its index.
package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/theirongolddev/cclog/internal/daterange"
	"github.com/theirongolddev/cclog/internal/model"
	"github.com/theirongolddev/cclog/internal/transcript"
)

// Rollup is everything the project index stores about a set of entries.
type Rollup struct {
	Sessions           map[string]model.SessionSummary
	Aggregates         model.ProjectAggregates
	WorkingDirectories []string
}

// Summarize computes session summaries, project totals and working
// directories from the full, chronologically ordered entry list of a project.
//
// Token usage is counted once per API response: entries are keyed by
// requestId, falling back to message.id, and later copies of a key are
// ignored. Summary records are attributed to the session of their leaf
// message, preferring the session of an assistant message when the same uuid
// appears in several sessions.
func Summarize(entries []transcript.Entry) Rollup {
	out := Rollup{
		Sessions:   make(map[string]model.SessionSummary),
		Aggregates: model.ProjectAggregates{MessageCount: len(entries)},
	}

	titles := resolveSummaries(entries)

	var (
		seenProject   = make(map[string]struct{})
		seenSession   = make(map[string]map[string]struct{})
		dirs          = make(map[string]struct{})
		earliest      time.Time
		latest        time.Time
		earliestStamp string
		latestStamp   string
	)

	for _, e := range entries {
		if cwd, ok := transcript.Cwd(e); ok {
			dirs[cwd] = struct{}{}
		}

		ts, hasTS := transcript.Timestamp(e)
		var at time.Time
		if hasTS {
			if t, err := daterange.ParseTimestamp(ts); err == nil {
				at = t
				if earliest.IsZero() || t.Before(earliest) {
					earliest, earliestStamp = t, ts
				}
				if latest.IsZero() || t.After(latest) {
					latest, latestStamp = t, ts
				}
			}
		}

		usage, key := responseUsage(e)
		if usage != nil && !seen(seenProject, key) {
			out.Aggregates.TokenUsage.Add(*usage)
		}

		sid, ok := transcript.SessionID(e)
		if !ok {
			continue
		}
		s, exists := out.Sessions[sid]
		if !exists {
			s = model.SessionSummary{SessionID: sid, FirstTimestamp: ts, LastTimestamp: ts}
			seenSession[sid] = make(map[string]struct{})
		}
		s.MessageCount++
		if hasTS {
			s.FirstTimestamp, s.LastTimestamp = widenSpan(s.FirstTimestamp, s.LastTimestamp, ts, at)
		}
		if s.Cwd == "" {
			s.Cwd, _ = transcript.Cwd(e)
		}
		if s.FirstUserMessage == "" {
			if u, ok := e.(*transcript.UserEntry); ok && !transcript.IsMeta(e) {
				s.FirstUserMessage = Preview(u.Message.Content.PlainText())
			}
		}
		if usage != nil && !seen(seenSession[sid], key) {
			s.TokenUsage.Add(*usage)
		}
		out.Sessions[sid] = s
	}

	for sid, title := range titles {
		if s, ok := out.Sessions[sid]; ok {
			t := title
			s.Summary = &t
			out.Sessions[sid] = s
		}
	}

	out.Aggregates.EarliestTimestamp = earliestStamp
	out.Aggregates.LatestTimestamp = latestStamp

	out.WorkingDirectories = make([]string, 0, len(dirs))
	for d := range dirs {
		out.WorkingDirectories = append(out.WorkingDirectories, d)
	}
	sort.Strings(out.WorkingDirectories)
	return out
}

// resolveSummaries maps session ids to summary text via each summary's leaf
// uuid. Assistant-authored uuids win; other uuids only fill sessions that
// have no summary yet.
func resolveSummaries(entries []transcript.Entry) map[string]string {
	byAssistant := make(map[string]string)
	byOther := make(map[string]string)
	for _, e := range entries {
		uuid, ok := transcript.UUID(e)
		if !ok {
			continue
		}
		sid, ok := transcript.SessionID(e)
		if !ok {
			continue
		}
		if e.Kind() == transcript.KindAssistant {
			byAssistant[uuid] = sid
		} else {
			byOther[uuid] = sid
		}
	}

	titles := make(map[string]string)
	for _, e := range entries {
		s, ok := e.(*transcript.SummaryEntry)
		if !ok {
			continue
		}
		if sid, ok := byAssistant[s.LeafUUID]; ok {
			titles[sid] = s.Summary
		} else if sid, ok := byOther[s.LeafUUID]; ok {
			if _, taken := titles[sid]; !taken {
				titles[sid] = s.Summary
			}
		}
	}
	return titles
}

// responseUsage returns the token usage of an assistant entry and the key
// identifying its API response. An empty key never dedupes.
func responseUsage(e transcript.Entry) (*model.TokenUsage, string) {
	a, ok := e.(*transcript.AssistantEntry)
	if !ok || a.Message.Usage == nil {
		return nil, ""
	}
	u := a.Message.Usage
	key := a.RequestID
	if key == "" {
		key = a.Message.ID
	}
	return &model.TokenUsage{
		InputTokens:         u.InputTokens,
		OutputTokens:        u.OutputTokens,
		CacheCreationTokens: u.CacheCreationInputTokens,
		CacheReadTokens:     u.CacheReadInputTokens,
	}, key
}

// seen records key in set and reports whether it was already there.
func seen(set map[string]struct{}, key string) bool {
	if key == "" {
		return false
	}
	if _, ok := set[key]; ok {
		return true
	}
	set[key] = struct{}{}
	return false
}

func widenSpan(first, last, ts string, at time.Time) (string, string) {
	if at.IsZero() {
		return first, last
	}
	if f, err := daterange.ParseTimestamp(first); first == "" || (err == nil && at.Before(f)) {
		first = ts
	}
	if l, err := daterange.ParseTimestamp(last); last == "" || (err == nil && at.After(l)) {
		last = ts
	}
	return first, last
}

// SortSessions returns the sessions ordered by last activity, newest first.
func SortSessions(sessions map[string]model.SessionSummary) []model.SessionSummary {
	out := make([]model.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastTimestamp != out[j].LastTimestamp {
			return out[i].LastTimestamp > out[j].LastTimestamp
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

// SessionsInRange keeps the sessions whose activity overlaps r. Sessions
// with unparseable timestamps are kept.
func SessionsInRange(sessions []model.SessionSummary, r daterange.Range) []model.SessionSummary {
	if r.IsZero() {
		return sessions
	}
	var out []model.SessionSummary
	for _, s := range sessions {
		first, errFirst := daterange.ParseTimestamp(s.FirstTimestamp)
		last, errLast := daterange.ParseTimestamp(s.LastTimestamp)
		if errFirst != nil || errLast != nil || r.Overlaps(first, last) {
			out = append(out, s)
		}
	}
	return out
}

// FilterSessions returns sessions whose title, id or working directory
// contains query.
func FilterSessions(sessions []model.SessionSummary, query string) []model.SessionSummary {
	if query == "" {
		return sessions
	}
	var out []model.SessionSummary
	for _, s := range sessions {
		if containsIgnoreCase(s.Title(), query) ||
			containsIgnoreCase(s.SessionID, query) ||
			containsIgnoreCase(s.Cwd, query) {
			out = append(out, s)
		}
	}
	return out
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

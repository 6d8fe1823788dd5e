package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/theirongolddev/cclog/internal/daterange"
	"github.com/theirongolddev/cclog/internal/model"
	"github.com/theirongolddev/cclog/internal/transcript"
)

// NoTimestampKey buckets records without a timestamp, such as summaries.
// The bucket is returned by every date-filtered load.
const NoTimestampKey = "_no_timestamp"

// segment maps a timestamp to the encoded records carrying it. Buckets keep
// first-encounter order, and records keep file order within a bucket.
type segment = orderedmap.OrderedMap[string, []json.RawMessage]

// segmentPath maps "<stem>.jsonl" to "cache/<stem>.json". A transcript named
// index.jsonl is stored as index.segment.json so it cannot overwrite the index.
func (c *Cache) segmentPath(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem+".json" == indexName {
		stem += ".segment"
	}
	return filepath.Join(c.dir, stem+".json")
}

func buildSegment(entries []transcript.Entry) (*segment, []string, error) {
	seg := orderedmap.New[string, []json.RawMessage]()
	sessions := make(map[string]struct{})

	for _, e := range entries {
		raw, err := transcript.Encode(e)
		if err != nil {
			return nil, nil, err
		}
		key, ok := transcript.Timestamp(e)
		if !ok {
			key = NoTimestampKey
		}
		bucket, _ := seg.Get(key)
		seg.Set(key, append(bucket, raw))

		if sid, ok := transcript.SessionID(e); ok {
			sessions[sid] = struct{}{}
		}
	}

	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return seg, ids, nil
}

// Save writes the segment for path and records a fresh descriptor in the
// index. On failure the previous segment and index stay on disk unchanged.
func (c *Cache) Save(path string, entries []transcript.Entry) error {
	if err := c.save(path, entries); err != nil {
		c.logger.Warn("failed to save cache segment", "file", path, "error", err)
		return err
	}
	return nil
}

func (c *Cache) save(path string, entries []transcript.Entry) error {
	seg, sessionIDs, err := buildSegment(entries)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(seg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding segment: %w", err)
	}

	segPath := c.segmentPath(path)
	if err := writeFileAtomic(segPath, data, 0o600); err != nil {
		return fmt.Errorf("writing segment: %w", err)
	}

	srcInfo, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	segInfo, err := os.Stat(segPath)
	if err != nil {
		return fmt.Errorf("stat segment: %w", err)
	}

	return c.update(func(idx *model.ProjectIndex) {
		idx.CachedFiles[filepath.Base(path)] = model.CachedFile{
			FilePath:     path,
			SourceMtime:  mtimeSeconds(srcInfo.ModTime()),
			CachedMtime:  mtimeSeconds(segInfo.ModTime()),
			MessageCount: len(entries),
			SessionIDs:   sessionIDs,
		}
	})
}

func (c *Cache) readSegment(path string) (*segment, error) {
	data, err := os.ReadFile(c.segmentPath(path))
	if err != nil {
		return nil, err
	}
	seg := orderedmap.New[string, []json.RawMessage]()
	if err := json.Unmarshal(data, seg); err != nil {
		return nil, err
	}
	return seg, nil
}

// Load returns the cached entries for path. ok is false on a cache miss,
// including when the segment cannot be decoded.
//
// Entries come back grouped by timestamp bucket, buckets in order of first
// appearance. This is file order unless a timestamp recurs after a different
// one: [a@T1, b@T2, c@T1] loads as [a, c, b].
func (c *Cache) Load(path string) (entries []transcript.Entry, ok bool) {
	return c.LoadFiltered(path, daterange.Range{})
}

// LoadFiltered is Load restricted to buckets whose timestamp falls in r.
// Timestamp-less records are always returned, as are buckets whose key does
// not parse. Records in excluded buckets are never decoded.
func (c *Cache) LoadFiltered(path string, r daterange.Range) (entries []transcript.Entry, ok bool) {
	if !c.IsCached(path) {
		return nil, false
	}
	seg, err := c.readSegment(path)
	if err != nil {
		c.logger.Warn("unreadable cache segment, treating as miss", "file", path, "error", err)
		return nil, false
	}

	entries = make([]transcript.Entry, 0, seg.Len())
	for pair := seg.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key != NoTimestampKey && !r.ContainsString(pair.Key) {
			continue
		}
		for _, raw := range pair.Value {
			e, err := transcript.Decode(raw)
			if err != nil {
				c.logger.Warn("undecodable cached record, treating as miss", "file", path, "error", err)
				return nil, false
			}
			entries = append(entries, e)
		}
	}
	return entries, true
}

// Package source discovers Claude Code JSONL transcripts and parses them into
// transcript entries.
package source

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/theirongolddev/cclog/internal/transcript"
)

// maxLineSize bounds a single JSONL record. Records carrying pasted images
// can run to several megabytes.
const maxLineSize = 32 * 1024 * 1024

// ParseResult holds the output of parsing a single JSONL file.
type ParseResult struct {
	Entries     []transcript.Entry
	Skipped     int // lines of a kind we do not model (system, progress, snapshots)
	ParseErrors int // lines of a modelled kind that failed to decode
	Err         error
}

// ParseFile reads a JSONL transcript and decodes every user, assistant and
// summary record, in file order.
//
// Lines are routed by their top-level "type" field, found with a byte probe so
// records of other kinds are skipped without a JSON decode. Blank lines are
// ignored; malformed records are counted and skipped.
func ParseFile(path string) ParseResult {
	f, err := os.Open(path)
	if err != nil {
		return ParseResult{Err: err}
	}
	defer func() { _ = f.Close() }()

	var res ParseResult

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if transcript.Probe(line) == "" {
			res.Skipped++
			continue
		}
		e, err := transcript.Decode(line)
		if err != nil {
			res.ParseErrors++
			continue
		}
		res.Entries = append(res.Entries, e)
	}

	if err := scanner.Err(); err != nil {
		return ParseResult{Err: err}
	}
	return res
}

// Parser adapts ParseFile to the reconciler's collaborator interface and
// reports decode problems through a structured logger.
type Parser struct {
	Logger *slog.Logger
}

// ParseFile parses path. Per-line decode failures are logged, not returned.
func (p Parser) ParseFile(path string) ([]transcript.Entry, error) {
	res := ParseFile(path)
	if res.Err != nil {
		if errors.Is(res.Err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("parsing %s: record larger than %d bytes: %w", path, maxLineSize, res.Err)
		}
		return nil, fmt.Errorf("parsing %s: %w", path, res.Err)
	}
	if res.ParseErrors > 0 {
		p.logger().Warn("skipped malformed transcript records",
			"file", path, "count", res.ParseErrors)
	}
	if res.Skipped > 0 {
		p.logger().Debug("skipped unmodelled transcript records",
			"file", path, "count", res.Skipped)
	}
	return res.Entries, nil
}

func (p Parser) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

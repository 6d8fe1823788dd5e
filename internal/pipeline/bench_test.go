package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/theirongolddev/cclog/internal/daterange"
	"github.com/theirongolddev/cclog/internal/source"
	"github.com/theirongolddev/cclog/internal/store"
)

// benchProject writes files transcripts of turns prompt/reply pairs each.
func benchProject(b *testing.B, files, turns int) string {
	b.Helper()
	dir := b.TempDir()
	for f := 0; f < files; f++ {
		sid := fmt.Sprintf("bench-%03d", f)
		var lines []string
		for i := 0; i < turns; i++ {
			lines = append(lines, pair(sid, i, i%60)...)
		}
		path := filepath.Join(dir, sid+".jsonl")
		if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
			b.Fatal(err)
		}
	}
	return dir
}

func BenchmarkLoad(b *testing.B) {
	dir := benchProject(b, 20, 200)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Load(dir, daterange.Range{}, source.Parser{}, 0, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParseFile(b *testing.B) {
	dir := benchProject(b, 1, 2000)
	files, err := source.ScanDir(dir)
	if err != nil {
		b.Fatal(err)
	}

	b.Logf("Benchmarking %s (%.1f KB)", files[0].Name, float64(files[0].Size)/1024)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		result := source.ParseFile(files[0].Path)
		if result.Err != nil {
			b.Fatal(result.Err)
		}
	}
}

func BenchmarkLoadEntriesWarm(b *testing.B) {
	dir := benchProject(b, 20, 200)
	cache, err := store.Open(dir, store.Options{Version: "1.0.0"})
	if err != nil {
		b.Fatal(err)
	}
	rec := NewReconciler(cache, source.Parser{}, Options{})
	if _, err := rec.EnsureFresh(dir, daterange.Range{}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := rec.LoadEntries(dir, daterange.Range{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEnsureFreshUnchanged(b *testing.B) {
	dir := benchProject(b, 20, 200)
	cache, err := store.Open(dir, store.Options{Version: "1.0.0"})
	if err != nil {
		b.Fatal(err)
	}
	rec := NewReconciler(cache, source.Parser{}, Options{})
	if _, err := rec.EnsureFresh(dir, daterange.Range{}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := rec.EnsureFresh(dir, daterange.Range{}); err != nil {
			b.Fatal(err)
		}
	}
}

package agent

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const maxFindResults = 500

func readFile(_ context.Context, args Args) string {
	path, ok := args.String("filepath")
	if !ok {
		return missingParam("filepath")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("Error reading file '%s': %v", path, err)
	}
	return string(data)
}

func writeFile(_ context.Context, args Args) string {
	path, ok := args.String("filepath")
	if !ok {
		return missingParam("filepath")
	}
	content, ok := args.Raw("content")
	if !ok {
		return missingParam("content")
	}

	var previous string
	if old, err := os.ReadFile(path); err == nil {
		previous = string(old)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Sprintf("Error writing to file '%s': %v", path, err)
	}

	added, removed := lineDiffStat(previous, content)
	return fmt.Sprintf("Successfully written to %s (+%d -%d lines)", path, added, removed)
}

// lineDiffStat counts inserted and deleted lines between two texts.
func lineDiffStat(before, after string) (added, removed int) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

func listDirectory(_ context.Context, args Args) string {
	dir, ok := args.String("dirpath")
	if !ok {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Sprintf("Error listing directory '%s': %v", dir, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Contents of %s:\n", dir)
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Fprintf(&b, "  [DIR]  %s/\n", entry.Name())
			continue
		}
		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(&b, "  [FILE] %s (unknown size)\n", entry.Name())
			continue
		}
		fmt.Fprintf(&b, "  [FILE] %s (%d bytes)\n", entry.Name(), info.Size())
	}
	return b.String()
}

func findFiles(_ context.Context, args Args) string {
	pattern, ok := args.String("pattern")
	if !ok {
		return missingParam("pattern")
	}
	root, ok := args.String("root")
	if !ok {
		root = "."
	}
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Sprintf("Error: invalid glob pattern '%s'", pattern)
	}

	var matches []string
	err := doublestar.GlobWalk(os.DirFS(root), pattern, func(path string, d fs.DirEntry) error {
		matches = append(matches, filepath.Join(root, filepath.FromSlash(path)))
		if len(matches) >= maxFindResults {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return fmt.Sprintf("Error finding files in '%s': %v", root, err)
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No files matching '%s' under %s", pattern, root)
	}

	out := strings.Join(matches, "\n")
	if len(matches) >= maxFindResults {
		out += fmt.Sprintf("\n... [stopped after %d matches]", maxFindResults)
	}
	return out
}

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"escaperoom.ai/internal/persistence/journal"
	"escaperoom.ai/internal/room"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "journal":
			journalCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "health":
			healthCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func journalFiles(dataDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dataDir, "dispatch", "dispatch-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	files, err := journalFiles(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "glob:", err)
		os.Exit(1)
	}
	for _, f := range files {
		fmt.Println(filepath.Base(f))
	}
}

func journalCmd(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	kind := fs.String("kind", "", "only records of this command kind")
	failed := fs.Bool("failed", false, "only failed records")
	_ = fs.Parse(args)

	files := fs.Args()
	if len(files) == 0 {
		var err error
		files, err = journalFiles(*dataDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "glob:", err)
			os.Exit(1)
		}
	}

	total, shown := 0, 0
	for _, path := range files {
		recs, err := journal.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		for _, r := range recs {
			total++
			if *kind != "" && string(r.Kind) != strings.TrimSpace(*kind) {
				continue
			}
			if *failed && r.Status != room.StatusFailed {
				continue
			}
			shown++
			fmt.Println(formatRecord(r))
		}
	}
	fmt.Printf("records=%d shown=%d files=%d\n", total, shown, len(files))
}

func formatRecord(r room.DispatchRecord) string {
	line := fmt.Sprintf("%s %-14s entity=%-10s status=%-6s facts=%d dur=%dms id=%s",
		r.StartedAt.Format("2006-01-02T15:04:05.000"), r.Kind, r.Entity, r.Status, r.Facts, r.DurationMS, r.ID)
	if r.TxHash != "" {
		line += " tx=" + r.TxHash
	}
	if r.Error != "" {
		line += fmt.Sprintf(" err=%q", r.Error)
	}
	return line
}

package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	persistlog "idlerealm.ai/internal/persistence/log"
)

func journalCmd(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	dataDir, userID, characterID := characterFlags(fs)
	since := fs.Duration("since", 24*time.Hour, "only entries newer than this")
	kind := fs.String("kind", "", "only entries of this kind (action|notification)")
	_ = fs.Parse(args)
	requireCharacter(*userID, *characterID)

	entries, err := readJournal(filepath.Join(*dataDir, "journal"), *userID, *characterID, time.Now().Add(-*since))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read journal:", err)
		os.Exit(1)
	}
	printJournal(os.Stdout, entries, *kind)
}

// readJournal scans every hourly segment in dir, oldest first, and keeps one
// character's entries at or after since.
func readJournal(dir, userID, characterID string, since time.Time) ([]persistlog.Entry, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "journal-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var out []persistlog.Entry
	for _, name := range names {
		if err := scanSegment(filepath.Join(dir, name), func(e persistlog.Entry) {
			if e.UserID == userID && e.CharacterID == characterID && !e.At.Before(since) {
				out = append(out, e)
			}
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanSegment(path string, fn func(persistlog.Entry)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e persistlog.Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		fn(e)
	}
	return sc.Err()
}

func printJournal(w io.Writer, entries []persistlog.Entry, kind string) {
	for _, e := range entries {
		if kind != "" && e.Kind != kind {
			continue
		}
		fmt.Fprintf(w, "%s %-12s %s\n", e.At.Format(time.RFC3339), e.Kind, e.Message)
	}
}

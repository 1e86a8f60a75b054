package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/caarlos0/env/v11"

	"idlerealm.ai/internal/persistence/localdb"
	"idlerealm.ai/internal/persistence/merge"
	"idlerealm.ai/internal/protocol"
	"idlerealm.ai/internal/sim/catalogs"
	"idlerealm.ai/internal/sim/rules"
	"idlerealm.ai/internal/sim/tuning"
)

type adminEnv struct {
	DataDir string `env:"DATA_DIR"`
}

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "dump":
			dumpCmd(os.Args[2:])
			return
		case "clear":
			clearCmd(os.Args[2:])
			return
		case "preview":
			previewCmd(os.Args[2:])
			return
		case "journal":
			journalCmd(os.Args[2:])
			return
		case "metrics":
			metricsCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// defaultDataDir honours IDLE_DATA_DIR so the tool finds the same store as
// the server.
func defaultDataDir() string {
	var e adminEnv
	if err := env.ParseWithOptions(&e, env.Options{Prefix: "IDLE_"}); err == nil && strings.TrimSpace(e.DataDir) != "" {
		return e.DataDir
	}
	return "./data"
}

func openStore(dataDir string) *localdb.Store {
	st, err := localdb.Open(filepath.Join(dataDir, "saves.sqlite"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return st
}

func characterFlags(fs *flag.FlagSet) (dataDir, userID, characterID *string) {
	dataDir = fs.String("data", defaultDataDir(), "runtime data directory")
	userID = fs.String("user", "", "user id")
	characterID = fs.String("char", "", "character id")
	return
}

func requireCharacter(userID, characterID string) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(characterID) == "" {
		fmt.Fprintln(os.Stderr, "missing -user or -char")
		os.Exit(2)
	}
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", defaultDataDir(), "runtime data directory")
	_ = fs.Parse(args)

	st := openStore(*dataDir)
	defer st.Close()
	if err := listSaves(context.Background(), st, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
}

func listSaves(ctx context.Context, st *localdb.Store, w io.Writer) error {
	entries, err := st.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tCHARACTER\tLAST SAVED\tBYTES")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.UserID, e.CharacterID, e.LastSaved.Format(time.RFC3339), e.Bytes)
	}
	return tw.Flush()
}

func dumpCmd(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	dataDir, userID, characterID := characterFlags(fs)
	merged := fs.Bool("merged", false, "print the save merged onto the current default state")
	_ = fs.Parse(args)
	requireCharacter(*userID, *characterID)

	st := openStore(*dataDir)
	defer st.Close()
	if err := dumpSave(context.Background(), st, *userID, *characterID, *merged, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "dump:", err)
		os.Exit(1)
	}
}

// dumpSave prints one save as indented JSON. The raw document is checked
// against the state schema; a mismatch is reported but still printed.
func dumpSave(ctx context.Context, st *localdb.Store, userID, characterID string, merged bool, w io.Writer) error {
	rec, ok, err := st.Load(ctx, userID, characterID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no save for %s/%s", userID, characterID)
	}
	v, err := protocol.NewValidator()
	if err != nil {
		return err
	}
	if err := v.State(rec.State); err != nil {
		fmt.Fprintf(os.Stderr, "warning: save does not match the state schema: %v\n", err)
	}

	doc := []byte(rec.State)
	if merged {
		cats, err := catalogs.LoadDefault()
		if err != nil {
			return err
		}
		env := rules.Env{Catalogs: cats, Tuning: tuning.Defaults()}
		g, err := merge.State(env.NewGame(), rec.State, cats)
		if err != nil {
			return err
		}
		if doc, err = json.Marshal(&g); err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, doc, "", "  "); err != nil {
		return err
	}
	fmt.Fprintf(w, "# %s/%s last_saved=%s version=%d\n", rec.Header.UserID, rec.Header.CharacterID, rec.Header.LastSaved.Format(time.RFC3339), rec.Header.Version)
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}

func clearCmd(args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	dataDir, userID, characterID := characterFlags(fs)
	_ = fs.Parse(args)
	requireCharacter(*userID, *characterID)

	st := openStore(*dataDir)
	defer st.Close()
	removed, err := st.Clear(context.Background(), *userID, *characterID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "clear:", err)
		os.Exit(1)
	}
	if !removed {
		fmt.Printf("no save for %s/%s\n", *userID, *characterID)
		return
	}
	fmt.Printf("cleared %s/%s\n", *userID, *characterID)
}

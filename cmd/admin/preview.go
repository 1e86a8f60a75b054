package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"idlerealm.ai/internal/flavor"
	"idlerealm.ai/internal/persistence/r2s3"
	"idlerealm.ai/internal/persistence/reconcile"
	"idlerealm.ai/internal/sim/catalogs"
	"idlerealm.ai/internal/sim/rules"
	"idlerealm.ai/internal/sim/tuning"
)

type remoteEnv struct {
	Endpoint        string `env:"ENDPOINT"`
	Bucket          string `env:"BUCKET"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
}

func previewCmd(args []string) {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	dataDir, userID, characterID := characterFlags(fs)
	tuningPath := fs.String("tuning", "", "path to tuning.yaml (default: built-in tuning)")
	at := fs.String("at", "", "RFC3339 time to reconcile up to (default: now)")
	_ = fs.Parse(args)
	requireCharacter(*userID, *characterID)

	tune := tuning.Defaults()
	if tp := strings.TrimSpace(*tuningPath); tp != "" {
		var err error
		if tune, err = tuning.Load(tp); err != nil {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
	}
	now := time.Now()
	if s := strings.TrimSpace(*at); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -at:", err)
			os.Exit(2)
		}
		now = t
	}

	var remote reconcile.Loader
	var re remoteEnv
	if err := env.ParseWithOptions(&re, env.Options{Prefix: "IDLE_R2_"}); err != nil {
		fmt.Fprintln(os.Stderr, "env:", err)
		os.Exit(1)
	}
	if re.Endpoint != "" {
		client, err := r2s3.New(re.Endpoint, re.Bucket, re.AccessKeyID, re.SecretAccessKey)
		if err != nil {
			fmt.Fprintln(os.Stderr, "remote store:", err)
			os.Exit(1)
		}
		remote = r2s3.NewSaves(client)
	}

	st := openStore(*dataDir)
	defer st.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	f := reconcile.Fetch(ctx, st, remote, *userID, *characterID)
	if err := preview(f, tune, now, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "preview:", err)
		os.Exit(1)
	}
}

// preview reports what loading the character at now would produce. Nothing
// is written back.
func preview(f reconcile.Fetched, tune tuning.Tuning, now time.Time, w io.Writer) error {
	cats, err := catalogs.LoadDefault()
	if err != nil {
		return err
	}
	env := rules.Env{
		Catalogs: cats,
		Tuning:   tune,
		Rand:     rules.NewRand(uint64(now.UnixNano())),
		Text:     flavor.English{},
	}
	if f.LocalErr != nil {
		fmt.Fprintf(w, "local:  error: %v\n", f.LocalErr)
	} else if f.Local != nil {
		fmt.Fprintf(w, "local:  last_saved=%s\n", f.Local.Header.LastSaved.Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "local:  none")
	}
	if f.RemoteErr != nil {
		fmt.Fprintf(w, "remote: error: %v\n", f.RemoteErr)
	} else if f.Remote != nil {
		fmt.Fprintf(w, "remote: last_saved=%s\n", f.Remote.Header.LastSaved.Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "remote: none")
	}

	res := reconcile.Resolve(env, f, now)
	for _, err := range res.Rejected {
		fmt.Fprintf(w, "rejected: %v\n", err)
	}
	fmt.Fprintf(w, "winner: %s\n", res.Winner)

	o := res.Offline
	fmt.Fprintf(w, "offline: path=%s elapsed=%s forfeited=%s ticks=%d items=%d xp=%d encounters=%d\n",
		o.Path, o.Elapsed.Round(time.Second), o.Forfeited.Round(time.Second), o.Ticks, o.Items, o.XP, o.Encounter)
	if o.Message != "" {
		fmt.Fprintf(w, "message: %s\n", o.Message)
	}

	g := res.State
	fmt.Fprintf(w, "player: level=%d gold=%d health=%d/%d location=%s\n",
		g.Player.Level, g.Player.Gold, g.Player.Health, g.Player.MaxHealth, g.Player.CurrentLocationID)
	switch {
	case g.CurrentAction != nil:
		fmt.Fprintf(w, "activity: %s %s/%s\n", g.CurrentAction.Kind, g.CurrentAction.SkillID, g.CurrentAction.TargetID)
	case g.CurrentTravel != nil:
		fmt.Fprintf(w, "activity: traveling to %s\n", g.CurrentTravel.DestinationID)
	case g.HuntingSession != nil:
		fmt.Fprintf(w, "activity: hunting in %s\n", g.HuntingSession.LocationID)
	default:
		fmt.Fprintln(w, "activity: idle")
	}
	return nil
}

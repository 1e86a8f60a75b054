package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestOverlayEnvWinsOverFlags(t *testing.T) {
	base := serverConfig{Addr: ":8080", DataDir: "./data"}
	cfg, err := overlayEnv(base, map[string]string{
		"IDLE_ADDR":              ":9090",
		"IDLE_JOURNAL":           "false",
		"IDLE_R2_ENDPOINT":       "https://example.r2.cloudflarestorage.com",
		"IDLE_R2_UPLOAD_WORKERS": "4",
	})
	if err != nil {
		t.Fatalf("overlayEnv: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.DataDir != "./data" {
		t.Fatalf("addr=%q data=%q", cfg.Addr, cfg.DataDir)
	}
	if cfg.Journal || !cfg.Metrics {
		t.Fatalf("journal=%v metrics=%v", cfg.Journal, cfg.Metrics)
	}
	if cfg.Remote.Workers != 4 || cfg.Remote.QueueCapacity != 256 {
		t.Fatalf("remote=%+v", cfg.Remote)
	}
}

func TestOverlayEnvRejectsBadValues(t *testing.T) {
	if _, err := overlayEnv(serverConfig{}, map[string]string{"IDLE_R2_UPLOAD_WORKERS": "many"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestBuildRemote(t *testing.T) {
	r, err := buildRemote(remoteConfig{}, nil)
	if err != nil || r != nil {
		t.Fatalf("unconfigured remote=%v err=%v", r, err)
	}
	r.Close()

	if _, err := buildRemote(remoteConfig{Endpoint: "https://x.example"}, nil); err == nil || !strings.Contains(err.Error(), "IDLE_R2_BUCKET") {
		t.Fatalf("partial config err=%v", err)
	}

	r, err = buildRemote(remoteConfig{
		Endpoint:        "https://x.example",
		Bucket:          "saves",
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
		Workers:         1,
		QueueCapacity:   4,
	}, nil)
	if err != nil || r == nil {
		t.Fatalf("buildRemote: %v", err)
	}
	defer r.Close()

	var buf bytes.Buffer
	writeMirrorMetrics(&buf, r)
	if !strings.Contains(buf.String(), "idlerealm_remote_queue_capacity 4") {
		t.Fatalf("metrics:\n%s", buf.String())
	}
}

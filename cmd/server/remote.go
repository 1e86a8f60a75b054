package main

import (
	"fmt"
	"io"
	"log"

	"idlerealm.ai/internal/persistence/r2s3"
)

type remoteRuntime struct {
	saves  *r2s3.Saves
	mirror *r2s3.Mirror
}

// buildRemote returns nil when no remote store is configured.
func buildRemote(cfg remoteConfig, logger *log.Logger) (*remoteRuntime, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if !cfg.enabled() {
		return nil, nil
	}
	client, err := r2s3.New(cfg.Endpoint, cfg.Bucket, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("remote store: %w", err)
	}
	saves := r2s3.NewSaves(client)
	return &remoteRuntime{
		saves:  saves,
		mirror: r2s3.NewMirror(saves, cfg.Workers, cfg.QueueCapacity, logger),
	}, nil
}

func (r *remoteRuntime) Close() {
	if r == nil {
		return
	}
	r.mirror.Close()
}

func writeMirrorMetrics(w io.Writer, r *remoteRuntime) {
	if r == nil {
		return
	}
	s := r.mirror.Stats()
	fmt.Fprintf(w, "# HELP idlerealm_remote_queue_depth Saves waiting for upload.\n")
	fmt.Fprintf(w, "# TYPE idlerealm_remote_queue_depth gauge\n")
	fmt.Fprintf(w, "idlerealm_remote_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(w, "# HELP idlerealm_remote_queue_capacity Upload queue capacity.\n")
	fmt.Fprintf(w, "# TYPE idlerealm_remote_queue_capacity gauge\n")
	fmt.Fprintf(w, "idlerealm_remote_queue_capacity %d\n", s.QueueCapacity)

	fmt.Fprintf(w, "# HELP idlerealm_remote_enqueued_total Total upload requests.\n")
	fmt.Fprintf(w, "# TYPE idlerealm_remote_enqueued_total counter\n")
	fmt.Fprintf(w, "idlerealm_remote_enqueued_total %d\n", s.EnqueuedTotal)

	fmt.Fprintf(w, "# HELP idlerealm_remote_dropped_total Uploads dropped on a full queue.\n")
	fmt.Fprintf(w, "# TYPE idlerealm_remote_dropped_total counter\n")
	fmt.Fprintf(w, "idlerealm_remote_dropped_total %d\n", s.DroppedTotal)

	fmt.Fprintf(w, "# HELP idlerealm_remote_upload_success_total Successful uploads.\n")
	fmt.Fprintf(w, "# TYPE idlerealm_remote_upload_success_total counter\n")
	fmt.Fprintf(w, "idlerealm_remote_upload_success_total %d\n", s.UploadSuccessTotal)

	fmt.Fprintf(w, "# HELP idlerealm_remote_upload_fail_total Uploads that failed after retry.\n")
	fmt.Fprintf(w, "# TYPE idlerealm_remote_upload_fail_total counter\n")
	fmt.Fprintf(w, "idlerealm_remote_upload_fail_total %d\n", s.UploadFailTotal)

	fmt.Fprintf(w, "# HELP idlerealm_remote_last_success_unix Unix time of the last successful upload.\n")
	fmt.Fprintf(w, "# TYPE idlerealm_remote_last_success_unix gauge\n")
	fmt.Fprintf(w, "idlerealm_remote_last_success_unix %d\n", s.LastSuccessUnix)

	fmt.Fprintf(w, "# HELP idlerealm_remote_last_error_unix Unix time of the last failed upload.\n")
	fmt.Fprintf(w, "# TYPE idlerealm_remote_last_error_unix gauge\n")
	fmt.Fprintf(w, "idlerealm_remote_last_error_unix %d\n", s.LastErrorUnix)
}

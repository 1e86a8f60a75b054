// Package configs embeds the default static content and tuning so the server
// and tests can run without a config directory on disk.
package configs

import "embed"

//go:embed *.json tuning.yaml
var FS embed.FS

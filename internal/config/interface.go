package config

import (
	"context"
)

// Loader is the interface for a format-specific topology loader. Load reads
// a topology document from a file or directory of files and translates it
// into the format-agnostic model. Any malformation is reported as a
// configuration error before any traffic is accepted.
type Loader interface {
	Load(ctx context.Context, path string) (*Model, error)
}

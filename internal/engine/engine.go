package engine

import (
	"context"
	"errors"
)

// ErrRejected indicates the extraction engine refused the input itself, for
// example an unsupported URL or an impossible format request. Jobs hitting it
// are failed rather than errored.
var ErrRejected = errors.New("extraction rejected")

// Request describes a single resolve-and-fetch invocation.
type Request struct {
	SourceURL string
	Format    string
	Quality   string
	DestDir   string
}

// Result carries what the engine learned about the fetched media.
type Result struct {
	Title      string
	ByteSize   int64
	OutputPath string
}

// Resolver turns a URL plus format/quality selectors into a downloaded file.
// Implementations may take seconds to minutes and must honor ctx cancellation.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (*Result, error)
}

package syncer

import (
	"context"

	"github.com/jobops/jobops/internal/remote"
	"github.com/jobops/jobops/internal/types"
)

// Mirror is the remote endpoint. *remote.Client implements it.
type Mirror interface {
	// FetchAll returns the authoritative record list.
	FetchAll(ctx context.Context) ([]types.JobApplication, error)

	// Send relays one mutation.
	Send(ctx context.Context, r remote.Request) error
}

// Source names where Load took the initial collection from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
	SourceSeed   Source = "seed"
	SourceEmpty  Source = "empty"
)

// RelayResult describes one finished relay.
type RelayResult struct {
	Action string
	ID     string
	Err    error
}

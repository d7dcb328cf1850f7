package store

import (
	"context"
	"errors"

	"github.com/yourorg/specsync/pkg/types"
)

var (
	// ErrNotFound is returned when a lookup or mutation matches no record.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest is returned when a query is missing data it needs.
	ErrBadRequest = errors.New("bad request")
)

type Store interface {
	CreateRun(run *types.Run) error
	GetRun(id string) (*types.Run, error)
	ListRuns(limit int) ([]types.Run, error)
	DeleteRun(id string) error
	// LastSuccessfulRun returns the newest ok or unchanged run that wrote outputPath.
	LastSuccessfulRun(outputPath string) (*types.Run, error)

	Execute(ctx context.Context, q Query) (*Result, error)

	Close() error
}

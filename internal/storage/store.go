package storage

import (
	"context"

	"paralogos/internal/model"
	"paralogos/internal/tree"
)

// Tree stages a run persists.
const (
	StageRaw        = "raw"
	StageObservable = "observable"
)

// Store defines persistence for runs and their gene trees.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, bool, error)
	ListRuns(ctx context.Context) ([]model.Run, error)
	DeleteRun(ctx context.Context, id string) error
	SaveTree(ctx context.Context, runID string, family int, stage string, t *tree.Tree) error
	GetTree(ctx context.Context, runID string, family int, stage string) (*tree.Tree, bool, error)
}

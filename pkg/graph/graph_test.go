package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/levuro/jobqueue/pkg/core"
	"github.com/levuro/jobqueue/pkg/graph"
	"github.com/levuro/jobqueue/pkg/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newStore(t *testing.T) core.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	store := storage.NewGormStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func insertJob(t *testing.T, ctx context.Context, store core.Store, command string) *core.Job {
	t.Helper()
	job := &core.Job{Command: command, Queue: core.DefaultQueue, State: core.StatePending}
	require.NoError(t, store.Insert(ctx, job))
	return job
}

func TestGraph_IncomingOutgoing(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	g := graph.New(store)

	extract := insertJob(t, ctx, store, "app:extract")
	transform := insertJob(t, ctx, store, "app:transform")
	load := insertJob(t, ctx, store, "app:load")

	require.NoError(t, store.InsertDependency(ctx, core.Dependency{SourceJobID: extract.ID, DestJobID: transform.ID}))
	require.NoError(t, store.InsertDependency(ctx, core.Dependency{SourceJobID: transform.ID, DestJobID: load.ID}))

	incoming, err := g.Incoming(ctx, load)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	require.Equal(t, transform.ID, incoming[0].ID)

	outgoing, err := g.Outgoing(ctx, extract)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	require.Equal(t, transform.ID, outgoing[0].ID)
}

func TestGraph_NoEdges(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	g := graph.New(store)

	solo := insertJob(t, ctx, store, "app:solo")

	incoming, err := g.Incoming(ctx, solo)
	require.NoError(t, err)
	require.Empty(t, incoming)

	outgoing, err := g.Outgoing(ctx, solo)
	require.NoError(t, err)
	require.Empty(t, outgoing)
}

func TestGraph_DiamondShape(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	g := graph.New(store)

	top := insertJob(t, ctx, store, "app:top")
	left := insertJob(t, ctx, store, "app:left")
	right := insertJob(t, ctx, store, "app:right")
	bottom := insertJob(t, ctx, store, "app:bottom")

	require.NoError(t, store.InsertDependency(ctx, core.Dependency{SourceJobID: top.ID, DestJobID: left.ID}))
	require.NoError(t, store.InsertDependency(ctx, core.Dependency{SourceJobID: top.ID, DestJobID: right.ID}))
	require.NoError(t, store.InsertDependency(ctx, core.Dependency{SourceJobID: left.ID, DestJobID: bottom.ID}))
	require.NoError(t, store.InsertDependency(ctx, core.Dependency{SourceJobID: right.ID, DestJobID: bottom.ID}))

	incoming, err := g.Incoming(ctx, bottom)
	require.NoError(t, err)
	require.Len(t, incoming, 2)

	outgoing, err := g.Outgoing(ctx, top)
	require.NoError(t, err)
	require.Len(t, outgoing, 2)
}

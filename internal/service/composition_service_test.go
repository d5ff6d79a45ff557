package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumekit/internal/blocktype"
	"resumekit/internal/domain"
	"resumekit/internal/service"
)

// ─────────────────────────────────────────────────────────────
// CompositionService unit tests
// ─────────────────────────────────────────────────────────────

func newComposition(t *testing.T, gw *mockGateway) *service.CompositionService {
	t.Helper()
	registry := blocktype.NewBuiltinRegistry(zerolog.Nop())
	return service.NewCompositionService(registry, gw, &service.MockEmitter{}, zerolog.Nop(), 0)
}

func intPtr(v int) *int { return &v }

// assertDense verifies the density invariant: positions are exactly 0..n-1.
func assertDense(t *testing.T, links []domain.BlockLink) {
	t.Helper()
	seen := make(map[int]string, len(links))
	for _, l := range links {
		require.GreaterOrEqual(t, l.Position, 0, "negative position for %s", l.BlockID)
		require.Less(t, l.Position, len(links), "position %d out of range for %s", l.Position, l.BlockID)
		prev, dup := seen[l.Position]
		require.False(t, dup, "position %d held by both %s and %s", l.Position, prev, l.BlockID)
		seen[l.Position] = l.BlockID
	}
}

func order(links []domain.BlockLink) []string {
	out := make([]string, len(links))
	for _, l := range links {
		out[l.Position] = l.BlockID
	}
	return out
}

func TestCompositionService_AddAppendsAndMoves(t *testing.T) {
	gw := newMockGateway()
	svc := newComposition(t, gw)
	ctx := context.Background()

	links, err := svc.Add(ctx, "doc1", "blockA", domain.BlockTypeContact, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"blockA"}, order(links))

	links, err = svc.Add(ctx, "doc1", "blockB", domain.BlockTypeSkill, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"blockA", "blockB"}, order(links))

	links, err = svc.Move(ctx, "doc1", "blockA", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"blockB", "blockA"}, order(links))
	assertDense(t, links)

	// Storage saw the same ordering.
	assert.Equal(t, []string{"blockB", "blockA"}, order(gw.storedLinks("doc1")))
}

func TestCompositionService_AddAtPositionShiftsUp(t *testing.T) {
	gw := newMockGateway()
	svc := newComposition(t, gw)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := svc.Add(ctx, "doc1", id, domain.BlockTypeSkill, nil)
		require.NoError(t, err)
	}

	links, err := svc.Add(ctx, "doc1", "x", domain.BlockTypeSkill, intPtr(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "x", "b", "c"}, order(links))
	assertDense(t, links)

	// Storage shifted too: the durable positions match the engine's and a
	// cold reload sees the same ordering.
	stored := gw.storedLinks("doc1")
	assertDense(t, stored)
	assert.Equal(t, []string{"a", "x", "b", "c"}, order(stored))

	svc.Invalidate("doc1")
	comp, err := svc.List(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "x", "b", "c"}, order(comp.Links))
}

func TestCompositionService_ReplaceBlockKeepsDurablePositions(t *testing.T) {
	gw := newMockGateway()
	svc := newComposition(t, gw)
	ctx := context.Background()

	for _, id := range []string{"shared", "mid", "tail"} {
		_, err := svc.Add(ctx, "doc1", id, domain.BlockTypeSkill, nil)
		require.NoError(t, err)
	}

	gw.seed("copy", domain.BlockTypeSkill, "user1", domain.Payload{})
	require.NoError(t, svc.ReplaceBlock(ctx, "doc1", "shared", "copy"))

	stored := gw.storedLinks("doc1")
	assertDense(t, stored)
	assert.Equal(t, []string{"copy", "mid", "tail"}, order(stored))

	// A cold reload from storage agrees with the engine.
	svc.Invalidate("doc1")
	comp, err := svc.List(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, []string{"copy", "mid", "tail"}, order(comp.Links))
	assertDense(t, comp.Links)
}

func TestCompositionService_AddRejectsBadPosition(t *testing.T) {
	svc := newComposition(t, newMockGateway())
	ctx := context.Background()

	_, err := svc.Add(ctx, "doc1", "a", domain.BlockTypeSkill, intPtr(1))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.Add(ctx, "doc1", "a", domain.BlockTypeSkill, intPtr(-1))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCompositionService_AddUnregisteredType(t *testing.T) {
	svc := newComposition(t, newMockGateway())

	_, err := svc.Add(context.Background(), "doc1", "a", domain.BlockType("hologram"), nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompositionService_AddDuplicateLink(t *testing.T) {
	svc := newComposition(t, newMockGateway())
	ctx := context.Background()

	_, err := svc.Add(ctx, "doc1", "a", domain.BlockTypeSkill, nil)
	require.NoError(t, err)
	_, err = svc.Add(ctx, "doc1", "a", domain.BlockTypeSkill, nil)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCompositionService_MaxInstancesEnforced(t *testing.T) {
	svc := newComposition(t, newMockGateway())
	ctx := context.Background()

	// contact is capped at one per document
	_, err := svc.Add(ctx, "doc1", "contact1", domain.BlockTypeContact, nil)
	require.NoError(t, err)

	_, err = svc.Add(ctx, "doc1", "contact2", domain.BlockTypeContact, nil)
	assert.ErrorIs(t, err, domain.ErrLimitExceeded)

	// a second document is unaffected
	_, err = svc.Add(ctx, "doc2", "contact2", domain.BlockTypeContact, nil)
	assert.NoError(t, err)
}

func TestCompositionService_MaxBlocksPerDocument(t *testing.T) {
	gw := newMockGateway()
	registry := blocktype.NewBuiltinRegistry(zerolog.Nop())
	svc := service.NewCompositionService(registry, gw, &service.MockEmitter{}, zerolog.Nop(), 2)
	ctx := context.Background()

	_, err := svc.Add(ctx, "doc1", "a", domain.BlockTypeSkill, nil)
	require.NoError(t, err)
	_, err = svc.Add(ctx, "doc1", "b", domain.BlockTypeSkill, nil)
	require.NoError(t, err)
	_, err = svc.Add(ctx, "doc1", "c", domain.BlockTypeSkill, nil)
	assert.ErrorIs(t, err, domain.ErrLimitExceeded)
}

func TestCompositionService_RemoveClosesGap(t *testing.T) {
	gw := newMockGateway()
	svc := newComposition(t, gw)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := svc.Add(ctx, "doc1", id, domain.BlockTypeSkill, nil)
		require.NoError(t, err)
	}

	links, err := svc.Remove(ctx, "doc1", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, order(links))
	assertDense(t, links)
	assert.Equal(t, []string{"a", "c"}, order(gw.storedLinks("doc1")))
}

func TestCompositionService_RemoveMissingLink(t *testing.T) {
	svc := newComposition(t, newMockGateway())

	_, err := svc.Remove(context.Background(), "doc1", "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompositionService_MoveIsANoOpAtSamePosition(t *testing.T) {
	gw := newMockGateway()
	svc := newComposition(t, gw)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := svc.Add(ctx, "doc1", id, domain.BlockTypeSkill, nil)
		require.NoError(t, err)
	}
	before := gw.reorderCalls

	links, err := svc.Move(ctx, "doc1", "b", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order(links))
	assert.Equal(t, before, gw.reorderCalls, "no-op move must not reach the gateway")
}

func TestCompositionService_MoveShiftsBoundedRange(t *testing.T) {
	gw := newMockGateway()
	svc := newComposition(t, gw)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_, err := svc.Add(ctx, "doc1", id, domain.BlockTypeSkill, nil)
		require.NoError(t, err)
	}

	// forward: everything in (0, 3] shifts down
	links, err := svc.Move(ctx, "doc1", "a", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d", "a", "e"}, order(links))
	assertDense(t, links)

	// backward: everything in [1, 3) shifts up
	links, err = svc.Move(ctx, "doc1", "a", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c", "d", "e"}, order(links))
	assertDense(t, links)
}

func TestCompositionService_MoveRejectsOutOfRange(t *testing.T) {
	svc := newComposition(t, newMockGateway())
	ctx := context.Background()

	_, err := svc.Add(ctx, "doc1", "a", domain.BlockTypeSkill, nil)
	require.NoError(t, err)

	_, err = svc.Move(ctx, "doc1", "a", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = svc.Move(ctx, "doc1", "a", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCompositionService_RemoveThenAddRoundTrips(t *testing.T) {
	svc := newComposition(t, newMockGateway())
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := svc.Add(ctx, "doc1", id, domain.BlockTypeSkill, nil)
		require.NoError(t, err)
	}

	_, err := svc.Remove(ctx, "doc1", "b")
	require.NoError(t, err)
	links, err := svc.Add(ctx, "doc1", "b", domain.BlockTypeSkill, intPtr(1))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, order(links))
}

func TestCompositionService_DensityUnderMixedOps(t *testing.T) {
	svc := newComposition(t, newMockGateway())
	ctx := context.Background()

	ids := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range ids {
		_, err := svc.Add(ctx, "doc1", id, domain.BlockTypeSkill, nil)
		require.NoError(t, err)
	}

	steps := []func() ([]domain.BlockLink, error){
		func() ([]domain.BlockLink, error) { return svc.Move(ctx, "doc1", "f", 0) },
		func() ([]domain.BlockLink, error) { return svc.Remove(ctx, "doc1", "c") },
		func() ([]domain.BlockLink, error) { return svc.Add(ctx, "doc1", "g", domain.BlockTypeSkill, intPtr(2)) },
		func() ([]domain.BlockLink, error) { return svc.Move(ctx, "doc1", "a", 4) },
		func() ([]domain.BlockLink, error) { return svc.Remove(ctx, "doc1", "f") },
		func() ([]domain.BlockLink, error) { return svc.Add(ctx, "doc1", "h", domain.BlockTypeSkill, nil) },
		func() ([]domain.BlockLink, error) { return svc.Move(ctx, "doc1", "h", 0) },
	}
	for i, step := range steps {
		links, err := step()
		require.NoError(t, err, "step %d", i)
		assertDense(t, links)
	}
}

func TestCompositionService_GatewayFailureKeepsOptimisticState(t *testing.T) {
	gw := newMockGateway()
	svc := newComposition(t, gw)
	ctx := context.Background()

	_, err := svc.Add(ctx, "doc1", "a", domain.BlockTypeSkill, nil)
	require.NoError(t, err)

	gw.fail(domain.ErrDatabaseError)
	links, err := svc.Add(ctx, "doc1", "b", domain.BlockTypeSkill, nil)

	// The error is surfaced as retryable...
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDatabaseError)
	assert.True(t, domain.IsRetryable(err))

	// ...but the in-memory composition kept the write, flagged dirty.
	require.Len(t, links, 2)
	assert.Equal(t, []string{"a", "b"}, order(links))
	var dirty bool
	for _, l := range links {
		if l.BlockID == "b" {
			dirty = l.Dirty
		}
	}
	assert.True(t, dirty, "unconfirmed link must be marked dirty")

	// Storage never saw it.
	assert.Len(t, gw.storedLinks("doc1"), 1)
}

func TestCompositionService_ReconcileClearsDirtyLinks(t *testing.T) {
	gw := newMockGateway()
	svc := newComposition(t, gw)
	ctx := context.Background()

	_, err := svc.Add(ctx, "doc1", "a", domain.BlockTypeSkill, nil)
	require.NoError(t, err)

	gw.fail(domain.ErrDatabaseError)
	_, err = svc.Add(ctx, "doc1", "b", domain.BlockTypeSkill, nil)
	require.ErrorIs(t, err, domain.ErrDatabaseError)

	// Gateway recovers; the sweep replays the unconfirmed link.
	gw.ok()
	clean := svc.ReconcileAll(ctx)
	assert.Equal(t, 1, clean)

	assert.Equal(t, []string{"a", "b"}, order(gw.storedLinks("doc1")))
	comp, err := svc.List(ctx, "doc1")
	require.NoError(t, err)
	for _, l := range comp.Links {
		assert.False(t, l.Dirty, "link %s still dirty after reconcile", l.BlockID)
	}
}

func TestCompositionService_ReconcileReplaysPendingUnlinks(t *testing.T) {
	gw := newMockGateway()
	svc := newComposition(t, gw)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		_, err := svc.Add(ctx, "doc1", id, domain.BlockTypeSkill, nil)
		require.NoError(t, err)
	}

	gw.fail(domain.ErrDatabaseError)
	_, err := svc.Remove(ctx, "doc1", "a")
	require.ErrorIs(t, err, domain.ErrDatabaseError)
	assert.Len(t, gw.storedLinks("doc1"), 2, "failed unlink must leave storage untouched")

	gw.ok()
	require.NoError(t, svc.ReconcileDocument(ctx, "doc1"))
	assert.Equal(t, []string{"b"}, order(gw.storedLinks("doc1")))
}

func TestCompositionService_ListReturnsIndependentSnapshot(t *testing.T) {
	svc := newComposition(t, newMockGateway())
	ctx := context.Background()

	_, err := svc.Add(ctx, "doc1", "a", domain.BlockTypeSkill, nil)
	require.NoError(t, err)

	comp, err := svc.List(ctx, "doc1")
	require.NoError(t, err)
	comp.Links[0].Position = 99

	again, err := svc.List(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Links[0].Position)
}

func TestCompositionService_DocumentsAreIndependent(t *testing.T) {
	svc := newComposition(t, newMockGateway())
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, doc := range []string{"doc1", "doc2", "doc3"} {
		doc := doc
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range []string{"a", "b", "c", "d"} {
				_, err := svc.Add(ctx, doc, id, domain.BlockTypeSkill, nil)
				assert.NoError(t, err)
			}
			_, err := svc.Move(ctx, doc, "d", 0)
			assert.NoError(t, err)
			_, err = svc.Remove(ctx, doc, "b")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, doc := range []string{"doc1", "doc2", "doc3"} {
		comp, err := svc.List(ctx, doc)
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "a", "c"}, order(comp.Links))
		assertDense(t, comp.Links)
	}
}

func TestCompositionService_SameDocumentOpsSerialize(t *testing.T) {
	svc := newComposition(t, newMockGateway())
	ctx := context.Background()

	// Concurrent appends to one document: every one succeeds and the result
	// is dense, which only holds if each saw the previous one's table.
	var wg sync.WaitGroup
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Add(ctx, "doc1", id, domain.BlockTypeSkill, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	comp, err := svc.List(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, comp.Links, len(ids))
	assertDense(t, comp.Links)
}

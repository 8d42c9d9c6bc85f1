package graph_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o0olele/regionnav-go/graph"
	"github.com/o0olele/regionnav-go/graph/graphtest"
	"github.com/o0olele/regionnav-go/math32"
)

type countingListener struct {
	begins, ends int
}

func (l *countingListener) MutationBegin() { l.begins++ }
func (l *countingListener) MutationEnd()   { l.ends++ }

func TestRegister_RejectsBadInput(t *testing.T) {
	g := graph.NewRegionGraph()

	err := g.Register(0, graphtest.Corridor(graph.KindVolume, 2, 1), math32.IdentityTransform, 0, uuid.Nil)
	assert.ErrorIs(t, err, graph.ErrInvalidAreaID)

	err = g.Register(1, nil, math32.IdentityTransform, 0, uuid.Nil)
	assert.ErrorIs(t, err, graph.ErrInvalidDataset)

	ds := graphtest.Corridor(graph.KindVolume, 2, 1)
	ds.Regions[1].ID = 7
	err = g.Register(1, ds, math32.IdentityTransform, 0, uuid.Nil)
	assert.ErrorIs(t, err, graph.ErrInvalidDataset)

	err = g.Register(1, graphtest.Corridor(graph.KindVolume, 2, 1), math32.IdentityTransform, 40, uuid.Nil)
	assert.Error(t, err)

	assert.Equal(t, 0, g.Snapshot().AreaCount())
}

func TestRegister_ComputesWorldBounds(t *testing.T) {
	g := graph.NewRegionGraph()
	require.NoError(t, g.Register(3, graphtest.Corridor(graph.KindVolume, 3, 2), graphtest.At(10, 0, 0), graph.LayerNone, uuid.Nil))

	area := g.Snapshot().Area(3)
	require.NotNil(t, area)
	assert.Equal(t, graph.KindVolume, area.Kind)
	assert.InDelta(t, 10, area.Bounds.Min.X, 1e-4)
	assert.InDelta(t, 16, area.Bounds.Max.X, 1e-4)

	require.NoError(t, g.UpdateTransform(3, graphtest.At(0, 5, 0)))
	moved := g.Snapshot().Area(3)
	assert.InDelta(t, 0, moved.Bounds.Min.X, 1e-4)
	assert.InDelta(t, 5, moved.Bounds.Min.Y, 1e-4)
	assert.Same(t, area.Dataset, moved.Dataset)

	assert.ErrorIs(t, g.UpdateTransform(99, math32.IdentityTransform), graph.ErrAreaNotFound)
}

func TestSnapshot_OldViewsAreUntouched(t *testing.T) {
	g := graph.NewRegionGraph()
	before := g.Snapshot()
	assert.Same(t, graph.EmptySnapshot(), before)

	require.NoError(t, g.Register(1, graphtest.Corridor(graph.KindVolume, 1, 1), math32.IdentityTransform, 0, uuid.Nil))
	after := g.Snapshot()

	assert.Equal(t, 0, before.AreaCount())
	assert.Equal(t, 1, after.AreaCount())
	assert.Greater(t, after.Version(), before.Version())

	assert.True(t, g.Deregister(1, true))
	assert.NotNil(t, after.Area(1))
	assert.Nil(t, g.Snapshot().Area(1))
}

func TestDeregister_ParkAndRestore(t *testing.T) {
	g := graph.NewRegionGraph()
	require.NoError(t, g.Register(1, graphtest.Corridor(graph.KindSurface, 2, 1), math32.IdentityTransform, 0, uuid.Nil))

	assert.False(t, g.Deregister(2, false))
	assert.True(t, g.Deregister(1, false))
	assert.Nil(t, g.Snapshot().Area(1))

	require.NoError(t, g.Restore(1))
	assert.NotNil(t, g.Snapshot().Area(1))

	assert.True(t, g.Deregister(1, true))
	assert.ErrorIs(t, g.Restore(1), graph.ErrNotParked)
}

func TestMutationGuard_NestedScopesNotifyOnce(t *testing.T) {
	g := graph.NewRegionGraph()
	l := &countingListener{}
	unsubscribe := g.Guard().Subscribe(l)

	err := g.Batch(func() error {
		assert.True(t, g.Guard().Active())
		if err := g.Register(1, graphtest.Corridor(graph.KindVolume, 1, 1), math32.IdentityTransform, 0, uuid.Nil); err != nil {
			return err
		}
		return g.Register(2, graphtest.Corridor(graph.KindVolume, 1, 1), graphtest.At(1, 0, 0), 0, uuid.Nil)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, l.begins)
	assert.Equal(t, 1, l.ends)
	assert.False(t, g.Guard().Active())

	unsubscribe()
	g.Deregister(1, true)
	assert.Equal(t, 1, l.begins)
}

func TestMutationGuard_UnbalancedEndIgnored(t *testing.T) {
	guard := graph.NewMutationGuard(nil)
	l := &countingListener{}
	guard.Subscribe(l)

	guard.End()
	assert.Equal(t, 0, guard.Depth())
	assert.Equal(t, 0, l.ends)

	guard.Begin()
	guard.Begin()
	assert.Equal(t, 2, guard.Depth())
	guard.End()
	assert.Equal(t, 0, l.ends)
	guard.End()
	assert.Equal(t, 1, l.begins)
	assert.Equal(t, 1, l.ends)
}

func TestMutationGuard_FailedMutationStillEnds(t *testing.T) {
	g := graph.NewRegionGraph()
	l := &countingListener{}
	g.Guard().Subscribe(l)

	assert.Error(t, g.UpdateTransform(5, math32.IdentityTransform))
	assert.Equal(t, 1, l.begins)
	assert.Equal(t, 1, l.ends)
	assert.False(t, g.Guard().Active())
}

func TestUpdateExternalLinks(t *testing.T) {
	g := graph.NewRegionGraph()
	require.NoError(t, g.Register(1, graphtest.Corridor(graph.KindVolume, 2, 1), math32.IdentityTransform, 0, uuid.Nil))
	require.NoError(t, g.Register(2, graphtest.Corridor(graph.KindVolume, 1, 1), graphtest.At(2, 0, 0), 0, uuid.Nil))

	unloaded := uuid.New()
	links := []graph.ExternalLink{
		{ToArea: 2, ToKind: graph.KindVolume, ToRegion: 0, FromPosition: math32.Vector3{X: 2, Y: 0.5, Z: 0.5}, ToPosition: math32.Vector3{X: 2, Y: 0.5, Z: 0.5}},
		{ToArea: 9, ToKind: graph.KindVolume, ToRegion: 0, ToScene: unloaded},
	}

	err := g.UpdateExternalLinks(1, links, []graph.Range{{}}, nil, false)
	assert.ErrorIs(t, err, graph.ErrRangeMismatch)

	err = g.UpdateExternalLinks(1, links, []graph.Range{{}, {Start: 1, Count: 5}}, nil, false)
	assert.ErrorIs(t, err, graph.ErrRangeMismatch)

	require.NoError(t, g.UpdateExternalLinks(1, links, []graph.Range{{}, {Start: 0, Count: 2}}, nil, false))
	area := g.Snapshot().Area(1)
	region := area.Region(1)
	got := area.Dataset.RegionExternalLinks(region)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ToArea)

	require.NoError(t, g.UpdateExternalLinks(1, links, []graph.Range{{}, {Start: 0, Count: 2}}, nil, true))
	area = g.Snapshot().Area(1)
	assert.Len(t, area.Dataset.RegionExternalLinks(area.Region(1)), 2)
	assert.Empty(t, area.Dataset.RegionExternalLinks(area.Region(0)))
}

func TestManualLinks(t *testing.T) {
	g := graph.NewRegionGraph()
	require.NoError(t, g.Register(1, graphtest.Corridor(graph.KindVolume, 1, 1), math32.IdentityTransform, 0, uuid.Nil))
	require.NoError(t, g.Register(2, graphtest.Corridor(graph.KindSurface, 1, 1), graphtest.At(5, 0, 0), 0, uuid.Nil))

	link := graph.ManualLink{
		ID:            11,
		Transform:     math32.IdentityTransform,
		Start:         math32.Vector3{X: 0.5, Y: 0.5, Z: 0.5},
		End:           math32.Vector3{X: 5.5, Y: 0, Z: 0.5},
		StartKinds:    graph.MaskAll,
		EndKinds:      graph.MaskSurface,
		SampleRadius:  0.5,
		Bidirectional: true,
		Enabled:       true,
	}
	assert.ErrorIs(t, g.AddManualLink(graph.ManualLink{}), graph.ErrInvalidLinkID)
	require.NoError(t, g.AddManualLink(link))
	assert.True(t, g.Snapshot().ManualLinkEnabled(11))
	assert.False(t, g.Snapshot().ManualLinkEnabled(12))

	require.NoError(t, g.UpdateExternalLinks(1, nil, make([]graph.Range, 1), []graph.ManualLink{link}, false))
	area := g.Snapshot().Area(1)
	out := area.Dataset.RegionExternalLinks(area.Region(0))
	require.Len(t, out, 1)
	assert.Equal(t, int64(2), out[0].ToArea)
	assert.Equal(t, graph.KindSurface, out[0].ToKind)
	assert.Equal(t, int64(11), out[0].ManualLinkID)

	// only the reverse direction leaves the surface area
	require.NoError(t, g.UpdateExternalLinks(2, nil, make([]graph.Range, 1), []graph.ManualLink{link}, false))
	surface := g.Snapshot().Area(2)
	reverse := surface.Dataset.RegionExternalLinks(surface.Region(0))
	require.Len(t, reverse, 1)
	assert.Equal(t, int64(1), reverse[0].ToArea)

	require.NoError(t, g.SetManualLinkEnabled(11, false))
	assert.False(t, g.Snapshot().ManualLinkEnabled(11))
	assert.False(t, g.Snapshot().ManualLink(11).Enabled)
	assert.ErrorIs(t, g.SetManualLinkEnabled(12, true), graph.ErrLinkNotFound)

	assert.True(t, g.RemoveManualLink(11))
	assert.False(t, g.RemoveManualLink(11))
	assert.Nil(t, g.Snapshot().ManualLink(11))
}

func TestSceneLoaded(t *testing.T) {
	g := graph.NewRegionGraph()
	scene := uuid.New()
	assert.True(t, g.Snapshot().SceneLoaded(uuid.Nil))
	assert.False(t, g.Snapshot().SceneLoaded(scene))

	g.SetSceneLoaded(scene, true)
	assert.True(t, g.Snapshot().SceneLoaded(scene))
	g.SetSceneLoaded(scene, false)
	assert.False(t, g.Snapshot().SceneLoaded(scene))
}

func TestTeardown(t *testing.T) {
	g := graph.NewRegionGraph()
	require.NoError(t, g.Register(1, graphtest.Corridor(graph.KindVolume, 1, 1), math32.IdentityTransform, 0, uuid.Nil))
	require.NoError(t, g.AddManualLink(graph.ManualLink{ID: 1, Enabled: true}))
	g.Deregister(1, false)

	g.Teardown()
	snap := g.Snapshot()
	assert.Equal(t, 0, snap.AreaCount())
	assert.Empty(t, snap.ManualLinks())
	assert.ErrorIs(t, g.Restore(1), graph.ErrNotParked)
}

func TestSampler(t *testing.T) {
	g := graph.NewRegionGraph()
	require.NoError(t, g.Register(1, graphtest.Corridor(graph.KindVolume, 2, 1), math32.IdentityTransform, 0, uuid.Nil))
	require.NoError(t, g.Register(2, graphtest.Corridor(graph.KindSurface, 2, 1), math32.IdentityTransform, 3, uuid.Nil))

	s := graph.NewBoundsSampler(g, 16)
	p := math32.Vector3{X: 1.5, Y: 0.1, Z: 0.5}

	res := s.Sample(p, 0.5, graph.MaskAll, graph.AllLayers, graph.PriorityNearest)
	require.True(t, res.Valid())
	assert.Equal(t, int64(1), res.AreaID)
	assert.Equal(t, int32(1), res.RegionID)
	assert.InDelta(t, 0, res.Distance, 1e-5)

	res = s.Sample(p, 0.5, graph.MaskAll, graph.AllLayers, graph.PrioritySurface)
	assert.Equal(t, int64(2), res.AreaID)
	assert.InDelta(t, 0, res.Position.Y, 1e-5)
	assert.InDelta(t, 0.1, res.Distance, 1e-4)

	res = s.Sample(p, 0.5, graph.MaskSurface, graph.LayerMask(1), graph.PriorityNearest)
	assert.False(t, res.Valid())

	res = s.Sample(math32.Vector3{X: 10}, 0.5, graph.MaskAll, graph.AllLayers, graph.PriorityNearest)
	assert.False(t, res.Valid())

	s.Sample(p, 0.5, graph.MaskAll, graph.AllLayers, graph.PriorityNearest)
	assert.GreaterOrEqual(t, s.CacheStats().Hits, int64(1))

	// a mutation changes the version, the cached answer must not survive
	g.Deregister(1, true)
	res = s.Sample(p, 0.5, graph.MaskAll, graph.AllLayers, graph.PriorityNearest)
	assert.Equal(t, int64(2), res.AreaID)
	assert.Equal(t, 1, s.CacheStats().Size, "entries of the old version purged")
}

func TestDataset_SaveLoad(t *testing.T) {
	ds := graphtest.Corridor(graph.KindVolume, 3, 2)
	ds.ExternalLinks = []graph.ExternalLink{{ToArea: 4, ToKind: graph.KindSurface, ToRegion: 1, ToScene: uuid.New(), ManualLinkID: 3}}
	ds.Regions[2].ExternalLinks = graph.Range{Start: 0, Count: 1}

	path := filepath.Join(t.TempDir(), "area.nav")
	require.NoError(t, graph.Save(ds, path))

	loaded, err := graph.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ds, loaded)

	info, err := graph.GetFileInfo(path)
	require.NoError(t, err)
	assert.Equal(t, 3, info.RegionCount)
	assert.Equal(t, 1, info.ExternalLinks)
	assert.Equal(t, "volume", info.Kind)
}

func TestDataset_LoadUncompressed(t *testing.T) {
	graph.UseGzip(false)
	t.Cleanup(func() { graph.UseGzip(true) })

	ds := graphtest.Grid(2, 3, 1)
	path := filepath.Join(t.TempDir(), "grid.nav")
	require.NoError(t, graph.Save(ds, path))

	graph.UseGzip(true)
	loaded, err := graph.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ds, loaded)
}

func TestDataset_LoadRejectsGarbage(t *testing.T) {
	content, err := graph.Compress([]byte("definitely not a dataset"))
	require.NoError(t, err)
	_, err = graph.Decode(bytes.NewReader(content))
	assert.Error(t, err)

	raw, err := graph.Decompress(content)
	require.NoError(t, err)
	_, err = graph.Decode(bytes.NewReader(raw))
	assert.True(t, errors.Is(err, graph.ErrBadDatasetFile))
}

func TestDataset_Validate(t *testing.T) {
	ds := graphtest.Corridor(graph.KindVolume, 2, 1)
	require.NoError(t, ds.Validate())

	overlap := ds.Clone()
	overlap.Regions[1].InternalLinks = overlap.Regions[0].InternalLinks
	assert.ErrorIs(t, overlap.Validate(), graph.ErrInvalidDataset)

	dangling := ds.Clone()
	dangling.InternalLinks[0].ToRegion = 5
	assert.ErrorIs(t, dangling.Validate(), graph.ErrInvalidDataset)

	badEdge := ds.Clone()
	badEdge.Edges[0][1] = 1000
	assert.ErrorIs(t, badEdge.Validate(), graph.ErrInvalidDataset)
}

func TestLayerMask(t *testing.T) {
	assert.True(t, graph.LayerMask(0).Allows(graph.LayerNone))
	assert.True(t, graph.LayerMask(1<<3).Allows(3))
	assert.False(t, graph.LayerMask(1<<3).Allows(4))
	assert.False(t, graph.AllLayers.Allows(32))
}

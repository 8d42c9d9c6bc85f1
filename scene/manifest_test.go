package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o0olele/regionnav-go/graph"
	"github.com/o0olele/regionnav-go/graph/graphtest"
	"github.com/o0olele/regionnav-go/math32"
	"github.com/o0olele/regionnav-go/search"
)

const sceneID = "5f0c2a9e-3d4b-4c8e-9a61-0b7f1e2d3c4a"

const manifest = `
{
  # two volume corridors joined by a baked link, plus a surface strip
  # reachable through a manual link
  scenes: [{ id: "5f0c2a9e-3d4b-4c8e-9a61-0b7f1e2d3c4a", loaded: true }]
  areas: [
    {
      id: 1
      generate: { shape: "corridor", kind: "volume", count: 2, size: 1 }
      links: [
        { region: 1, toArea: 2, toKind: "volume", toRegion: 0, from: { x: 2, y: 0.5, z: 0.5 }, to: { x: 3, y: 0.5, z: 0.5 } }
      ]
    }
    {
      id: 2
      generate: { shape: "corridor", kind: "volume", count: 2, size: 1 }
      position: { x: 3, y: 0, z: 0 }
      scene: "5f0c2a9e-3d4b-4c8e-9a61-0b7f1e2d3c4a"
    }
    {
      id: 3
      generate: { shape: "corridor", kind: "surface", count: 2, size: 1 }
      position: { x: 0, y: 0, z: 5 }
      layer: 2
    }
  ]
  manualLinks: [
    {
      id: 7
      start: { x: 0.5, y: 0.5, z: 0.5 }
      end: { x: 0.5, y: 0, z: 5.5 }
      endKinds: ["surface"]
      sampleRadius: 0.6
    }
  ]
}
`

func TestParseAndApply(t *testing.T) {
	m, err := Parse([]byte(manifest))
	require.NoError(t, err)
	require.Len(t, m.Areas, 3)
	assert.Equal(t, "corridor", m.Areas[0].Generate.Shape)

	g := graph.NewRegionGraph()
	require.NoError(t, m.Apply(g))
	assert.Zero(t, g.Guard().Depth())

	snap := g.Snapshot()
	assert.Equal(t, 3, snap.AreaCount())
	assert.True(t, snap.SceneLoaded(uuid.MustParse(sceneID)))
	assert.Equal(t, int32(2), snap.Area(3).Layer)
	assert.Equal(t, graph.KindSurface, snap.Area(3).Kind)
	assert.True(t, snap.ManualLinkEnabled(7))

	from := snap.Area(1)
	region := from.Region(1)
	require.NotNil(t, region)
	require.Equal(t, int32(1), region.ExternalLinks.Count)
	assert.Equal(t, int64(2), from.Dataset.ExternalLinks[region.ExternalLinks.Start].ToArea)

	// the manual link leaves region 0 of area 1 for the surface strip
	start := from.Region(0)
	require.Equal(t, int32(1), start.ExternalLinks.Count)
	manual := from.Dataset.ExternalLinks[start.ExternalLinks.Start]
	assert.Equal(t, int64(7), manual.ManualLinkID)
	assert.Equal(t, int64(3), manual.ToArea)

	p := vec(0.5, 0.5, 0.5)
	q := vec(4.5, 0.5, 0.5)
	s := graph.SampleSnapshot(snap, p, 0.25, graph.MaskAll, graph.AllLayers, graph.PriorityNearest)
	e := graph.SampleSnapshot(snap, q, 0.25, graph.MaskAll, graph.AllLayers, graph.PriorityNearest)
	path, err := search.Find(snap, s, e, p, q, search.DefaultParams(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, path)
	assert.Equal(t, int64(2), path[len(path)-1].AreaID)
}

func vec(x, y, z float32) math32.Vector3 {
	return math32.Vector3{X: x, Y: y, Z: z}
}

func TestLoad_DatasetFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, graph.Save(graphtest.Grid(2, 2, 1), filepath.Join(dir, "grid.rgnv")))
	path := filepath.Join(dir, "scene.hjson")
	require.NoError(t, os.WriteFile(path, []byte(`{
  areas: [{ id: 4, file: "grid.rgnv", rotation: { x: 0, y: 0, z: 0, w: 1 } }]
}`), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	g := graph.NewRegionGraph()
	require.NoError(t, m.Apply(g))
	area := g.Snapshot().Area(4)
	require.NotNil(t, area)
	assert.Len(t, area.Dataset.Regions, 4)
}

func TestValidate(t *testing.T) {
	_, err := Parse([]byte(`{
  scenes: [{ id: "not-a-uuid" }]
  areas: [
    { id: 0, generate: { shape: "grid", width: 1, depth: 1 } }
    { id: 5, file: "a.rgnv", generate: { shape: "grid" } }
    { id: 5, links: [{ toArea: 9, toKind: "lava" }] }
  ]
  manualLinks: [{ id: 1, startKinds: ["water"] }]
}`))
	require.Error(t, err)
	for _, want := range []string{
		"scene \"not-a-uuid\"",
		"area 0: id must be positive",
		"exactly one of file and generate",
		"duplicate id",
		"unknown area kind \"lava\"",
		"unknown target area 9",
		"unknown area kind \"water\"",
	} {
		assert.ErrorContains(t, err, want)
	}

	_, err = Parse([]byte("{ areas: [ "))
	assert.ErrorContains(t, err, "parsing hjson")
}

func TestApply_BadGenerator(t *testing.T) {
	m, err := Parse([]byte(`{ areas: [{ id: 1, generate: { shape: "sphere" } }] }`))
	require.NoError(t, err)
	err = m.Apply(graph.NewRegionGraph())
	assert.ErrorContains(t, err, "unknown generator shape")
}

func TestApply_RejectsInvalidManifest(t *testing.T) {
	m := &Manifest{
		Scenes: []Scene{{ID: "not-a-uuid", Loaded: true}},
		Areas:  []Area{{ID: 1, Generate: &Generator{Shape: "grid", Width: 1, Depth: 1}}},
	}
	g := graph.NewRegionGraph()
	var err error
	assert.NotPanics(t, func() { err = m.Apply(g) })
	assert.ErrorContains(t, err, `scene "not-a-uuid"`)
	assert.Zero(t, g.Snapshot().AreaCount())
}

func TestApply_RollsBackOnFailure(t *testing.T) {
	g := graph.NewRegionGraph()
	original := graphtest.Corridor(graph.KindVolume, 4, 1)
	require.NoError(t, g.Register(1, original, math32.IdentityTransform, 0, uuid.Nil))

	m := &Manifest{Areas: []Area{
		{ID: 1, Generate: &Generator{Shape: "corridor", Kind: "volume", Count: 2, Size: 1}},
		{ID: 2, Generate: &Generator{Shape: "corridor", Kind: "volume", Count: 2, Size: 1}, Layer: graph.MaxLayer + 9},
	}}
	err := m.Apply(g)
	require.ErrorContains(t, err, "out of range")

	snap := g.Snapshot()
	assert.Equal(t, 1, snap.AreaCount())
	area := snap.Area(1)
	require.NotNil(t, area)
	assert.Same(t, original, area.Dataset, "replaced area is restored")
	assert.Nil(t, snap.Area(2))
	assert.False(t, g.Guard().Active())
}

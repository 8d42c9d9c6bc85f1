// Package scene loads hjson manifests describing a set of areas, their
// baked external links and manual links, and applies them to a region graph.
package scene

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
	"github.com/hjson/hjson-go/v4"

	"github.com/o0olele/regionnav-go/graph"
	"github.com/o0olele/regionnav-go/graph/graphtest"
	"github.com/o0olele/regionnav-go/math32"
)

// Manifest is the root of a scene file.
type Manifest struct {
	Scenes      []Scene      `json:"scenes"`
	Areas       []Area       `json:"areas"`
	ManualLinks []ManualLink `json:"manualLinks"`
	// KeepUnloadedSceneLinks keeps baked links into scenes not marked loaded.
	KeepUnloadedSceneLinks bool `json:"keepUnloadedSceneLinks"`

	dir string
}

type Scene struct {
	ID     string `json:"id"`
	Loaded bool   `json:"loaded"`
}

// Area is one registered area. Exactly one of File and Generate is set.
type Area struct {
	ID       int64              `json:"id"`
	File     string             `json:"file"`
	Generate *Generator         `json:"generate"`
	Position math32.Vector3     `json:"position"`
	Rotation *math32.Quaternion `json:"rotation"`
	Scale    *math32.Vector3    `json:"scale"`
	Layer    int32              `json:"layer"`
	Scene    string             `json:"scene"`
	Links    []Link             `json:"links"`
}

// Generator builds a test dataset instead of loading one.
type Generator struct {
	Shape string  `json:"shape"` // corridor or grid
	Kind  string  `json:"kind"`  // corridor only
	Count int     `json:"count"`
	Width int     `json:"width"`
	Depth int     `json:"depth"`
	Size  float32 `json:"size"`
}

// Link is a baked external link leaving region Region of its area.
type Link struct {
	Region   int32          `json:"region"`
	ToArea   int64          `json:"toArea"`
	ToKind   string         `json:"toKind"`
	ToRegion int32          `json:"toRegion"`
	From     math32.Vector3 `json:"from"`
	To       math32.Vector3 `json:"to"`
	ToScene  string         `json:"toScene"`
}

type ManualLink struct {
	ID            int64          `json:"id"`
	Start         math32.Vector3 `json:"start"`
	End           math32.Vector3 `json:"end"`
	StartKinds    []string       `json:"startKinds"`
	EndKinds      []string       `json:"endKinds"`
	SampleRadius  float32        `json:"sampleRadius"`
	Bidirectional bool           `json:"bidirectional"`
	Disabled      bool           `json:"disabled"`
}

// Load reads and validates a manifest. Relative dataset files resolve
// against the manifest's directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scene manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// Parse decodes and validates manifest content.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := hjson.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing hjson: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks ids, references and kinds.
func (m *Manifest) Validate() error {
	var errs []error
	for _, s := range m.Scenes {
		if _, err := uuid.Parse(s.ID); err != nil {
			errs = append(errs, fmt.Errorf("scene %q: %w", s.ID, err))
		}
	}

	ids := make(map[int64]bool, len(m.Areas))
	for i := range m.Areas {
		a := &m.Areas[i]
		if a.ID <= 0 {
			errs = append(errs, fmt.Errorf("area %d: id must be positive", a.ID))
		}
		if ids[a.ID] {
			errs = append(errs, fmt.Errorf("area %d: duplicate id", a.ID))
		}
		ids[a.ID] = true
		if (a.File == "") == (a.Generate == nil) {
			errs = append(errs, fmt.Errorf("area %d: exactly one of file and generate is required", a.ID))
		}
		if _, err := parseScene(a.Scene); err != nil {
			errs = append(errs, fmt.Errorf("area %d: %w", a.ID, err))
		}
		for _, l := range a.Links {
			if _, err := graph.ParseAreaKind(l.ToKind); err != nil {
				errs = append(errs, fmt.Errorf("area %d link: %w", a.ID, err))
			}
			if _, err := parseScene(l.ToScene); err != nil {
				errs = append(errs, fmt.Errorf("area %d link: %w", a.ID, err))
			}
		}
	}
	for i := range m.Areas {
		for _, l := range m.Areas[i].Links {
			if !ids[l.ToArea] {
				errs = append(errs, fmt.Errorf("area %d link: unknown target area %d", m.Areas[i].ID, l.ToArea))
			}
		}
	}

	for _, ml := range m.ManualLinks {
		if ml.ID <= 0 {
			errs = append(errs, fmt.Errorf("manual link %d: id must be positive", ml.ID))
		}
		if _, err := parseKinds(ml.StartKinds); err != nil {
			errs = append(errs, fmt.Errorf("manual link %d: %w", ml.ID, err))
		}
		if _, err := parseKinds(ml.EndKinds); err != nil {
			errs = append(errs, fmt.Errorf("manual link %d: %w", ml.ID, err))
		}
	}
	return errors.Join(errs...)
}

func parseScene(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

// parseKinds treats an empty list as every kind.
func parseKinds(names []string) (graph.AreaKindMask, error) {
	if len(names) == 0 {
		return graph.MaskAll, nil
	}
	var mask graph.AreaKindMask
	for _, name := range names {
		kind, err := graph.ParseAreaKind(name)
		if err != nil {
			return 0, err
		}
		mask |= kind.Mask()
	}
	return mask, nil
}

func (a *Area) transform() math32.Transform {
	t := math32.IdentityTransform
	t.Position = a.Position
	if a.Rotation != nil {
		t.Rotation = *a.Rotation
	}
	if a.Scale != nil {
		t.Scale = *a.Scale
	}
	return t.Normalized()
}

func (m *Manifest) dataset(a *Area) (*graph.Dataset, error) {
	if a.Generate == nil {
		path := a.File
		if !filepath.IsAbs(path) && m.dir != "" {
			path = filepath.Join(m.dir, path)
		}
		return graph.Load(path)
	}

	gen := a.Generate
	size := gen.Size
	if size <= 0 {
		size = 1
	}
	switch gen.Shape {
	case "corridor":
		kind, err := graph.ParseAreaKind(gen.Kind)
		if err != nil {
			return nil, err
		}
		if gen.Count < 1 {
			return nil, errors.New("corridor needs count >= 1")
		}
		return graphtest.Corridor(kind, gen.Count, size), nil
	case "grid":
		if gen.Width < 1 || gen.Depth < 1 {
			return nil, errors.New("grid needs width and depth >= 1")
		}
		return graphtest.Grid(gen.Width, gen.Depth, size), nil
	default:
		return nil, fmt.Errorf("unknown generator shape %q", gen.Shape)
	}
}

// Apply registers everything in the manifest inside one mutation scope.
// Scenes are marked first so link filtering sees them, then areas are
// registered and finally external links, including the materialized manual
// links, are set on every area. If a step fails, the areas and manual links
// touched so far are put back the way they were; scene flags stay set.
func (m *Manifest) Apply(g *graph.RegionGraph) error {
	if err := m.Validate(); err != nil {
		return err
	}
	datasets := make([]*graph.Dataset, len(m.Areas))
	for i := range m.Areas {
		ds, err := m.dataset(&m.Areas[i])
		if err != nil {
			return fmt.Errorf("area %d: %w", m.Areas[i].ID, err)
		}
		datasets[i] = ds
	}
	manual, err := m.manualLinks()
	if err != nil {
		return err
	}

	return g.Batch(func() error {
		before := g.Snapshot()
		for _, s := range m.Scenes {
			id, err := parseScene(s.ID)
			if err != nil {
				return err
			}
			g.SetSceneLoaded(id, s.Loaded)
		}
		err := m.register(g, datasets, manual)
		if err != nil {
			rollback(g, before, m.Areas, manual)
		}
		return err
	})
}

func (m *Manifest) register(g *graph.RegionGraph, datasets []*graph.Dataset, manual []graph.ManualLink) error {
	for i := range m.Areas {
		a := &m.Areas[i]
		scene, err := parseScene(a.Scene)
		if err != nil {
			return fmt.Errorf("area %d: %w", a.ID, err)
		}
		if err := g.Register(a.ID, datasets[i], a.transform(), a.Layer, scene); err != nil {
			return err
		}
	}
	for _, link := range manual {
		if err := g.AddManualLink(link); err != nil {
			return err
		}
	}
	for i := range m.Areas {
		links, ranges := m.Areas[i].externalLinks(len(datasets[i].Regions))
		if err := g.UpdateExternalLinks(m.Areas[i].ID, links, ranges, manual, m.KeepUnloadedSceneLinks); err != nil {
			return err
		}
	}
	return nil
}

// rollback restores the areas and manual links a failed Apply may have
// touched to their state in before.
func rollback(g *graph.RegionGraph, before *graph.Snapshot, areas []Area, manual []graph.ManualLink) {
	for i := range areas {
		id := areas[i].ID
		prev := before.Area(id)
		if prev == nil {
			g.Deregister(id, true)
			continue
		}
		if cur := g.Snapshot().Area(id); cur != prev {
			_ = g.Register(id, prev.Dataset, prev.Transform, prev.Layer, prev.Scene)
		}
	}
	for _, link := range manual {
		if prev := before.ManualLink(link.ID); prev != nil {
			_ = g.AddManualLink(*prev)
		} else {
			g.RemoveManualLink(link.ID)
		}
	}
}

func (m *Manifest) manualLinks() ([]graph.ManualLink, error) {
	out := make([]graph.ManualLink, 0, len(m.ManualLinks))
	for _, ml := range m.ManualLinks {
		startKinds, err := parseKinds(ml.StartKinds)
		if err != nil {
			return nil, err
		}
		endKinds, err := parseKinds(ml.EndKinds)
		if err != nil {
			return nil, err
		}
		radius := ml.SampleRadius
		if radius <= 0 {
			radius = 1
		}
		out = append(out, graph.ManualLink{
			ID:            ml.ID,
			Transform:     math32.IdentityTransform,
			Start:         ml.Start,
			End:           ml.End,
			StartKinds:    startKinds,
			EndKinds:      endKinds,
			SampleRadius:  radius,
			Bidirectional: ml.Bidirectional,
			Enabled:       !ml.Disabled,
		})
	}
	return out, nil
}

// externalLinks groups the area's links by region into the flat list and
// per-region ranges UpdateExternalLinks expects.
func (a *Area) externalLinks(regions int) ([]graph.ExternalLink, []graph.Range) {
	sorted := slices.Clone(a.Links)
	slices.SortStableFunc(sorted, func(x, y Link) int { return int(x.Region) - int(y.Region) })

	links := make([]graph.ExternalLink, 0, len(sorted))
	ranges := make([]graph.Range, regions)
	for _, l := range sorted {
		if l.Region < 0 || int(l.Region) >= regions {
			continue
		}
		kind, _ := graph.ParseAreaKind(l.ToKind)
		scene, _ := parseScene(l.ToScene)
		r := &ranges[l.Region]
		if r.Count == 0 {
			r.Start = int32(len(links))
		}
		r.Count++
		links = append(links, graph.ExternalLink{
			ToArea:       l.ToArea,
			ToKind:       kind,
			ToRegion:     l.ToRegion,
			FromPosition: l.From,
			ToPosition:   l.To,
			ToScene:      scene,
		})
	}
	for i := range ranges {
		if ranges[i].Count == 0 {
			ranges[i].Start = int32(len(links))
		}
	}
	return links, ranges
}

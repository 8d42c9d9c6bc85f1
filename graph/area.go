package graph

import (
	"github.com/google/uuid"
	"github.com/o0olele/regionnav-go/geometry"
	"github.com/o0olele/regionnav-go/math32"
)

// Area is a registered volume or surface container. Areas are immutable once
// published in a Snapshot; mutations replace the whole value.
type Area struct {
	ID        int64            `json:"id"`
	Kind      AreaKind         `json:"kind"`
	Transform math32.Transform `json:"transform"`
	Bounds    geometry.AABB    `json:"bounds"` // world space
	Layer     int32            `json:"layer"`
	Scene     uuid.UUID        `json:"scene"`
	Dataset   *Dataset         `json:"-"`
}

func newArea(id int64, ds *Dataset, transform math32.Transform, layer int32, scene uuid.UUID) *Area {
	transform = transform.Normalized()
	return &Area{
		ID:        id,
		Kind:      ds.Kind,
		Transform: transform,
		Bounds:    geometry.TransformBounds(ds.LocalBounds(), transform),
		Layer:     layer,
		Scene:     scene,
		Dataset:   ds,
	}
}

// LocalToWorld maps a local point to world space.
func (a *Area) LocalToWorld(p math32.Vector3) math32.Vector3 {
	return a.Transform.TransformPoint(p)
}

// WorldToLocal maps a world point to local space.
func (a *Area) WorldToLocal(p math32.Vector3) math32.Vector3 {
	return a.Transform.InverseTransformPoint(p)
}

// Region returns the region with the given id, or nil.
func (a *Area) Region(id int32) *Region {
	if a.Dataset == nil {
		return nil
	}
	return a.Dataset.Region(id)
}

// Up returns the world up vector of the area.
func (a *Area) Up() math32.Vector3 {
	return a.Transform.TransformDirection(math32.Up)
}

// withTransform returns a copy placed by a new transform.
func (a *Area) withTransform(transform math32.Transform) *Area {
	return newArea(a.ID, a.Dataset, transform, a.Layer, a.Scene)
}

// withDataset returns a copy holding a different dataset.
func (a *Area) withDataset(ds *Dataset) *Area {
	return newArea(a.ID, ds, a.Transform, a.Layer, a.Scene)
}

// FindRegion returns the region nearest to a world point within radius, the
// nearest local point inside that region's bounds and its world distance.
func (a *Area) FindRegion(world math32.Vector3, radius float32) (int32, math32.Vector3, float32, bool) {
	if a.Dataset == nil {
		return -1, math32.Vector3{}, 0, false
	}
	local := a.WorldToLocal(world)
	bestID := int32(-1)
	bestDist := float32(math32.MaxFloat32)
	var bestPoint math32.Vector3
	for i := range a.Dataset.Regions {
		region := &a.Dataset.Regions[i]
		closest := region.Bounds.ClosestPoint(local)
		dist := a.LocalToWorld(closest).Distance(world)
		if dist < bestDist {
			bestID, bestDist, bestPoint = region.ID, dist, closest
		}
	}
	if bestID < 0 || bestDist > radius {
		return -1, math32.Vector3{}, 0, false
	}
	return bestID, bestPoint, bestDist, true
}

package geometry

import (
	"sync"

	"github.com/o0olele/regionnav-go/math32"
)

// Obstacle is a collider the agent sweeps against.
type Obstacle struct {
	Bounds    AABB       `json:"bounds"`
	Triangles []Triangle `json:"triangles,omitempty"`
	// Static obstacles never move; dynamic ones are skipped by static-only casts.
	Static bool `json:"static"`
}

// ObstacleSet is a thread-safe list of obstacles answering sweep queries.
type ObstacleSet struct {
	mu        sync.RWMutex
	obstacles []Obstacle
}

// NewObstacleSet creates an obstacle set.
func NewObstacleSet(obstacles ...Obstacle) *ObstacleSet {
	return &ObstacleSet{obstacles: append([]Obstacle(nil), obstacles...)}
}

// Add appends an obstacle.
func (s *ObstacleSet) Add(o Obstacle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obstacles = append(s.obstacles, o)
}

// Len returns the obstacle count.
func (s *ObstacleSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.obstacles)
}

// Cast sweeps a sphere of the given radius from -> to and reports whether it is blocked.
// Obstacles without triangles block the whole inflated box; meshes are tested
// against the swept capsule.
func (s *ObstacleSet) Cast(from, to math32.Vector3, radius float32, staticOnly bool) bool {
	dir := to.Sub(from)
	distance := dir.Length()
	if distance < math32.Epsilon {
		return false
	}
	dir = dir.Mul(1 / distance)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.obstacles {
		o := &s.obstacles[i]
		if staticOnly && !o.Static {
			continue
		}
		tmin, _, hit := RayAABB(from, dir, o.Bounds.Expanded(radius))
		if !hit || tmin > distance {
			continue
		}
		if len(o.Triangles) == 0 {
			return true
		}
		sweep := Capsule{Start: from, End: to, Radius: radius}
		for j := range o.Triangles {
			if sweep.IntersectsTriangle(&o.Triangles[j]) {
				return true
			}
		}
	}
	return false
}

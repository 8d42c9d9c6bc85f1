package search

import (
	"fmt"

	"github.com/o0olele/regionnav-go/graph"
	"github.com/o0olele/regionnav-go/math32"
)

// WaypointType tags a waypoint with the area kind it belongs to and whether
// the path enters or leaves the area there.
type WaypointType uint8

const (
	Outside WaypointType = iota
	InsideVolume
	InsideSurface
	EnterVolume
	EnterSurface
	ExitVolume
	ExitSurface
)

func (t WaypointType) String() string {
	switch t {
	case Outside:
		return "outside"
	case InsideVolume:
		return "inside_volume"
	case InsideSurface:
		return "inside_surface"
	case EnterVolume:
		return "enter_volume"
	case EnterSurface:
		return "enter_surface"
	case ExitVolume:
		return "exit_volume"
	case ExitSurface:
		return "exit_surface"
	default:
		return "unknown"
	}
}

// MarshalText encodes the type by name.
func (t WaypointType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a name produced by MarshalText.
func (t *WaypointType) UnmarshalText(text []byte) error {
	name := string(text)
	for c := Outside; c <= ExitSurface; c++ {
		if c.String() == name {
			*t = c
			return nil
		}
	}
	return fmt.Errorf("unknown waypoint type %q", name)
}

// Waypoint is one point of a path.
type Waypoint struct {
	Type     WaypointType   `json:"type"`
	Position math32.Vector3 `json:"position"`
	Up       math32.Vector3 `json:"up"`
	// Distance is the path length from the first waypoint.
	Distance float32 `json:"distance"`
	AreaID   int64   `json:"area_id"`
	RegionID int32   `json:"region_id"`
}

// IsSurface reports whether the waypoint lies on a surface area.
func (w *Waypoint) IsSurface() bool {
	return w.Type == InsideSurface || w.Type == EnterSurface || w.Type == ExitSurface
}

// IsVolume reports whether the waypoint lies in a volume area.
func (w *Waypoint) IsVolume() bool {
	return w.Type == InsideVolume || w.Type == EnterVolume || w.Type == ExitVolume
}

// SameKind reports whether two waypoints are both on surfaces or both in volumes.
func (w *Waypoint) SameKind(other *Waypoint) bool {
	return (w.IsSurface() && other.IsSurface()) || (w.IsVolume() && other.IsVolume())
}

func insideType(kind graph.AreaKind) WaypointType {
	if kind == graph.KindSurface {
		return InsideSurface
	}
	return InsideVolume
}

func enterType(kind graph.AreaKind) WaypointType {
	if kind == graph.KindSurface {
		return EnterSurface
	}
	return EnterVolume
}

func exitType(kind graph.AreaKind) WaypointType {
	if kind == graph.KindSurface {
		return ExitSurface
	}
	return ExitVolume
}

// Length returns the distance of the last waypoint.
func Length(waypoints []Waypoint) float32 {
	if len(waypoints) == 0 {
		return 0
	}
	return waypoints[len(waypoints)-1].Distance
}

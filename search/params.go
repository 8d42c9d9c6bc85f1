package search

import "github.com/o0olele/regionnav-go/graph"

// Params are the traversal parameters of one path request.
type Params struct {
	AreaTypes graph.AreaKindMask `json:"area_types" yaml:"area_types"`
	Layers    graph.LayerMask    `json:"layers" yaml:"layers"`
	// CostMultipliers scales distance travelled inside an area of each kind.
	CostMultipliers [2]float32 `json:"cost_multipliers" yaml:"cost_multipliers"`
	// KindChangeCosts[k] is added when a link enters kind k from the other kind.
	KindChangeCosts      [2]float32 `json:"kind_change_costs" yaml:"kind_change_costs"`
	TighteningIterations int        `json:"tightening_iterations" yaml:"tightening_iterations"`
}

// DefaultParams allows every area kind and layer at unit cost.
func DefaultParams() Params {
	return Params{
		AreaTypes:            graph.MaskAll,
		Layers:               graph.AllLayers,
		CostMultipliers:      [2]float32{1, 1},
		TighteningIterations: 2,
	}
}

func (p *Params) costMultiplier(kind graph.AreaKind) float32 {
	if !kind.Valid() || p.CostMultipliers[kind] <= 0 {
		return 1
	}
	return p.CostMultipliers[kind]
}

func (p *Params) kindChangeCost(from, to graph.AreaKind) float32 {
	if from == to || !to.Valid() || p.KindChangeCosts[to] < 0 {
		return 0
	}
	return p.KindChangeCosts[to]
}

// minMultiplier keeps the heuristic admissible.
func (p *Params) minMultiplier() float32 {
	m := float32(0)
	for k := graph.KindVolume; k.Valid(); k++ {
		if !p.AreaTypes.Has(k) {
			continue
		}
		if c := p.costMultiplier(k); m == 0 || c < m {
			m = c
		}
	}
	if m == 0 {
		return 1
	}
	return m
}

package search

import "sync"

// heapNode is an entry of the A* open list
type heapNode struct {
	nodeID int32
	fScore float32
	index  int
}

// nodeHeap is a min-heap on fScore
type nodeHeap []*heapNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].fScore == h[j].fScore {
		// lower ids first keeps results independent of insertion order
		return h[i].nodeID < h[j].nodeID
	}
	return h[i].fScore < h[j].fScore
}
func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

// Push pushes a new node to the heap
func (h *nodeHeap) Push(x any) {
	item := x.(*heapNode)
	item.index = len(*h)
	*h = append(*h, item)
}

// Pop pops a node from the heap
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// Clear returns every node to the pool
func (h *nodeHeap) Clear() {
	for _, node := range *h {
		heapNodePool.Put(node)
	}
	*h = (*h)[:0]
}

var heapNodePool = sync.Pool{
	New: func() any {
		return &heapNode{index: -1}
	},
}

func newHeapNode(nodeID int32, fScore float32) *heapNode {
	node := heapNodePool.Get().(*heapNode)
	node.nodeID = nodeID
	node.fScore = fScore
	node.index = -1
	return node
}

package codec

// nodeHeap is a min-heap of Huffman tree nodes ordered by weight.
// Uses index-based heap for O(log n) push/pop.
type nodeHeap struct {
	nodes   []int32  // Node indices
	weights []uint64 // Corresponding subtree weights
}

func newNodeHeap(capacity int) *nodeHeap {
	return &nodeHeap{
		nodes:   make([]int32, 0, capacity),
		weights: make([]uint64, 0, capacity),
	}
}

func (h *nodeHeap) len() int {
	return len(h.nodes)
}

// push adds an element and maintains heap property. O(log n).
func (h *nodeHeap) push(node int, weight uint64) {
	h.nodes = append(h.nodes, int32(node))
	h.weights = append(h.weights, weight)
	h.up(len(h.nodes) - 1)
}

func (h *nodeHeap) pop() (int, uint64) {
	n := len(h.nodes) - 1
	h.swap(0, n)
	h.down(0, n)
	node := h.nodes[n]
	weight := h.weights[n]
	h.nodes = h.nodes[:n]
	h.weights = h.weights[:n]
	return int(node), weight
}

func (h *nodeHeap) swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
	h.weights[i], h.weights[j] = h.weights[j], h.weights[i]
}

func (h *nodeHeap) less(i, j int) bool {
	// Min-heap by weight
	if h.weights[i] != h.weights[j] {
		return h.weights[i] < h.weights[j]
	}
	// Deterministic tie-break by node index
	return h.nodes[i] < h.nodes[j]
}

func (h *nodeHeap) up(j int) {
	for {
		i := (j - 1) / 2 // parent
		if i == j || !h.less(j, i) {
			break
		}
		h.swap(i, j)
		j = i
	}
}

func (h *nodeHeap) down(i, n int) {
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1 // left child
		if j2 := j1 + 1; j2 < n && h.less(j2, j1) {
			j = j2 // right child
		}
		if !h.less(j, i) {
			break
		}
		h.swap(i, j)
		i = j
	}
}

// huffmanLengths returns optimal prefix-code lengths for weights. A single
// symbol gets length 1 so that every codeword occupies at least one bit.
func huffmanLengths(weights []uint64) []int {
	n := len(weights)
	lengths := make([]int, n)
	switch n {
	case 0:
		return lengths
	case 1:
		lengths[0] = 1
		return lengths
	}

	// Leaves are nodes 0..n-1, internal nodes n..2n-2 in creation order,
	// so the root is the last node and parents always follow children.
	parent := make([]int32, 2*n-1)
	h := newNodeHeap(n)
	for i, w := range weights {
		h.push(i, w)
	}
	next := n
	for h.len() > 1 {
		a, wa := h.pop()
		b, wb := h.pop()
		parent[a] = int32(next)
		parent[b] = int32(next)
		h.push(next, wa+wb)
		next++
	}

	depth := make([]int, 2*n-1)
	for node := 2*n - 3; node >= 0; node-- {
		depth[node] = depth[parent[node]] + 1
	}
	copy(lengths, depth[:n])
	return lengths
}

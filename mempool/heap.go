package mempool

// minFeeHeap is a container/heap min-heap ordered by ascending fee, letting
// capacity-driven eviction find the cheapest pending entry in O(log n)
// instead of a linear scan over the whole pool. Grounded on the teacher's
// transactionsOrderedByFeeRate (domain/miningmanager/mempool/model), adapted
// from its fee-per-byte ordering to a flat per-transaction fee: this spec's
// fee is a fixed amount set by the builder (§6.4), not priced per wire byte.
type minFeeHeap []*Entry

func (h minFeeHeap) Len() int { return len(h) }

func (h minFeeHeap) Less(i, j int) bool { return h[i].Tx.Fee < h[j].Tx.Fee }

func (h minFeeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *minFeeHeap) Push(x interface{}) {
	entry := x.(*Entry)
	entry.heapIndex = len(*h)
	*h = append(*h, entry)
}

func (h *minFeeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.heapIndex = -1
	*h = old[:n-1]
	return entry
}

package cron

// item is one entry in the min-heap used to find the soonest due job.
type item struct {
	id string
	at int64
}

// nextRunHeap is a container/heap.Interface ordering items by at ascending.
type nextRunHeap []item

func (h nextRunHeap) Len() int            { return len(h) }
func (h nextRunHeap) Less(i, j int) bool  { return h[i].at < h[j].at }
func (h nextRunHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nextRunHeap) Push(x interface{}) { *h = append(*h, x.(item)) }
func (h *nextRunHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

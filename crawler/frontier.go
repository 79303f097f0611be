package crawler

import (
	"container/heap"
)

type queued struct {
	unit     unit
	priority int
	seq      uint64
}

// frontier orders pending units: higher priority first, then FIFO.
type frontier struct {
	items []queued
	seq   uint64
}

func (f *frontier) push(u unit, priority int) {
	f.seq++
	heap.Push((*frontierHeap)(f), queued{unit: u, priority: priority, seq: f.seq})
}

func (f *frontier) pop() unit {
	return heap.Pop((*frontierHeap)(f)).(queued).unit
}

func (f *frontier) Len() int {
	return len(f.items)
}

type frontierHeap frontier

func (h *frontierHeap) Len() int { return len(h.items) }

func (h *frontierHeap) Less(i, j int) bool {
	if h.items[i].priority != h.items[j].priority {
		return h.items[i].priority > h.items[j].priority
	}
	return h.items[i].seq < h.items[j].seq
}

func (h *frontierHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *frontierHeap) Push(x any) { h.items = append(h.items, x.(queued)) }

func (h *frontierHeap) Pop() any {
	n := len(h.items)
	item := h.items[n-1]
	h.items = h.items[:n-1]
	return item
}

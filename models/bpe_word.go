package models

import (
	"container/heap"
	"math/rand/v2"
)

// symbol is a piece of a word being merged, kept in a doubly linked list over a slice.
type symbol struct {
	id         uint32
	prev, next int
	start, end int
	removed    bool
}

type symbolWord struct {
	symbols []symbol
}

func newSymbolWord(capacity int) *symbolWord {
	return &symbolWord{symbols: make([]symbol, 0, capacity)}
}

// add appends a symbol covering the characters [start, end) of the word.
func (w *symbolWord) add(id uint32, start, end int) {
	n := len(w.symbols)
	if n > 0 {
		w.symbols[n-1].next = n
	}
	w.symbols = append(w.symbols, symbol{id: id, prev: n - 1, next: -1, start: start, end: end})
}

// mergeCandidate is a possible merge of the symbol at pos with its next symbol.
type mergeCandidate struct {
	pos   int
	rank  int
	newID uint32
}

// mergeQueue is a min-heap on (rank, pos).
type mergeQueue []mergeCandidate

func (q mergeQueue) Len() int { return len(q) }
func (q mergeQueue) Less(i, j int) bool {
	if q[i].rank != q[j].rank {
		return q[i].rank < q[j].rank
	}
	return q[i].pos < q[j].pos
}
func (q mergeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *mergeQueue) Push(x any)   { *q = append(*q, x.(mergeCandidate)) }
func (q *mergeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// mergeAll applies the merges in priority order until none applies. With dropout > 0,
// each merge is skipped with that probability; skipped merges are reconsidered after the
// next applied merge.
func (w *symbolWord) mergeAll(merges map[idPair]mergeRule, dropout float32) {
	queue := make(mergeQueue, 0, len(w.symbols))
	for ii := 0; ii+1 < len(w.symbols); ii++ {
		if rule, found := merges[idPair{w.symbols[ii].id, w.symbols[ii+1].id}]; found {
			queue = append(queue, mergeCandidate{pos: ii, rank: rule.rank, newID: rule.newID})
		}
	}
	heap.Init(&queue)

	var skipped []mergeCandidate
	for queue.Len() > 0 {
		top := heap.Pop(&queue).(mergeCandidate)
		if dropout > 0 && rand.Float32() < dropout {
			skipped = append(skipped, top)
			continue
		}
		for _, s := range skipped {
			heap.Push(&queue, s)
		}
		skipped = skipped[:0]

		current := &w.symbols[top.pos]
		if current.removed || current.next == -1 {
			continue
		}
		nextPos := current.next
		right := w.symbols[nextPos]
		// Stale candidate: one of the two symbols has been merged since.
		if rule, found := merges[idPair{current.id, right.id}]; !found || rule.newID != top.newID {
			continue
		}

		current.id = top.newID
		current.end = right.end
		current.next = right.next
		w.symbols[nextPos].removed = true
		if right.next != -1 {
			w.symbols[right.next].prev = top.pos
		}

		if current.prev >= 0 {
			prev := w.symbols[current.prev]
			if rule, found := merges[idPair{prev.id, current.id}]; found {
				heap.Push(&queue, mergeCandidate{pos: current.prev, rank: rule.rank, newID: rule.newID})
			}
		}
		if current.next != -1 {
			next := w.symbols[current.next]
			if rule, found := merges[idPair{current.id, next.id}]; found {
				heap.Push(&queue, mergeCandidate{pos: top.pos, rank: rule.rank, newID: rule.newID})
			}
		}
	}
}

// compact returns the remaining symbols, in order.
func (w *symbolWord) compact() []symbol {
	result := make([]symbol, 0, len(w.symbols))
	for _, s := range w.symbols {
		if !s.removed {
			result = append(result, s)
		}
	}
	return result
}

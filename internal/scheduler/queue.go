package scheduler

// queue orders tasks by next due time, ties broken by registration order
type queue []*entry

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].next.Equal(q[j].next) {
		return q[i].order < q[j].order
	}
	return q[i].next.Before(q[j].next)
}

func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

func (q *queue) peek() *entry {
	if len(*q) == 0 {
		return nil
	}
	return (*q)[0]
}

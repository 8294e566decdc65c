package jsonexport

type ranked struct {
	path  string
	value float64
}

// topList keeps the highest values seen, one entry per path, ordered from
// highest to lowest. Ties keep arrival order.
type topList struct {
	limit int
	items []ranked
}

func newTopList(limit int) *topList {
	return &topList{limit: limit, items: make([]ranked, 0, limit)}
}

func (l *topList) offer(path string, value float64) {
	for i, r := range l.items {
		if r.path != path {
			continue
		}
		if value <= r.value {
			return
		}
		l.items = append(l.items[:i], l.items[i+1:]...)
		break
	}

	if len(l.items) >= l.limit && value <= l.items[len(l.items)-1].value {
		return
	}

	pos := len(l.items)
	for i, r := range l.items {
		if value > r.value {
			pos = i
			break
		}
	}
	l.items = append(l.items, ranked{})
	copy(l.items[pos+1:], l.items[pos:])
	l.items[pos] = ranked{path: path, value: value}

	if len(l.items) > l.limit {
		l.items = l.items[:l.limit]
	}
}

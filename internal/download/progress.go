package download

import (
	"github.com/ytget/ytqueue/internal/extractor"
	"github.com/ytget/ytqueue/internal/model"
)

// maxRunningFraction caps the fraction of a running job; only completion
// reports 1.0
const maxRunningFraction = 0.99

// parts sums the streams of one transfer. Merged formats fetch video and
// audio one after the other, each counting from zero with its own total.
type parts struct {
	index    int // 0-based part counter
	reported int // last stream index the extractor reported
	base     int64
	done     int64
	total    int64
}

func newParts() parts {
	return parts{total: model.UnknownTotal}
}

// add folds one update into the running sum. A new part starts when the
// extractor reports a higher stream index, or when the known total changes
// while the byte count drops.
func (ps *parts) add(u extractor.Progress) (done, total int64) {
	switch {
	case u.Stream > ps.reported:
		ps.reported = u.Stream
		ps.next()
	case u.Total >= 0 && ps.total >= 0 && u.Total != ps.total && u.Done < ps.done:
		ps.next()
	}

	ps.done = u.Done
	if u.Total >= 0 {
		ps.total = u.Total
	}

	done = ps.base + ps.done
	total = model.UnknownTotal
	if ps.total >= 0 {
		total = max(ps.base+ps.total, done)
	}
	return done, total
}

func (ps *parts) next() {
	ps.base += max(ps.done, ps.total)
	ps.done = 0
	ps.total = model.UnknownTotal
	ps.index++
}

// part is the 1-based number of the stream being transferred
func (ps *parts) part() int {
	return ps.index + 1
}

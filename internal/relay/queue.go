package relay

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// maxBatchRunes bounds a merged batch: text plus '\n' separators stays below it.
const maxBatchRunes = MaxSegmentRunes

// queue is the pending FIFO shared by the producer (push) and the sender
// worker (dequeueBatch).
type queue struct {
	mu    sync.Mutex
	items []Segment

	// collapse makes a carriage-return segment replace the tail's text
	// instead of being appended.
	collapse bool
}

func (q *queue) push(seg Segment) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.collapse && seg.Kind == KindCarriageReturn && len(q.items) > 0 {
		q.items[len(q.items)-1].Text = seg.Text
		return
	}
	q.items = append(q.items, seg)
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// dequeueBatch removes the next outbound unit. A carriage-return head is
// returned alone. A newline head absorbs following newline segments while the
// merged text stays under maxBatchRunes; the first segment that cannot be
// merged (too large, or a carriage return) stays at the head.
func (q *queue) dequeueBatch() (Segment, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Segment{}, false
	}
	head := q.popLocked()
	if head.Kind == KindCarriageReturn {
		return head, true
	}

	n := utf8.RuneCountInString(head.Text)
	var b strings.Builder
	b.WriteString(head.Text)
	for len(q.items) > 0 {
		next := q.items[0]
		if next.Kind != KindNewline {
			break
		}
		m := utf8.RuneCountInString(next.Text)
		if n+m+1 >= maxBatchRunes {
			break
		}
		q.popLocked()
		b.WriteByte('\n')
		b.WriteString(next.Text)
		n += m + 1
	}
	return Segment{Kind: KindNewline, Text: b.String()}, true
}

func (q *queue) popLocked() Segment {
	seg := q.items[0]
	q.items[0] = Segment{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// Drop the consumed prefix of the backing array.
		q.items = nil
	}
	return seg
}

package relay

import (
	"strings"

	kit "teleecho/internal/transport"
)

// MaxSegmentRunes caps a single segment independent of line breaks.
const MaxSegmentRunes = kit.MaxTextRunes

// SegmentKind tags how a segment should be delivered.
type SegmentKind int

const (
	// KindNewline is a complete line: sent as a new message or merged with
	// neighbouring lines.
	KindNewline SegmentKind = iota
	// KindCarriageReturn is a line led by '\r': it overwrites the last line
	// of the previously sent message.
	KindCarriageReturn
)

func (k SegmentKind) String() string {
	switch k {
	case KindNewline:
		return "newline"
	case KindCarriageReturn:
		return "carriage_return"
	default:
		return "unknown"
	}
}

type Segment struct {
	Kind SegmentKind
	Text string
}

// Segmenter turns a rune stream into segments. It is not safe for concurrent
// use; Processor serializes access to it.
type Segmenter struct {
	buf  []rune
	emit func(Segment)
}

func NewSegmenter(emit func(Segment)) *Segmenter {
	return &Segmenter{buf: make([]rune, 0, 256), emit: emit}
}

// Feed appends one rune, flushing on line breaks and at MaxSegmentRunes.
func (s *Segmenter) Feed(r rune) {
	if r == '\n' || r == '\r' {
		s.Flush()
	}
	// '\r' stays in the buffer as the overwrite marker of the next segment.
	if r != '\n' {
		s.buf = append(s.buf, r)
	}
	if len(s.buf) >= MaxSegmentRunes {
		s.Flush()
	}
}

// Flush emits the accumulated runes as exactly one segment, even when empty.
func (s *Segmenter) Flush() {
	kind := KindNewline
	var b strings.Builder
	b.Grow(len(s.buf))
	for _, r := range s.buf {
		if r == '\r' {
			kind = KindCarriageReturn
			continue
		}
		b.WriteRune(r)
	}
	s.buf = s.buf[:0]
	if s.emit != nil {
		s.emit(Segment{Kind: kind, Text: b.String()})
	}
}

// Pending is the number of buffered, not yet flushed runes.
func (s *Segmenter) Pending() int { return len(s.buf) }

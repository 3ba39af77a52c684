package relay

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func drainBatches(q *queue) []Segment {
	var out []Segment
	for {
		b, ok := q.dequeueBatch()
		if !ok {
			return out
		}
		out = append(out, b)
	}
}

func TestDequeueBatch(t *testing.T) {
	tests := []struct {
		name string
		in   []Segment
		want []Segment
	}{
		{name: "empty", in: nil, want: nil},
		{name: "merge lines", in: []Segment{nl("a"), nl("b"), nl("c")}, want: []Segment{nl("a\nb\nc")}},
		{name: "carriage return alone", in: []Segment{cr("50%"), cr("60%")}, want: []Segment{cr("50%"), cr("60%")}},
		{
			name: "carriage return stops merge and is kept",
			in:   []Segment{nl("a"), nl("b"), cr("x"), nl("c")},
			want: []Segment{nl("a\nb"), cr("x"), nl("c")},
		},
		{
			name: "carriage return head never absorbs lines",
			in:   []Segment{cr("x"), nl("a"), nl("b")},
			want: []Segment{cr("x"), nl("a\nb")},
		},
		{name: "blank lines kept", in: []Segment{nl("a"), nl(""), nl("b")}, want: []Segment{nl("a\n\nb")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &queue{}
			for _, s := range tt.in {
				q.push(s)
			}
			if diff := cmp.Diff(tt.want, drainBatches(q)); diff != "" {
				t.Fatalf("batches mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDequeueBatchSizeCap(t *testing.T) {
	q := &queue{}
	a := strings.Repeat("a", 2000)
	b := strings.Repeat("b", 2000)
	c := strings.Repeat("c", 100)
	q.push(nl(a))
	q.push(nl(b))
	q.push(nl(c))

	got := drainBatches(q)
	want := []Segment{nl(a + "\n" + b), nl(c)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestDequeueBatchBoundary(t *testing.T) {
	// 4094 + 1 + 0 = 4095 fits; one more rune does not.
	q := &queue{}
	q.push(nl(strings.Repeat("x", 4094)))
	q.push(nl(""))
	q.push(nl(""))
	got := drainBatches(q)
	if len(got) != 2 {
		t.Fatalf("batches = %d, want 2", len(got))
	}
	if n := utf8.RuneCountInString(got[0].Text); n != 4095 {
		t.Fatalf("first batch runes = %d, want 4095", n)
	}
}

func TestDequeueBatchCountsRunesNotBytes(t *testing.T) {
	q := &queue{}
	// 1500 runes each, 3000 bytes each.
	q.push(nl(strings.Repeat("é", 1500)))
	q.push(nl(strings.Repeat("é", 1500)))
	got := drainBatches(q)
	if len(got) != 1 {
		t.Fatalf("batches = %d, want 1 (merge is measured in runes)", len(got))
	}
}

func TestMergedBatchesStayUnderLimit(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	q := &queue{}
	var pushed int
	for i := 0; i < 500; i++ {
		kind := KindNewline
		if rng.Intn(10) == 0 {
			kind = KindCarriageReturn
		}
		text := strings.Repeat("y", rng.Intn(MaxSegmentRunes))
		q.push(Segment{Kind: kind, Text: text})
		pushed += utf8.RuneCountInString(text)
	}

	var got int
	for _, b := range drainBatches(q) {
		n := utf8.RuneCountInString(b.Text)
		if strings.Contains(b.Text, "\n") && n > maxBatchRunes-1 {
			t.Fatalf("merged batch has %d runes", n)
		}
		if b.Kind == KindCarriageReturn && strings.Contains(b.Text, "\n") {
			t.Fatal("carriage-return batch was merged")
		}
		got += n - strings.Count(b.Text, "\n")
	}
	if got != pushed {
		t.Fatalf("payload runes = %d, want %d (nothing may be dropped)", got, pushed)
	}
}

func TestCollapseOverwrites(t *testing.T) {
	q := &queue{collapse: true}
	q.push(cr("orphan")) // empty queue: appended
	q.push(nl("a"))
	q.push(cr("b"))
	q.push(cr("c"))

	// The newline keeps its kind but takes the latest overwrite.
	want := []Segment{cr("orphan"), nl("c")}
	if diff := cmp.Diff(want, drainBatches(q)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

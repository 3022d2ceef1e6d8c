package interval

import (
	"math/rand"
	"testing"
	"time"
)

var base = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func iv(startMin, endMin int) Interval {
	return Interval{
		Start: base.Add(time.Duration(startMin) * time.Minute),
		End:   base.Add(time.Duration(endMin) * time.Minute),
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	cases := []struct {
		a, b Interval
		want bool
	}{
		{iv(0, 30), iv(30, 60), false},
		{iv(0, 31), iv(30, 60), true},
		{iv(10, 20), iv(0, 60), true},
		{iv(30, 30), iv(0, 60), false},
		{iv(0, 60), iv(60, 60), false},
		{iv(0, 60), iv(0, 0), false},
	}
	for i, tc := range cases {
		if got := Overlaps(tc.a, tc.b); got != tc.want {
			t.Fatalf("case %d: Overlaps = %v, want %v", i, got, tc.want)
		}
		if got := Overlaps(tc.b, tc.a); got != tc.want {
			t.Fatalf("case %d: Overlaps not symmetric", i)
		}
	}
}

func TestEmptyIntervalAgreesAcrossOverlapChecks(t *testing.T) {
	set := Merge([]Interval{iv(0, 60)})
	target := iv(30, 30)
	if Overlaps(target, set[0]) || OverlapsAny(target, set) {
		t.Fatal("an empty interval must not overlap")
	}
}

func TestMerge(t *testing.T) {
	got := Merge([]Interval{iv(60, 90), iv(0, 30), iv(30, 45), iv(80, 120), iv(200, 200)})
	want := []Interval{iv(0, 45), iv(60, 120)}
	if len(got) != len(want) {
		t.Fatalf("expected %d intervals, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Fatalf("interval %d: got %v, want %v", i, got[i], want[i])
		}
	}
	if Merge(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestSubtract(t *testing.T) {
	free := []Interval{iv(540, 1020)}
	blocked := []Interval{iv(600, 630), iv(500, 550), iv(1000, 1100)}
	got := Subtract(free, blocked)
	want := []Interval{iv(550, 600), iv(630, 1000)}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Fatalf("interval %d: got %v, want %v", i, got[i], want[i])
		}
	}
	if out := Subtract(free, []Interval{iv(0, 2000)}); len(out) != 0 {
		t.Fatalf("expected fully blocked, got %v", out)
	}
}

func TestOverlapsAnyMatchesLinearScan(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 500; round++ {
		var raw []Interval
		for i := 0; i < r.Intn(8); i++ {
			s := r.Intn(1400)
			raw = append(raw, iv(s, s+r.Intn(90)))
		}
		merged := Merge(raw)
		s := r.Intn(1440)
		// Zero-length targets are included; both paths must call them free.
		target := iv(s, s+r.Intn(61))

		want := false
		for _, b := range raw {
			if Overlaps(target, b) {
				want = true
				break
			}
		}
		if got := OverlapsAny(target, merged); got != want {
			t.Fatalf("round %d: OverlapsAny=%v linear=%v target=%v set=%v", round, got, want, target, raw)
		}
	}
}

func TestClip(t *testing.T) {
	got := Clip([]Interval{iv(0, 100), iv(200, 300)}, iv(50, 250))
	if len(got) != 2 || !got[0].Start.Equal(iv(50, 50).Start) || !got[1].End.Equal(iv(250, 250).End) {
		t.Fatalf("unexpected clip %v", got)
	}
}

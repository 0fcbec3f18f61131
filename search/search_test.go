package search

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestFilter_CommitsOnceAfterBurst(t *testing.T) {
	start := time.Unix(0, 0)
	clk := clocktesting.NewFakeClock(start)
	var commits []string
	// The callback runs under the fake clock's lock and must not call it.
	f := NewFilter(func(v string) { commits = append(commits, v) }, &Config{Clock: clk})

	// Keystrokes at 0, 200, 400 and 1800 ms.
	steps := []struct {
		at    time.Duration
		input string
	}{
		{0, "p"},
		{200 * time.Millisecond, "pi"},
		{400 * time.Millisecond, "pika"},
		{1800 * time.Millisecond, "pikachu"},
	}
	for _, s := range steps {
		clk.SetTime(start.Add(s.at))
		f.SetRaw(s.input)
		if got := f.Raw(); got != s.input {
			t.Errorf("Raw() = %q, want %q", got, s.input)
		}
		if got := f.Committed(); got != "" {
			t.Fatalf("committed %q at %v, before the burst ended", got, s.at)
		}
	}

	clk.SetTime(start.Add(3299 * time.Millisecond))
	if len(commits) != 0 {
		t.Fatalf("committed early: %v", commits)
	}
	clk.SetTime(start.Add(3300 * time.Millisecond))
	if diff := cmp.Diff([]string{"pikachu"}, commits); diff != "" {
		t.Errorf("commits at 3300ms mismatch (-want +got):\n%s", diff)
	}

	clk.SetTime(start.Add(10 * time.Second))
	if len(commits) != 1 {
		t.Errorf("committed %d times, want 1", len(commits))
	}
	if f.Committed() != "pikachu" {
		t.Errorf("Committed() = %q, want pikachu", f.Committed())
	}
}

// A gap of exactly DebounceInterval is not a burst: the timer is due when the
// next keystroke lands, so the earlier value commits first. With keystrokes
// at 0/200/400/1900 ms, "pika" commits at 1900 and "pikachu" at 3400.
func TestFilter_GapOfExactlyIntervalCommitsTwice(t *testing.T) {
	start := time.Unix(0, 0)
	clk := clocktesting.NewFakeClock(start)
	var commits []string
	f := NewFilter(func(v string) { commits = append(commits, v) }, &Config{Clock: clk})

	steps := []struct {
		at    time.Duration
		input string
	}{
		{0, "p"},
		{200 * time.Millisecond, "pi"},
		{400 * time.Millisecond, "pika"},
		{1900 * time.Millisecond, "pikachu"},
	}
	for _, s := range steps {
		clk.SetTime(start.Add(s.at))
		f.SetRaw(s.input)
	}
	if diff := cmp.Diff([]string{"pika"}, commits); diff != "" {
		t.Errorf("commits at 1900ms mismatch (-want +got):\n%s", diff)
	}

	clk.SetTime(start.Add(3400 * time.Millisecond))
	if diff := cmp.Diff([]string{"pika", "pikachu"}, commits); diff != "" {
		t.Errorf("commits at 3400ms mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_UnchangedValueDoesNotCommit(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Unix(0, 0))
	commits := 0
	f := NewFilter(func(string) { commits++ }, &Config{Initial: "cats", Clock: clk})

	f.SetRaw("cat")
	f.SetRaw("cats")
	clk.Step(DebounceInterval)

	if commits != 0 {
		t.Errorf("commits = %d, want 0 when the value returns to the committed one", commits)
	}
}

func TestFilter_Flush(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Unix(0, 0))
	var got string
	f := NewFilter(func(v string) { got = v }, &Config{Clock: clk})

	f.SetRaw("dogs")
	if !f.Pending() {
		t.Error("Expected pending input")
	}
	f.Flush()
	if got != "dogs" {
		t.Errorf("commit = %q, want dogs", got)
	}
}

func TestFilter_Close(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Unix(0, 0))
	commits := 0
	f := NewFilter(func(string) { commits++ }, &Config{Clock: clk})

	f.SetRaw("a")
	f.Close()
	f.SetRaw("b")
	clk.Step(time.Minute)
	if commits != 0 {
		t.Errorf("commits = %d after Close, want 0", commits)
	}
	if f.Raw() != "b" {
		t.Errorf("Raw() = %q, want b", f.Raw())
	}
}

package defs

import "testing"

func TestTaskStatusString(t *testing.T) {
	cases := map[TaskStatus]string{
		UnInit:        "uninit",
		Ready:         "ready",
		Running:       "running",
		Zombie:        "zombie",
		TaskStatus(99): "unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", int(status), got, want)
		}
	}
}

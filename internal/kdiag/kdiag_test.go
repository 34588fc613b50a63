package kdiag

import (
	"os"
	"path/filepath"
	"testing"

	"rvcore/addr"
	"rvcore/frame"
	"rvcore/physmem"
)

func TestWriteFrameProfileProducesAReadableFile(t *testing.T) {
	physmem.Init(16 * 4096)
	frame.Init(0, addr.PPN(16))

	tr := frame.NewTracker(frame.Global)
	defer tr.Free()

	path := filepath.Join(t.TempDir(), "frames.pprof")
	if err := WriteFrameProfile(path, frame.Global); err != nil {
		t.Fatalf("WriteFrameProfile: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected a profile file to exist: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected a non-empty profile file")
	}
}

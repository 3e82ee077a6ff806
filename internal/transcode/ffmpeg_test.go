package transcode

import (
	"os"
	"os/exec"
	"testing"
	"time"
)

func TestNewRunnerFalseWhenFfmpegAbsent(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err == nil {
		t.Skip("ffmpeg is installed on this host, can't exercise the absent-binary path")
	}
	_, ok := NewRunner(time.Second)
	if ok {
		t.Fatalf("expected ok=false when ffmpeg is not on PATH")
	}
}

func TestNewRunnerDefaultsTimeout(t *testing.T) {
	fakeBin := t.TempDir()
	ffmpegPath := fakeBin + "/ffmpeg"
	if err := os.WriteFile(ffmpegPath, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("writing fake ffmpeg: %v", err)
	}
	t.Setenv("PATH", fakeBin)

	r, ok := NewRunner(0)
	if !ok {
		t.Fatalf("expected ok=true with fake ffmpeg on PATH")
	}
	if r.timeout != 60*time.Second {
		t.Fatalf("expected default 60s timeout, got %v", r.timeout)
	}
}

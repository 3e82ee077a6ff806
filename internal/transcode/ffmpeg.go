// Package transcode wraps ffmpeg subprocess invocations used to normalize
// images the native decoders can't handle and to remux concatenated HLS
// segments into a standard container. The command-building and
// deadline/kill idiom follows eleven-am-goshl's ffmpeg.CommandBuilder and
// transcode.Worker.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/vontrex/mediaingest/pkg/logger"
)

const component = "transcode"

// Runner shells out to a locally installed ffmpeg binary. NewRunner reports
// ok=false (instead of erroring) when ffmpeg can't be found, so callers can
// degrade gracefully per §4.5/§4.6 rather than fail the whole request.
type Runner struct {
	binary  string
	timeout time.Duration
}

// NewRunner looks up "ffmpeg" on PATH. ok is false when it isn't installed.
func NewRunner(timeout time.Duration) (r *Runner, ok bool) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, false
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Runner{binary: path, timeout: timeout}, true
}

// NormalizeImage re-encodes src into dst in the target format (e.g. "png",
// "jpg"), used when the native webp/image decoders in the image handler
// can't handle a format.
func (r *Runner) NormalizeImage(ctx context.Context, src, dst string) error {
	args := []string{"-y", "-i", src, dst}
	return r.run(ctx, args)
}

// RemuxConcat remuxes a concatenated .ts file into an mp4 container via
// stream copy (no re-encode), used for the ffmpeg-remux branch of HLS
// assembly when config.UseFFmpeg is set.
func (r *Runner) RemuxConcat(ctx context.Context, tsPath, mp4Path string) error {
	args := []string{
		"-y",
		"-i", tsPath,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		mp4Path,
	}
	return r.run(ctx, args)
}

func (r *Runner) run(ctx context.Context, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("transcode: starting ffmpeg: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		logger.Warnf(component, "ffmpeg killed after timeout: %v", ctx.Err())
		return fmt.Errorf("transcode: ffmpeg timed out: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("transcode: ffmpeg failed: %w (%s)", err, stderr.String())
		}
		return nil
	}
}

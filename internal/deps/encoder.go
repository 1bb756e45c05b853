package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionProbeTimeout = 5 * time.Second

// EncoderRequirements lists the binaries the transcode stage executes.
func EncoderRequirements(ffmpegBinary, ffprobeBinary string) []Requirement {
	return []Requirement{
		{
			Name:    "FFmpeg",
			Command: ffmpegBinary,
			Purpose: "transcoding",
		},
		{
			Name:    "FFprobe",
			Command: ffprobeBinary,
			Purpose: "duration and stream verification",
		},
	}
}

// ProbeVersion runs "<command> -version" and returns the first output line.
// ffmpeg and ffprobe both print "ffmpeg version N ..." style banners.
func ProbeVersion(ctx context.Context, command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", ErrNotConfigured
	}
	probeCtx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	output, err := exec.CommandContext(probeCtx, command, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", command, err)
	}
	first, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(first), nil
}

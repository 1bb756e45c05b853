package encoding

import (
	"fmt"
	"strconv"
)

// Options holds the encode parameters shared by every job.
type Options struct {
	Preset       string
	CRF          int
	AudioBitrate string
}

// Job is one encode invocation.
type Job struct {
	Input        string
	Output       string
	Timecode     string
	CreationTime string
	AudioStreams int
}

// quadAudioStreams is the track layout that needs explicit maps.
const quadAudioStreams = 4

// BuildArgs returns the ffmpeg argument list for job. The binary name is not
// included.
func BuildArgs(opts Options, job Job) []string {
	args := make([]string, 0, 64)
	args = append(args, "-hide_banner", "-loglevel", "error", "-vsync", "0", "-i", job.Input, "-c", "copy")

	if job.AudioStreams == quadAudioStreams {
		args = append(args, "-filter_complex", "[0:v]setpts=PTS-STARTPTS[v]", "-map", "[v]")
		for i := 0; i < quadAudioStreams; i++ {
			args = append(args, "-map", fmt.Sprintf("0:a:%d", i))
		}
	}

	args = append(args,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-preset", opts.Preset,
		"-crf", strconv.Itoa(opts.CRF),
		"-profile:v", "high",
		"-x264opts", "weightp=0:tff=1",
		"-write_tmcd", "1",
		"-gop_timecode", job.Timecode,
		"-metadata", "creation_time="+job.CreationTime,
		"-metadata", "timecode="+job.Timecode,
	)

	if job.AudioStreams == 0 {
		args = append(args, "-an")
	} else {
		args = append(args, "-c:a", "aac", "-b:a", opts.AudioBitrate, "-ac", "2", "-ar", "48000")
	}

	return append(args, "-y", "-f", "mov", job.Output)
}

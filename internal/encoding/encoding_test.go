package encoding_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcmigrate/internal/encoding"
	"arcmigrate/internal/logging"
	"arcmigrate/internal/media/ffprobe"
	"arcmigrate/internal/payload"
	"arcmigrate/internal/services"
	"arcmigrate/internal/testsupport"
)

type fakeProber struct {
	durations map[string]string
	audio     int
}

func (p *fakeProber) Probe(_ context.Context, path string) (ffprobe.Result, error) {
	d, ok := p.durations[path]
	if !ok {
		return ffprobe.Result{}, errors.New("no such file")
	}
	result := ffprobe.Result{Format: ffprobe.Format{Duration: d}}
	for i := 0; i < p.audio; i++ {
		result.Streams = append(result.Streams, ffprobe.Stream{CodecType: "audio"})
	}
	return result, nil
}

type fakeRunner struct {
	calls  int
	args   []string
	stderr string
	err    error
	write  func(output string)
}

func (r *fakeRunner) Run(_ context.Context, _ string, args []string) (string, error) {
	r.calls++
	r.args = args
	if r.write != nil {
		r.write(args[len(args)-1])
	}
	return r.stderr, r.err
}

func newRequest(t *testing.T) (encoding.Request, string) {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "media", "clip.mxf")
	testsupport.WriteFile(t, source, 100)
	return encoding.Request{
		Source:          source,
		Output:          filepath.Join(dir, "staging", "clip.mov"),
		Timecode:        "10:00:00",
		CreationTime:    time.Date(2019, 3, 1, 12, 30, 0, 0, time.UTC),
		CatalogDuration: 100,
	}, dir
}

func TestTranscodeSuccessStampsOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	req, _ := newRequest(t)
	prober := &fakeProber{audio: 2, durations: map[string]string{req.Source: "100.0"}}
	runner := &fakeRunner{stderr: "Application provided duration: -1\n", write: func(out string) {
		testsupport.WriteFile(t, out, 10)
		prober.durations[out] = "101.0"
	}}
	enc := encoding.NewEncoder(cfg, logging.NewNop(), encoding.WithProber(prober), encoding.WithRunner(runner))

	require.NoError(t, enc.Transcode(context.Background(), req))
	assert.Equal(t, 1, runner.calls)
	assert.Contains(t, runner.args, "aac")

	info, err := os.Stat(req.Output)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(req.CreationTime))
}

func TestTranscodeReusesValidStagedOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	req, _ := newRequest(t)
	testsupport.WriteFile(t, req.Output, 10)
	prober := &fakeProber{durations: map[string]string{req.Source: "100", req.Output: "100"}}
	runner := &fakeRunner{}
	enc := encoding.NewEncoder(cfg, logging.NewNop(), encoding.WithProber(prober), encoding.WithRunner(runner))

	require.NoError(t, enc.Transcode(context.Background(), req))
	assert.Zero(t, runner.calls)
}

func TestTranscodeRejectsDurationJustOverTolerance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	req, _ := newRequest(t)
	prober := &fakeProber{durations: map[string]string{req.Source: "100"}}
	runner := &fakeRunner{write: func(out string) {
		testsupport.WriteFile(t, out, 10)
		prober.durations[out] = "94.99"
	}}
	enc := encoding.NewEncoder(cfg, logging.NewNop(), encoding.WithProber(prober), encoding.WithRunner(runner))

	err := enc.Transcode(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrValidation))
	assert.Equal(t, services.OutcomeFatal, services.Classify(err))
}

func TestTranscodeEncoderFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	req, _ := newRequest(t)
	prober := &fakeProber{durations: map[string]string{req.Source: "100"}}
	runner := &fakeRunner{stderr: "Invalid data found", err: errors.New("exit status 1")}
	enc := encoding.NewEncoder(cfg, logging.NewNop(), encoding.WithProber(prober), encoding.WithRunner(runner))

	err := enc.Transcode(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrExternalTool))
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestDurationMatches(t *testing.T) {
	assert.True(t, encoding.DurationMatches(100, 105, 0.05))
	assert.True(t, encoding.DurationMatches(100, 95, 0.05))
	assert.False(t, encoding.DurationMatches(100, 105.01, 0.05))
	assert.False(t, encoding.DurationMatches(100, 0, 0.05))
}

func TestBuildArgsAudioLayouts(t *testing.T) {
	opts := encoding.Options{Preset: "medium", CRF: 22, AudioBitrate: "224k"}
	job := encoding.Job{Input: "in.mxf", Output: "out.mov", Timecode: "10:00:00", CreationTime: "2019-03-01 12:30:00"}

	silent := strings.Join(encoding.BuildArgs(opts, job), " ")
	assert.Contains(t, silent, "-an")
	assert.NotContains(t, silent, "-c:a")
	assert.True(t, strings.HasPrefix(silent, "-hide_banner -loglevel error -vsync 0 -i in.mxf -c copy -c:v libx264"))
	assert.True(t, strings.HasSuffix(silent, "-y -f mov out.mov"))
	assert.Contains(t, silent, "-metadata creation_time=2019-03-01 12:30:00 -metadata timecode=10:00:00")

	job.AudioStreams = 4
	quad := strings.Join(encoding.BuildArgs(opts, job), " ")
	assert.Contains(t, quad, "-filter_complex [0:v]setpts=PTS-STARTPTS[v] -map [v] -map 0:a:0 -map 0:a:1 -map 0:a:2 -map 0:a:3")
	assert.Contains(t, quad, "-c:a aac -b:a 224k -ac 2 -ar 48000")

	job.AudioStreams = 2
	stereo := strings.Join(encoding.BuildArgs(opts, job), " ")
	assert.NotContains(t, stereo, "-filter_complex")
	assert.Contains(t, stereo, "-c:a aac")
}

func TestCreationTime(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	build := func(captured, action string) *payload.Envelope {
		record := `{"data": {"metadata": {"captured": "` + captured + `"}, "asset": {"custom": {}}}}`
		env, err := payload.Parse([]byte(record))
		require.NoError(t, err)
		if action != "" {
			env.SetCustom(payload.CustomActionDate, action)
		}
		return env
	}

	cases := []struct {
		name     string
		captured string
		action   string
		want     time.Time
	}{
		{"earlier plausible action date", "2021-04-17T23:52:00Z", "2019-02-03", time.Date(2019, 2, 3, 23, 52, 0, 0, time.UTC)},
		{"earlier implausible action date", "2021-04-17T23:52:00Z", "2001-02-03", time.Date(2021, 4, 17, 23, 52, 0, 0, time.UTC)},
		{"missing action date", "2021-04-17T23:52:00Z", "", time.Date(2021, 4, 17, 23, 52, 0, 0, time.UTC)},
		{"implausible capture year", "1970-01-01T08:00:00Z", "", time.Date(2100, 1, 1, 8, 0, 0, 0, time.UTC)},
		{"capture in current year", "2024-02-01T10:00:00Z", "2024-03-01", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := encoding.CreationTime(build(tc.captured, tc.action), 2015, now)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %s", got)
		})
	}
}

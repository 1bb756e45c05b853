// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs the binary; Command adapts it to the Prober interface so the
// encoder and transcode stage can be tested with canned Results. Helper
// methods on Result count audio and video streams and parse the duration the
// transcode stage compares against the catalog.
package ffprobe

// Package encoding runs the external encoder for the transcode stage.
//
// BuildArgs produces the ffmpeg argument list (never a shell string) from
// the item's timecode, creation time and audio layout. Encoder runs it with a
// timeout proportional to the source duration, then independently verifies
// the output duration against the source before accepting it. CreationTime
// derives the timestamp written into the output metadata.
package encoding

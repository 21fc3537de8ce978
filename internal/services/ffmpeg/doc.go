// Package ffmpeg wraps the ffmpeg and ffprobe binaries for stream muxing,
// audio extraction, container conversion and media inspection.
package ffmpeg

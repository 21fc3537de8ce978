// Package processor adapts the external yt-dlp and ffmpeg tools into the
// operations the orchestrator schedules. It selects the retrieval variant
// per request, names output files, and turns tool output into results.
package processor

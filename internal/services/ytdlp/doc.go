// Package ytdlp wraps yt-dlp for metadata probing, media downloads,
// subtitle fetching and thumbnail capture.
package ytdlp

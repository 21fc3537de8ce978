// Package language provides unified language code normalization and mapping.
//
// Subtitle languages arrive from requests and configuration in mixed forms
// (ISO 639-1, ISO 639-2, BCP-47 tags, full words); all conversions are
// consolidated here so the download pipeline hands yt-dlp a single canonical
// form. A curated table covers the common codes plus the ISO 639-2/B
// variants; golang.org/x/text resolves the rest.
package language

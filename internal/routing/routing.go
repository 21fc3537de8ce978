package routing

import (
	"fmt"
	"strings"
)

// Operation classifies the work a request asks the backend to perform.
type Operation string

const (
	OpMetadata  Operation = "metadata"
	OpExtract   Operation = "extract"
	OpInfo      Operation = "info"
	OpSubtitles Operation = "subtitles"
	OpThumbnail Operation = "thumbnail"
	OpCaptions  Operation = "captions"
	OpDownload  Operation = "download"
	OpStream    Operation = "stream"
)

// Variant identifies the backend path that performs an operation.
type Variant string

const (
	// VariantDirect is the lightweight progressive-download path, viable
	// only up to the direct-quality ceiling.
	VariantDirect Variant = "direct"
	// VariantSplitRender downloads video and audio streams separately and
	// muxes them in a rendering step.
	VariantSplitRender Variant = "split_render"
	// VariantFullFeatured is the general-purpose extractor path used for
	// metadata, subtitles, thumbnails and anything unrecognized.
	VariantFullFeatured Variant = "full_featured"
)

// RequiresRender reports whether the variant includes the muxing step.
func (v Variant) RequiresRender() bool {
	return v == VariantSplitRender
}

// DefaultDirectCeiling is the highest quality served by progressive streams.
const DefaultDirectCeiling = 720

// Policy is a pure decision function from requested quality and operation
// to backend variant. The zero value uses DefaultDirectCeiling.
type Policy struct {
	// DirectCeiling is the highest quality the direct path may serve.
	DirectCeiling int
}

// Select returns the backend variant for the given quality and operation.
// Total over all inputs: unknown operations fall back to the full-featured
// path rather than failing.
func (p Policy) Select(quality int, op Operation) Variant {
	switch normalizeOperation(op) {
	case OpMetadata, OpExtract, OpInfo:
		return VariantFullFeatured
	case OpSubtitles, OpThumbnail, OpCaptions:
		return VariantFullFeatured
	case OpDownload, OpStream:
		if quality <= p.ceiling() {
			return VariantDirect
		}
		return VariantSplitRender
	default:
		return VariantFullFeatured
	}
}

// RequiresRender reports whether a download at the given quality needs the
// split-download-then-render path.
func (p Policy) RequiresRender(quality int) bool {
	return quality > p.ceiling()
}

func (p Policy) ceiling() int {
	if p.DirectCeiling > 0 {
		return p.DirectCeiling
	}
	return DefaultDirectCeiling
}

func normalizeOperation(op Operation) Operation {
	return Operation(strings.ToLower(strings.TrimSpace(string(op))))
}

// DirectFormat returns the yt-dlp format selector for the direct path.
func DirectFormat(quality int) string {
	return fmt.Sprintf("best[height<=%d]", quality)
}

// SplitFormats returns the yt-dlp format selectors for the split path's
// video and audio downloads.
func SplitFormats(quality int) (video, audio string) {
	return fmt.Sprintf("bestvideo[height<=%d]", quality), "bestaudio"
}

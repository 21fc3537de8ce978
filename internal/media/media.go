package media

// Quality bounds accepted for download requests, expressed as video heights.
const (
	MinQuality = 144
	MaxQuality = 2160
)

var supportedFormats = []string{"mp4", "webm", "mkv"}

var qualityLadder = []int{144, 240, 360, 480, 720, 1080, 1440, 2160}

// SupportedFormats returns the container formats download requests may name.
func SupportedFormats() []string {
	out := make([]string, len(supportedFormats))
	copy(out, supportedFormats)
	return out
}

// FormatSupported reports whether format is an accepted container format.
func FormatSupported(format string) bool {
	for _, f := range supportedFormats {
		if f == format {
			return true
		}
	}
	return false
}

// QualityLadder returns the commonly available quality steps.
func QualityLadder() []int {
	out := make([]int, len(qualityLadder))
	copy(out, qualityLadder)
	return out
}

// QualityInRange reports whether quality is within the accepted bounds.
func QualityInRange(quality int) bool {
	return quality >= MinQuality && quality <= MaxQuality
}

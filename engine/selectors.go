package engine

import "fmt"

// Quality bounds for explicit-quality video requests. Anything outside is
// clamped, not rejected: the user asked for "as good as possible", not for
// an error.
const (
	MinQuality = 480
	MaxQuality = 1080
)

// ClampQuality forces a requested height into [MinQuality, MaxQuality].
func ClampQuality(quality int) int {
	if quality < MinQuality {
		return MinQuality
	}
	if quality > MaxQuality {
		return MaxQuality
	}
	return quality
}

// videoSelector is the single best-effort selector for video-by-URL, capped
// at 1080p.
const videoSelector Selector = "bestvideo[height<=1080]+bestaudio/best[height<=1080]/best"

// audioSelectors is the trial order for audio acquisition, most preferred
// container first.
var audioSelectors = []Selector{
	"bestaudio[ext=m4a]/bestaudio[ext=mp3]/bestaudio/best",
	"bestaudio/best",
	"ba/b",
}

// QualityLadder generates the descending-specificity selector ladder for an
// explicit quality request. Stricter selectors fail silently on some videos
// lacking matching streams, hence the combined-stream fallback, the
// unconstrained "best" and the fixed legacy format code 18 at the end.
func QualityLadder(quality int) []Selector {
	q := ClampQuality(quality)
	return []Selector{
		Selector(fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]/best", q, q)),
		Selector(fmt.Sprintf("bv*[height<=%d]+ba/b[height<=%d]/b", q, q)),
		Selector(fmt.Sprintf("best[height<=%d]/best", q)),
		"best",
		"18",
	}
}

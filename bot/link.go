package bot

import (
	"regexp"

	"github.com/ulugbekdev/savetube/tube"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// ExtractLink returns the first YouTube video link found in free text.
// Users paste links with surrounding chatter; only a URL that actually
// resolves to a video id counts.
func ExtractLink(text string) (string, bool) {
	for _, candidate := range urlPattern.FindAllString(text, -1) {
		if _, err := tube.ExtractVideoID(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

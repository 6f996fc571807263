package tube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ValidVideoID reports whether s looks like a YouTube video id.
func ValidVideoID(s string) bool {
	return videoIDPattern.MatchString(s)
}

// ExtractVideoID extracts the video id from a YouTube URL.
//
// Allowed URL formats:
//
//	http(s?)://(www|m).youtube.com/watch?v={VIDEO_ID}
//	http(s?)://(www|m).youtube.com/(v|shorts|live|embed)/{VIDEO_ID}
//	http(s?)://youtu.be/{VIDEO_ID}
func ExtractVideoID(s string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	var id string
	switch parsed.Hostname() {
	case "www.youtube.com", "m.youtube.com", "youtube.com", "music.youtube.com":
		path := strings.Trim(parsed.Path, "/")
		parts := strings.Split(path, "/")
		switch {
		case path == "watch" || path == "details":
			id = parsed.Query().Get("v")
		case len(parts) == 2 && (parts[0] == "v" || parts[0] == "shorts" || parts[0] == "live" || parts[0] == "embed"):
			id = parts[1]
		}
	case "youtu.be":
		id = strings.Trim(parsed.Path, "/")
	default:
		return "", fmt.Errorf("unrecognised hostname %q", parsed.Hostname())
	}
	if !ValidVideoID(id) {
		return "", fmt.Errorf("could not extract video id from %q", s)
	}
	return id, nil
}

package watch

import "regexp"

// youtubeURLPattern accepts watch, embed, short-path, shorts and
// youtu.be links, with or without scheme and www. The 11 character
// video id must follow the recognised prefix.
var youtubeURLPattern = regexp.MustCompile(
	`^(?:https?://)?(?:www\.)?` +
		`(?:youtube\.com/(?:watch\?v=|embed/|v/|shorts/)|youtu\.be/)` +
		`[A-Za-z0-9_-]{11}`)

// IsYouTubeURL reports whether text is a link to a single YouTube video.
func IsYouTubeURL(text string) bool {
	return youtubeURLPattern.MatchString(text)
}

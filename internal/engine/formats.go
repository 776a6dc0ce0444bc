package engine

import "strings"

// Audio formats map to bestaudio with a post-extraction target; everything
// else is treated as a video container selection.
var audioFormats = map[string]string{
	"mp3":  "mp3",
	"m4a":  "m4a",
	"opus": "opus",
}

var qualityHeights = map[string]string{
	"2160p": "2160",
	"2160":  "2160",
	"4k":    "2160",
	"1440p": "1440",
	"1440":  "1440",
	"1080p": "1080",
	"1080":  "1080",
	"hd":    "1080",
	"720p":  "720",
	"720":   "720",
	"480p":  "480",
	"480":   "480",
}

// Selector maps a format/quality pair onto a yt-dlp format expression. It is
// a pure lookup: unknown values degrade to the broadest matching selector
// rather than erroring, mirroring how yt-dlp itself treats absent filters.
func Selector(format, quality string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	quality = strings.ToLower(strings.TrimSpace(quality))

	if _, ok := audioFormats[format]; ok {
		return "bestaudio/best"
	}

	height, limited := qualityHeights[quality]

	switch format {
	case "mp4":
		if limited {
			return "bv*[ext=mp4][height<=" + height + "]+ba[ext=m4a]/b[ext=mp4][height<=" + height + "]/bv*[height<=" + height + "]+ba/b[height<=" + height + "]"
		}
		return "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]/bv*+ba/b"
	case "webm":
		if limited {
			return "bv*[ext=webm][height<=" + height + "]+ba[ext=webm]/b[ext=webm][height<=" + height + "]/bv*[height<=" + height + "]+ba/b[height<=" + height + "]"
		}
		return "bv*[ext=webm]+ba[ext=webm]/b[ext=webm]/bv*+ba/b"
	default:
		if limited {
			return "bv*[height<=" + height + "]+ba/b[height<=" + height + "]"
		}
		return "bv*+ba/b"
	}
}

// AudioTarget returns the post-processing audio codec for a format, or empty
// when the format is not audio-only.
func AudioTarget(format string) string {
	return audioFormats[strings.ToLower(strings.TrimSpace(format))]
}

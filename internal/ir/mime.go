package ir

import (
	"path/filepath"
	"strings"
)

// DefaultMimeType is used when a source has no known extension.
const DefaultMimeType = "application/x-ginga-timer"

// SettingsMimeType marks the global settings node.
const SettingsMimeType = "application/x-ginga-settings"

var mimeByExtension = map[string]string{
	"ac3":   "audio/ac3",
	"avi":   "video/x-msvideo",
	"bmp":   "image/bmp",
	"bpg":   "image/bpg",
	"class": "application/x-ginga-NCLet",
	"css":   "text/css",
	"gif":   "image/gif",
	"htm":   "text/html",
	"html":  "text/html",
	"jpeg":  "image/jpeg",
	"jpg":   "image/jpeg",
	"lua":   "application/x-ginga-NCLua",
	"mkv":   "video/x-mkv",
	"mov":   "video/quicktime",
	"mp2":   "audio/mp2",
	"mp3":   "audio/mp3",
	"mp4":   "video/mp4",
	"mpa":   "audio/mpa",
	"mpeg":  "video/mpeg",
	"mpg":   "video/mpeg",
	"mpv":   "video/mpv",
	"ncl":   "application/x-ginga-ncl",
	"oga":   "audio/ogg",
	"ogg":   "audio/ogg",
	"ogv":   "video/ogg",
	"opus":  "audio/ogg",
	"png":   "image/png",
	"smil":  "application/smil",
	"spx":   "audio/ogg",
	"srt":   "text/srt",
	"svg":   "image/svg+xml",
	"svgz":  "image/svg+xml",
	"ts":    "video/mpeg",
	"txt":   "text/plain",
	"wav":   "audio/basic",
	"webp":  "image/x-webp",
	"wmv":   "video/x-ms-wmv",
	"xlet":  "application/x-ginga-NCLet",
	"xlt":   "application/x-ginga-NCLet",
	"xml":   "text/xml",
}

// MimeTypeFor infers a mime type from the extension of src.
func MimeTypeFor(src string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(src), "."))
	if mt, ok := mimeByExtension[ext]; ok {
		return mt
	}
	return DefaultMimeType
}

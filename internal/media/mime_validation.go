package media

import (
	"fmt"
	"mime"
	"sort"
	"strings"
)

type mimeGroup string

const (
	mimeGroupImages mimeGroup = "images"
	mimeGroupVideos mimeGroup = "videos"
	mimeGroupPDFs   mimeGroup = "PDFs"
)

// extensionsByMime lists the evidence formats staff can upload: receipt and
// food photos, short cooking or delivery clips, and scanned invoices.
var extensionsByMime = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"video/mp4":       ".mp4",
	"application/pdf": ".pdf",
}

var groupByMime = map[string]mimeGroup{
	"image/jpeg":      mimeGroupImages,
	"image/png":       mimeGroupImages,
	"image/webp":      mimeGroupImages,
	"image/heic":      mimeGroupImages,
	"video/mp4":       mimeGroupVideos,
	"application/pdf": mimeGroupPDFs,
}

var allowedExtensions = buildAllowedExtensions()

func buildAllowedExtensions() map[string]struct{} {
	out := make(map[string]struct{}, len(extensionsByMime))
	for _, ext := range extensionsByMime {
		out[ext] = struct{}{}
	}
	return out
}

func allowedMimeDescription() string {
	seen := make(map[mimeGroup]struct{})
	var names []string
	for _, group := range groupByMime {
		if _, ok := seen[group]; ok {
			continue
		}
		seen[group] = struct{}{}
		names = append(names, string(group))
	}
	sort.Strings(names)
	return humanReadableList(names)
}

func humanReadableList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return fmt.Sprintf("%s or %s", items[0], items[1])
	default:
		return fmt.Sprintf("%s, or %s", strings.Join(items[:len(items)-1], ", "), items[len(items)-1])
	}
}

// normalizeMimeType strips parameters and lowercases the media type.
func normalizeMimeType(value string) (string, error) {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return "", fmt.Errorf("mime type required")
	}
	mediaType, _, err := mime.ParseMediaType(clean)
	if err != nil {
		return "", fmt.Errorf("mime type invalid: %w", err)
	}
	return strings.ToLower(mediaType), nil
}

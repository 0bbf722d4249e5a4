package linksave

import (
	"fmt"
	"regexp"
	"strings"
)

// urlPattern matches the first link-ish token inside a chat message. Slack
// wraps URLs in angle brackets, which are stripped before matching.
var urlPattern = regexp.MustCompile(`(https?://)?([\da-z.-]+)\.([a-z.]{2,6})([/\w.%&=?#~+-]*)*/?`)

// ExtractURL pulls the first URL out of a chat message, or "" if none.
func ExtractURL(message string) string {
	cleaned := strings.NewReplacer("<", " ", ">", " ").Replace(message)
	return urlPattern.FindString(cleaned)
}

// RenderEntry produces the markdown document committed to the links repo for
// one saved link.
func RenderEntry(link *Link) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %q\n", link.Title)
	fmt.Fprintf(&b, "link: %s\n", link.URL)
	if link.Description != "" {
		fmt.Fprintf(&b, "excerpt: %q\n", link.Description)
	}
	fmt.Fprintf(&b, "category: %s\n", link.Category)
	if link.Image != "" {
		fmt.Fprintf(&b, "image: %s\n", link.Image)
	}
	fmt.Fprintf(&b, "user: %s\n", link.SavedBy)
	b.WriteString("---\n")
	return b.String()
}

// EntryFilename is the repo-relative path for a saved link's markdown entry.
func EntryFilename(link *Link) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, link.Title)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "link"
	}
	if len(slug) > 60 {
		slug = slug[:60]
	}
	return fmt.Sprintf("_links/%s/%d-%s.md", link.Category, link.SavedAt.Unix(), slug)
}

// Package linksave fetches preview metadata for shared links and archives
// them to a local SQLite database, from which markdown entries are published
// to the team's link collection repository.
package linksave

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Details is the preview metadata extracted from a page.
type Details struct {
	Title       string
	Description string
	Image       string
}

// Unfurler fetches pages and extracts preview metadata. og:/meta tags win
// over the document title.
type Unfurler struct {
	client *http.Client
}

// NewUnfurler returns an Unfurler with a bounded request timeout.
func NewUnfurler(timeout time.Duration) *Unfurler {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Unfurler{client: &http.Client{Timeout: timeout}}
}

// Unfurl fetches url and extracts title, description, and preview image.
func (u *Unfurler) Unfurl(ctx context.Context, url string) (*Details, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return extract(doc), nil
}

// extract walks the parsed document collecting meta tags and the <title>
// fallback.
func extract(doc *html.Node) *Details {
	details := &Details{}
	var docTitle string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if n.FirstChild != nil && docTitle == "" {
					docTitle = n.FirstChild.Data
				}
			case "meta":
				key := strings.ToLower(attr(n, "property"))
				if key == "" {
					key = strings.ToLower(attr(n, "name"))
				}
				content := attr(n, "content")
				switch {
				case strings.Contains(key, "title") && details.Title == "":
					details.Title = content
				case strings.Contains(key, "desc") && details.Description == "":
					details.Description = content
				case strings.Contains(key, "image") && details.Image == "":
					details.Image = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if details.Title == "" {
		details.Title = docTitle
	}
	// Pipes clash with the markdown table layout in the links repo.
	details.Title = strings.TrimSpace(strings.ReplaceAll(details.Title, "|", "-"))
	details.Description = strings.TrimSpace(details.Description)
	details.Image = strings.TrimSpace(details.Image)
	return details
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

const maxPageSize = 2 << 20

var titleSuffixes = []string{" - YouTube Music", " - YouTube", " | Spotify", " - playlist by Spotify"}

// PageSource scrapes the link's web page for og:title or <title>
type PageSource struct {
	Client    *http.Client
	UserAgent string
}

// NewPageSource creates a PageSource with a default client
func NewPageSource() *PageSource {
	return &PageSource{Client: http.DefaultClient, UserAgent: "Mozilla/5.0 (compatible; earbound)"}
}

func (s *PageSource) Name() string { return "page" }

func (s *PageSource) Title(ctx context.Context, rawLink string) (string, error) {
	return s.fetchTitle(ctx, rawLink)
}

func (s *PageSource) PlaylistName(ctx context.Context, rawLink string) (string, error) {
	return s.fetchTitle(ctx, rawLink)
}

func (s *PageSource) fetchTitle(ctx context.Context, rawLink string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawLink, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("parsing page: %w", err)
	}
	return trimTitleSuffix(pageTitle(doc)), nil
}

// pageTitle prefers the og:title meta tag over the <title> element
func pageTitle(doc *html.Node) string {
	var og, title string
	forEachNode(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "meta":
			if og == "" && (attr(n, "property") == "og:title" || attr(n, "name") == "og:title") {
				og = strings.TrimSpace(attr(n, "content"))
			}
		case "title":
			if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
		}
	})
	if og != "" {
		return og
	}
	return title
}

func trimTitleSuffix(t string) string {
	for _, suffix := range titleSuffixes {
		if strings.HasSuffix(t, suffix) {
			return strings.TrimSpace(strings.TrimSuffix(t, suffix))
		}
	}
	return t
}

func forEachNode(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		forEachNode(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

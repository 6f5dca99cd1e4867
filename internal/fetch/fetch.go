// Package fetch retrieves web pages and reduces them to readable text
// for the fetch_page tool.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ferrule/courier/internal/httpkit"
)

const (
	requestTimeout = 20 * time.Second
	maxBodyBytes   = 2 << 20
	maxTextRunes   = 20000
)

type Fetcher struct {
	httpc *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{httpc: httpkit.NewClient(httpkit.WithTimeout(requestTimeout))}
}

// Page is the readable content of a fetched document.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// Fetch retrieves the URL and extracts its readable text. Non-HTML
// responses are returned as-is, truncated.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer httpkit.DrainAndClose(resp.Body, maxBodyBytes)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "html") {
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", pageURL, err)
		}
		return &Page{URL: pageURL, Text: truncate(string(raw))}, nil
	}

	title, text, err := ExtractText(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return &Page{URL: pageURL, Title: title, Text: truncate(text)}, nil
}

// skippedElements are subtrees that never contain readable content.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
	"nav":      true,
	"footer":   true,
	"iframe":   true,
	"svg":      true,
}

// blockElements get a newline around their text when rendering.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"article": true, "section": true, "blockquote": true, "pre": true,
}

// ExtractText parses an HTML document and returns its title and the
// visible text with block structure collapsed to newlines.
func ExtractText(r io.Reader) (title, text string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
			if blockElements[n.Data] {
				b.WriteByte('\n')
			}
		case html.TextNode:
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				b.WriteString(trimmed)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	// The title lives in head, which walk skips.
	title = findTitle(doc)
	walk(doc)

	return title, collapseBlank(b.String()), nil
}

func findTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

func collapseBlank(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxTextRunes {
		return s
	}
	return string(runes[:maxTextRunes]) + "\n[truncated]"
}

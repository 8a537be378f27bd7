package extractor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/vmalyshev/studycast/internal/core/domain"
)

type webClient struct {
	httpClient *http.Client
}

func newWebClient() *webClient {
	return &webClient{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (e *Extractor) extractURL(ctx context.Context, rawURL string) domain.DocumentRecord {
	text, err := e.web.pageText(ctx, rawURL)
	if err != nil {
		return domain.FailedRecord(rawURL, fmt.Sprintf("url extraction: %v", err))
	}
	if text == "" {
		return domain.FailedRecord(rawURL, fmt.Sprintf("no readable text at %s", rawURL))
	}
	return domain.NewRecord(domain.SourceURL, rawURL, text)
}

func (c *webClient) pageText(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "studycast/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch page: %s", resp.Status)
	}

	root, err := html.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return visibleText(root), nil
}

// visibleText walks the parsed tree collecting text nodes, skipping
// subtrees that never render as page content.
func visibleText(root *html.Node) string {
	skip := map[string]bool{
		"script": true, "style": true, "noscript": true,
		"head": true, "iframe": true, "svg": true,
	}

	var (
		out  strings.Builder
		walk func(*html.Node)
	)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skip[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if out.Len() > 0 {
					out.WriteString("\n")
				}
				out.WriteString(text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return out.String()
}

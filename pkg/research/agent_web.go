package research

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dd0wney/agentgraph/pkg/events"
)

const (
	// maxPageBytes bounds how much of a page is read
	maxPageBytes = 2 << 20
	// excerptChars bounds the markdown excerpt in the result message
	excerptChars = 280
	noTitle      = "No title found"
)

// WebAgent fetches the topic's Wikipedia article and reports its title and
// a short markdown excerpt
type WebAgent struct {
	em      Emitter
	baseURL string
	client  *http.Client
}

// NewWebAgent creates the Web Browser agent. baseURL is the article prefix,
// normally https://en.wikipedia.org/wiki/.
func NewWebAgent(em Emitter, baseURL string, client *http.Client) *WebAgent {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebAgent{em: em, baseURL: baseURL, client: client}
}

func (a *WebAgent) Name() string { return events.AgentWebBrowser.Label() }

// ArticleURL is the page fetched for topic
func (a *WebAgent) ArticleURL(topic string) string {
	return a.baseURL + url.PathEscape(strings.ReplaceAll(strings.TrimSpace(topic), " ", "_"))
}

func (a *WebAgent) Act(ctx context.Context, task Task) (string, error) {
	target := a.ArticleURL(task.Topic)
	return step(ctx, a.em, a.Name(), "Browsing the web for: "+target,
		func() (string, error) {
			page, err := a.fetch(ctx, target)
			if err != nil {
				return "", err
			}
			title, excerpt, err := summarizePage(page)
			if err != nil {
				return "", err
			}
			result := fmt.Sprintf("Page title for %s: %s", target, title)
			if excerpt != "" {
				result += "\n" + excerpt
			}
			return result, nil
		},
		func(err error) string { return fmt.Sprintf("Error browsing the web for %s: %v", target, err) })
}

func (a *WebAgent) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "agentgraph-research/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// summarizePage extracts the <title> and the opening of the page as markdown
func summarizePage(page []byte) (title, excerpt string, err error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	title = noTitle
	if t := findTitle(doc); t != "" {
		title = t
	}

	md, err := htmltomarkdown.ConvertString(string(page))
	if err != nil {
		return title, "", nil
	}
	return title, firstParagraph(md, excerptChars), nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(b.String())
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// firstParagraph returns the first prose paragraph of md, cut to limit runes
func firstParagraph(md string, limit int) string {
	for _, para := range strings.Split(md, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" || strings.HasPrefix(para, "#") || strings.HasPrefix(para, "!") ||
			strings.HasPrefix(para, "-") || strings.HasPrefix(para, "|") {
			continue
		}
		para = strings.Join(strings.Fields(para), " ")
		if utf8.RuneCountInString(para) <= limit {
			return para
		}
		runes := []rune(para)
		return strings.TrimSpace(string(runes[:limit])) + "..."
	}
	return ""
}

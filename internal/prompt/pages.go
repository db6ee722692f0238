package prompt

import (
	"fmt"
	"strings"

	"github.com/zhiyu/hypergen/core"
)

// FormatPage renders a search result in the <web_page> block layout the
// writers cite from. body is the summary, or the raw content when no summary
// exists.
func FormatPage(p core.SearchResult) string {
	body := p.Summary
	if body == "" {
		body = p.Content
	}
	published := p.PublishTime
	if published == "" {
		published = "Not provided"
	}
	return fmt.Sprintf("<web_page index=%d>\n<title>\n%s\n</title>\n<url>\n%s\n</url>\n<page_time>\n%s\n</page_time>\n<summary>\n%s\n</summary>\n</web_page>",
		p.Index, p.Title, p.URL, published, body)
}

// FormatPages joins formatted pages with blank lines.
func FormatPages(pages []core.SearchResult) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = FormatPage(p)
	}
	return strings.Join(parts, "\n\n")
}

// ShortSummary wraps a round observation for the merged search transcript.
func ShortSummary(observation string) string {
	return "<web_pages_short_summary>\n" + observation + "\n</web_pages_short_summary>"
}

package core

// SearchResult is one retrieved web page kept in run memory. Index is the
// run-global citation number assigned in retrieval order.
type SearchResult struct {
	Index       int     `json:"global_index"`
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Snippet     string  `json:"snippet,omitempty"`
	Content     string  `json:"content,omitempty"`
	Summary     string  `json:"summary,omitempty"`
	PublishTime string  `json:"page_time,omitempty"`
	Query       string  `json:"query,omitempty"`
	Score       float64 `json:"score,omitempty"`
}

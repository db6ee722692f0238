package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/task"
)

// InfoNode is a read-only view of a node's task info and final result.
type InfoNode struct {
	Key       string
	ID        string
	Outer     string
	Parents   []string
	Layer     int
	Info      task.Info
	Result    string
	HasResult bool
}

// Memory is the shared state of one run. It is safe for concurrent use,
// though the engine only mutates it from one action at a time.
type Memory struct {
	mu      sync.RWMutex
	tree    *task.Tree
	article string
	results []core.SearchResult
	next    int
	infos   map[string]InfoNode
}

// New creates the memory for a run over tree.
func New(tree *task.Tree) *Memory {
	m := &Memory{tree: tree, next: 1}
	m.reset()
	return m
}

func (m *Memory) reset() {
	root := m.tree.Root()
	m.infos = map[string]InfoNode{
		root.InstanceKey: {Key: root.InstanceKey, ID: root.ID, Layer: 0, Info: root.Info},
	}
}

// Tree returns the task tree the memory describes.
func (m *Memory) Tree() *task.Tree { return m.tree }

// Article returns the article written so far.
func (m *Memory) Article() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.article
}

// AppendArticle appends a composition result to the article.
func (m *Memory) AppendArticle(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.article == "" {
		m.article = text
		return
	}
	m.article += "\n\n" + text
}

// StartIndex returns the citation index the next search result will receive.
func (m *Memory) StartIndex() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.next
}

// AddSearchResults stores pages in order, assigning each the next global
// citation index, and returns the stamped copies.
func (m *Memory) AddSearchResults(pages []core.SearchResult) []core.SearchResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.SearchResult, len(pages))
	for i, p := range pages {
		p.Index = m.next
		m.next++
		m.results = append(m.results, p)
		out[i] = p
	}
	return out
}

// SearchResults returns a copy of every stored search result.
func (m *Memory) SearchResults() []core.SearchResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.SearchResult(nil), m.results...)
}

// Refresh rebuilds the InfoNode cache for the given nodes and everything they
// reach through outer and parent links.
func (m *Memory) Refresh(nodes ...*task.Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	var visit func(n *task.Node) InfoNode
	visit = func(n *task.Node) InfoNode {
		if in, ok := m.infos[n.InstanceKey]; ok {
			return in
		}
		in := InfoNode{Key: n.InstanceKey, ID: n.ID, Layer: n.Layer, Info: n.Info}
		if o := m.tree.Outer(n); o != nil {
			in.Outer = visit(o).Key
		}
		for _, p := range m.tree.Parents(n) {
			in.Parents = append(in.Parents, visit(p).Key)
		}
		in.Result, in.HasResult = m.tree.FinalResult(n)
		m.infos[n.InstanceKey] = in
		return in
	}
	for _, n := range nodes {
		visit(n)
	}
}

// Info returns the cached view of a node.
func (m *Memory) Info(key string) (InfoNode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.infos[key]
	return in, ok
}

type record struct {
	Article          string              `json:"article"`
	AllSearchResults []core.SearchResult `json:"all_search_results"`
	GlobalStartIndex int                 `json:"global_start_index"`
}

// Save writes the article and search results as one JSON line.
func (m *Memory) Save(w io.Writer) error {
	m.mu.RLock()
	rec := record{Article: m.article, AllSearchResults: m.results, GlobalStartIndex: m.next}
	m.mu.RUnlock()
	if rec.AllSearchResults == nil {
		rec.AllSearchResults = []core.SearchResult{}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// Load restores a memory saved with Save over tree.
func Load(tree *task.Tree, r io.Reader) (*Memory, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}
	var rec record
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &rec); err != nil {
		return nil, fmt.Errorf("decode memory: %w", err)
	}
	m := New(tree)
	m.article = rec.Article
	m.results = rec.AllSearchResults
	m.next = rec.GlobalStartIndex
	if m.next < 1 {
		m.next = len(m.results) + 1
	}
	return m, nil
}

package prompt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/zhiyu/hypergen/task"
)

var (
	tagMu      sync.Mutex
	tagPattern = map[string]*regexp.Regexp{}
)

func tagRegexp(tag string) *regexp.Regexp {
	tagMu.Lock()
	defer tagMu.Unlock()
	re, ok := tagPattern[tag]
	if !ok {
		q := regexp.QuoteMeta(tag)
		re = regexp.MustCompile(`(?s)<` + q + `>(.*?)</` + q + `>`)
		tagPattern[tag] = re
	}
	return re
}

// Tag extracts the content of <tag>...</tag> from text. When the markers sit
// on lines of their own the enclosed lines are returned; otherwise every
// inline match is collected and joined with newlines. A missing tag yields "".
func Tag(text, tag string) string {
	open, closing := "<"+tag+">", "</"+tag+">"
	var lines []string
	inside, found := false, false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == open:
			inside, found = true, true
			continue
		case trimmed == closing:
			inside = false
			continue
		}
		if inside {
			lines = append(lines, trimmed)
		}
	}
	if found {
		return strings.Join(lines, "\n")
	}
	matches := tagRegexp(tag).FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return strings.Join(out, "\n")
}

// Nested applies Tag for each tag in turn, descending one level per tag.
func Nested(text string, tags ...string) string {
	for _, tag := range tags {
		text = Tag(text, tag)
	}
	return text
}

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// FencedJSON returns the body of the first ```json fenced block, or "" when
// there is none.
func FencedJSON(text string) string {
	m := fencedJSON.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// stripFence removes stray backticks and a leading json marker.
func stripFence(text string) string {
	s := strings.Trim(strings.TrimSpace(text), "`")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSpace(s)
}

// SubTasks decodes the sub_tasks array of a planner's JSON answer. The
// object may be wrapped in a ```json fence. A top-level array is accepted as
// the sub-task list itself.
func SubTasks(text string) ([]task.Descriptor, error) {
	body := stripFence(text)
	if !gjson.Valid(body) {
		if fenced := FencedJSON(text); fenced != "" {
			body = fenced
		}
	}
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("plan is not valid JSON")
	}
	doc := gjson.Parse(body)
	raw := doc.Raw
	if doc.IsObject() {
		sub := doc.Get("sub_tasks")
		if !sub.Exists() {
			return nil, fmt.Errorf("plan has no sub_tasks field")
		}
		raw = sub.Raw
	}
	if !gjson.Parse(raw).IsArray() {
		return nil, fmt.Errorf("sub_tasks is not a list")
	}
	descs, err := task.ParseDescriptors([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("decode sub_tasks: %w", err)
	}
	return descs, nil
}

// StringList decodes a JSON list of strings, tolerating a fence around it.
func StringList(text string) ([]string, error) {
	body := stripFence(text)
	if fenced := FencedJSON(text); fenced != "" {
		body = fenced
	}
	var out []string
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("decode string list: %w", err)
	}
	return out, nil
}

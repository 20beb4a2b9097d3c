// Package workflow handles the node-graph documents submitted to the
// scheduler: loading templates, filling their input slots and recovering a
// readable prompt from a submitted graph.
package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"unicode/utf16"
)

// PlaceholderPrompt is shown when no prompt can be recovered from a workflow.
const PlaceholderPrompt = "Generated Media"

// PromptNodeID is the node whose "string" input carries the text prompt in
// the default image template.
const PromptNodeID = "28"

// Workflow maps node ids to nodes.
type Workflow map[string]Node

type Node struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
	Meta      map[string]any `json:"_meta,omitempty"`
}

// Parse decodes a workflow that may arrive either as an object or as a JSON
// string holding the object.
func Parse(raw []byte) (Workflow, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("decode workflow string: %w", err)
		}
		raw = []byte(encoded)
	}

	var wf Workflow
	if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}
	return wf, nil
}

// ExtractPrompt recovers a human-readable prompt from wf. The lookup order is
// fixed: node 28's "string" input, then for each node in id order a "string"
// over 10 characters, a "prompt", a "text" over 10 characters or a
// "positive_prompt"; otherwise PlaceholderPrompt.
func ExtractPrompt(wf Workflow) string {
	if node, ok := wf[PromptNodeID]; ok {
		if s, ok := node.Inputs["string"].(string); ok && s != "" {
			return s
		}
	}

	for _, id := range orderedIDs(wf) {
		inputs := wf[id].Inputs
		if inputs == nil {
			continue
		}
		if s, ok := inputs["string"].(string); ok && jsLength(s) > 10 {
			return s
		}
		if s, ok := inputs["prompt"].(string); ok && s != "" {
			return s
		}
		if s, ok := inputs["text"].(string); ok && jsLength(s) > 10 {
			return s
		}
		if s, ok := inputs["positive_prompt"].(string); ok && s != "" {
			return s
		}
	}

	return PlaceholderPrompt
}

// orderedIDs lists integer ids in numeric order followed by the remaining ids
// in lexical order.
func orderedIDs(wf Workflow) []string {
	ids := make([]string, 0, len(wf))
	for id := range wf {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, aErr := nodeIndex(ids[i])
		b, bErr := nodeIndex(ids[j])
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		}
		return ids[i] < ids[j]
	})
	return ids
}

func nodeIndex(id string) (uint64, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, err
	}
	if strconv.FormatUint(n, 10) != id {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

// jsLength counts UTF-16 code units.
func jsLength(s string) int {
	return len(utf16.Encode([]rune(s)))
}

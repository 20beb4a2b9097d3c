package task

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// UnmarshalJSON decodes a scheduler task. Only id and status must have the
// expected types; any other field with an unexpected shape is dropped so the
// task can still be mapped.
func (t *APITask) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          string          `json:"id"`
		Status      Status          `json:"status"`
		Prompt      json.RawMessage `json:"prompt"`
		Result      json.RawMessage `json:"result"`
		Error       json.RawMessage `json:"error"`
		WorkerID    json.RawMessage `json:"worker_id"`
		Priority    json.RawMessage `json:"priority"`
		Timeout     json.RawMessage `json:"timeout"`
		CreatedAt   json.RawMessage `json:"created_at"`
		UpdatedAt   json.RawMessage `json:"updated_at"`
		StartedAt   json.RawMessage `json:"started_at"`
		CompletedAt json.RawMessage `json:"completed_at"`
		Workflow    json.RawMessage `json:"workflow"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*t = APITask{
		ID:          raw.ID,
		Status:      raw.Status,
		Prompt:      looseString(raw.Prompt),
		Result:      looseResult(raw.Result),
		Error:       looseString(raw.Error),
		WorkerID:    looseString(raw.WorkerID),
		Priority:    looseInt(raw.Priority),
		Timeout:     looseInt(raw.Timeout),
		CreatedAt:   looseString(raw.CreatedAt),
		UpdatedAt:   looseString(raw.UpdatedAt),
		StartedAt:   looseString(raw.StartedAt),
		CompletedAt: looseString(raw.CompletedAt),
		Workflow:    raw.Workflow,
	}
	return nil
}

// UnmarshalJSON keeps whichever result fields have the expected shape.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw struct {
		Images  json.RawMessage `json:"images"`
		Videos  json.RawMessage `json:"videos"`
		Outputs json.RawMessage `json:"outputs"`
		Logs    json.RawMessage `json:"logs"`
	}
	*r = Result{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	r.Images = looseStrings(raw.Images)
	r.Videos = looseStrings(raw.Videos)

	var outputs map[string]any
	if json.Unmarshal(raw.Outputs, &outputs) == nil {
		r.Outputs = outputs
	}
	var logs []any
	if json.Unmarshal(raw.Logs, &logs) == nil {
		r.Logs = logs
	}
	return nil
}

func looseResult(raw json.RawMessage) *Result {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil
	}
	return &r
}

// looseString returns strings as is and numbers or booleans as their JSON
// text. Null, objects and arrays become "".
func looseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case 'n', '{', '[':
		return ""
	}
	return string(raw)
}

// looseInt accepts integral numbers and numeric strings.
func looseInt(raw json.RawMessage) *int {
	s := strings.TrimSpace(looseString(raw))
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return nil
	}
	n := int(f)
	return &n
}

func looseStrings(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []string
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil && s != "" {
			out = append(out, s)
		}
	}
	return out
}

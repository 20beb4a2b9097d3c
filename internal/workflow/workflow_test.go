package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPrompt_PromptNode(t *testing.T) {
	wf := Workflow{
		"28": {Inputs: map[string]any{"string": "short"}},
		"1":  {Inputs: map[string]any{"prompt": "other"}},
	}
	assert.Equal(t, "short", ExtractPrompt(wf))
}

func TestExtractPrompt_FallbackChain(t *testing.T) {
	tests := []struct {
		name string
		wf   Workflow
		want string
	}{
		{
			name: "short string is skipped",
			wf: Workflow{
				"1": {Inputs: map[string]any{"string": "tiny"}},
				"2": {Inputs: map[string]any{"text": "a lighthouse in a storm"}},
			},
			want: "a lighthouse in a storm",
		},
		{
			name: "prompt wins regardless of length",
			wf: Workflow{
				"3": {Inputs: map[string]any{"prompt": "fox"}},
			},
			want: "fox",
		},
		{
			name: "string checked before prompt in the same node",
			wf: Workflow{
				"4": {Inputs: map[string]any{"string": "eleven chars", "prompt": "p"}},
			},
			want: "eleven chars",
		},
		{
			name: "positive prompt",
			wf: Workflow{
				"7": {Inputs: map[string]any{"positive_prompt": "waves"}},
			},
			want: "waves",
		},
		{
			name: "numeric ids scanned in numeric order",
			wf: Workflow{
				"10": {Inputs: map[string]any{"prompt": "ten"}},
				"9":  {Inputs: map[string]any{"prompt": "nine"}},
				"a":  {Inputs: map[string]any{"prompt": "letter"}},
			},
			want: "nine",
		},
		{
			name: "non-string values ignored",
			wf: Workflow{
				"6": {Inputs: map[string]any{"text": []any{"28", 0}}},
			},
			want: PlaceholderPrompt,
		},
		{
			name: "exactly ten characters is too short",
			wf: Workflow{
				"1": {Inputs: map[string]any{"text": "0123456789"}},
			},
			want: PlaceholderPrompt,
		},
		{
			name: "empty workflow",
			wf:   Workflow{},
			want: PlaceholderPrompt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPrompt(tt.wf))
		})
	}
}

func TestParse_StringEncoded(t *testing.T) {
	wf, err := Parse([]byte(`"{\"28\":{\"class_type\":\"String Literal\",\"inputs\":{\"string\":\"a red fox\"}}}"`))
	require.NoError(t, err)
	assert.Equal(t, "a red fox", ExtractPrompt(wf))
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`[1,2,3]`))
	assert.Error(t, err)
}

func TestLoader_ForPromptEmbedded(t *testing.T) {
	l := NewLoader("", "", zerolog.Nop())

	wf := l.ForPrompt("a red fox")
	require.Contains(t, wf, PromptNodeID)
	assert.Equal(t, "a red fox", wf[PromptNodeID].Inputs["string"])
	assert.Greater(t, len(wf), 1)

	again := l.ForPrompt("another")
	assert.Equal(t, "another", again[PromptNodeID].Inputs["string"])
	assert.Equal(t, "a red fox", wf[PromptNodeID].Inputs["string"])
}

func TestLoader_ForPromptMissingNode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"workflow":{"1":{"class_type":"X","inputs":{}}}}`), 0o644))

	wf := NewLoader(path, "", zerolog.Nop()).ForPrompt("a red fox")

	require.Len(t, wf, 1)
	assert.Equal(t, "String Literal", wf[PromptNodeID].ClassType)
	assert.Equal(t, "a red fox", wf[PromptNodeID].Inputs["string"])
	assert.Equal(t, true, wf[PromptNodeID].Inputs["speak_and_recognation"])
}

func TestLoader_ForPromptUnreadable(t *testing.T) {
	wf := NewLoader(filepath.Join(t.TempDir(), "missing.json"), "", zerolog.Nop()).ForPrompt("p")
	assert.Equal(t, "String Literal", wf[PromptNodeID].ClassType)
}

func TestLoader_ForVideo(t *testing.T) {
	wf, err := NewLoader("", "", zerolog.Nop()).ForVideo("face.png", "dance.mp4")
	require.NoError(t, err)
	assert.Equal(t, "face.png", wf["58"].Inputs["image"])
	assert.Equal(t, "dance.mp4", wf["119"].Inputs["video"])
}

func TestLoader_ForVideoUnreadable(t *testing.T) {
	_, err := NewLoader("", filepath.Join(t.TempDir(), "missing.json"), zerolog.Nop()).ForVideo("a", "b")
	assert.Error(t, err)
}

func TestRandomPrompt(t *testing.T) {
	assert.Contains(t, samplePrompts, RandomPrompt())
}

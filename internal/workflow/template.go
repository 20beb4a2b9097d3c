package workflow

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

//go:embed templates/*.json
var embedded embed.FS

const (
	defaultTemplate = "templates/default_workflow.json"
	videoTemplate   = "templates/video_workflow.json"

	videoImageNodeID = "58"
	videoClipNodeID  = "119"
)

type document struct {
	Workflow Workflow `json:"workflow"`
}

// Loader reads workflow templates from disk, falling back to the copies
// compiled into the binary when no path is configured.
type Loader struct {
	defaultPath string
	videoPath   string
	logger      zerolog.Logger
}

func NewLoader(defaultPath, videoPath string, logger zerolog.Logger) *Loader {
	return &Loader{
		defaultPath: strings.TrimSpace(defaultPath),
		videoPath:   strings.TrimSpace(videoPath),
		logger:      logger.With().Str("component", "workflow").Logger(),
	}
}

// ForPrompt returns the image template with the prompt written into node 28.
// A template that cannot be loaded or lacks node 28 yields a single
// String Literal node carrying the prompt.
func (l *Loader) ForPrompt(prompt string) Workflow {
	wf, err := l.load(l.defaultPath, defaultTemplate)
	if err != nil {
		l.logger.Error().Err(err).Msg("load default workflow")
		return fallback(prompt)
	}

	node, ok := wf[PromptNodeID]
	if !ok || node.Inputs == nil {
		l.logger.Warn().Str("node", PromptNodeID).Msg("prompt node missing from workflow, using fallback structure")
		return fallback(prompt)
	}
	node.Inputs["string"] = prompt
	wf[PromptNodeID] = node
	return wf
}

// ForVideo returns the video template with the uploaded image and video
// filenames written into their loader nodes.
func (l *Loader) ForVideo(imageName, videoName string) (Workflow, error) {
	wf, err := l.load(l.videoPath, videoTemplate)
	if err != nil {
		return nil, fmt.Errorf("load video workflow: %w", err)
	}

	if node, ok := wf[videoImageNodeID]; ok && node.Inputs != nil {
		node.Inputs["image"] = imageName
	} else {
		l.logger.Warn().Str("node", videoImageNodeID).Msg("image node missing from video workflow")
	}

	if node, ok := wf[videoClipNodeID]; ok && node.Inputs != nil {
		node.Inputs["video"] = videoName
	} else {
		l.logger.Warn().Str("node", videoClipNodeID).Msg("video node missing from video workflow")
	}
	return wf, nil
}

// load decodes a fresh copy on every call so callers may mutate the result.
func (l *Loader) load(path, embeddedName string) (Workflow, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = embedded.ReadFile(embeddedName)
	}
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	if doc.Workflow == nil {
		return nil, fmt.Errorf("template has no workflow")
	}
	return doc.Workflow, nil
}

func fallback(prompt string) Workflow {
	return Workflow{
		PromptNodeID: {
			ClassType: "String Literal",
			Inputs: map[string]any{
				"string":                prompt,
				"speak_and_recognation": true,
			},
		},
	}
}

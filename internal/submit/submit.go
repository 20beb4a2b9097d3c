// Package submit turns operator input into exactly one outbound request per
// job kind and returns the id the scheduler assigned.
package submit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/podushkina/schedmon/internal/remote"
	"github.com/podushkina/schedmon/internal/task"
	"github.com/podushkina/schedmon/internal/workflow"
)

const (
	KindImage         = "image"
	KindVideoWorkflow = "video-workflow"
	KindT2V           = "t2v"
	KindI2V           = "i2v"
	KindVace          = "vace"
	KindTalk          = "talk"
)

// Input carries everything any kind may need. Each handler checks only the
// fields it uses.
type Input struct {
	Prompt string `json:"prompt,omitempty"`

	// Local files uploaded as multipart attachments.
	ImagePath string `json:"imagePath,omitempty"`
	VideoPath string `json:"videoPath,omitempty"`
	AudioPath string `json:"audioPath,omitempty"`

	// Names of media already stored on the generation backend.
	ImageName string `json:"imageName,omitempty"`
	VideoName string `json:"videoName,omitempty"`
}

// Result is the scheduler's answer plus the label shown in the gallery until
// the first poll.
type Result struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Label  string `json:"label"`
}

type Handler func(ctx context.Context, in Input) (*Result, error)

// WorkflowSubmitter queues a workflow on the scheduler.
type WorkflowSubmitter interface {
	Submit(ctx context.Context, wf workflow.Workflow) (*task.SubmissionResponse, error)
}

type Adapter struct {
	scheduler  WorkflowSubmitter
	generation *remote.Client
	loader     *workflow.Loader
	logger     zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// New returns an adapter with every built-in kind registered. generation is
// the client for the web generation endpoints.
func New(sched WorkflowSubmitter, generation *remote.Client, loader *workflow.Loader, logger zerolog.Logger) *Adapter {
	a := &Adapter{
		scheduler:  sched,
		generation: generation,
		loader:     loader,
		logger:     logger.With().Str("component", "submit").Logger(),
		handlers:   make(map[string]Handler),
	}

	a.Register(KindImage, a.image)
	a.Register(KindVideoWorkflow, a.videoWorkflow)
	a.Register(KindT2V, a.textToVideo)
	a.Register(KindI2V, a.imageToVideo)
	a.Register(KindVace, a.vace)
	a.Register(KindTalk, a.talk)
	return a
}

func (a *Adapter) Register(kind string, h Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[kind] = h
}

// Kinds lists the registered kinds in alphabetical order.
func (a *Adapter) Kinds() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	kinds := make([]string, 0, len(a.handlers))
	for k := range a.handlers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Submit dispatches to the handler for kind. Validation failures are
// reported before any request is made.
func (a *Adapter) Submit(ctx context.Context, kind string, in Input) (*Result, error) {
	a.mu.RLock()
	h, ok := a.handlers[kind]
	a.mu.RUnlock()
	if !ok {
		return nil, remote.Invalid("kind", "unknown task kind %q", kind)
	}

	res, err := h(ctx, in)
	if err != nil {
		return nil, err
	}
	if res.ID == "" {
		return nil, &remote.NetworkError{Op: "submit " + kind, Err: fmt.Errorf("response carried no task id")}
	}
	a.logger.Info().Str("kind", kind).Str("task_id", res.ID).Msg("task submitted")
	return res, nil
}

func (a *Adapter) image(ctx context.Context, in Input) (*Result, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, remote.Invalid("prompt", "please enter a prompt")
	}

	resp, err := a.scheduler.Submit(ctx, a.loader.ForPrompt(prompt))
	if err != nil {
		return nil, err
	}
	return newResult(resp, prompt), nil
}

func (a *Adapter) videoWorkflow(ctx context.Context, in Input) (*Result, error) {
	image, video := strings.TrimSpace(in.ImageName), strings.TrimSpace(in.VideoName)
	if image == "" {
		return nil, remote.Invalid("image", "please provide an image name")
	}
	if video == "" {
		return nil, remote.Invalid("video", "please provide a video name")
	}

	wf, err := a.loader.ForVideo(image, video)
	if err != nil {
		return nil, err
	}
	resp, err := a.scheduler.Submit(ctx, wf)
	if err != nil {
		return nil, err
	}
	return newResult(resp, fmt.Sprintf("Video: %s + %s", image, video)), nil
}

func (a *Adapter) textToVideo(ctx context.Context, in Input) (*Result, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, remote.Invalid("prompt", "please enter a prompt")
	}

	var resp task.SubmissionResponse
	body := map[string]string{"prompt": prompt}
	if err := a.generation.PostJSON(ctx, "/scheduler_t2v", body, &resp); err != nil {
		return nil, err
	}
	return newResult(&resp, prompt), nil
}

func (a *Adapter) imageToVideo(ctx context.Context, in Input) (*Result, error) {
	if err := requireFile("image", in.ImagePath); err != nil {
		return nil, err
	}
	return a.upload(ctx, "/scheduler_i2v",
		[]remote.Attachment{{Field: "image", Path: in.ImagePath}},
		"Image to video: "+filepath.Base(in.ImagePath))
}

func (a *Adapter) vace(ctx context.Context, in Input) (*Result, error) {
	if err := requireFile("image", in.ImagePath); err != nil {
		return nil, err
	}
	if err := requireFile("video", in.VideoPath); err != nil {
		return nil, err
	}
	return a.upload(ctx, "/scheduler_i2v_vace_fun",
		[]remote.Attachment{{Field: "image", Path: in.ImagePath}, {Field: "video", Path: in.VideoPath}},
		fmt.Sprintf("VACE control: %s + %s", filepath.Base(in.ImagePath), filepath.Base(in.VideoPath)))
}

func (a *Adapter) talk(ctx context.Context, in Input) (*Result, error) {
	if err := requireFile("image", in.ImagePath); err != nil {
		return nil, err
	}
	if err := requireFile("audio", in.AudioPath); err != nil {
		return nil, err
	}
	return a.upload(ctx, "/scheduler_infinite_talk",
		[]remote.Attachment{{Field: "image", Path: in.ImagePath}, {Field: "audio", Path: in.AudioPath}},
		fmt.Sprintf("Infinite talk: %s + %s", filepath.Base(in.ImagePath), filepath.Base(in.AudioPath)))
}

func (a *Adapter) upload(ctx context.Context, path string, files []remote.Attachment, label string) (*Result, error) {
	var resp task.SubmissionResponse
	if err := a.generation.PostMultipart(ctx, path, files, &resp); err != nil {
		return nil, err
	}
	return newResult(&resp, label), nil
}

func requireFile(field, path string) error {
	if strings.TrimSpace(path) == "" {
		return remote.Invalid(field, "please select a %s file", field)
	}
	info, err := os.Stat(path)
	if err != nil {
		return remote.Invalid(field, "cannot read %s: %v", path, err)
	}
	if info.IsDir() {
		return remote.Invalid(field, "%s is a directory", path)
	}
	return nil
}

func newResult(resp *task.SubmissionResponse, label string) *Result {
	return &Result{ID: resp.ID, Status: resp.Status, Label: label}
}

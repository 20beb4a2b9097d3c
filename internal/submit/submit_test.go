package submit

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podushkina/schedmon/internal/remote"
	"github.com/podushkina/schedmon/internal/scheduler"
	"github.com/podushkina/schedmon/internal/testsupport"
	"github.com/podushkina/schedmon/internal/workflow"
)

func setupTest(t *testing.T) (*Adapter, *testsupport.FakeScheduler) {
	fake := testsupport.NewFakeScheduler(t)
	sched := scheduler.New(remote.New(remote.Options{BaseURL: fake.URL()}), 0, 0)
	gen := remote.New(remote.Options{BaseURL: fake.WebURL(), APIKey: "k"})
	loader := workflow.NewLoader("", "", zerolog.Nop())
	return New(sched, gen, loader, zerolog.Nop()), fake
}

func TestSubmit_Image(t *testing.T) {
	a, fake := setupTest(t)

	res, err := a.Submit(context.Background(), KindImage, Input{Prompt: "  a red fox  "})
	require.NoError(t, err)
	assert.Equal(t, "t1", res.ID)
	assert.Equal(t, "a red fox", res.Label)

	subs := fake.Submissions()
	require.Len(t, subs, 1)

	var body struct {
		Workflow workflow.Workflow `json:"workflow"`
		Priority int               `json:"priority"`
		Timeout  int               `json:"timeout"`
	}
	require.NoError(t, json.Unmarshal(subs[0], &body))
	assert.Equal(t, 1, body.Priority)
	assert.Equal(t, 600, body.Timeout)
	assert.Equal(t, "a red fox", body.Workflow[workflow.PromptNodeID].Inputs["string"])
}

func TestSubmit_VideoWorkflow(t *testing.T) {
	a, fake := setupTest(t)

	res, err := a.Submit(context.Background(), KindVideoWorkflow, Input{ImageName: "face.png", VideoName: "dance.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "Video: face.png + dance.mp4", res.Label)

	subs := fake.Submissions()
	require.Len(t, subs, 1)
	var body struct {
		Workflow workflow.Workflow `json:"workflow"`
	}
	require.NoError(t, json.Unmarshal(subs[0], &body))
	assert.Equal(t, "face.png", body.Workflow["58"].Inputs["image"])
	assert.Equal(t, "dance.mp4", body.Workflow["119"].Inputs["video"])
}

func TestSubmit_TextToVideo(t *testing.T) {
	a, fake := setupTest(t)

	res, err := a.Submit(context.Background(), KindT2V, Input{Prompt: "waves at dusk"})
	require.NoError(t, err)
	assert.Equal(t, "waves at dusk", res.Label)

	uploads := fake.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "/web/scheduler_t2v", uploads[0].Path)
	assert.Equal(t, "waves at dusk", uploads[0].Prompt)
	assert.Empty(t, fake.Submissions())
}

func TestSubmit_Multipart(t *testing.T) {
	image := testsupport.WriteFile(t, "face.png", "png")
	video := testsupport.WriteFile(t, "pose.mp4", "mp4")
	audio := testsupport.WriteFile(t, "voice.wav", "wav")

	tests := []struct {
		kind   string
		in     Input
		path   string
		fields []string
		label  string
	}{
		{KindI2V, Input{ImagePath: image}, "/web/scheduler_i2v", []string{"image"}, "Image to video: face.png"},
		{KindVace, Input{ImagePath: image, VideoPath: video}, "/web/scheduler_i2v_vace_fun", []string{"image", "video"}, "VACE control: face.png + pose.mp4"},
		{KindTalk, Input{ImagePath: image, AudioPath: audio}, "/web/scheduler_infinite_talk", []string{"image", "audio"}, "Infinite talk: face.png + voice.wav"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			a, fake := setupTest(t)

			res, err := a.Submit(context.Background(), tt.kind, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.label, res.Label)

			uploads := fake.Uploads()
			require.Len(t, uploads, 1)
			assert.Equal(t, tt.path, uploads[0].Path)
			assert.ElementsMatch(t, tt.fields, uploads[0].Fields)
		})
	}
}

func TestSubmit_ValidationBeforeRequest(t *testing.T) {
	image := testsupport.WriteFile(t, "face.png", "png")

	tests := []struct {
		name string
		kind string
		in   Input
	}{
		{"empty prompt", KindImage, Input{Prompt: "   "}},
		{"empty t2v prompt", KindT2V, Input{}},
		{"missing video name", KindVideoWorkflow, Input{ImageName: "a.png"}},
		{"missing image", KindI2V, Input{}},
		{"image does not exist", KindI2V, Input{ImagePath: "/nonexistent/face.png"}},
		{"missing vace video", KindVace, Input{ImagePath: image}},
		{"missing talk audio", KindTalk, Input{ImagePath: image}},
		{"unknown kind", "sketch", Input{Prompt: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, fake := setupTest(t)

			_, err := a.Submit(context.Background(), tt.kind, tt.in)
			require.Error(t, err)
			assert.True(t, remote.IsValidation(err))
			assert.Empty(t, fake.Submissions())
			assert.Empty(t, fake.Uploads())
		})
	}
}

func TestSubmit_RequestFailed(t *testing.T) {
	a, fake := setupTest(t)
	fake.SetSubmitStatus(http.StatusServiceUnavailable)

	_, err := a.Submit(context.Background(), KindImage, Input{Prompt: "a red fox"})
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, remote.StatusCode(err))
}

func TestSubmit_NetworkError(t *testing.T) {
	a, fake := setupTest(t)
	fake.Server.Close()

	_, err := a.Submit(context.Background(), KindT2V, Input{Prompt: "a red fox"})
	require.Error(t, err)

	var netErr *remote.NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestAdapter_Register(t *testing.T) {
	a, _ := setupTest(t)
	a.Register("echo", func(ctx context.Context, in Input) (*Result, error) {
		return &Result{ID: "e1", Label: in.Prompt}, nil
	})

	assert.Equal(t, []string{"echo", "i2v", "image", "t2v", "talk", "vace", "video-workflow"}, a.Kinds())

	res, err := a.Submit(context.Background(), "echo", Input{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "e1", res.ID)
}

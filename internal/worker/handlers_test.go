package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-podcaster/internal/apperr"
	"doc-podcaster/internal/extractor"
	"doc-podcaster/internal/models"
	"doc-podcaster/internal/pipeline"
	"doc-podcaster/internal/test"
	"doc-podcaster/pkg/tasks"
)

type fakePipeline struct {
	job       models.Job
	content   models.ExtractedContent
	err       error
	sweep     pipeline.SweepResult
	extracted []extractor.Source
	scripted  []models.ExtractedContent
}

func (f *fakePipeline) Get(context.Context, int64, string) (models.Job, error) {
	return f.job, nil
}

func (f *fakePipeline) Extract(_ context.Context, _ int64, _ string, src extractor.Source) (models.ExtractedContent, models.Job, error) {
	f.extracted = append(f.extracted, src)
	return f.content, f.job, f.err
}

func (f *fakePipeline) GenerateScript(_ context.Context, _ int64, _ string, content models.ExtractedContent) (models.Job, error) {
	f.scripted = append(f.scripted, content)
	return f.job, f.err
}

func (f *fakePipeline) Synthesize(context.Context, int64, string) (models.Job, error) {
	return f.job, f.err
}

func (f *fakePipeline) Sweep(context.Context) (pipeline.SweepResult, error) {
	return f.sweep, f.err
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHandleExtractTaskEnqueuesScript(t *testing.T) {
	content := models.ExtractedContent{Title: "Post", FullText: "a b c", WordCount: 3, SourceURL: "https://example.com/post"}
	p := &fakePipeline{
		job:     models.Job{ID: "job-1", UserID: 7, Source: "https://example.com/post", State: models.Extracting{}},
		content: content,
	}
	enq := &test.MockTaskEnqueuer{}
	h := NewTaskHandler(p, enq)

	task := asynq.NewTask(tasks.TypeExtract, mustMarshal(t, tasks.StagePayload{JobID: "job-1", UserID: 7}))
	require.NoError(t, h.HandleExtractTask(context.Background(), task))

	assert.Equal(t, []extractor.Source{{URL: "https://example.com/post"}}, p.extracted)
	require.Len(t, enq.EnqueuedTasks, 1)
	assert.Equal(t, tasks.TypeGenerateScript, enq.EnqueuedTasks[0].Type())

	var next tasks.ScriptPayload
	require.NoError(t, json.Unmarshal(enq.EnqueuedTasks[0].Payload(), &next))
	assert.Equal(t, tasks.ScriptPayload{JobID: "job-1", UserID: 7, Content: content}, next)
}

func TestHandleGenerateScriptTaskEnqueuesSynthesis(t *testing.T) {
	p := &fakePipeline{job: models.Job{ID: "job-1", UserID: 7, State: models.Synthesizing{},
		Script: []models.Segment{{Speaker: models.SpeakerA, Text: "hi"}}}}
	enq := &test.MockTaskEnqueuer{}
	h := NewTaskHandler(p, enq)

	task, err := tasks.NewGenerateScriptTask("job-1", 7, models.ExtractedContent{Title: "Post", WordCount: 2})
	require.NoError(t, err)
	require.NoError(t, h.HandleGenerateScriptTask(context.Background(), task))

	assert.Equal(t, "Post", p.scripted[0].Title)
	require.Len(t, enq.EnqueuedTasks, 1)
	assert.Equal(t, tasks.TypeSynthesize, enq.EnqueuedTasks[0].Type())
}

func TestStageFailureIsNotRetried(t *testing.T) {
	p := &fakePipeline{err: fmt.Errorf("%w: invalid speaker \"C\"", apperr.ErrGeneration)}
	enq := &test.MockTaskEnqueuer{}
	h := NewTaskHandler(p, enq)

	task, err := tasks.NewGenerateScriptTask("job-1", 7, models.ExtractedContent{})
	require.NoError(t, err)
	err = h.HandleGenerateScriptTask(context.Background(), task)

	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Contains(t, err.Error(), `"C"`)
	assert.Empty(t, enq.EnqueuedTasks)
}

func TestCanceledStageIsReturnedAsIs(t *testing.T) {
	p := &fakePipeline{err: fmt.Errorf("%w: context canceled", apperr.ErrCanceled)}
	h := NewTaskHandler(p, &test.MockTaskEnqueuer{})

	task, err := tasks.NewSynthesizeTask("job-1", 7)
	require.NoError(t, err)
	err = h.HandleSynthesizeTask(context.Background(), task)

	assert.ErrorIs(t, err, apperr.ErrCanceled)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestEnqueueFailureSurfaces(t *testing.T) {
	p := &fakePipeline{job: models.Job{ID: "job-1", UserID: 7, Source: "https://example.com/post"}}
	h := NewTaskHandler(p, &test.MockTaskEnqueuer{Err: errors.New("redis down")})

	hook := logtest.NewGlobal()
	t.Cleanup(func() { log.StandardLogger().ReplaceHooks(make(log.LevelHooks)) })

	task, err := tasks.NewExtractTask("job-1", 7)
	require.NoError(t, err)
	assert.Error(t, h.HandleExtractTask(context.Background(), task))

	var parked *log.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel {
			parked = e
		}
	}
	require.NotNil(t, parked)
	assert.Equal(t, "job-1", parked.Data["job_id"])
	assert.Contains(t, parked.Message, "parked in generating")
}

func TestMalformedPayloadSkipsRetry(t *testing.T) {
	h := NewTaskHandler(&fakePipeline{}, &test.MockTaskEnqueuer{})
	err := h.HandleSynthesizeTask(context.Background(), asynq.NewTask(tasks.TypeSynthesize, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleSweepRetentionTask(t *testing.T) {
	p := &fakePipeline{sweep: pipeline.SweepResult{Expired: 2, Deleted: 1}}
	h := NewTaskHandler(p, &test.MockTaskEnqueuer{})

	task, err := tasks.NewSweepRetentionTask()
	require.NoError(t, err)
	assert.NoError(t, h.HandleSweepRetentionTask(context.Background(), task))

	p.err = errors.New("db down")
	assert.Error(t, h.HandleSweepRetentionTask(context.Background(), task))
}

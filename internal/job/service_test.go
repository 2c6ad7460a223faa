package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luzhipeng728/sora/internal/sora"
	"github.com/luzhipeng728/sora/internal/video"
)

// fakeClient is a sora.Client serving a scripted stream body.
type fakeClient struct {
	body string
	err  error

	calls  int
	prompt string
	model  string
}

func (f *fakeClient) Generate(_ context.Context, prompt, model string) (io.ReadCloser, error) {
	f.calls++
	f.prompt = prompt
	f.model = model
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

// fakeArchiver records archive calls and returns a fixed location.
type fakeArchiver struct {
	key    string
	srcURL string
	err    error
}

func (f *fakeArchiver) Archive(_ context.Context, key, srcURL string) (string, error) {
	f.key = key
	f.srcURL = srcURL
	if f.err != nil {
		return "", f.err
	}
	return "https://archive.example.com/" + key, nil
}

func deltaLine(content string) string {
	return fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q},\"finish_reason\":null}]}\n", content)
}

const streamEnd = "data: [DONE]\n" +
	"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n"

func newTestService(client sora.Client, opts ...ServiceOption) (*GenerationService, *MemoryRepository, *video.MemoryRepository) {
	jobs := NewMemoryRepository()
	videos := video.NewMemoryRepository()
	svc := NewGenerationService(jobs, videos, client, slog.Default(), opts...)
	return svc, jobs, videos
}

func TestGenerationService_Process_HappyPath(t *testing.T) {
	client := &fakeClient{
		body: deltaLine("视频生成已开始") +
			deltaLine("进度：10%") +
			deltaLine("进度：45%") +
			deltaLine("进度：90%") +
			deltaLine("✅ 视频生成成功！[点击这里](https://cdn.example.com/v/final.mp4)") +
			streamEnd,
	}
	svc, _, videos := newTestService(client)
	ctx := context.Background()

	j, err := svc.CreateJob(ctx, "user-1", "a cat surfing", OrientationPortrait)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, j.Status)

	svc.Process(ctx, j.ID)

	done, err := svc.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.NotEmpty(t, done.VideoID)
	assert.False(t, done.CompletedAt.IsZero())

	v, err := videos.FindByID(ctx, done.VideoID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/v/final.mp4", v.VideoURL)
	assert.Equal(t, "a cat surfing", v.Prompt)
	assert.Equal(t, sora.ModelPortrait, v.ModelUsed)
	assert.Equal(t, video.StatusCompleted, v.Status)

	assert.Equal(t, "a cat surfing", client.prompt)
	assert.Equal(t, sora.ModelPortrait, client.model)
}

func TestGenerationService_Process_LandscapeModel(t *testing.T) {
	client := &fakeClient{
		body: deltaLine("✅ 视频生成成功！[点击这里](https://cdn.example.com/v/wide.mp4)") + streamEnd,
	}
	svc, _, _ := newTestService(client)
	ctx := context.Background()

	j, err := svc.CreateJob(ctx, "user-1", "a cat surfing", OrientationLandscape)
	require.NoError(t, err)

	svc.Process(ctx, j.ID)
	assert.Equal(t, sora.ModelLandscape, client.model)
}

func TestGenerationService_Process_DuplicateCompletionCreatesOneVideo(t *testing.T) {
	client := &fakeClient{
		body: deltaLine("✅ 视频生成成功！[点击这里](https://cdn.example.com/v/final.mp4)") +
			deltaLine("✅ 视频生成成功！[点击这里](https://cdn.example.com/v/final.mp4)") +
			streamEnd,
	}
	svc, _, videos := newTestService(client)
	ctx := context.Background()

	j, err := svc.CreateJob(ctx, "user-1", "a cat surfing", OrientationPortrait)
	require.NoError(t, err)

	svc.Process(ctx, j.ID)

	done, err := svc.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)

	page, err := videos.ListByUser(ctx, "user-1", video.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestGenerationService_Process_NoArtifact(t *testing.T) {
	client := &fakeClient{
		body: deltaLine("进度：50%") + streamEnd,
	}
	svc, _, videos := newTestService(client)
	ctx := context.Background()

	j, err := svc.CreateJob(ctx, "user-1", "a cat surfing", OrientationPortrait)
	require.NoError(t, err)

	svc.Process(ctx, j.ID)

	done, err := svc.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, done.Status)
	assert.Equal(t, "Video generation completed but no video URL was received", done.ErrorMessage)
	assert.False(t, done.CompletedAt.IsZero())

	page, err := videos.ListByUser(ctx, "user-1", video.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestGenerationService_Process_ClientErrorFailsJob(t *testing.T) {
	client := &fakeClient{
		err: fmt.Errorf("%w: 404 Not Found: model missing", sora.ErrRequestFailed),
	}
	svc, _, _ := newTestService(client)
	ctx := context.Background()

	j, err := svc.CreateJob(ctx, "user-1", "a cat surfing", OrientationPortrait)
	require.NoError(t, err)

	svc.Process(ctx, j.ID)

	done, err := svc.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, done.Status)
	assert.Contains(t, done.ErrorMessage, "404")
	assert.Equal(t, 1, client.calls)
}

func TestGenerationService_Process_MissingJobIsSilent(t *testing.T) {
	client := &fakeClient{}
	svc, _, _ := newTestService(client)

	// Must not panic or call the provider.
	svc.Process(context.Background(), "job-missing")
	assert.Equal(t, 0, client.calls)
}

func TestGenerationService_Process_ArchivesArtifact(t *testing.T) {
	client := &fakeClient{
		body: deltaLine("✅ 视频生成成功！[点击这里](https://cdn.example.com/v/final.mp4)") + streamEnd,
	}
	archiver := &fakeArchiver{}
	svc, _, videos := newTestService(client, WithArchiver(archiver))
	ctx := context.Background()

	j, err := svc.CreateJob(ctx, "user-1", "a cat surfing", OrientationPortrait)
	require.NoError(t, err)

	svc.Process(ctx, j.ID)

	done, err := svc.GetJob(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)

	v, err := videos.FindByID(ctx, done.VideoID)
	require.NoError(t, err)
	assert.Equal(t, "https://archive.example.com/"+v.ID+".mp4", v.Metadata["archive_url"])
	assert.Equal(t, "https://cdn.example.com/v/final.mp4", archiver.srcURL)
}

func TestGenerationService_Process_ArchiveFailureDoesNotFailJob(t *testing.T) {
	client := &fakeClient{
		body: deltaLine("✅ 视频生成成功！[点击这里](https://cdn.example.com/v/final.mp4)") + streamEnd,
	}
	archiver := &fakeArchiver{err: errors.New("bucket unreachable")}
	svc, _, videos := newTestService(client, WithArchiver(archiver))
	ctx := context.Background()

	j, err := svc.CreateJob(ctx, "user-1", "a cat surfing", OrientationPortrait)
	require.NoError(t, err)

	svc.Process(ctx, j.ID)

	done, err := svc.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)

	v, err := videos.FindByID(ctx, done.VideoID)
	require.NoError(t, err)
	assert.Empty(t, v.Metadata["archive_url"])
}

func TestGenerationService_CreateJob_Validation(t *testing.T) {
	svc, _, _ := newTestService(&fakeClient{})
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, "user-1", "", OrientationPortrait)
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = svc.CreateJob(ctx, "user-1", strings.Repeat("x", 1001), OrientationPortrait)
	assert.ErrorIs(t, err, ErrPromptTooLong)
}

func TestGenerationService_RecoverStuckJobs(t *testing.T) {
	svc, jobs, _ := newTestService(&fakeClient{})
	ctx := context.Background()

	j, err := svc.CreateJob(ctx, "user-1", "a cat surfing", OrientationPortrait)
	require.NoError(t, err)
	require.NoError(t, jobs.MarkProcessing(ctx, j.ID, ""))

	jobs.mu.Lock()
	jobs.jobs[j.ID].UpdatedAt = jobs.jobs[j.ID].UpdatedAt.Add(-6 * StuckThreshold)
	jobs.mu.Unlock()

	count, err := svc.RecoverStuckJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	done, err := svc.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, done.Status)
	assert.Equal(t, "Job was interrupted by server restart", done.ErrorMessage)
}

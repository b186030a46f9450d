package htmlimage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeEngine records jobs instead of driving a browser.
type fakeEngine struct {
	mu       sync.Mutex
	jobs     []renderJob
	ctxs     []context.Context
	err      error
	closed   int
	onRender func()
}

func (e *fakeEngine) render(ctx context.Context, job renderJob, _ *zap.Logger) (*Result, error) {
	e.mu.Lock()
	e.jobs = append(e.jobs, job)
	e.ctxs = append(e.ctxs, ctx)
	hook, err := e.onRender, e.err
	e.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return NewResult([]byte("rendered:"+job.url), job.format, job.settings.Width, job.settings.Height), nil
}

func (e *fakeEngine) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
}

func newTestRenderer(t *testing.T, opts ...Option) (*Renderer, *fakeEngine) {
	t.Helper()
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	eng := &fakeEngine{}
	r := newRenderer(cfg, eng)
	t.Cleanup(func() { r.Close() })
	return r, eng
}

func countingSink(n *int) Sink {
	return SinkFunc(func(*Result) error {
		*n++
		return nil
	})
}

func TestRender_UnsupportedFormat(t *testing.T) {
	r, eng := newTestRenderer(t)

	_, err := r.Render(context.Background(), "http://example.com", Format(42))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	commits := 0
	err = r.RenderTo(context.Background(), "http://example.com", countingSink(&commits), Format(42))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.Zero(t, commits, "sink must stay untouched")
	assert.Empty(t, eng.jobs, "engine must not be called")
}

func TestRenderTo_UnsupportedFormatBeforeNilSink(t *testing.T) {
	r, _ := newTestRenderer(t)
	err := r.RenderTo(context.Background(), "http://example.com", nil, Format(-1))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRenderTo_NilSink(t *testing.T) {
	r, eng := newTestRenderer(t)
	err := r.RenderTo(context.Background(), "http://example.com", nil, Bitmap)
	assert.ErrorIs(t, err, ErrNilSink)
	assert.Empty(t, eng.jobs)
}

func TestRender_ProducesRequestedFormat(t *testing.T) {
	r, eng := newTestRenderer(t)

	for _, f := range []Format{Bitmap, Vector} {
		res, err := r.Render(context.Background(), "https://example.com", f)
		require.NoError(t, err)
		assert.Equal(t, f, res.Format())
		assert.NotZero(t, res.Len())
	}
	require.Len(t, eng.jobs, 2)
	assert.Equal(t, Bitmap, eng.jobs[0].format)
	assert.Equal(t, Vector, eng.jobs[1].format)
}

func TestRender_ImplicitHTTPMatchesExplicit(t *testing.T) {
	r, eng := newTestRenderer(t, WithImplicitHTTP())

	implicit, err := r.Render(context.Background(), "example.com", Bitmap)
	require.NoError(t, err)
	explicit, err := r.Render(context.Background(), "http://example.com", Bitmap)
	require.NoError(t, err)

	assert.Equal(t, explicit.Bytes(), implicit.Bytes())
	require.Len(t, eng.jobs, 2)
	assert.Equal(t, eng.jobs[1], eng.jobs[0])
}

func TestRender_MissingSchemeWithoutImplicitHTTP(t *testing.T) {
	r, eng := newTestRenderer(t)

	_, err := r.Render(context.Background(), "example.com", Bitmap)
	assert.ErrorIs(t, err, ErrMissingScheme)

	_, err = r.Render(context.Background(), "gopher://example.com", Bitmap)
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	assert.Empty(t, eng.jobs)
}

func TestRender_SequentialSettingsDoNotInterfere(t *testing.T) {
	r, eng := newTestRenderer(t)

	r.SetWindowSize(800, 600, true)
	r.SetMediaType("print")
	_, err := r.Render(context.Background(), "http://a.example", Bitmap)
	require.NoError(t, err)

	r.SetWindowSize(1024, 768, false)
	r.SetMediaType("screen")
	r.SetLoadImages(false, false)
	_, err = r.Render(context.Background(), "http://b.example", Bitmap)
	require.NoError(t, err)

	require.Len(t, eng.jobs, 2)
	assert.Equal(t, RenderSettings{
		MediaType: "print", Width: 800, Height: 600, Crop: true,
		LoadImages: true, LoadBackgroundImages: true,
	}, eng.jobs[0].settings)
	assert.Equal(t, RenderSettings{
		MediaType: "screen", Width: 1024, Height: 768,
	}, eng.jobs[1].settings)
}

func TestRender_SettersDuringRenderUseSnapshot(t *testing.T) {
	r, eng := newTestRenderer(t)
	eng.onRender = func() {
		r.SetMediaType("print")
		r.SetWindowSize(1, 1, true)
	}

	_, err := r.Render(context.Background(), "http://example.com", Vector)
	require.NoError(t, err)

	assert.Equal(t, DefaultSettings(), eng.jobs[0].settings)
	assert.Equal(t, "print", r.Settings().MediaType)
}

func TestRender_JobCarriesConfiguration(t *testing.T) {
	fonts := FontFallbacks{Serif: "Georgia", SansSerif: "Helvetica", Monospace: "Menlo"}
	settings := DefaultSettings()
	settings.SetWindowSize(640, 480, true)

	r, eng := newTestRenderer(t,
		WithFontFallbacks(fonts),
		WithUserStyleSheet("body { margin: 0 }"),
		WithFetchTimeout(3*time.Second),
		WithSettings(settings),
	)

	_, err := r.Render(context.Background(), "http://example.com", Vector)
	require.NoError(t, err)

	job := eng.jobs[0]
	assert.Equal(t, "http://example.com", job.url)
	assert.Equal(t, fonts, job.fonts)
	assert.Equal(t, "body { margin: 0 }", job.userCSS)
	assert.Equal(t, 3*time.Second, job.fetchTimeout)
	assert.Equal(t, settings, job.settings)
	assert.Equal(t, settings, r.Settings())
}

func TestRender_AppliesTimeout(t *testing.T) {
	r, eng := newTestRenderer(t, WithTimeout(time.Minute))
	_, err := r.Render(context.Background(), "http://example.com", Bitmap)
	require.NoError(t, err)
	_, ok := eng.ctxs[0].Deadline()
	assert.True(t, ok, "render context should carry a deadline")

	r2, eng2 := newTestRenderer(t, WithTimeout(0))
	_, err = r2.Render(context.Background(), "http://example.com", Bitmap)
	require.NoError(t, err)
	_, ok = eng2.ctxs[0].Deadline()
	assert.False(t, ok)
}

func TestRenderTo_EngineErrorSkipsSink(t *testing.T) {
	r, eng := newTestRenderer(t)
	eng.err = &FetchError{URL: "http://example.com", StatusCode: 404}

	commits := 0
	err := r.RenderTo(context.Background(), "http://example.com", countingSink(&commits), Bitmap)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 404, fetchErr.StatusCode)
	assert.Zero(t, commits)
}

func TestRenderTo_SinkError(t *testing.T) {
	r, _ := newTestRenderer(t)
	boom := errors.New("boom")
	err := r.RenderTo(context.Background(), "http://example.com", SinkFunc(func(*Result) error { return boom }), Bitmap)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "committing output")
}

func TestRenderer_Close(t *testing.T) {
	r, eng := newTestRenderer(t)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, 1, eng.closed)

	_, err := r.Render(context.Background(), "http://example.com", Bitmap)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRender_Concurrent(t *testing.T) {
	r, eng := newTestRenderer(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Render(context.Background(), "http://example.com", Bitmap)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, eng.jobs, 8)
}

func TestRender_PackageLevelRejectsFormatFirst(t *testing.T) {
	// No browser is started for an invalid format.
	_, err := Render(context.Background(), "http://example.com", Format(7), WithChromePath("/nonexistent/chrome"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	err = RenderTo(context.Background(), "http://example.com", WriterSink(nil), Format(7), WithChromePath("/nonexistent/chrome"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWithLogger_IgnoresNil(t *testing.T) {
	cfg := defaultConfig()
	WithLogger(nil)(&cfg)
	assert.NotNil(t, cfg.logger)
}

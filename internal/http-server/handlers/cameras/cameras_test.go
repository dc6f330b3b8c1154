package camerashandler

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
)

type fakeSessions struct {
	mu   sync.Mutex
	cmds []models.CameraCommand
	err  error
	info *models.SessionInfo
}

func (f *fakeSessions) Toggle(_ context.Context, cmd models.CameraCommand) (models.SessionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cmds = append(f.cmds, cmd)
	if f.err != nil {
		return models.StatusError, f.err
	}
	if cmd.Action == models.CommandStop {
		return models.StatusStopped, nil
	}
	return models.StatusStarted, nil
}

func (f *fakeSessions) Status() (models.SessionInfo, bool) {
	if f.info == nil {
		return models.SessionInfo{}, false
	}
	return *f.info, true
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func toggle(t *testing.T, h *CameraHandler, body string) (int, Response) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/toggle_camera", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.Toggle(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	return rec.Code, resp
}

func TestToggleAliases(t *testing.T) {
	tests := []struct {
		name string
		body string
		want models.CameraKind
	}{
		{name: "default local", body: `{"action":"start"}`, want: models.CameraLocal},
		{name: "pc", body: `{"action":"start","camera_type":"pc"}`, want: models.CameraLocal},
		{name: "droidcam", body: `{"action":"start","camera_type":"droidcam","ip":"10.0.0.5","port":"4747"}`, want: models.CameraNetwork},
		{name: "network", body: `{"action":"start","camera_type":"Network"}`, want: models.CameraNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &fakeSessions{}
			code, resp := toggle(t, New(discardLogger(), sessions), tt.body)

			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, models.StatusStarted, resp.Status)
			assert.Equal(t, tt.want, resp.CameraType)
			require.Len(t, sessions.cmds, 1)
			assert.Equal(t, tt.want, sessions.cmds[0].Params.Kind)
		})
	}
}

func TestTogglePassesNetworkParams(t *testing.T) {
	sessions := &fakeSessions{}
	_, _ = toggle(t, New(discardLogger(), sessions), `{"action":"start","camera_type":"network","ip":"10.0.0.5","port":"8080"}`)

	require.Len(t, sessions.cmds, 1)
	assert.Equal(t, "10.0.0.5", sessions.cmds[0].Params.Address)
	assert.Equal(t, "8080", sessions.cmds[0].Params.Port)
}

func TestToggleStop(t *testing.T) {
	code, resp := toggle(t, New(discardLogger(), &fakeSessions{}), `{"action":"stop","camera_type":"local"}`)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.StatusStopped, resp.Status)
}

func TestToggleRejectsInvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty", body: ``},
		{name: "unknown action", body: `{"action":"pause"}`},
		{name: "unknown camera", body: `{"action":"start","camera_type":"thermal"}`},
		{name: "bad port", body: `{"action":"start","camera_type":"network","port":"http"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &fakeSessions{}
			code, resp := toggle(t, New(discardLogger(), sessions), tt.body)

			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, models.StatusError, resp.Status)
			assert.NotEmpty(t, resp.Error)
			assert.Empty(t, sessions.cmds)
		})
	}
}

func TestToggleOpenFailure(t *testing.T) {
	sessions := &fakeSessions{err: fmt.Errorf("start: %w", errs.ErrNoCamera)}

	code, resp := toggle(t, New(discardLogger(), sessions), `{"action":"start"}`)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, models.StatusError, resp.Status)
	assert.Equal(t, models.CameraLocal, resp.CameraType)
	assert.Equal(t, errs.ErrNoCamera.Error(), resp.Error)
}

func TestStatus(t *testing.T) {
	sessions := &fakeSessions{}
	h := New(discardLogger(), sessions)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/camera/status", nil))

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Running)
	assert.Nil(t, resp.Session)

	sessions.info = &models.SessionInfo{ID: "s1", Running: true, Params: models.CameraParams{Kind: models.CameraNetwork}}

	rec = httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/camera/status", nil))

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Running)
	require.NotNil(t, resp.Session)
	assert.Equal(t, "s1", resp.Session.ID)
}

type fakeFrames struct {
	ch          chan []byte
	unsubscribe chan int
}

func (f *fakeFrames) Subscribe() (int, <-chan []byte) { return 1, f.ch }
func (f *fakeFrames) Unsubscribe(id int)             { f.unsubscribe <- id }

func openStream(t *testing.T, h *StreamHandler) (*multipart.Reader, context.CancelFunc) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/x-mixed-replace", mediaType)
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	return multipart.NewReader(resp.Body, params["boundary"]), cancel
}

func TestStreamDeliversFrames(t *testing.T) {
	frames := &fakeFrames{ch: make(chan []byte, 2), unsubscribe: make(chan int, 1)}
	h := NewStream(discardLogger(), frames, time.Minute)

	frames.ch <- []byte("frame-1")
	frames.ch <- []byte("frame-2")

	mr, cancel := openStream(t, h)

	part, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))

	body, err := io.ReadAll(part)
	require.NoError(t, err)
	assert.Equal(t, []byte("frame-1"), body)

	cancel()

	select {
	case id := <-frames.unsubscribe:
		assert.Equal(t, 1, id)
	case <-time.After(2 * time.Second):
		t.Fatal("viewer was not unsubscribed")
	}
}

func TestStreamKeepalive(t *testing.T) {
	frames := &fakeFrames{ch: make(chan []byte), unsubscribe: make(chan int, 1)}
	h := NewStream(discardLogger(), frames, 10*time.Millisecond)

	mr, cancel := openStream(t, h)
	defer cancel()

	part, err := mr.NextPart()
	require.NoError(t, err)

	body, err := io.ReadAll(part)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
}

package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.viam.com/test"

	"servos/channel"
	"servos/curve"
	"servos/editor"
	"servos/playback"
	"servos/store"
	"servos/studio"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, channels int) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop().Sugar()
	st, err := studio.New(studio.Options{Channels: channels, Clock: clock.NewMock()}, logger)
	test.That(t, err, test.ShouldBeNil)
	s := NewServer(st, 16, logger)
	r := NewEngine(true, logger)
	s.SetupRoutes(r)
	t.Cleanup(func() {
		s.Close()
		st.Close()
	})
	return s, r
}

func do(t *testing.T, r http.Handler, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		test.That(t, err, test.ShouldBeNil)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	test.That(t, json.Unmarshal(w.Body.Bytes(), &env), test.ShouldBeNil)
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	test.That(t, json.Unmarshal(env.Data, &out), test.ShouldBeNil)
	return out
}

func TestChannelEndpoints(t *testing.T) {
	_, r := newTestServer(t, 2)

	code, env := do(t, r, http.MethodGet, "/api/v1/channels", nil)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	test.That(t, env.Status, test.ShouldEqual, "success")
	list := decode[[]studio.ChannelInfo](t, env)
	test.That(t, list, test.ShouldHaveLength, 2)

	code, env = do(t, r, http.MethodPost, "/api/v1/channels", ChannelCreateRequest{Name: "elbow"})
	test.That(t, code, test.ShouldEqual, http.StatusCreated)
	created := decode[studio.ChannelInfo](t, env)
	test.That(t, created.ID, test.ShouldEqual, 3)
	test.That(t, created.Name, test.ShouldEqual, "elbow")

	code, _ = do(t, r, http.MethodPost, "/api/v1/channels", nil)
	test.That(t, code, test.ShouldEqual, http.StatusCreated)

	code, env = do(t, r, http.MethodGet, "/api/v1/channels/abc", nil)
	test.That(t, code, test.ShouldEqual, http.StatusBadRequest)
	test.That(t, env.Status, test.ShouldEqual, "error")
	code, _ = do(t, r, http.MethodGet, "/api/v1/channels/99", nil)
	test.That(t, code, test.ShouldEqual, http.StatusNotFound)

	code, env = do(t, r, http.MethodPatch, "/api/v1/channels/1", map[string]any{"loop": false, "limitMin": 20})
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	updated := decode[studio.ChannelInfo](t, env)
	test.That(t, updated.Loop, test.ShouldBeFalse)
	test.That(t, updated.LimitMin, test.ShouldEqual, 20.0)
	code, _ = do(t, r, http.MethodPatch, "/api/v1/channels/1", map[string]any{"limitMax": 10})
	test.That(t, code, test.ShouldEqual, http.StatusBadRequest)

	code, env = do(t, r, http.MethodPut, "/api/v1/channels/count", ChannelCountRequest{Count: 1})
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	counts := decode[ChannelCountResponse](t, env)
	test.That(t, counts.Removed, test.ShouldResemble, []int{2, 3, 4})
	test.That(t, counts.Added, test.ShouldResemble, []int{})

	code, _ = do(t, r, http.MethodPut, "/api/v1/channels/count", ChannelCountRequest{Count: 17})
	test.That(t, code, test.ShouldEqual, http.StatusBadRequest)
	code, _ = do(t, r, http.MethodDelete, "/api/v1/channels/1", nil)
	test.That(t, code, test.ShouldEqual, http.StatusConflict)
}

func TestKeyframeEndpoints(t *testing.T) {
	_, r := newTestServer(t, 1)
	tm, v := 2.5, 180.0

	code, env := do(t, r, http.MethodPost, "/api/v1/channels/1/keyframes", KeyframeRequest{Time: &tm, Value: &v})
	test.That(t, code, test.ShouldEqual, http.StatusCreated)
	kf := decode[KeyframeResponse](t, env)
	test.That(t, kf.ID, test.ShouldEqual, curve.KeyframeID(1))

	code, _ = do(t, r, http.MethodPost, "/api/v1/channels/1/keyframes", KeyframeRequest{Time: &tm, Value: &v})
	test.That(t, code, test.ShouldEqual, http.StatusBadRequest)
	code, env = do(t, r, http.MethodPost, "/api/v1/channels/1/keyframes", map[string]any{"time": 1})
	test.That(t, code, test.ShouldEqual, http.StatusBadRequest)
	test.That(t, env.Error, test.ShouldContainSubstring, "time/value")

	far := 7.0
	code, _ = do(t, r, http.MethodPut, "/api/v1/channels/1/keyframes/1", KeyframeRequest{Time: &far, Value: &v})
	test.That(t, code, test.ShouldEqual, http.StatusBadRequest)
	code, _ = do(t, r, http.MethodPut, "/api/v1/channels/1/keyframes/start", KeyframeRequest{Time: &tm, Value: &v})
	test.That(t, code, test.ShouldEqual, http.StatusForbidden)
	code, _ = do(t, r, http.MethodDelete, "/api/v1/channels/1/keyframes/9", nil)
	test.That(t, code, test.ShouldEqual, http.StatusNotFound)
	code, _ = do(t, r, http.MethodDelete, "/api/v1/channels/1/keyframes/x", nil)
	test.That(t, code, test.ShouldEqual, http.StatusBadRequest)

	// 像素坐标移动
	vp := editor.DefaultViewport(5)
	x, y := vp.ToViewport(2, 100)
	code, _ = do(t, r, http.MethodPut, "/api/v1/channels/1/keyframes/1", KeyframeRequest{X: &x, Y: &y})
	test.That(t, code, test.ShouldEqual, http.StatusOK)

	controls := SegmentControlsRequest{Control1: OffsetModel{DT: 0.2, DV: 30}, Control2: OffsetModel{DT: 0.8, DV: -30}}
	code, _ = do(t, r, http.MethodPut, "/api/v1/channels/1/segments/1/controls", controls)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	code, _ = do(t, r, http.MethodPut, "/api/v1/channels/1/segments/5/controls", controls)
	test.That(t, code, test.ShouldEqual, http.StatusNotFound)

	code, env = do(t, r, http.MethodGet, "/api/v1/channels/1/curve", nil)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	data := decode[curve.Data](t, env)
	test.That(t, data.Keyframes, test.ShouldHaveLength, 1)
	test.That(t, data.Keyframes[0].Time, test.ShouldAlmostEqual, 2.0, 1e-9)
	test.That(t, data.Segments[1].Control1.DV, test.ShouldEqual, 30.0)

	code, _ = do(t, r, http.MethodPut, "/api/v1/channels/1/baseline", map[string]any{"value": 45})
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	code, _ = do(t, r, http.MethodPut, "/api/v1/channels/1/baseline", map[string]any{})
	test.That(t, code, test.ShouldEqual, http.StatusBadRequest)

	code, env = do(t, r, http.MethodGet, "/api/v1/channels/1/samples?n=11", nil)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	samples := decode[SamplesResponse](t, env)
	test.That(t, samples.Values, test.ShouldHaveLength, 11)
	test.That(t, samples.Values[0], test.ShouldEqual, 45.0)
	test.That(t, samples.Values[10], test.ShouldEqual, 45.0)
	code, _ = do(t, r, http.MethodGet, "/api/v1/channels/1/samples?n=1", nil)
	test.That(t, code, test.ShouldEqual, http.StatusBadRequest)

	data.Keyframes = nil
	code, _ = do(t, r, http.MethodPut, "/api/v1/channels/1/curve", data)
	test.That(t, code, test.ShouldEqual, http.StatusBadRequest)
	data.Segments = data.Segments[:1]
	code, _ = do(t, r, http.MethodPut, "/api/v1/channels/1/curve", data)
	test.That(t, code, test.ShouldEqual, http.StatusOK)

	code, _ = do(t, r, http.MethodDelete, "/api/v1/channels/1/keyframes/1", nil)
	test.That(t, code, test.ShouldEqual, http.StatusNotFound)
}

func TestHitTestAndViewportEndpoints(t *testing.T) {
	_, r := newTestServer(t, 1)

	code, env := do(t, r, http.MethodGet, "/api/v1/viewport", nil)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	vp := decode[editor.Viewport](t, env)
	test.That(t, vp.Duration, test.ShouldEqual, 5.0)

	code, env = do(t, r, http.MethodPost, "/api/v1/viewport/to-viewport", CurvePointRequest{Time: 2.5, Value: 90})
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	px := decode[PointResponse](t, env)

	code, env = do(t, r, http.MethodPost, "/api/v1/viewport/to-curve", PixelRequest{X: px.X, Y: px.Y})
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	pt := decode[PointResponse](t, env)
	test.That(t, pt.Time, test.ShouldAlmostEqual, 2.5, 1e-9)
	test.That(t, pt.Value, test.ShouldAlmostEqual, 90.0, 1e-9)

	code, env = do(t, r, http.MethodPost, "/api/v1/channels/1/hit-test", HitTestRequest{X: px.X, Y: px.Y})
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	hit := decode[HitTestResponse](t, env)
	test.That(t, hit.Hit, test.ShouldBeTrue)
	test.That(t, hit.Segment, test.ShouldEqual, 0)

	code, env = do(t, r, http.MethodPost, "/api/v1/channels/1/hit-test", HitTestRequest{X: px.X, Y: px.Y + 40})
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	hit = decode[HitTestResponse](t, env)
	test.That(t, hit.Hit, test.ShouldBeFalse)
	test.That(t, hit.Segment, test.ShouldEqual, -1)

	bad := editor.DefaultViewport(5)
	bad.Width = 0
	code, _ = do(t, r, http.MethodPost, "/api/v1/viewport/to-curve", PixelRequest{X: 1, Y: 1, Viewport: &bad})
	test.That(t, code, test.ShouldEqual, http.StatusBadRequest)

	code, env = do(t, r, http.MethodPut, "/api/v1/editor/limit-mode", LimitModeRequest{Mode: "clamp"})
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	test.That(t, string(env.Data), test.ShouldContainSubstring, "clamp")
	code, _ = do(t, r, http.MethodPut, "/api/v1/editor/limit-mode", LimitModeRequest{Mode: "soft"})
	test.That(t, code, test.ShouldEqual, http.StatusBadRequest)
}

func TestPlaybackEndpoints(t *testing.T) {
	_, r := newTestServer(t, 1)

	code, _ := do(t, r, http.MethodPost, "/api/v1/playback/pause", nil)
	test.That(t, code, test.ShouldEqual, http.StatusConflict)
	code, _ = do(t, r, http.MethodPost, "/api/v1/playback/resume", nil)
	test.That(t, code, test.ShouldEqual, http.StatusConflict)

	code, env := do(t, r, http.MethodPost, "/api/v1/playback/start", nil)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	test.That(t, decode[StartResponse](t, env).Session, test.ShouldNotBeEmpty)

	code, env = do(t, r, http.MethodGet, "/api/v1/playback/status", nil)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	test.That(t, decode[playback.Status](t, env).State, test.ShouldEqual, "playing")

	code, env = do(t, r, http.MethodPost, "/api/v1/playback/pause", nil)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	test.That(t, decode[playback.Status](t, env).State, test.ShouldEqual, "paused")
	code, _ = do(t, r, http.MethodPost, "/api/v1/playback/resume", nil)
	test.That(t, code, test.ShouldEqual, http.StatusOK)

	seek := 1.5
	code, env = do(t, r, http.MethodPost, "/api/v1/playback/seek", SeekRequest{Time: &seek})
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	test.That(t, decode[playback.Status](t, env).CurrentTime, test.ShouldAlmostEqual, 1.5, 1e-9)
	bad := 9.0
	code, _ = do(t, r, http.MethodPost, "/api/v1/playback/seek", SeekRequest{Time: &bad})
	test.That(t, code, test.ShouldEqual, http.StatusBadRequest)

	code, env = do(t, r, http.MethodPost, "/api/v1/playback/stop", nil)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	test.That(t, decode[playback.Status](t, env).State, test.ShouldEqual, "stopped")

	code, env = do(t, r, http.MethodPut, "/api/v1/playback/settings", map[string]any{"resolution": 50, "stepScale": 2})
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	st := decode[playback.Status](t, env)
	test.That(t, st.Resolution, test.ShouldEqual, 50.0)
	test.That(t, st.StepSize, test.ShouldAlmostEqual, 0.04, 1e-12)
	code, _ = do(t, r, http.MethodPut, "/api/v1/playback/settings", map[string]any{"duration": -1})
	test.That(t, code, test.ShouldEqual, http.StatusBadRequest)
}

func TestProjectEndpoints(t *testing.T) {
	_, r := newTestServer(t, 2)
	tm, v := 1.0, 10.0
	code, _ := do(t, r, http.MethodPost, "/api/v1/channels/2/keyframes", KeyframeRequest{Time: &tm, Value: &v})
	test.That(t, code, test.ShouldEqual, http.StatusCreated)

	code, env := do(t, r, http.MethodGet, "/api/v1/project", nil)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	exported := decode[store.Project](t, env)
	test.That(t, exported.Channels, test.ShouldHaveLength, 2)

	code, env = do(t, r, http.MethodPost, "/api/v1/project/new", NewProjectRequest{Channels: 4})
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	test.That(t, decode[[]studio.ChannelInfo](t, env), test.ShouldHaveLength, 4)

	code, _ = do(t, r, http.MethodPut, "/api/v1/project", exported)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	code, env = do(t, r, http.MethodGet, "/api/v1/channels/2", nil)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	test.That(t, decode[studio.ChannelInfo](t, env).Keyframes, test.ShouldHaveLength, 1)

	exported.Channels[0].Curve.Duration = 99
	code, _ = do(t, r, http.MethodPut, "/api/v1/project", exported)
	test.That(t, code, test.ShouldEqual, http.StatusBadRequest)

	code, _ = do(t, r, http.MethodPost, "/api/v1/project/save", nil)
	test.That(t, code, test.ShouldEqual, http.StatusConflict)
	code, _ = do(t, r, http.MethodPost, "/api/v1/project/load", nil)
	test.That(t, code, test.ShouldEqual, http.StatusConflict)
}

func TestSystemEndpoints(t *testing.T) {
	_, r := newTestServer(t, 3)

	code, env := do(t, r, http.MethodGet, "/api/v1/system/health", nil)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	test.That(t, decode[HealthResponse](t, env).Status, test.ShouldEqual, "healthy")

	code, env = do(t, r, http.MethodGet, "/api/v1/system/status", nil)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	status := decode[studio.Status](t, env)
	test.That(t, status.Channels, test.ShouldEqual, 3)
	test.That(t, status.LimitMode, test.ShouldEqual, "advisory")

	code, env = do(t, r, http.MethodGet, "/api/v1/system/transports", nil)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	transports := decode[TransportsResponse](t, env)
	test.That(t, transports.Supported, test.ShouldResemble, []string{"can-bridge", "log", "serial"})
	test.That(t, transports.Active, test.ShouldBeEmpty)
}

func TestTransportsListsSerialPorts(t *testing.T) {
	s, r := newTestServer(t, 1)

	s.listPorts = func() ([]string, error) { return []string{"/dev/ttyUSB0", "/dev/ttyACM0"}, nil }
	code, env := do(t, r, http.MethodGet, "/api/v1/system/transports", nil)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	transports := decode[TransportsResponse](t, env)
	test.That(t, transports.SerialPorts, test.ShouldResemble, []string{"/dev/ttyUSB0", "/dev/ttyACM0"})
	test.That(t, transports.SerialError, test.ShouldBeEmpty)

	s.listPorts = func() ([]string, error) { return nil, errors.New("permission denied") }
	code, env = do(t, r, http.MethodGet, "/api/v1/system/transports", nil)
	test.That(t, code, test.ShouldEqual, http.StatusOK)
	transports = decode[TransportsResponse](t, env)
	test.That(t, transports.SerialPorts, test.ShouldBeEmpty)
	test.That(t, transports.SerialError, test.ShouldEqual, "permission denied")
	test.That(t, transports.Supported, test.ShouldContain, "serial")
}

func TestStatusForMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errors.Wrap(curve.ErrBoundaryImmutable, "x"), http.StatusForbidden},
		{errors.Wrap(curve.ErrNotFound, "x"), http.StatusNotFound},
		{errors.Wrap(channel.ErrNotFound, "x"), http.StatusNotFound},
		{errors.Wrap(store.ErrNoProject, "x"), http.StatusNotFound},
		{errors.Wrap(playback.ErrNotPlaying, "x"), http.StatusConflict},
		{errors.Wrap(channel.ErrLimit, "x"), http.StatusConflict},
		{studio.ErrNoStore, http.StatusConflict},
		{errors.Wrap(curve.ErrOutOfRange, "x"), http.StatusBadRequest},
		{errors.Wrap(curve.ErrDuplicateTime, "x"), http.StatusBadRequest},
		{errors.Wrap(curve.ErrOrderViolation, "x"), http.StatusBadRequest},
		{errors.Wrap(curve.ErrCorruptData, "x"), http.StatusBadRequest},
		{errors.Wrap(editor.ErrInvalidViewport, "x"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		test.That(t, statusFor(tc.err), test.ShouldEqual, tc.want)
	}
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	h := NewHub(2)
	samples, cancel := h.Subscribe()
	for i := 0; i < 5; i++ {
		h.Publish(playback.Sample{ChannelID: 1, Value: float64(i)})
	}
	test.That(t, h.Dropped(), test.ShouldEqual, int64(3))
	test.That(t, (<-samples).Value, test.ShouldEqual, 0.0)
	cancel()
	cancel()
	test.That(t, h.Len(), test.ShouldEqual, 0)

	h.Close()
	closed, _ := h.Subscribe()
	_, ok := <-closed
	test.That(t, ok, test.ShouldBeFalse)
}

func TestStreamDeliversSamples(t *testing.T) {
	s, r := newTestServer(t, 1)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/playback/stream", nil)
	test.That(t, err, test.ShouldBeNil)
	resp, err := http.DefaultClient.Do(req)
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	test.That(t, resp.Header.Get("Content-Type"), test.ShouldContainSubstring, "text/event-stream")

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s.hub.Publish(playback.Sample{Session: "abc", ChannelID: 1, Value: 123.5})

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimPrefix(line, "event:")
		}
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimPrefix(line, "data:")
			break
		}
	}
	test.That(t, event, test.ShouldEqual, "sample")

	var got playback.Sample
	test.That(t, json.Unmarshal([]byte(data), &got), test.ShouldBeNil)
	test.That(t, got.Session, test.ShouldEqual, "abc")
	test.That(t, got.Value, test.ShouldEqual, 123.5)
}

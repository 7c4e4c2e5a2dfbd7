package serve

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pano/notify"
	"pano/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open("sqlite", filepath.Join(dir, store.DatabaseFile))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Server{Store: db, Updater: NewMetaUpdater()}, db, dir
}

func addRecord(t *testing.T, db *store.Store, dir string, status store.Status) *store.Record {
	t.Helper()
	r := store.NewRecord("/videos/v.mp4", 10)
	r.Status = status
	if status == store.StatusDone {
		r.PanoPath = filepath.Join(dir, r.ID+"_pano.jpg")
		require.NoError(t, os.WriteFile(r.PanoPath, []byte("jpegdata"), 0644))
		r.Width, r.Height = 800, 200
	}
	require.NoError(t, db.Create(r))
	return r
}

func TestMetaServer(t *testing.T) {
	srv, db, dir := newTestServer(t)
	done := addRecord(t, db, dir, store.StatusDone)
	addRecord(t, db, dir, store.StatusFailed)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/panoramas", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp MetaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.ItemsCount)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/panoramas?status=done", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.ItemsCount)
	assert.Equal(t, done.ID, resp.Items[0].ID)
	assert.Equal(t, "v.mp4", resp.Items[0].Input)
	assert.True(t, resp.Items[0].HavePano)
	assert.Equal(t, 800, resp.Items[0].Width)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/panoramas?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileServer(t *testing.T) {
	srv, db, dir := newTestServer(t)
	done := addRecord(t, db, dir, store.StatusDone)
	failed := addRecord(t, db, dir, store.StatusFailed)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/panorama?id="+done.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "jpegdata", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/panorama?id="+failed.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/thumb?id="+done.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "no thumbnail was written")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/panorama?id=unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteServer(t *testing.T) {
	srv, db, dir := newTestServer(t)
	done := addRecord(t, db, dir, store.StatusDone)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/delete?id="+done.ID, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/delete?id="+done.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoFileExists(t, done.PanoPath)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/delete?id="+done.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerServer(t *testing.T) {
	srv, _, dir := newTestServer(t)
	var queued []string
	srv.Trigger = &TriggerServer{Dir: dir, Enqueue: func(p string) <-chan *store.Record {
		queued = append(queued, p)
		return make(chan *store.Record)
	}}
	h := srv.Handler()

	v := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(v, []byte("x"), 0644))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/stitch?path="+v, nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{v}, queued)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/stitch?path="+filepath.Join(dir, "nope.mp4"), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/stitch?path=/etc/passwd", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	outside := filepath.Join(t.TempDir(), "elsewhere.mp4")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0644))
	for _, p := range []string{outside, filepath.Join(dir, "..", "elsewhere.mp4"), dir + "/../" + filepath.Base(dir) + "x.mp4"} {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("POST", "/stitch?path="+p, nil))
		assert.Equal(t, http.StatusForbidden, rec.Code, p)
	}
	assert.Len(t, queued, 1, "videos outside the watched directory are never queued")

	srv.Trigger.Enqueue = func(string) <-chan *store.Record { return nil }
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/stitch?path="+v, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetaUpdaterPushesUpdates(t *testing.T) {
	m := NewMetaUpdater()
	ts := httptest.NewServer(m)
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer ws.Close()

	// The client registers asynchronously; keep notifying until it hears.
	got := make(chan string, 1)
	go func() {
		_, msg, err := ws.ReadMessage()
		if err == nil {
			got <- string(msg)
		}
	}()
	deadline := time.After(5 * time.Second)
	for {
		require.NoError(t, m.Notify(&notify.Notification{}))
		select {
		case msg := <-got:
			assert.Equal(t, "update", msg)
			return
		case <-deadline:
			t.Fatal("no update received")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

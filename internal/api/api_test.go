package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/arbor/internal/editfeed"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/plotservice"
	"github.com/starford/arbor/internal/testutil"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000rest-of-image")

type recordingPublisher struct {
	mu     sync.Mutex
	plots  []string
	edits  int
	failed int
}

func (p *recordingPublisher) PublishPlotEvent(kind, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plots = append(p.plots, kind+":"+path)
}

func (p *recordingPublisher) PublishEdits(_ any, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failed++
	} else {
		p.edits++
	}
}

type stubFetcher struct {
	mu    sync.Mutex
	err   error
	gate  chan struct{}
	calls int
}

func (f *stubFetcher) FetchUserEdits(ctx context.Context, _ *models.User, offset, limit int) ([]*models.EditEntry, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	items := make([]any, 0, limit)
	for i := 0; i < limit; i++ {
		items = append(items, map[string]any{"id": offset + i + 1, "name": "tree added", "value": 1})
	}
	return models.ParseEditEntries(items)
}

type env struct {
	router  http.Handler
	svc     *plotservice.Service
	events  *recordingPublisher
	fetcher *stubFetcher
	cache   *editfeed.Cache
}

func newEnv(t *testing.T, authEnabled bool, token string) *env {
	t.Helper()
	_, store := testutil.TestStore(t)
	db := testutil.TestDB(t)
	svc := plotservice.NewService(store, db)

	e := &env{
		svc:     svc,
		events:  &recordingPublisher{},
		fetcher: &stubFetcher{},
		cache:   editfeed.NewCache(0),
	}
	loader := editfeed.NewLoader(e.fetcher, e.cache, models.NewUser(1, "kim"))
	sseStub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		<-r.Context().Done()
	})
	e.router = NewRouter(RouterConfig{
		Plots:       svc,
		EditLoader:  loader,
		EditCache:   e.cache,
		Events:      e.events,
		SSE:         sseStub,
		AuthEnabled: authEnabled,
		Token:       token,
	})
	return e
}

func (e *env) do(t *testing.T, method, target string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func createBody(path string) []byte {
	return []byte(`{"path":"` + path + `","document":` + testutil.SamplePlot + `}`)
}

func TestCreateAndGetPlot(t *testing.T) {
	e := newEnv(t, false, "")

	w := e.do(t, http.MethodPost, "/plots", createBody("ward1/12.json"), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/plots/ward1/12.json", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var d PlotDetail
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil {
		t.Fatal(err)
	}
	if d.PlotID != 12 || !d.HasPendingEdits || d.Species == nil {
		t.Errorf("detail = %+v", d)
	}
	if etag := w.Header().Get("ETag"); etag != `"`+d.Checksum+`"` {
		t.Errorf("ETag = %q", etag)
	}

	w = e.do(t, http.MethodGet, "/plots/ward1%2F12.json", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("encoded path status = %d", w.Code)
	}

	if len(e.events.plots) != 1 || e.events.plots[0] != "created:ward1/12.json" {
		t.Errorf("events = %v", e.events.plots)
	}
}

func TestCreatePlot_BadRequests(t *testing.T) {
	e := newEnv(t, false, "")
	cases := map[string][]byte{
		"invalid json":     []byte(`{`),
		"missing document": []byte(`{"path":"a.json"}`),
		"missing path":     []byte(`{"document":{"plot":{}}}`),
		"not a plot file":  createBody("a.txt"),
	}
	for name, body := range cases {
		if w := e.do(t, http.MethodPost, "/plots", body, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, w.Code)
		}
	}
}

func TestCreateDuplicate(t *testing.T) {
	e := newEnv(t, false, "")
	if w := e.do(t, http.MethodPost, "/plots", createBody("dup.json"), nil); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/plots", createBody("dup.json"), nil); w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestUpdateWithIfMatch(t *testing.T) {
	e := newEnv(t, false, "")
	w := e.do(t, http.MethodPost, "/plots", createBody("lock.json"), nil)
	var created PlotDetail
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	update := []byte(`{"document":{"plot":{"id":12,"width":8},"has_tree":false}}`)
	w = e.do(t, http.MethodPut, "/plots/lock.json", update, map[string]string{"If-Match": `"wrong"`})
	if w.Code != http.StatusConflict {
		t.Errorf("stale If-Match = %d, want 409", w.Code)
	}

	w = e.do(t, http.MethodPut, "/plots/lock.json", update, map[string]string{"If-Match": `"` + created.Checksum + `"`})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", w.Code, w.Body.String())
	}
	var d PlotDetail
	_ = json.Unmarshal(w.Body.Bytes(), &d)
	if d.Width != 8 || d.HasTree {
		t.Errorf("detail = %+v", d)
	}

	if w := e.do(t, http.MethodPut, "/plots/missing.json", update, nil); w.Code != http.StatusNotFound {
		t.Errorf("missing update = %d, want 404", w.Code)
	}
}

func TestDeletePlot(t *testing.T) {
	e := newEnv(t, false, "")
	e.do(t, http.MethodPost, "/plots", createBody("del.json"), nil)

	if w := e.do(t, http.MethodDelete, "/plots/del.json", nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/plots/del.json", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/plots/del.json", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", w.Code)
	}
}

func TestListPlots(t *testing.T) {
	e := newEnv(t, false, "")
	e.do(t, http.MethodPost, "/plots", createBody("a.json"), nil)
	e.do(t, http.MethodPost, "/plots", []byte(`{"path":"b.json","document":{"plot":{"id":2}}}`), nil)

	w := e.do(t, http.MethodGet, "/plots?pending=true", nil, nil)
	var resp PlotListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Plots[0].Path != "a.json" {
		t.Errorf("pending list = %+v", resp)
	}

	w = e.do(t, http.MethodGet, "/plots?limit=1", nil, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 || len(resp.Plots) != 1 {
		t.Errorf("paged list = %+v", resp)
	}
}

func TestPendingEndpoint(t *testing.T) {
	e := newEnv(t, false, "")
	e.do(t, http.MethodPost, "/plots", createBody("p.json"), nil)

	w := e.do(t, http.MethodGet, "/pending?path=p.json&key=tree.diameter", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pending = %d: %s", w.Code, w.Body.String())
	}
	var resp PendingEditResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Key != "tree.diameter" || len(resp.Edits) != 1 || resp.Edits[0].Username != "kim" {
		t.Errorf("resp = %+v", resp)
	}

	if w := e.do(t, http.MethodGet, "/pending?path=p.json&key=plot.width", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown key = %d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/pending?path=p.json", nil, nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing key = %d", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	e := newEnv(t, false, "")
	e.do(t, http.MethodPost, "/plots", createBody("s.json"), nil)

	w := e.do(t, http.MethodGet, "/search?q=ginkgo", nil, nil)
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Path != "s.json" {
		t.Errorf("results = %+v", resp.Results)
	}
	if w := e.do(t, http.MethodGet, "/search", nil, nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestPhotoUploadAndServe(t *testing.T) {
	e := newEnv(t, false, "")
	e.do(t, http.MethodPost, "/plots", createBody("p.json"), nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "tree.png")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(pngHeader)
	_ = mw.Close()

	w := e.do(t, http.MethodPost, "/photos?path=p.json", buf.Bytes(), map[string]string{"Content-Type": mw.FormDataContentType()})
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d: %s", w.Code, w.Body.String())
	}
	var resp PhotoUploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	image, _ := resp.Photo["image"].(string)
	if !strings.HasPrefix(image, "photos/") {
		t.Fatalf("photo image = %q", image)
	}

	w = e.do(t, http.MethodGet, "/"+image, nil, nil)
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), pngHeader) {
		t.Errorf("serve = %d, %q", w.Code, w.Body.Bytes())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("served content type = %q", ct)
	}
}

func TestPhotoUpload_RawBodyAndRejections(t *testing.T) {
	e := newEnv(t, false, "")
	e.do(t, http.MethodPost, "/plots", createBody("p.json"), nil)

	w := e.do(t, http.MethodPost, "/photos?path=p.json", []byte("GIF89a..."), map[string]string{"Content-Type": "image/gif"})
	if w.Code != http.StatusCreated {
		t.Errorf("raw gif upload = %d: %s", w.Code, w.Body.String())
	}
	w = e.do(t, http.MethodPost, "/photos?path=p.json", []byte("BM..."), map[string]string{"Content-Type": "image/bmp"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bmp upload = %d, want 400", w.Code)
	}
	w = e.do(t, http.MethodPost, "/photos", pngHeader, map[string]string{"Content-Type": "image/png"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing path = %d, want 400", w.Code)
	}
	w = e.do(t, http.MethodPost, "/photos?path=missing.json", pngHeader, map[string]string{"Content-Type": "image/png"})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing plot = %d, want 404", w.Code)
	}
}

func TestEditFeed(t *testing.T) {
	e := newEnv(t, false, "")

	w := e.do(t, http.MethodPost, "/edits/more", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("more = %d: %s", w.Code, w.Body.String())
	}
	var page EditPageResponse
	_ = json.Unmarshal(w.Body.Bytes(), &page)
	if len(page.Edits) != editfeed.DefaultPageSize || page.Offset != 0 || page.Total != 5 {
		t.Errorf("page = %+v", page)
	}
	if page.Edits[0].DisplayName != "Tree Added" {
		t.Errorf("display name = %q", page.Edits[0].DisplayName)
	}

	e.do(t, http.MethodPost, "/edits/more", nil, nil)

	w = e.do(t, http.MethodGet, "/edits", nil, nil)
	var list EditListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Edits) != 10 || list.Edits[0].ID != 1 || list.Edits[9].ID != 10 {
		t.Errorf("list = %+v", list.Edits)
	}
	if e.events.edits != 2 {
		t.Errorf("edits events = %d", e.events.edits)
	}
}

func TestEditFeed_Failure(t *testing.T) {
	e := newEnv(t, false, "")
	e.fetcher.err = errors.New("network down")

	w := e.do(t, http.MethodPost, "/edits/more", nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("more = %d", w.Code)
	}
	var resp errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error != editfeed.FailureMessage || !resp.Retryable {
		t.Errorf("resp = %+v", resp)
	}
	if e.cache.Len() != 0 || e.events.failed != 1 {
		t.Errorf("cache len = %d, failed events = %d", e.cache.Len(), e.events.failed)
	}
}

func TestEditFeed_InFlight(t *testing.T) {
	e := newEnv(t, false, "")
	e.fetcher.gate = make(chan struct{})

	first := make(chan int, 1)
	go func() {
		first <- e.do(t, http.MethodPost, "/edits/more", nil, nil).Code
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		w := e.do(t, http.MethodGet, "/edits", nil, nil)
		var list EditListResponse
		_ = json.Unmarshal(w.Body.Bytes(), &list)
		if list.Loading {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first load never started")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if w := e.do(t, http.MethodPost, "/edits/more", nil, nil); w.Code != http.StatusAccepted {
		t.Errorf("second more = %d, want 202", w.Code)
	}
	close(e.fetcher.gate)
	if code := <-first; code != http.StatusOK {
		t.Errorf("first more = %d", code)
	}
	if e.fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", e.fetcher.calls)
	}
}

func TestAuthMiddleware(t *testing.T) {
	e := newEnv(t, true, "secret")
	cases := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"secret", http.StatusUnauthorized},
		{"Bearer secret", http.StatusOK},
	}
	for _, c := range cases {
		h := map[string]string{}
		if c.header != "" {
			h["Authorization"] = c.header
		}
		if w := e.do(t, http.MethodGet, "/plots", nil, h); w.Code != c.want {
			t.Errorf("Authorization %q = %d, want %d", c.header, w.Code, c.want)
		}
	}
}

func TestSSEEvents_Auth(t *testing.T) {
	e := newEnv(t, true, "tok")
	if w := e.do(t, http.MethodGet, "/events", nil, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d", w.Code)
	}
}

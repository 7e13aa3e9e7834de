package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/boxheat-cli/internal/imagegen"
)

const scenarioCSV = "a,b,c\n1,2,x\n2,,y\n3,6,x\n4,8,z\n5,11,y\n"

func newTestServer(opts ...Option) *Server {
	return New(append([]Option{Silent(), WithLogLevel("off")}, opts...)...)
}

func uploadRequest(t *testing.T, method, path, name, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func createSession(t *testing.T, s *Server, name, content string) SessionDetail {
	t.Helper()
	rec := do(s, uploadRequest(t, http.MethodPost, "/api/sessions", name, content))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body.String())
	}
	var d SessionDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return d
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorMessage {
	t.Helper()
	var er struct {
		Message struct {
			Reason string `json:"reason"`
			Advice string `json:"advice"`
		} `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return ErrorMessage{Reason: er.Message.Reason, Advice: er.Message.Advice}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer()
	d := createSession(t, s, "scenario.csv", scenarioCSV)
	if d.ID == "" || d.Rows != 5 || strings.Join(d.Numeric, ",") != "a,b" || strings.Join(d.Categorical, ",") != "c" {
		t.Fatalf("detail = %+v", d)
	}
	base := "/api/sessions/" + d.ID

	if rec := do(s, httptest.NewRequest(http.MethodGet, base+"/boxplot.png", nil)); rec.Code != http.StatusConflict {
		t.Fatalf("box plot before run: status = %d", rec.Code)
	}

	rec := do(s, jsonRequest(http.MethodPost, base+"/run", `{"strategy":"mean","method":"pearson","heat_columns":["a","b"]}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("run status = %d body=%s", rec.Code, rec.Body.String())
	}
	var res RunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if res.Correlation == nil || len(res.Correlation.Values) != 2 {
		t.Fatalf("correlation = %+v", res.Correlation)
	}
	if *res.Correlation.Values[0][0] != 1 || *res.Correlation.Values[0][1] != *res.Correlation.Values[1][0] {
		t.Fatalf("matrix not symmetric with unit diagonal")
	}
	if res.Strategy != "fill-with-column-mean" || res.Rows != 5 || len(res.Boxes) != 2 {
		t.Fatalf("run = %+v", res)
	}

	for _, img := range []string{"/boxplot.png", "/heatmap.png?colormap=viridis"} {
		rec := do(s, httptest.NewRequest(http.MethodGet, base+img, nil))
		if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
			t.Fatalf("%s: status=%d type=%q", img, rec.Code, rec.Header().Get("Content-Type"))
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
			t.Fatalf("%s: not a PNG", img)
		}
	}

	rec = do(s, httptest.NewRequest(http.MethodGet, base+"/processed.csv", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "text/csv" {
		t.Fatalf("csv: status=%d type=%q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "processed_data.csv") {
		t.Fatalf("disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if !strings.HasPrefix(rec.Body.String(), "a,b,c\n1,2,x\n2,6.75,y\n") {
		t.Fatalf("csv body = %q", rec.Body.String())
	}

	rec = do(s, httptest.NewRequest(http.MethodGet, base, nil))
	var got SessionDetail
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.LastStrategy != "fill-with-column-mean" {
		t.Fatalf("last strategy = %q", got.LastStrategy)
	}

	if rec := do(s, httptest.NewRequest(http.MethodDelete, base, nil)); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := do(s, httptest.NewRequest(http.MethodGet, base, nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestUploadErrors(t *testing.T) {
	s := newTestServer()
	rec := do(s, uploadRequest(t, http.MethodPost, "/api/sessions", "text.csv", "x,y\na,b\n"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("no numeric: status = %d", rec.Code)
	}
	if em := decodeError(t, rec); !strings.Contains(em.Reason, "no numeric columns") {
		t.Fatalf("reason = %q", em.Reason)
	}
	rec = do(s, uploadRequest(t, http.MethodPost, "/api/sessions", "bad.xlsx", "not a zip"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("load error: status = %d", rec.Code)
	}
	if s.store.Len() != 0 {
		t.Fatalf("failed uploads should not leave sessions behind, have %d", s.store.Len())
	}
	rec = do(s, jsonRequest(http.MethodPost, "/api/sessions", `{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file: status = %d", rec.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(WithMaxUpload(16))
	rec := do(s, uploadRequest(t, http.MethodPost, "/api/sessions", "big.csv", scenarioCSV))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRunValidationAndNotice(t *testing.T) {
	s := newTestServer()
	d := createSession(t, s, "scenario.csv", scenarioCSV)
	base := "/api/sessions/" + d.ID

	rec := do(s, jsonRequest(http.MethodPost, base+"/run", `{"box_columns":["c"]}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("validation: status = %d", rec.Code)
	}
	if em := decodeError(t, rec); !strings.Contains(em.Advice, "a, b") {
		t.Fatalf("advice = %q", em.Advice)
	}
	if rec := do(s, jsonRequest(http.MethodPost, base+"/run", `{"method":"cosine"}`)); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad method: status = %d", rec.Code)
	}

	rec = do(s, jsonRequest(http.MethodPost, base+"/run", `{"heat_columns":["a"],"group_by":"c"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("run: status = %d body=%s", rec.Code, rec.Body.String())
	}
	var res RunResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Correlation != nil || len(res.Notices) != 1 || res.Notices[0].Kind != "insufficient_selection" {
		t.Fatalf("run = %+v", res)
	}
	if rec := do(s, httptest.NewRequest(http.MethodGet, base+"/boxplot.png", nil)); rec.Code != http.StatusOK {
		t.Fatalf("box plot should render: status = %d", rec.Code)
	}
	if rec := do(s, httptest.NewRequest(http.MethodGet, base+"/heatmap.png", nil)); rec.Code != http.StatusConflict {
		t.Fatalf("heatmap: status = %d", rec.Code)
	}
}

func TestReuploadReplacesDataset(t *testing.T) {
	s := newTestServer()
	d := createSession(t, s, "scenario.csv", scenarioCSV)
	base := "/api/sessions/" + d.ID
	rec := do(s, uploadRequest(t, http.MethodPut, base+"/file", "semi.csv", "p;q\n1;2\n3;5\n"))
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d body=%s", rec.Code, rec.Body.String())
	}
	var got SessionDetail
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if strings.Join(got.Numeric, ",") != "p,q" || got.Rows != 2 || got.File != "semi.csv" {
		t.Fatalf("detail = %+v", got)
	}
	// the previous selection is stale now
	rec = do(s, jsonRequest(http.MethodPost, base+"/run", `{"box_columns":["a"]}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("stale selection: status = %d", rec.Code)
	}
}

func TestSessionEviction(t *testing.T) {
	s := newTestServer(WithSessionTTL(time.Minute))
	now := time.Now()
	s.store.now = func() time.Time { return now }
	d := createSession(t, s, "scenario.csv", scenarioCSV)
	now = now.Add(2 * time.Minute)
	if rec := do(s, httptest.NewRequest(http.MethodGet, "/api/sessions/"+d.ID, nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("expired session: status = %d", rec.Code)
	}
}

func TestImagine(t *testing.T) {
	s := newTestServer()
	rec := do(s, jsonRequest(http.MethodPost, "/api/imagine", `{"prompt":"a fox"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("demo status = %d", rec.Code)
	}
	var img imagegen.Image
	_ = json.Unmarshal(rec.Body.Bytes(), &img)
	if !img.Demo || img.URL != imagegen.DemoImageURL {
		t.Fatalf("demo image = %+v", img)
	}
	if rec := do(s, jsonRequest(http.MethodPost, "/api/imagine", `{"prompt":" "}`)); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty prompt: status = %d", rec.Code)
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer upstream.Close()
	remote := newTestServer(WithImageClient(imagegen.NewClientWithEndpoint("k", time.Second, upstream.URL), "Anime"))
	rec = do(remote, jsonRequest(http.MethodPost, "/api/imagine", `{"prompt":"a fox"}`))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("remote failure: status = %d", rec.Code)
	}
}

func TestRequestLogNamesRouteAndSession(t *testing.T) {
	s := newTestServer(WithLogLevel("info"))
	var logs bytes.Buffer
	s.Echo.Logger.SetOutput(&logs)

	d := createSession(t, s, "scenario.csv", scenarioCSV)
	do(s, httptest.NewRequest(http.MethodGet, "/api/sessions/"+d.ID, nil))
	do(s, httptest.NewRequest(http.MethodGet, "/api/sessions/nope", nil))

	out := logs.String()
	for _, want := range []string{
		"POST /api/sessions status=201",
		"GET /api/sessions/:id status=200",
		"session=" + d.ID,
		"GET /api/sessions/:id status=404",
		"session=nope",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q:\n%s", want, out)
		}
	}
}

func TestSetLogLevel(t *testing.T) {
	s := newTestServer()
	for level, want := range logLevels {
		setLogLevel(s.Echo, strings.ToUpper(level))
		if got := s.Echo.Logger.Level(); got != want {
			t.Fatalf("level %s = %v, want %v", level, got, want)
		}
	}
	var logs bytes.Buffer
	s.Echo.Logger.SetOutput(&logs)
	setLogLevel(s.Echo, "loud")
	if s.Echo.Logger.Level() != logLevels["warn"] || !strings.Contains(logs.String(), "unknown log level") {
		t.Fatalf("unknown level should fall back to warn, logs=%s", logs.String())
	}
}

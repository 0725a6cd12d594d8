package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// capturedRequest holds what the fake API saw.
type capturedRequest struct {
	auth        string
	fields      map[string][]string
	fileName    string
	fileContent string
	hasFile     bool
}

func newFakeAPI(t *testing.T, status int, contentType, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("content-type = %q, want multipart/form-data", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		got.auth = r.Header.Get("Authorization")
		got.fields = r.MultipartForm.Value
		if f, h, err := r.FormFile("file"); err == nil {
			data, _ := io.ReadAll(f)
			f.Close()
			got.hasFile = true
			got.fileName = h.Filename
			got.fileContent = string(data)
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts, got
}

func newTestClient(url string) *Client {
	return NewClient(url, "", 0, zerolog.Nop())
}

func TestTranscribe_RequestShape(t *testing.T) {
	ts, got := newFakeAPI(t, http.StatusOK, "text/plain", "hello")
	c := newTestClient(ts.URL)

	_, err := c.Transcribe(context.Background(), Request{
		APIKey:   "sk-test",
		Audio:    strings.NewReader("fake-audio-data"),
		Filename: "clip.mp3",
		Language: "zh",
		Format:   FormatText,
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if got.auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want %q", got.auth, "Bearer sk-test")
	}
	if !got.hasFile {
		t.Fatal("file field missing")
	}
	if got.fileName != "clip.mp3" {
		t.Errorf("filename = %q, want clip.mp3", got.fileName)
	}
	if got.fileContent != "fake-audio-data" {
		t.Errorf("file content = %q, want fake-audio-data", got.fileContent)
	}
	if v := got.fields["model"]; len(v) != 1 || v[0] != DefaultModel {
		t.Errorf("model = %v, want [%s]", v, DefaultModel)
	}
	if v := got.fields["response_format"]; len(v) != 1 || v[0] != "text" {
		t.Errorf("response_format = %v, want [text]", v)
	}
	if v := got.fields["language"]; len(v) != 1 || v[0] != "zh" {
		t.Errorf("language = %v, want [zh]", v)
	}
}

func TestTranscribe_LanguageOmittedWhenEmpty(t *testing.T) {
	ts, got := newFakeAPI(t, http.StatusOK, "text/plain", "hello")
	c := newTestClient(ts.URL)

	if _, err := c.Transcribe(context.Background(), Request{APIKey: "k", Audio: strings.NewReader("x"), Format: FormatText}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if _, ok := got.fields["language"]; ok {
		t.Errorf("language field present (%v), want omitted", got.fields["language"])
	}
}

func TestTranscribe_DefaultFormat(t *testing.T) {
	ts, got := newFakeAPI(t, http.StatusOK, "application/json", `{"segments":[]}`)
	c := newTestClient(ts.URL)

	res, err := c.Transcribe(context.Background(), Request{APIKey: "k", Audio: strings.NewReader("x")})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if v := got.fields["response_format"]; len(v) != 1 || v[0] != "verbose_json" {
		t.Errorf("response_format = %v, want [verbose_json]", v)
	}
	if res.Format != FormatVerboseJSON {
		t.Errorf("result format = %q, want verbose_json", res.Format)
	}
	if got.fileName != "audio" {
		t.Errorf("default filename = %q, want audio", got.fileName)
	}
}

func TestTranscribe_EmptyKeyForwarded(t *testing.T) {
	ts, got := newFakeAPI(t, http.StatusUnauthorized, "application/json", `{"error":{"message":"no key"}}`)
	c := newTestClient(ts.URL)

	_, err := c.Transcribe(context.Background(), Request{Audio: strings.NewReader("x"), Format: FormatJSON})
	// The server side trims trailing header whitespace.
	if strings.TrimSpace(got.auth) != "Bearer" {
		t.Errorf("Authorization = %q, want an empty bearer token", got.auth)
	}
	if KindOf(err) != KindRemoteRejected {
		t.Fatalf("kind = %v, want remote_rejected (err=%v)", KindOf(err), err)
	}
}

func TestTranscribe_ParsingPolicy(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		body   string
		check  func(t *testing.T, res *Result)
	}{
		{
			name:   "verbose_json_segments",
			format: FormatVerboseJSON,
			body:   `{"text":"Hello World","language":"english","duration":1.5,"segments":[{"id":0,"start":0,"end":0.7,"text":"Hello"},{"id":1,"start":0.7,"end":1.5,"text":"World"}]}`,
			check: func(t *testing.T, res *Result) {
				if len(res.Segments) != 2 {
					t.Fatalf("segments = %d, want 2", len(res.Segments))
				}
				if res.Segments[0].Text != "Hello" || res.Segments[1].Text != "World" {
					t.Errorf("segment texts = %q, %q", res.Segments[0].Text, res.Segments[1].Text)
				}
				if res.Segments[1].Start != 0.7 {
					t.Errorf("segment[1].Start = %v, want 0.7", res.Segments[1].Start)
				}
				if res.Language != "english" || res.Duration != 1.5 {
					t.Errorf("language/duration = %q/%v", res.Language, res.Duration)
				}
			},
		},
		{
			name:   "json_text",
			format: FormatJSON,
			body:   `{"text":"Hello World"}`,
			check: func(t *testing.T, res *Result) {
				if res.Text != "Hello World" {
					t.Errorf("Text = %q, want Hello World", res.Text)
				}
			},
		},
		{
			name:   "srt_raw",
			format: FormatSRT,
			body:   "1\n00:00:00,000 --> 00:00:01,000\nHi\n",
			check: func(t *testing.T, res *Result) {
				if res.Raw != "1\n00:00:00,000 --> 00:00:01,000\nHi\n" {
					t.Errorf("Raw = %q", res.Raw)
				}
				if res.Segments != nil || res.Text != "" {
					t.Error("srt must not be parsed")
				}
			},
		},
		{
			name:   "unknown_format_is_opaque",
			format: Format("tsv"),
			body:   `{"text":"looks like json"}`,
			check: func(t *testing.T, res *Result) {
				if res.Raw != `{"text":"looks like json"}` {
					t.Errorf("Raw = %q", res.Raw)
				}
				if res.Text != "" {
					t.Errorf("Text = %q, want empty for opaque format", res.Text)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _ := newFakeAPI(t, http.StatusOK, "application/octet-stream", tt.body)
			c := newTestClient(ts.URL)
			res, err := c.Transcribe(context.Background(), Request{APIKey: "k", Audio: strings.NewReader("x"), Format: tt.format})
			if err != nil {
				t.Fatalf("Transcribe: %v", err)
			}
			if res.Format != tt.format {
				t.Errorf("Format = %q, want %q", res.Format, tt.format)
			}
			if res.Raw != tt.body {
				t.Errorf("Raw = %q, want body unmodified", res.Raw)
			}
			tt.check(t, res)
		})
	}
}

func TestTranscribe_RemoteRejected(t *testing.T) {
	ts, _ := newFakeAPI(t, http.StatusBadRequest, "application/json", `{"error":"bad file"}`)
	c := newTestClient(ts.URL)

	res, err := c.Transcribe(context.Background(), Request{APIKey: "k", Audio: strings.NewReader("x"), Format: FormatVerboseJSON})
	if res != nil {
		t.Errorf("result = %+v, want nil on rejection", res)
	}
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if te.Kind != KindRemoteRejected {
		t.Errorf("Kind = %v, want remote_rejected", te.Kind)
	}
	if te.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", te.StatusCode)
	}
	if te.Body != `{"error":"bad file"}` {
		t.Errorf("Body = %q", te.Body)
	}
}

func TestTranscribe_DecodeError(t *testing.T) {
	ts, _ := newFakeAPI(t, http.StatusOK, "text/html", "<html>gateway</html>")
	c := newTestClient(ts.URL)

	_, err := c.Transcribe(context.Background(), Request{APIKey: "k", Audio: strings.NewReader("x"), Format: FormatJSON})
	if KindOf(err) != KindDecode {
		t.Fatalf("kind = %v, want decode (err=%v)", KindOf(err), err)
	}
}

func TestTranscribe_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close() // nothing is listening any more

	c := newTestClient(url)
	_, err := c.Transcribe(context.Background(), Request{APIKey: "k", Audio: strings.NewReader("x")})
	if err == nil {
		t.Fatal("expected an error for a closed server")
	}
	if KindOf(err) != KindTransport {
		t.Errorf("kind = %v, want transport", KindOf(err))
	}
}

func TestFormat(t *testing.T) {
	if Format("").OrDefault() != FormatVerboseJSON {
		t.Error(`"" should default to verbose_json`)
	}
	if FormatSRT.OrDefault() != FormatSRT {
		t.Error("non-empty format must be kept")
	}
	for _, f := range []Format{FormatJSON, FormatVerboseJSON} {
		if !f.Structured() {
			t.Errorf("%s should be structured", f)
		}
	}
	for _, f := range []Format{FormatText, FormatSRT, FormatVTT, "", "VERBOSE_JSON"} {
		if f.Structured() {
			t.Errorf("%q should not be structured", f)
		}
	}
	for _, f := range Formats {
		if !f.Known() {
			t.Errorf("%s should be known", f)
		}
	}
	if Format("mp3").Known() || Format("").Known() {
		t.Error("unlisted formats must not be known")
	}
}

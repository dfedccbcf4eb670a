package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"recipecast/internal/config"
	"recipecast/internal/services"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.Server.BaseURL = serverURL
	cfg.Server.AuthToken = "token-123"
	return NewClient(cfg, WithProgressInterval(time.Nanosecond))
}

func writeVideoFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, bytes.Repeat([]byte("v"), size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestUploadVideoSendsMultipartAndParsesURL(t *testing.T) {
	var gotAuth, gotField, gotFilename string
	var gotBytes int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload-video" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		reader, err := r.MultipartReader()
		if err != nil {
			t.Errorf("multipart reader: %v", err)
			return
		}
		part, err := reader.NextPart()
		if err != nil {
			t.Errorf("next part: %v", err)
			return
		}
		gotField = part.FormName()
		gotFilename = part.FileName()
		data, _ := io.ReadAll(part)
		gotBytes = len(data)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url": "https://cdn.example.com/v/abc123"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	path := writeVideoFile(t, 4096)

	var updates []ProgressUpdate
	url, err := client.UploadVideo(context.Background(), path, func(u ProgressUpdate) {
		updates = append(updates, u)
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://cdn.example.com/v/abc123" {
		t.Fatalf("unexpected url %q", url)
	}
	if gotAuth != "Bearer token-123" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotField != "file" || gotFilename != "clip.mp4" {
		t.Fatalf("unexpected form part %q %q", gotField, gotFilename)
	}
	if gotBytes != 4096 {
		t.Fatalf("expected 4096 bytes, got %d", gotBytes)
	}

	if len(updates) == 0 {
		t.Fatal("expected progress updates")
	}
	final := updates[len(updates)-1]
	if final.BytesSent != 4096 || final.TotalBytes != 4096 || final.Fraction != 1 {
		t.Fatalf("unexpected final update %+v", final)
	}
	last := int64(-1)
	terminal := 0
	for _, u := range updates {
		if u.BytesSent < last {
			t.Fatalf("bytes sent regressed: %+v", updates)
		}
		last = u.BytesSent
		if u.Fraction == 1 {
			terminal++
		}
	}
	if terminal != 1 {
		t.Fatalf("expected exactly one terminal update, got %d (%+v)", terminal, updates)
	}
}

func TestUploadVideoTooLargeIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.UploadVideo(context.Background(), writeVideoFile(t, 128), nil)
	if !errors.Is(err, services.ErrRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestUploadVideoServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "database down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.UploadVideo(context.Background(), writeVideoFile(t, 128), nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected status in message, got %v", err)
	}
}

func TestUploadVideoBadRequestIsValidation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "unsupported codec", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.UploadVideo(context.Background(), writeVideoFile(t, 128), nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUploadVideoMissingURLFailsClosed(t *testing.T) {
	cases := []string{
		`{"status": "ok"}`,
		`{"url": ""}`,
		`not json at all`,
	}
	for _, body := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.Copy(io.Discard, r.Body)
			_, _ = w.Write([]byte(body))
		}))
		client := newTestClient(t, server.URL)
		_, err := client.UploadVideo(context.Background(), writeVideoFile(t, 64), nil)
		server.Close()
		if err == nil {
			t.Fatalf("body %q: expected error", body)
		}
	}
}

func TestUploadVideoMissingFile(t *testing.T) {
	client := newTestClient(t, "http://localhost:0")
	_, err := client.UploadVideo(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), nil)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProgressReaderCoalesces(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 1000)
	var updates []ProgressUpdate
	reader := newProgressReader(bytes.NewReader(data), int64(len(data)), time.Hour, func(u ProgressUpdate) {
		updates = append(updates, u)
	})

	buf := make([]byte, 10)
	for {
		if _, err := reader.Read(buf); err == io.EOF {
			break
		} else if err != nil {
			t.Fatal(err)
		}
	}

	// The hour-long interval suppresses everything except the final update.
	if len(updates) != 1 {
		t.Fatalf("expected a single coalesced update, got %d", len(updates))
	}
	if updates[0].BytesSent != 1000 || updates[0].Fraction != 1 {
		t.Fatalf("unexpected final update %+v", updates[0])
	}
}

func TestProgressReaderEmitsSingleTerminalUpdate(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 100)
	var updates []ProgressUpdate
	reader := newProgressReader(bytes.NewReader(data), int64(len(data)), time.Nanosecond, func(u ProgressUpdate) {
		updates = append(updates, u)
	})

	buf := make([]byte, 10)
	for {
		if _, err := reader.Read(buf); err == io.EOF {
			break
		} else if err != nil {
			t.Fatal(err)
		}
	}

	// The nanosecond interval makes the last data read emit the complete
	// update itself; the EOF read must not add a second one.
	terminal := 0
	for _, u := range updates {
		if u.Fraction == 1 {
			terminal++
		}
	}
	if terminal != 1 {
		t.Fatalf("expected exactly one terminal update, got %d (%+v)", terminal, updates)
	}
	final := updates[len(updates)-1]
	if final.BytesSent != 100 || final.Fraction != 1 {
		t.Fatalf("unexpected final update %+v", final)
	}
}

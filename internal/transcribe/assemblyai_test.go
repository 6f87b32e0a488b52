package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func fakeAssembly(t *testing.T, final string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if !bytes.Equal(body, []byte("RIFFfake")) {
			t.Errorf("uploaded body = %q", body)
		}
		_, _ = w.Write([]byte(`{"upload_url":"https://cdn.test/a1"}`))
	})
	mux.HandleFunc("/v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["audio_url"] == "" {
			t.Errorf("missing audio_url")
		}
		_, _ = w.Write([]byte(`{"id":"tr1","status":"queued"}`))
	})
	mux.HandleFunc("/v2/transcript/tr1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"status":"processing"}`))
			return
		}
		_, _ = w.Write([]byte(final))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &polls
}

func TestTranscribeUploadsAndPolls(t *testing.T) {
	t.Parallel()

	srv, polls := fakeAssembly(t, `{"status":"completed","text":"Welcome everyone."}`)
	path := filepath.Join(t.TempDir(), "talk.wav")
	if err := os.WriteFile(path, []byte("RIFFfake"), 0o600); err != nil {
		t.Fatal(err)
	}

	a := NewAssemblyAI("key", srv.URL, time.Millisecond, nil)
	text, err := a.Transcribe(context.Background(), Source{FilePath: path})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "Welcome everyone." || polls.Load() != 3 {
		t.Fatalf("text=%q polls=%d", text, polls.Load())
	}
}

func TestTranscribeProviderError(t *testing.T) {
	t.Parallel()

	srv, _ := fakeAssembly(t, `{"status":"error","error":"unsupported codec"}`)
	a := NewAssemblyAI("key", srv.URL, time.Millisecond, nil)
	_, err := a.Transcribe(context.Background(), Source{URL: "https://media.test/a.mp3"})
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("expected ErrFailed, got %v", err)
	}
}

func TestTranscribeTimeout(t *testing.T) {
	t.Parallel()

	srv, _ := fakeAssembly(t, `{"status":"processing"}`)
	a := NewAssemblyAI("key", srv.URL, 5*time.Millisecond, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_, err := a.Transcribe(ctx, Source{URL: "https://media.test/a.mp3"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestTranscribeNotConfigured(t *testing.T) {
	t.Parallel()

	_, err := NewAssemblyAI("", "", 0, nil).Transcribe(context.Background(), Source{URL: "x"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestDocument(t *testing.T) {
	t.Parallel()

	if TitleFor("French") != "Transcription de l'Événement" || TitleFor("Klingon") != "Event Transcript" {
		t.Fatal("title map wrong")
	}
	pdf, err := RenderPDF(TitleFor("Spanish"), "Hola a todos.")
	if err != nil {
		t.Fatalf("RenderPDF: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatal("not a PDF")
	}
}

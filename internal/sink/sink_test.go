package sink

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bananaforge/internal/domain"
	"bananaforge/internal/storage"
)

type stubRemote struct {
	uploads   []string
	uploadErr error
}

func (s *stubRemote) ListFolder(ctx context.Context, folderID string) ([]storage.Object, error) {
	return nil, nil
}

func (s *stubRemote) Upload(ctx context.Context, folderID, name string, data []byte, contentType string) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	key := folderID + "/" + name
	s.uploads = append(s.uploads, key)
	return key, nil
}

func (s *stubRemote) Rename(ctx context.Context, folderID, oldName, newName string) error {
	return nil
}

func (s *stubRemote) ObjectURL(folderID, name string) string {
	return "https://store.test/" + folderID + "/" + name
}

type testSink struct {
	sink    *Sink
	files   *storage.FileStore
	baseURL string
}

func newTestSink(t *testing.T, remote storage.RemoteStore, artifact []byte, status int) testSink {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write(artifact)
	}))
	t.Cleanup(srv.Close)

	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	s := New(Options{
		Files:         files,
		Remote:        remote,
		HTTPClient:    srv.Client(),
		DefaultFolder: "default-folder",
		Logger:        zerolog.Nop(),
	})
	return testSink{sink: s, files: files, baseURL: srv.URL}
}

func TestStoreLocalOnly(t *testing.T) {
	ts := newTestSink(t, nil, []byte("image-bytes"), http.StatusOK)
	meta := Meta{RunID: uuid.NewString(), Unit: 0, Prompt: "a cat", Category: "Self"}

	ref, err := ts.sink.Store(context.Background(), ts.baseURL+"/out.webp", meta, false)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if ref.RemoteStored || ref.RemoteRef != "" {
		t.Fatalf("unexpected remote ref: %+v", ref)
	}
	if !strings.HasPrefix(ref.LocalKey, "runs/"+meta.RunID+"/") {
		t.Fatalf("LocalKey = %q", ref.LocalKey)
	}
	if !strings.HasSuffix(ref.LocalKey, ".webp") {
		t.Fatalf("LocalKey extension = %q", ref.LocalKey)
	}

	data, err := os.ReadFile(filepath.Join(ts.files.BasePath(), filepath.FromSlash(ref.LocalKey)))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Fatalf("content = %q", data)
	}
}

func TestStoreWithRemote(t *testing.T) {
	remote := &stubRemote{}
	ts := newTestSink(t, remote, []byte("x"), http.StatusOK)
	meta := Meta{RunID: uuid.NewString(), TargetFolderID: "folder-a"}

	ref, err := ts.sink.Store(context.Background(), ts.baseURL+"/out.png", meta, true)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !ref.RemoteStored {
		t.Fatal("expected remote stored")
	}
	if len(remote.uploads) != 1 || !strings.HasPrefix(remote.uploads[0], "folder-a/") {
		t.Fatalf("uploads = %v", remote.uploads)
	}
	if !strings.HasSuffix(ref.RemoteRef, ".png") {
		t.Fatalf("RemoteRef = %q", ref.RemoteRef)
	}
}

func TestStoreRemoteFailureIsDegraded(t *testing.T) {
	remote := &stubRemote{uploadErr: errors.New("bucket gone")}
	ts := newTestSink(t, remote, []byte("x"), http.StatusOK)
	meta := Meta{RunID: uuid.NewString()}

	ref, err := ts.sink.Store(context.Background(), ts.baseURL+"/out.webp", meta, true)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if ref.RemoteStored {
		t.Fatal("expected degraded store")
	}
	if ref.LocalKey == "" {
		t.Fatal("expected local copy")
	}
}

func TestStoreUsesDefaultFolder(t *testing.T) {
	remote := &stubRemote{}
	ts := newTestSink(t, remote, []byte("x"), http.StatusOK)

	_, err := ts.sink.Store(context.Background(), ts.baseURL+"/out.webp", Meta{RunID: uuid.NewString()}, true)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if len(remote.uploads) != 1 || !strings.HasPrefix(remote.uploads[0], "default-folder/") {
		t.Fatalf("uploads = %v", remote.uploads)
	}
}

func TestStoreDownloadFailure(t *testing.T) {
	ts := newTestSink(t, nil, []byte("gone"), http.StatusNotFound)

	_, err := ts.sink.Store(context.Background(), ts.baseURL+"/out.webp", Meta{RunID: uuid.NewString()}, false)
	if !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
}

func TestExtensionFor(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://cdn.test/a/b/out.png", ".png"},
		{"https://cdn.test/out.JPEG?sig=abc", ".jpeg"},
		{"https://cdn.test/no-extension", ".webp"},
		{"://bad-url", ".webp"},
	}
	for _, tc := range cases {
		if got := extensionFor(tc.url); got != tc.want {
			t.Errorf("extensionFor(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

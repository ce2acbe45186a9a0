package sink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bananaforge/internal/domain"
	"bananaforge/internal/infra"
	"bananaforge/internal/sqlinline"
	"bananaforge/internal/storage"
)

const downloadTimeout = 2 * time.Minute

// Meta identifies which unit of which run an artifact belongs to.
type Meta struct {
	RunID          string
	Unit           int
	Prompt         string
	Category       string
	TargetFolderID string
}

// StoredRef describes where an artifact ended up.
type StoredRef struct {
	LocalKey     string
	RemoteRef    string
	RemoteStored bool
}

// ArtifactSink persists a generated artifact from its provider URL.
type ArtifactSink interface {
	Store(ctx context.Context, artifactURL string, meta Meta, remote bool) (StoredRef, error)
}

type Options struct {
	Files         *storage.FileStore
	Remote        storage.RemoteStore
	SQL           infra.SQLExecutor
	HTTPClient    *http.Client
	DefaultFolder string
	Logger        zerolog.Logger
}

// Sink downloads artifacts and writes them to local storage, optionally
// mirroring them to the remote store. The local copy is authoritative: a
// failed local write fails the unit, a failed remote upload only degrades
// it.
type Sink struct {
	files         *storage.FileStore
	remote        storage.RemoteStore
	sql           infra.SQLExecutor
	client        *http.Client
	defaultFolder string
	logger        zerolog.Logger
}

var _ ArtifactSink = (*Sink)(nil)

func New(opts Options) *Sink {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: downloadTimeout}
	}
	return &Sink{
		files:         opts.Files,
		remote:        opts.Remote,
		sql:           opts.SQL,
		client:        client,
		defaultFolder: opts.DefaultFolder,
		logger:        opts.Logger,
	}
}

func (s *Sink) Store(ctx context.Context, artifactURL string, meta Meta, remote bool) (StoredRef, error) {
	data, err := s.download(ctx, artifactURL)
	if err != nil {
		return StoredRef{}, err
	}

	name := uuid.NewString() + extensionFor(artifactURL)
	localKey := fmt.Sprintf("runs/%s/%s", meta.RunID, name)

	ref := StoredRef{}
	ref.LocalKey, err = s.files.Write(ctx, localKey, data)
	if err != nil {
		return StoredRef{}, err
	}

	if remote && s.remote != nil {
		folder := meta.TargetFolderID
		if folder == "" {
			folder = s.defaultFolder
		}
		remoteRef, err := s.remote.Upload(ctx, folder, name, data, contentTypeFor(name))
		if err != nil {
			s.logger.Warn().Err(err).
				Str("run_id", meta.RunID).
				Int("unit", meta.Unit).
				Msg("remote upload failed, keeping local copy only")
		} else {
			ref.RemoteRef = remoteRef
			ref.RemoteStored = true
		}
	}

	s.recordAsset(ctx, meta, ref)
	return ref, nil
}

func (s *Sink) download(ctx context.Context, artifactURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifactURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build download request: %v", domain.ErrStorageFailure, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download artifact: %v", domain.ErrStorageFailure, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download artifact: status %d", domain.ErrStorageFailure, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read artifact: %v", domain.ErrStorageFailure, err)
	}
	return data, nil
}

// recordAsset writes the asset row. Bookkeeping must never fail a unit
// whose artifact is already on disk, so errors are only logged.
func (s *Sink) recordAsset(ctx context.Context, meta Meta, ref StoredRef) {
	if s.sql == nil {
		return
	}
	_, err := s.sql.Exec(ctx, sqlinline.QAssetInsert,
		meta.RunID, meta.Unit, meta.Prompt, meta.Category,
		ref.LocalKey, ref.RemoteRef, ref.RemoteStored)
	if err != nil {
		s.logger.Warn().Err(err).Str("run_id", meta.RunID).Msg("failed to record asset row")
	}
}

// extensionFor derives the file extension from the artifact URL path,
// defaulting to webp when the URL gives no usable hint.
func extensionFor(artifactURL string) string {
	u, err := url.Parse(artifactURL)
	if err != nil {
		return ".webp"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" || len(ext) > 6 {
		return ".webp"
	}
	return ext
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".webp":
		return "image/webp"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

package imagesource

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/rs/zerolog"

	"bananaforge/internal/domain"
	"bananaforge/internal/storage"
)

// Source resolves reference image URLs for a generation unit.
type Source interface {
	// Select returns the reference image URLs for one unit, honoring the
	// selection strategy and eligibility rules.
	Select(ctx context.Context, sel domain.ImageSelection) ([]string, error)
}

// Selector picks a random eligible image from the configured source
// folders. Objects whose name contains the configured prefix are skipped;
// the prefix marks images consumed by earlier runs.
type Selector struct {
	store  storage.RemoteStore
	logger zerolog.Logger
}

var _ Source = (*Selector)(nil)

func NewSelector(store storage.RemoteStore, logger zerolog.Logger) *Selector {
	return &Selector{store: store, logger: logger}
}

type candidate struct {
	folderID string
	object   storage.Object
}

func (s *Selector) Select(ctx context.Context, sel domain.ImageSelection) ([]string, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: no remote store configured", domain.ErrNoEligibleImages)
	}
	if len(sel.FolderIDs) == 0 {
		return nil, fmt.Errorf("%w: no source folders configured", domain.ErrNoEligibleImages)
	}

	var candidates []candidate
	for _, folderID := range sel.FolderIDs {
		objects, err := s.store.ListFolder(ctx, folderID)
		if err != nil {
			return nil, err
		}
		for _, obj := range objects {
			if sel.Prefix != "" && strings.Contains(obj.Name, sel.Prefix) {
				continue
			}
			candidates = append(candidates, candidate{folderID: folderID, object: obj})
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: folders %v", domain.ErrNoEligibleImages, sel.FolderIDs)
	}

	picked := candidates[rand.Intn(len(candidates))]
	s.markConsumed(ctx, sel, picked)

	return []string{s.store.ObjectURL(picked.folderID, picked.object.Name)}, nil
}

// markConsumed renames the picked object to prefix+name so later runs skip
// it. Marking only applies inside the configured target folders; an empty
// list applies it everywhere. Rename failures are logged, not fatal: the
// image was already selected and the unit can proceed.
func (s *Selector) markConsumed(ctx context.Context, sel domain.ImageSelection, picked candidate) {
	if sel.Prefix == "" {
		return
	}
	if len(sel.PrefixTargetFolderIDs) > 0 && !contains(sel.PrefixTargetFolderIDs, picked.folderID) {
		return
	}

	newName := sel.Prefix + picked.object.Name
	if err := s.store.Rename(ctx, picked.folderID, picked.object.Name, newName); err != nil {
		s.logger.Warn().Err(err).
			Str("folder_id", picked.folderID).
			Str("object", picked.object.Name).
			Msg("failed to mark source image as consumed")
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/internal/infrastructure/metrics"
)

// BundleService implements asset.Bundler on top of a repository
// PRINCIPLES:
// - SRP: Copies scenes and staged files in and out of flow bundles
// - DIP: Depends on asset.Repository abstraction
type BundleService struct {
	repo   asset.Repository
	logger *slog.Logger
}

// NewBundleService creates a new bundle service
func NewBundleService(repo asset.Repository, logger *slog.Logger) *BundleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BundleService{repo: repo, logger: logger}
}

// BundleFlow snapshots every named scene and the staging area into the
// flow's bundle. The flow itself must already be saved. Scenes that do not
// exist are skipped.
func (s *BundleService) BundleFlow(ctx context.Context, req asset.BundleRequest) (*asset.BundleResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.repo.Load(ctx, asset.KindFlow, req.FlowName); err != nil {
		return nil, fmt.Errorf("bundle %s: %w", req.FlowName, err)
	}

	b := asset.NewBundle(req.FlowName)
	result := &asset.BundleResult{BundledScenes: []string{}}
	for _, name := range req.SceneNames {
		scene, err := s.repo.Load(ctx, asset.KindScene, name)
		if errors.Is(err, asset.ErrNotFound) {
			s.logger.Warn("bundle skipped missing scene", "flow", req.FlowName, "scene", name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("bundle scene %s: %w", name, err)
		}
		b.Scenes[name] = scene.Content
		result.BundledScenes = append(result.BundledScenes, name)
	}

	files, err := s.repo.StagedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("bundle staged files: %w", err)
	}
	b.Files = files
	result.TotalFiles = len(files)

	if err := s.repo.SaveBundle(ctx, b); err != nil {
		return nil, fmt.Errorf("save bundle %s: %w", req.FlowName, err)
	}
	metrics.RecordBundle(len(result.BundledScenes), result.TotalFiles)
	return result, nil
}

// RestoreFlowAssets writes bundled scenes back to the store and copies
// bundled files into the staging area. A flow without a bundle reports
// FoundAssets=false and no error.
func (s *BundleService) RestoreFlowAssets(ctx context.Context, flowName string) (*asset.RestoreResult, error) {
	if err := asset.ValidateName(flowName); err != nil {
		return nil, err
	}
	b, err := s.repo.LoadBundle(ctx, flowName)
	if errors.Is(err, asset.ErrBundleNotFound) {
		return &asset.RestoreResult{RestoredScenes: []string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", flowName, err)
	}

	result := &asset.RestoreResult{FoundAssets: true, RestoredScenes: []string{}}
	for _, name := range sortedKeys(b.Scenes) {
		if err := s.repo.Save(ctx, asset.KindScene, name, b.Scenes[name]); err != nil {
			return nil, fmt.Errorf("restore scene %s: %w", name, err)
		}
		result.RestoredScenes = append(result.RestoredScenes, name)
	}
	for _, f := range b.Files {
		if err := s.repo.StageFile(ctx, f); err != nil {
			return nil, fmt.Errorf("restore file %s: %w", f.Path, err)
		}
		result.RestoredFiles++
	}
	s.logger.Debug("flow assets restored", "flow", flowName,
		"scenes", len(result.RestoredScenes), "files", result.RestoredFiles)
	return result, nil
}

// Assets joins a repository and its bundle service into an asset.Backend.
type Assets struct {
	asset.Repository
	*BundleService
}

// NewAssets wraps repo so it satisfies asset.Backend.
func NewAssets(repo asset.Repository, logger *slog.Logger) *Assets {
	return &Assets{Repository: repo, BundleService: NewBundleService(repo, logger)}
}

// Delete removes an asset; deleting a flow also drops its bundle.
func (a *Assets) Delete(ctx context.Context, kind asset.Kind, name string) error {
	if err := a.Repository.Delete(ctx, kind, name); err != nil {
		return err
	}
	if kind == asset.KindFlow {
		return a.Repository.DeleteBundle(ctx, name)
	}
	return nil
}

var _ asset.Backend = (*Assets)(nil)

// Package persistence saves, loads and manages flows in the asset store:
// each flow is a JSON document of kind "flow" plus a bundle of the scenes
// it references, and one flow at a time is marked active for play.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sceneflow/sceneflow/internal/app/dto"
	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/internal/core/flow"
	"github.com/sceneflow/sceneflow/internal/infrastructure/metrics"
	"github.com/sceneflow/sceneflow/pkg/validation"
)

const (
	// DefaultFlowName names flows saved before the user picked a name.
	DefaultFlowName = "default-flow"
	// ImportedFlowName names imported files that carry no name.
	ImportedFlowName = "imported-flow"
)

// Backend is the part of the asset store flows need.
type Backend interface {
	asset.Store
	asset.Bundler
	asset.Settings
	ClearStaging(ctx context.Context) error
}

// Service implements flow persistence over an asset backend
// PRINCIPLES:
// - SRP: Moves flows between graphs and the asset store
// - DIP: Depends on the Backend abstraction
type Service struct {
	backend Backend
	logger  *slog.Logger
	checks  validation.FlowValidationOptions
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithStrictValidation rejects flows that only produce warnings.
func WithStrictValidation() Option {
	return func(s *Service) { s.checks.Strict = true }
}

// NewService creates a new flow persistence service
func NewService(backend Backend, opts ...Option) *Service {
	s := &Service{backend: backend, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save stores the graph as flow name and bundles the scenes it references.
// When bundling fails the flow itself is still saved and the error wraps
// ErrBundleFailed. A flow with no scenes is not bundled.
func (s *Service) Save(ctx context.Context, name string, g *flow.Graph) (*asset.BundleResult, error) {
	data, err := s.write(ctx, name, g)
	if err != nil {
		return nil, err
	}
	metrics.FlowOperation("save")

	scenes := g.SceneNames()
	if len(scenes) == 0 {
		return &asset.BundleResult{BundledScenes: []string{}}, nil
	}
	res, err := s.backend.BundleFlow(ctx, asset.BundleRequest{
		FlowName:   name,
		SceneNames: scenes,
		FlowData:   json.RawMessage(data),
	})
	if err != nil {
		s.logger.Warn("flow bundling failed", "flow", name, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrBundleFailed, name, err)
	}
	s.logger.Info("flow saved", "flow", name, "scenes", len(res.BundledScenes), "files", res.TotalFiles)
	return res, nil
}

// SaveDraft stores the flow document only. The autosaver uses it; bundles
// are refreshed by explicit saves.
func (s *Service) SaveDraft(ctx context.Context, name string, g *flow.Graph) error {
	if _, err := s.write(ctx, name, g); err != nil {
		return err
	}
	metrics.FlowOperation("autosave")
	return nil
}

func (s *Service) write(ctx context.Context, name string, g *flow.Graph) ([]byte, error) {
	if err := asset.ValidateName(name); err != nil {
		return nil, err
	}
	data, err := json.Marshal(g.Serialize())
	if err != nil {
		return nil, fmt.Errorf("encode flow %s: %w", name, err)
	}
	if err := s.backend.Save(ctx, asset.KindFlow, name, string(data)); err != nil {
		return nil, fmt.Errorf("save flow %s: %w", name, err)
	}
	return data, nil
}

// Load fetches, validates and rebuilds flow name, then clears the staging
// area and restores the flow's bundle into it. Nothing is restored for a
// malformed flow.
func (s *Service) Load(ctx context.Context, name string) (*flow.Graph, error) {
	g, err := s.read(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.restore(ctx, name); err != nil {
		return nil, err
	}
	metrics.FlowOperation("load")
	return g, nil
}

func (s *Service) read(ctx context.Context, name string) (*flow.Graph, error) {
	a, err := s.backend.Load(ctx, asset.KindFlow, name)
	if err != nil {
		return nil, fmt.Errorf("load flow %s: %w", name, err)
	}
	return s.decode(name, []byte(a.Content))
}

func (s *Service) decode(name string, data []byte) (*flow.Graph, error) {
	doc, report, err := validation.DecodeFlow(data, s.checks)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedFlow, name, err)
	}
	for _, w := range report.Warnings {
		s.logger.Warn("flow warning", "flow", name, "warning", w)
	}
	g, err := flow.FromDocument(name, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedFlow, name, err)
	}
	return g, nil
}

func (s *Service) restore(ctx context.Context, name string) error {
	if err := s.backend.ClearStaging(ctx); err != nil {
		return fmt.Errorf("%w: clear staging: %w", ErrRestoreFailed, err)
	}
	res, err := s.backend.RestoreFlowAssets(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRestoreFailed, name, err)
	}
	s.logger.Debug("flow assets restored", "flow", name,
		"found", res.FoundAssets, "scenes", len(res.RestoredScenes), "files", res.RestoredFiles)
	return nil
}

// Validate parses and checks flow JSON without touching the store.
func (s *Service) Validate(data []byte) validation.Report {
	model, err := validation.ParseFlow(data)
	if err != nil {
		return validation.Report{Errors: validation.ValidationErrors{{Field: "document", Message: err.Error()}}}
	}
	checks := s.checks
	checks.CheckReachability = true
	return validation.ValidateFlow(model, checks)
}

// SetActive marks name as the flow played on startup.
func (s *Service) SetActive(ctx context.Context, name string) error {
	if err := asset.ValidateName(name); err != nil {
		return err
	}
	if err := s.backend.SetSetting(ctx, asset.ActiveFlowKey, name); err != nil {
		return fmt.Errorf("set active flow: %w", err)
	}
	metrics.FlowOperation("activate")
	return nil
}

// Active returns the active flow name, or an error wrapping
// dto.ErrNoActiveFlow when none is set.
func (s *Service) Active(ctx context.Context) (string, error) {
	name, err := s.backend.GetSetting(ctx, asset.ActiveFlowKey)
	if errors.Is(err, asset.ErrSettingNotFound) || (err == nil && name == "") {
		return "", dto.ErrNoActiveFlow
	}
	if err != nil {
		return "", fmt.Errorf("read active flow: %w", err)
	}
	return name, nil
}

// Delete removes flow name and clears the active pointer if it names it.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.backend.Delete(ctx, asset.KindFlow, name); err != nil {
		return fmt.Errorf("delete flow %s: %w", name, err)
	}
	if active, err := s.Active(ctx); err == nil && active == name {
		if err := s.backend.DeleteSetting(ctx, asset.ActiveFlowKey); err != nil && !errors.Is(err, asset.ErrSettingNotFound) {
			return fmt.Errorf("clear active flow: %w", err)
		}
	}
	metrics.FlowOperation("delete")
	return nil
}

// List returns the saved flows in name order.
func (s *Service) List(ctx context.Context) ([]asset.Info, error) {
	infos, err := s.backend.List(ctx, asset.KindFlow, asset.Filter{})
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	return infos, nil
}

// Rename saves flow from under the name to and deletes from. The active
// pointer follows the flow.
func (s *Service) Rename(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}
	if err := asset.ValidateName(to); err != nil {
		return err
	}
	g, err := s.read(ctx, from)
	if err != nil {
		return err
	}
	wasActive := false
	if active, err := s.Active(ctx); err == nil && active == from {
		wasActive = true
	}
	if _, err := s.Save(ctx, to, g); err != nil && !errors.Is(err, ErrBundleFailed) {
		return err
	}
	if err := s.Delete(ctx, from); err != nil {
		return err
	}
	if wasActive {
		if err := s.SetActive(ctx, to); err != nil {
			return err
		}
	}
	metrics.FlowOperation("rename")
	return nil
}

// Export returns the download file name and indented JSON of flow name,
// wrapped with its name.
func (s *Service) Export(ctx context.Context, name string) (string, []byte, error) {
	g, err := s.read(ctx, name)
	if err != nil {
		return "", nil, err
	}
	data, err := ExportGraph(name, g)
	if err != nil {
		return "", nil, err
	}
	metrics.FlowOperation("export")
	return flow.ExportFileName(name), data, nil
}

// ExportGraph encodes an in-memory graph in the export format. An empty
// name becomes DefaultFlowName.
func ExportGraph(name string, g *flow.Graph) ([]byte, error) {
	if name == "" {
		name = DefaultFlowName
	}
	data, err := json.MarshalIndent(flow.ExportDocument{Name: name, Document: g.Serialize()}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export %s: %w", name, err)
	}
	return data, nil
}

// Import parses an exported flow file. The flow is named by the file, else
// by current, else ImportedFlowName. Nothing is stored; callers Save the
// result when they want to keep it.
func (s *Service) Import(data []byte, current string) (string, *flow.Graph, error) {
	var header struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMalformedFlow, err)
	}
	name := header.Name
	if name == "" {
		name = current
	}
	if name == "" {
		name = ImportedFlowName
	}
	if err := asset.ValidateName(name); err != nil {
		return "", nil, err
	}
	g, err := s.decode(name, data)
	if err != nil {
		return "", nil, err
	}
	metrics.FlowOperation("import")
	return name, g, nil
}

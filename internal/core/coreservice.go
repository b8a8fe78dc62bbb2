package core

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/jo-hoe/idphoto/internal/backend/cache"
	"github.com/jo-hoe/idphoto/internal/backend/database"
	"github.com/jo-hoe/idphoto/internal/backend/export"
)

// ErrAssetNotFound is returned by Export when the referenced asset does not
// exist in the store.
var ErrAssetNotFound = fmt.Errorf("asset not found")

// CoreService owns the process-wide collaborators: the asset store, the
// optional export cache and the subject detector. It is constructed once at
// startup and passed by handle; there is no ambient global.
type CoreService struct {
	config      *ServiceConfig
	store       database.AssetStore
	exportCache *cache.ExportCache // nil when caching is disabled
	detector    export.SubjectDetector
}

func NewCoreService(config *ServiceConfig) (*CoreService, error) {
	store, err := database.NewStore(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize asset store: %w", err)
	}

	service := &CoreService{
		config:   config,
		store:    store,
		detector: export.AlphaBoundsDetector{Threshold: 16},
	}
	if config.Cache.Address != "" {
		service.exportCache = cache.NewExportCache(
			config.Cache.Address, time.Duration(config.Cache.TTLSeconds)*time.Second)
		slog.Info("export cache enabled", "address", config.Cache.Address)
	}
	return service, nil
}

func (s *CoreService) Close() error {
	if s.exportCache != nil {
		if err := s.exportCache.Close(); err != nil {
			slog.Warn("failed to close export cache", "error", err)
		}
	}
	return s.store.Close()
}

// Store exposes the asset store to the API layer.
func (s *CoreService) Store() database.AssetStore {
	return s.store
}

// Config exposes the loaded service configuration.
func (s *CoreService) Config() *ServiceConfig {
	return s.config
}

// ExportRequest describes one export of a stored asset.
type ExportRequest struct {
	AssetID  string
	PresetID string
	// Format overrides the preset's output format when set.
	Format     export.Format
	Background export.Background
	Effect     *export.Effect
}

// Export runs the full pipeline for a stored asset: plan the crop against the
// resolved preset, composite onto the background, encode under the preset's
// size budget, then record the chosen preset and format on the asset.
//
// The background-removed derivative is preferred as the source; subject
// detection runs on its transparency and silently falls back to centered
// cropping when nothing is found.
func (s *CoreService) Export(ctx context.Context, req ExportRequest) ([]byte, error) {
	record, err := s.store.Get(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, req.AssetID)
	}

	preset := export.Resolve(req.PresetID)
	format := preset.Format
	if req.Format != "" {
		format = req.Format
	}

	source := record.Processed
	if len(source) == 0 {
		source = record.Original
	}

	cacheKey := s.exportKey(record, source, preset, format, req)
	if s.exportCache != nil {
		if data, ok := s.exportCache.Get(ctx, cacheKey); ok {
			slog.Debug("export served from cache", "asset_id", record.ID, "preset", preset.ID)
			return data, nil
		}
	}
	img, _, err := image.Decode(bytes.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("failed to decode asset %s: %w", record.ID, err)
	}

	// Detection only carries signal on the derivative's transparency.
	var subject *image.Rectangle
	if !preset.IsNone() && len(record.Processed) > 0 {
		if region, ok := s.detector.DetectSubject(img); ok {
			subject = &region
		}
	}

	crop := export.PlanCrop(img.Bounds().Dx(), img.Bounds().Dy(), preset, subject)
	rendered, err := export.Render(img, export.RenderSpec{
		Background:   req.Background,
		Crop:         crop,
		OutputWidth:  preset.OutputWidth,
		OutputHeight: preset.OutputHeight,
		Effect:       req.Effect,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render asset %s: %w", record.ID, err)
	}

	data, err := export.Encode(rendered, format, preset.MaxOutputBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode asset %s: %w", record.ID, err)
	}

	// Remember the export choice on the record.
	if _, err := s.store.Save(ctx, database.SaveRequest{
		Name:       record.Name,
		LastPreset: preset.ID,
		LastFormat: string(format),
	}); err != nil {
		return nil, fmt.Errorf("failed to record export choice for asset %s: %w", record.ID, err)
	}

	if s.exportCache != nil {
		s.exportCache.Set(ctx, cacheKey, data)
	}

	slog.Info("asset exported",
		"asset_id", record.ID,
		"preset", preset.ID,
		"format", format,
		"bytes", len(data))

	return data, nil
}

// exportKey fingerprints everything that influences the encoded output. The
// source bytes are hashed directly: writing a preset choice back to the
// record must not invalidate its cached exports.
func (s *CoreService) exportKey(record *database.AssetRecord, source []byte,
	preset export.Preset, format export.Format, req ExportRequest) string {
	effectPart := "effect:none"
	if req.Effect != nil {
		effectPart = fmt.Sprintf("effect:%s:%d", req.Effect.Kind, req.Effect.Intensity)
	}
	bgPart := fmt.Sprintf("bg:%d:%d:%d:%d", req.Background.Color.R, req.Background.Color.G,
		req.Background.Color.B, req.Background.Color.A)
	if len(req.Background.Image) > 0 {
		bgPart = "bgimg:" + cache.Key(string(req.Background.Image))
	}
	return cache.Key(
		record.ID,
		cache.Key(string(source)),
		preset.ID,
		string(format),
		bgPart,
		effectPart,
	)
}

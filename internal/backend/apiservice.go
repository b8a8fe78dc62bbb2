// Package backend exposes the asset store and the export pipeline over HTTP.
// The routes are thin glue for the UI: all invariants live in the store and
// pipeline packages.
package backend

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/idphoto/internal/backend/database"
	"github.com/jo-hoe/idphoto/internal/backend/export"
	"github.com/jo-hoe/idphoto/internal/core"
)

type APIService struct {
	service *core.CoreService
}

func NewAPIService(service *core.CoreService) *APIService {
	return &APIService{service: service}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Probe route
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "API Service is running")
	})

	e.POST("/assets", s.uploadAsset)
	e.GET("/assets", s.listAssets)
	e.GET("/assets/:id", s.getAsset)
	e.GET("/assets/:id/original", s.getOriginal)
	e.GET("/assets/:id/processed", s.getProcessed)
	e.DELETE("/assets/:id", s.deleteAsset)
	e.DELETE("/assets", s.clearAssets)
	e.POST("/assets/sweep", s.sweepAssets)
	e.POST("/assets/:id/export", s.exportAsset)
	e.GET("/storage/summary", s.storageSummary)
	e.GET("/presets", s.listPresets)
}

// assetView is the metadata projection returned by list/get; blobs are only
// served through the dedicated byte routes.
type assetView struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	OriginalBytes  int    `json:"originalBytes"`
	ProcessedBytes int    `json:"processedBytes"`
	HasProcessed   bool   `json:"hasProcessed"`
	LastPreset     string `json:"lastPreset,omitempty"`
	LastFormat     string `json:"lastFormat,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
	UpdatedAt      int64  `json:"updatedAt"`
}

func toAssetView(record *database.AssetRecord) assetView {
	return assetView{
		ID:             record.ID,
		Name:           record.Name,
		OriginalBytes:  len(record.Original),
		ProcessedBytes: len(record.Processed),
		HasProcessed:   len(record.Processed) > 0,
		LastPreset:     record.LastPreset,
		LastFormat:     record.LastFormat,
		CreatedAt:      record.CreatedAt.UnixMilli(),
		UpdatedAt:      record.UpdatedAt.UnixMilli(),
	}
}

// uploadAsset persists an uploaded image. The "original" file part is
// required on first save of a name; an optional "processed" part carries the
// background-removed derivative once the removal step produced it. Repeated
// uploads of the same name merge into the existing record.
func (s *APIService) uploadAsset(c echo.Context) error {
	original, err := readFilePart(c, "original", s.service.Config().MaxUploadBytes)
	if err != nil {
		return err
	}
	processed, err := readFilePart(c, "processed", s.service.Config().MaxUploadBytes)
	if err != nil {
		return err
	}
	if original == nil && processed == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request carries no file part")
	}

	name := c.FormValue("name")
	if name == "" {
		header, err := c.FormFile("original")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "asset name is required when no original is uploaded")
		}
		name = header.Filename
	}

	id, err := s.service.Store().Save(c.Request().Context(), database.SaveRequest{
		Name:      name,
		Original:  original,
		Processed: processed,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to save asset: %v", err))
	}
	return c.JSON(http.StatusOK, map[string]string{"id": id})
}

// readFilePart reads an optional multipart file field, returning nil when the
// field is absent.
func readFilePart(c echo.Context, field string, limit int64) ([]byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, nil
	}
	if limit > 0 && header.Size > limit {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("%s exceeds the %d byte upload limit", field, limit))
	}
	file, err := header.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("failed to open %s part: %v", field, err))
	}
	defer func() {
		_ = file.Close()
	}()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("failed to read %s part: %v", field, err))
	}
	if len(data) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("received empty %s part", field))
	}
	return data, nil
}

func (s *APIService) listAssets(c echo.Context) error {
	records, err := s.service.Store().List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to list assets: %v", err))
	}
	views := make([]assetView, 0, len(records))
	for _, record := range records {
		views = append(views, toAssetView(record))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *APIService) getAsset(c echo.Context) error {
	record, err := s.lookupAsset(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAssetView(record))
}

func (s *APIService) getOriginal(c echo.Context) error {
	record, err := s.lookupAsset(c)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, http.DetectContentType(record.Original), record.Original)
}

func (s *APIService) getProcessed(c echo.Context) error {
	record, err := s.lookupAsset(c)
	if err != nil {
		return err
	}
	if len(record.Processed) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "asset has no processed derivative yet")
	}
	return c.Blob(http.StatusOK, http.DetectContentType(record.Processed), record.Processed)
}

func (s *APIService) lookupAsset(c echo.Context) (*database.AssetRecord, error) {
	record, err := s.service.Store().Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to load asset: %v", err))
	}
	if record == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "asset not found")
	}
	return record, nil
}

func (s *APIService) deleteAsset(c echo.Context) error {
	if err := s.service.Store().Delete(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to delete asset: %v", err))
	}
	return c.NoContent(http.StatusNoContent)
}

// clearAssets and sweepAssets are irreversible; both demand an explicit
// confirm flag so a UI cannot trigger them by accident.
func (s *APIService) clearAssets(c echo.Context) error {
	if c.QueryParam("confirm") != "true" {
		return echo.NewHTTPError(http.StatusBadRequest, "clearing the store requires confirm=true")
	}
	if err := s.service.Store().Clear(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to clear assets: %v", err))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIService) sweepAssets(c echo.Context) error {
	if c.QueryParam("confirm") != "true" {
		return echo.NewHTTPError(http.StatusBadRequest, "sweeping the store requires confirm=true")
	}

	days := s.service.Config().DefaultSweepDays
	if raw := c.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid days value %q", raw))
		}
		days = parsed
	}

	deleted, err := s.service.Store().SweepOlderThan(c.Request().Context(), days)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to sweep assets: %v", err))
	}
	return c.JSON(http.StatusOK, map[string]int{"deleted": deleted})
}

func (s *APIService) storageSummary(c echo.Context) error {
	summary, err := s.service.Store().Summary(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to summarize storage: %v", err))
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *APIService) listPresets(c echo.Context) error {
	return c.JSON(http.StatusOK, export.Presets())
}

// exportParams is bound from the export request. The optional "background"
// multipart file part carries a custom background image.
type exportParams struct {
	Preset          string `form:"preset" json:"preset"`
	Format          string `form:"format" json:"format" validate:"omitempty,oneof=png jpeg"`
	BackgroundColor string `form:"backgroundColor" json:"backgroundColor" validate:"omitempty,hexcolor"`
	Effect          string `form:"effect" json:"effect" validate:"omitempty,oneof=blur brightness contrast"`
	EffectIntensity int    `form:"effectIntensity" json:"effectIntensity" validate:"gte=0,lte=100"`
}

func (s *APIService) exportAsset(c echo.Context) error {
	params := new(exportParams)
	if err := c.Bind(params); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid export request: %v", err))
	}
	if err := c.Validate(params); err != nil {
		return err
	}

	background := export.Background{Color: whiteBackground}
	if params.BackgroundColor != "" {
		parsed, err := parseHexColor(params.BackgroundColor)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		background.Color = parsed
	}
	if data, err := readFilePart(c, "background", s.service.Config().MaxUploadBytes); err != nil {
		return err
	} else if data != nil {
		background.Image = data
	}

	var effect *export.Effect
	if params.Effect != "" {
		effect = &export.Effect{
			Kind:      export.EffectKind(params.Effect),
			Intensity: params.EffectIntensity,
		}
	}

	data, err := s.service.Export(c.Request().Context(), core.ExportRequest{
		AssetID:    c.Param("id"),
		PresetID:   params.Preset,
		Format:     export.Format(params.Format),
		Background: background,
		Effect:     effect,
	})
	if err != nil {
		if errors.Is(err, core.ErrAssetNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "asset not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("export failed: %v", err))
	}

	return c.Blob(http.StatusOK, http.DetectContentType(data), data)
}

var whiteBackground = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// parseHexColor parses "#rgb" and "#rrggbb" notations into an opaque color.
func parseHexColor(value string) (color.NRGBA, error) {
	parsed := color.NRGBA{A: 255}
	var err error
	switch len(value) {
	case 7:
		_, err = fmt.Sscanf(value, "#%02x%02x%02x", &parsed.R, &parsed.G, &parsed.B)
	case 4:
		_, err = fmt.Sscanf(value, "#%1x%1x%1x", &parsed.R, &parsed.G, &parsed.B)
		parsed.R *= 17
		parsed.G *= 17
		parsed.B *= 17
	default:
		err = fmt.Errorf("unexpected length %d", len(value))
	}
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid background color %q: %w", value, err)
	}
	return parsed, nil
}

package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/idphoto/internal/common"
	"github.com/jo-hoe/idphoto/internal/core"
)

func newTestServer(t *testing.T) (*echo.Echo, *core.CoreService) {
	t.Helper()

	config := &core.ServiceConfig{
		Port: 8080,
		Database: core.Database{
			Type:             "sqlite",
			ConnectionString: ":memory:",
		},
		DefaultSweepDays: 30,
		MaxUploadBytes:   32 << 20,
	}
	service, err := core.NewCoreService(config)
	if err != nil {
		t.Fatalf("failed to create core service: %v", err)
	}
	t.Cleanup(func() {
		if err := service.Close(); err != nil {
			t.Errorf("failed to close core service: %v", err)
		}
	})

	e := echo.New()
	e.Validator = common.NewRequestValidator()
	NewAPIService(service).SetRoutes(e)
	return e, service
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

func portraitFixture(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 40; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 180, G: 150, B: 120, A: 255})
		}
	}
	return encodePNG(t, img)
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("failed to write field %s: %v", name, err)
		}
	}
	for name, data := range files {
		part, err := writer.CreateFormFile(name, name+".png")
		if err != nil {
			t.Fatalf("failed to create file part %s: %v", name, err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("failed to write file part %s: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func uploadAsset(t *testing.T, e *echo.Echo, name string) string {
	t.Helper()
	body, contentType := multipartBody(t,
		map[string]string{"name": name},
		map[string][]byte{"original": portraitFixture(t)})

	req := httptest.NewRequest(http.MethodPost, "/assets", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("upload returned status %d: %s", rec.Code, rec.Body.String())
	}
	var result map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode upload response: %v", err)
	}
	if result["id"] == "" {
		t.Fatal("upload response carries no asset id")
	}
	return result["id"]
}

func TestUploadAndGetAsset(t *testing.T) {
	e, _ := newTestServer(t)
	id := uploadAsset(t, e, "portrait.png")

	req := httptest.NewRequest(http.MethodGet, "/assets/"+id, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var view assetView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode asset view: %v", err)
	}
	if view.Name != "portrait.png" {
		t.Errorf("expected name portrait.png, got %q", view.Name)
	}
	if view.OriginalBytes == 0 {
		t.Error("expected non-zero original size")
	}
	if view.HasProcessed {
		t.Error("expected no processed derivative")
	}
}

func TestUploadWithoutFileParts(t *testing.T) {
	e, _ := newTestServer(t)

	body, contentType := multipartBody(t, map[string]string{"name": "empty"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/assets", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestListAssets(t *testing.T) {
	e, _ := newTestServer(t)
	uploadAsset(t, e, "first.png")
	uploadAsset(t, e, "second.png")

	req := httptest.NewRequest(http.MethodGet, "/assets", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var views []assetView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("failed to decode asset list: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(views))
	}
}

func TestGetOriginalBytes(t *testing.T) {
	e, _ := newTestServer(t)
	id := uploadAsset(t, e, "portrait.png")

	req := httptest.NewRequest(http.MethodGet, "/assets/"+id+"/original", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if contentType := rec.Header().Get(echo.HeaderContentType); contentType != "image/png" {
		t.Errorf("expected image/png content type, got %q", contentType)
	}
}

func TestGetProcessedBytes_Absent(t *testing.T) {
	e, _ := newTestServer(t)
	id := uploadAsset(t, e, "portrait.png")

	req := httptest.NewRequest(http.MethodGet, "/assets/"+id+"/processed", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestGetAsset_Unknown(t *testing.T) {
	e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/assets/missing", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestDeleteAsset(t *testing.T) {
	e, _ := newTestServer(t)
	id := uploadAsset(t, e, "portrait.png")

	req := httptest.NewRequest(http.MethodDelete, "/assets/"+id, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/assets/"+id, nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after delete, got %d", rec.Code)
	}
}

func TestClearAssets_RequiresConfirmation(t *testing.T) {
	e, _ := newTestServer(t)
	uploadAsset(t, e, "portrait.png")

	req := httptest.NewRequest(http.MethodDelete, "/assets", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without confirm, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/assets?confirm=true", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 with confirm, got %d", rec.Code)
	}
}

func TestSweepAssets(t *testing.T) {
	e, _ := newTestServer(t)
	uploadAsset(t, e, "portrait.png")

	req := httptest.NewRequest(http.MethodPost, "/assets/sweep", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without confirm, got %d", rec.Code)
	}

	// A fresh record is younger than any horizon, so nothing is deleted.
	req = httptest.NewRequest(http.MethodPost, "/assets/sweep?confirm=true&days=7", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode sweep response: %v", err)
	}
	if result["deleted"] != 0 {
		t.Errorf("expected 0 deletions, got %d", result["deleted"])
	}

	req = httptest.NewRequest(http.MethodPost, "/assets/sweep?confirm=true&days=bogus", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for malformed days, got %d", rec.Code)
	}
}

func TestStorageSummary(t *testing.T) {
	e, _ := newTestServer(t)
	uploadAsset(t, e, "portrait.png")

	req := httptest.NewRequest(http.MethodGet, "/storage/summary", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var summary struct {
		Count             int    `json:"count"`
		TotalBytes        int64  `json:"totalBytes"`
		HumanReadableSize string `json:"humanReadableSize"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if summary.Count != 1 {
		t.Errorf("expected count 1, got %d", summary.Count)
	}
	if summary.TotalBytes <= 0 {
		t.Errorf("expected positive total bytes, got %d", summary.TotalBytes)
	}
	if summary.HumanReadableSize == "" {
		t.Error("expected human readable size to be set")
	}
}

func TestListPresets(t *testing.T) {
	e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/presets", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var presets []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &presets); err != nil {
		t.Fatalf("failed to decode presets: %v", err)
	}
	found := false
	for _, preset := range presets {
		if preset.ID == "us-passport" {
			found = true
		}
	}
	if !found {
		t.Error("expected us-passport preset in catalog")
	}
}

func TestExportAsset(t *testing.T) {
	e, _ := newTestServer(t)
	id := uploadAsset(t, e, "portrait.png")

	body, contentType := multipartBody(t, map[string]string{
		"preset":          "profile-square",
		"backgroundColor": "#2d6cdf",
	}, nil)
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/assets/%s/export", id), body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	img, format, err := image.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("export output does not decode: %v", err)
	}
	if format != "png" {
		t.Errorf("expected png output, got %q", format)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 512 || bounds.Dy() != 512 {
		t.Errorf("expected 512x512 output, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestExportAsset_InvalidParams(t *testing.T) {
	e, _ := newTestServer(t)
	id := uploadAsset(t, e, "portrait.png")

	tests := []struct {
		name   string
		fields map[string]string
	}{
		{
			name:   "bad format",
			fields: map[string]string{"format": "gif"},
		},
		{
			name:   "bad background color",
			fields: map[string]string{"backgroundColor": "notacolor"},
		},
		{
			name:   "bad effect",
			fields: map[string]string{"effect": "sepia"},
		},
		{
			name:   "intensity out of range",
			fields: map[string]string{"effect": "blur", "effectIntensity": "150"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			body, contentType := multipartBody(t, test.fields, nil)
			req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/assets/%s/export", id), body)
			req.Header.Set(echo.HeaderContentType, contentType)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestExportAsset_Unknown(t *testing.T) {
	e, _ := newTestServer(t)

	body, contentType := multipartBody(t, map[string]string{"preset": "us-passport"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/assets/missing/export", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		input    string
		expected color.NRGBA
		wantErr  bool
	}{
		{input: "#ffffff", expected: color.NRGBA{R: 255, G: 255, B: 255, A: 255}},
		{input: "#2d6cdf", expected: color.NRGBA{R: 45, G: 108, B: 223, A: 255}},
		{input: "#f00", expected: color.NRGBA{R: 255, G: 0, B: 0, A: 255}},
		{input: "ffffff", wantErr: true},
		{input: "#ffff", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			parsed, err := parseHexColor(test.input)
			if test.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", test.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if parsed != test.expected {
				t.Errorf("expected %+v, got %+v", test.expected, parsed)
			}
		})
	}
}

func TestProbe(t *testing.T) {
	e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

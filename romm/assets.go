package romm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"romm-autosync/constants"
	"romm-autosync/types"
	"romm-autosync/utils"
)

// AssetQuery filters GET /api/{saves|states}.
type AssetQuery struct {
	RomID    uint
	DeviceID string
	Slot     string
	Limit    int
}

// ListAssets queries save or state records. kind is constants.DirSaves or
// constants.DirStates.
func (c *Client) ListAssets(ctx context.Context, kind string, q AssetQuery) ([]types.ServerAsset, error) {
	v := url.Values{}
	if q.RomID != 0 {
		v.Set("rom_id", fmt.Sprintf("%d", q.RomID))
	}
	if q.DeviceID != "" {
		v.Set("device_id", q.DeviceID)
	}
	if q.Slot != "" {
		v.Set("slot", q.Slot)
	}
	if q.Limit > 0 {
		v.Set("limit", fmt.Sprintf("%d", q.Limit))
	}

	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/"+kind+"?"+v.Encode(), &raw); err != nil {
		return nil, err
	}
	var assets []types.ServerAsset
	if err := json.Unmarshal(raw, &assets); err == nil {
		return assets, nil
	}
	var paginated struct {
		Items []types.ServerAsset `json:"items"`
	}
	if err := json.Unmarshal(raw, &paginated); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: unknown format", kind)
	}
	return paginated.Items, nil
}

// GetAssetSummary fetches /api/{kind}/summary?rom_id=. The payload is loose
// across server versions, so it stays a generic map.
func (c *Client) GetAssetSummary(ctx context.Context, kind string, romID uint) (map[string]interface{}, error) {
	var summary map[string]interface{}
	path := fmt.Sprintf("/api/%s/summary?rom_id=%d", kind, romID)
	if err := c.getJSON(ctx, path, &summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// AckDownloaded records a successful device-scoped pull on the server.
func (c *Client) AckDownloaded(ctx context.Context, kind string, assetID uint, deviceID string) error {
	path := fmt.Sprintf("/api/%s/%d/downloaded", kind, assetID)
	return c.postJSON(ctx, http.MethodPost, path, map[string]string{"device_id": deviceID}, nil)
}

// TrackAsset registers this device as tracking the asset.
func (c *Client) TrackAsset(ctx context.Context, kind string, assetID uint, deviceID string) error {
	path := fmt.Sprintf("/api/%s/%d/track", kind, assetID)
	return c.postJSON(ctx, http.MethodPost, path, map[string]string{"device_id": deviceID}, nil)
}

// UntrackAsset removes this device from the asset's trackers.
func (c *Client) UntrackAsset(ctx context.Context, kind string, assetID uint, deviceID string) error {
	path := fmt.Sprintf("/api/%s/%d/untrack", kind, assetID)
	return c.postJSON(ctx, http.MethodPost, path, map[string]string{"device_id": deviceID}, nil)
}

// DownloadAsset streams an asset to destPath. With a deviceID the primary URL
// is device-scoped and optimistic; a 404 there retries without the scope, and
// a persistent failure falls back to the record's download_path. usedPrimary
// reports whether the device-scoped URL served the bytes, which decides
// whether the pull is acknowledged to the server.
func (c *Client) DownloadAsset(ctx context.Context, kind string, asset *types.ServerAsset, destPath, deviceID string) (usedPrimary bool, err error) {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return false, err
	}

	primary := fmt.Sprintf("%s/api/%s/%d/content", c.BaseURL, kind, asset.ID)
	if deviceID != "" {
		primary += fmt.Sprintf("?device_id=%s&optimistic=true", url.QueryEscape(deviceID))
	}

	err = c.streamToFile(ctx, primary, destPath, asset.FileSizeBytes)
	if err == nil {
		if deviceID != "" {
			if ackErr := c.AckDownloaded(ctx, kind, asset.ID, deviceID); ackErr != nil {
				c.log.Warn("failed to ack download", "asset_id", asset.ID, "error", ackErr)
			}
			return true, nil
		}
		return false, nil
	}

	// A 404 on the device-scoped URL is a known server quirk; retry unscoped
	// before reaching for download_path.
	if deviceID != "" && IsStatus(err, http.StatusNotFound) {
		c.log.Debug("device-scoped download returned 404, retrying without device scope",
			"asset_id", asset.ID)
		unscoped := fmt.Sprintf("%s/api/%s/%d/content", c.BaseURL, kind, asset.ID)
		if err = c.streamToFile(ctx, unscoped, destPath, asset.FileSizeBytes); err == nil {
			return false, nil
		}
	}

	if asset.DownloadPath != "" {
		c.log.Debug("content endpoint failed, falling back to download_path",
			"asset_id", asset.ID, "error", err)
		fallback := asset.DownloadPath
		if !strings.HasPrefix(fallback, "http") {
			if !strings.HasPrefix(fallback, "/") {
				fallback = "/" + fallback
			}
			fallback = c.BaseURL + fallback
		}
		if err = c.streamToFile(ctx, fallback, destPath, asset.FileSizeBytes); err == nil {
			return false, nil
		}
	}

	return false, fmt.Errorf("failed to download %s %d: %w", kind, asset.ID, err)
}

// streamToFile GETs targetURL into destPath, rejecting HTML error pages and
// empty results, and warning when the written size diverges from the
// advertised one by more than 1 KB.
func (c *Client) streamToFile(ctx context.Context, targetURL, destPath string, expectedSize int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}
	c.applyAuth(req)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		return fmt.Errorf("server returned an HTML error page")
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	written, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to write destination file: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to close destination file: %w", closeErr)
	}
	if written == 0 {
		os.Remove(destPath)
		return fmt.Errorf("server returned an empty file")
	}
	if expectedSize > 0 && abs64(written-expectedSize) > 1024 {
		c.log.Warn("downloaded size diverges from advertised size",
			"path", destPath, "written", written, "expected", expectedSize)
	}
	return nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// UploadOptions are the query parameters on POST /api/{saves|states}.
type UploadOptions struct {
	Emulator         string
	DeviceID         string
	Slot             string
	Autocleanup      bool
	AutocleanupLimit int
	// PrevFileName, when set for a save, is reused verbatim as the upload
	// filename so the server keeps grouping revisions of the same save.
	PrevFileName string
}

// UploadAsset uploads a local save/state file. The multipart filename is the
// timestamp-stamped variant of the local base name. Returns the new server
// record's ID and the filename that was sent.
func (c *Client) UploadAsset(ctx context.Context, kind string, romID uint, localPath string, opts UploadOptions) (uint, string, error) {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return 0, "", err
	}

	content, err := os.ReadFile(localPath)
	if err != nil {
		return 0, "", fmt.Errorf("failed to read local file: %w", err)
	}

	uploadName := utils.StampFilename(filepath.Base(localPath), time.Now())
	if kind == constants.DirSaves && opts.PrevFileName != "" {
		uploadName = opts.PrevFileName
	}

	field := constants.FieldStateFile
	if kind == constants.DirSaves {
		field = constants.FieldSaveFile
	}

	v := url.Values{}
	v.Set("rom_id", fmt.Sprintf("%d", romID))
	if opts.Emulator != "" {
		v.Set("emulator", opts.Emulator)
	}
	if opts.DeviceID != "" {
		v.Set("device_id", opts.DeviceID)
	}
	if opts.Slot != "" {
		v.Set("slot", opts.Slot)
	}
	if opts.Autocleanup {
		v.Set("autocleanup", "true")
		if opts.AutocleanupLimit > 0 {
			v.Set("autocleanup_limit", fmt.Sprintf("%d", opts.AutocleanupLimit))
		}
	}

	id, err := c.uploadMultipart(ctx, "/api/"+kind+"?"+v.Encode(), field, uploadName, content)
	if err != nil {
		return 0, uploadName, err
	}
	return id, uploadName, nil
}

// uploadMultipart posts a single file as multipart form data and parses the
// returned record ID.
func (c *Client) uploadMultipart(ctx context.Context, path, field, filename string, content []byte) (uint, error) {
	var body strings.Builder
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return 0, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return 0, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(body.String()))
	if err != nil {
		return 0, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.applyAuth(req)

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return 0, err
	}

	var result struct {
		ID uint `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// 200/201 with an unparseable body still counts as accepted.
		c.log.Warn("upload accepted but response body not parseable", "path", path, "error", err)
		return 0, nil
	}
	return result.ID, nil
}

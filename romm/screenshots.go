package romm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"romm-autosync/constants"
	"romm-autosync/types"
)

// UploadScreenshot uploads a .png co-located with a state and links it to the
// state record. The screenshot filename must share the exact timestamp bracket
// of the uploaded state so the server can pair them; callers pass the stamped
// state filename and the png inherits its bracket.
func (c *Client) UploadScreenshot(ctx context.Context, romID, stateID uint, stampedStateName, pngPath string) error {
	content, err := os.ReadFile(pngPath)
	if err != nil {
		return fmt.Errorf("failed to read screenshot: %w", err)
	}

	// "SMW [TS].state" -> "SMW [TS].png"
	name := strings.TrimSuffix(stampedStateName, filepath.Ext(stampedStateName)) + ".png"
	if strings.HasSuffix(strings.ToLower(stampedStateName), constants.StateAutoSuffix) {
		name = stampedStateName[:len(stampedStateName)-len(constants.StateAutoSuffix)] + ".png"
	}

	path := fmt.Sprintf("/api/screenshots?rom_id=%d&state_id=%d", romID, stateID)
	screenshotID, err := c.uploadMultipart(ctx, path, constants.FieldScreenshotFile, name, content)
	if err != nil {
		return fmt.Errorf("screenshot upload failed: %w", err)
	}

	if c.verifyScreenshotLink(ctx, stateID) {
		return nil
	}

	// The upload landed but the state record does not reference it; try the
	// explicit link endpoints in turn.
	link := map[string]uint{"state_id": stateID, "screenshot_id": screenshotID}
	attempts := []struct {
		method, path string
	}{
		{http.MethodPatch, fmt.Sprintf("/api/states/%d", stateID)},
		{http.MethodPatch, fmt.Sprintf("/api/screenshots/%d", screenshotID)},
		{http.MethodPost, fmt.Sprintf("/api/states/%d/screenshot", stateID)},
	}
	for _, a := range attempts {
		if err := c.postJSON(ctx, a.method, a.path, link, nil); err != nil {
			c.log.Debug("screenshot link attempt failed", "method", a.method, "path", a.path, "error", err)
			continue
		}
		if c.verifyScreenshotLink(ctx, stateID) {
			return nil
		}
	}
	return fmt.Errorf("screenshot uploaded but could not be linked to state %d", stateID)
}

// verifyScreenshotLink re-fetches the state and checks it references a screenshot.
func (c *Client) verifyScreenshotLink(ctx context.Context, stateID uint) bool {
	var state types.ServerAsset
	if err := c.getJSON(ctx, fmt.Sprintf("/api/states/%d", stateID), &state); err != nil {
		return false
	}
	return state.Screenshot != nil && state.Screenshot.ID != 0
}

// DownloadScreenshot fetches a state's linked screenshot to destPath.
func (c *Client) DownloadScreenshot(ctx context.Context, shot *types.Screenshot, destPath string) error {
	if shot == nil || shot.DownloadPath == "" {
		return fmt.Errorf("no screenshot download path")
	}
	target := shot.DownloadPath
	if !strings.HasPrefix(target, "http") {
		if !strings.HasPrefix(target, "/") {
			target = "/" + target
		}
		target = c.BaseURL + target
	}
	return c.streamToFile(ctx, target, destPath, 0)
}

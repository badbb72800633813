package romm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"romm-autosync/types"
)

// Firmware is a BIOS/firmware file record.
type Firmware struct {
	ID            uint   `json:"id"`
	FileName      string `json:"file_name"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	MD5Hash       string `json:"md5_hash"`
}

// GetPlatforms fetches the platform list (used to resolve slug -> id).
func (c *Client) GetPlatforms(ctx context.Context) ([]types.Platform, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/platforms", &raw); err != nil {
		return nil, err
	}
	var platforms []types.Platform
	if err := json.Unmarshal(raw, &platforms); err == nil {
		return platforms, nil
	}
	var paginated struct {
		Items []types.Platform `json:"items"`
	}
	if err := json.Unmarshal(raw, &paginated); err != nil {
		return nil, fmt.Errorf("failed to parse platforms response: unknown format")
	}
	return paginated.Items, nil
}

// GetFirmware lists the firmware files for a platform.
func (c *Client) GetFirmware(ctx context.Context, platformID uint) ([]Firmware, error) {
	var firmware []Firmware
	if err := c.getJSON(ctx, fmt.Sprintf("/api/firmware?platform_id=%d", platformID), &firmware); err != nil {
		return nil, err
	}
	return firmware, nil
}

// DownloadFirmware fetches one firmware file to destPath.
func (c *Client) DownloadFirmware(ctx context.Context, fw Firmware, destPath string) error {
	target := fmt.Sprintf("%s/api/firmware/%d/content/%s", c.BaseURL, fw.ID, url.PathEscape(fw.FileName))
	return c.streamToFile(ctx, target, destPath, fw.FileSizeBytes)
}

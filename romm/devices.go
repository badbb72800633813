package romm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"

	"romm-autosync/types"
)

// clientName identifies this program to the server's device registry.
const clientName = "romm-autosync"

// ClientVersion is stamped at build time via -ldflags.
var ClientVersion = "dev"

// RegisterDevice registers (or re-adopts) this installation with the server
// and returns the device record. allow_existing lets the server hand back a
// previously registered identity for the same host.
func (c *Client) RegisterDevice(ctx context.Context) (types.Device, error) {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown-host"
	}

	reg := types.DeviceRegistration{
		Name:           hostname,
		Platform:       runtime.GOOS,
		Client:         clientName,
		ClientVersion:  ClientVersion,
		Hostname:       hostname,
		AllowExisting:  true,
		AllowDuplicate: false,
	}

	var device types.Device
	if err := c.postJSON(ctx, http.MethodPost, "/api/devices", reg, &device); err != nil {
		return types.Device{}, fmt.Errorf("device registration failed: %w", err)
	}
	return device, nil
}

// GetDevice reads one device record.
func (c *Client) GetDevice(ctx context.Context, id string) (types.Device, error) {
	var device types.Device
	if err := c.getJSON(ctx, "/api/devices/"+id, &device); err != nil {
		return types.Device{}, err
	}
	return device, nil
}

// UpdateDevice updates a device record.
func (c *Client) UpdateDevice(ctx context.Context, device types.Device) error {
	return c.postJSON(ctx, http.MethodPut, "/api/devices/"+device.ID, device, nil)
}

// DeleteDevice removes a device registration. A 404 means it is already gone
// and is treated as success.
func (c *Client) DeleteDevice(ctx context.Context, id string) error {
	err := c.postJSON(ctx, http.MethodDelete, "/api/devices/"+id, nil, nil)
	if IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

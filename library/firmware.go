package library

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"romm-autosync/romm"
)

// SyncFirmware pulls every firmware file the server knows about into
// systemDir, one subdirectory per platform slug. Files already present with a
// matching MD5 are skipped. Returns the number of files downloaded.
func SyncFirmware(ctx context.Context, client *romm.Client, systemDir string, log *slog.Logger) (int, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "firmware")

	platforms, err := client.GetPlatforms(ctx)
	if err != nil {
		return 0, err
	}

	downloaded := 0
	for _, p := range platforms {
		if ctx.Err() != nil {
			return downloaded, ctx.Err()
		}
		files, err := client.GetFirmware(ctx, p.ID)
		if err != nil {
			log.Warn("firmware listing failed", "platform", p.Slug, "error", err)
			continue
		}
		for _, fw := range files {
			dest := filepath.Join(systemDir, p.Slug, fw.FileName)
			if firmwareCurrent(dest, fw) {
				continue
			}
			if err := client.DownloadFirmware(ctx, fw, dest); err != nil {
				log.Warn("firmware download failed",
					"platform", p.Slug, "file", fw.FileName, "error", err)
				continue
			}
			log.Info("firmware downloaded", "platform", p.Slug, "file", fw.FileName)
			downloaded++
		}
	}
	return downloaded, nil
}

// firmwareCurrent reports whether the local file already matches the server
// record, by MD5 when the server supplies one, by size otherwise.
func firmwareCurrent(path string, fw romm.Firmware) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if fw.MD5Hash == "" {
		return info.Size() == fw.FileSizeBytes
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return false
	}
	return strings.EqualFold(hex.EncodeToString(h.Sum(nil)), fw.MD5Hash)
}

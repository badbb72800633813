package library

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
)

// Extract unpacks a .zip, .7z, or .rar archive into destDir and returns the
// extracted file paths. Entry names are confined to destDir.
func Extract(archivePath, destDir string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(archivePath)) {
	case ".zip":
		return extractZip(archivePath, destDir)
	case ".7z":
		return extractSevenZip(archivePath, destDir)
	case ".rar":
		return extractRar(archivePath, destDir)
	}
	return nil, fmt.Errorf("unsupported archive format: %s", filepath.Ext(archivePath))
}

// safeJoin resolves an archive entry name under destDir, rejecting traversal.
func safeJoin(destDir, name string) (string, error) {
	path := filepath.Join(destDir, filepath.Clean("/"+name))
	if !strings.HasPrefix(path, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return path, nil
}

func writeEntry(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, r)
	closeErr := out.Close()
	if copyErr != nil {
		os.Remove(path)
		return copyErr
	}
	return closeErr
}

func extractZip(archivePath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer r.Close()

	var extracted []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		path, err := safeJoin(destDir, f.Name)
		if err != nil {
			return nil, err
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read zip entry %s: %w", f.Name, err)
		}
		err = writeEntry(path, rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
		extracted = append(extracted, path)
	}
	return extracted, nil
}

func extractSevenZip(archivePath, destDir string) ([]string, error) {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open 7z archive: %w", err)
	}
	defer r.Close()

	var extracted []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		path, err := safeJoin(destDir, f.Name)
		if err != nil {
			return nil, err
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read 7z entry %s: %w", f.Name, err)
		}
		err = writeEntry(path, rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
		extracted = append(extracted, path)
	}
	return extracted, nil
}

func extractRar(archivePath, destDir string) ([]string, error) {
	r, err := rardecode.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open rar archive: %w", err)
	}
	defer r.Close()

	var extracted []string
	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rar archive: %w", err)
		}
		if header.IsDir {
			continue
		}
		path, err := safeJoin(destDir, header.Name)
		if err != nil {
			return nil, err
		}
		if err := writeEntry(path, r); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", header.Name, err)
		}
		extracted = append(extracted, path)
	}
	return extracted, nil
}

package types

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

// RommData is the server-side metadata blob attached to each ROM. It is kept
// verbatim so filename matching survives server schema drift; only the fields
// listed here are ever relied upon.
type RommData struct {
	FsNameNoExt  string
	FsNameNoTags string
	Raw          json.RawMessage
}

func (d *RommData) UnmarshalJSON(data []byte) error {
	d.Raw = append(d.Raw[:0], data...)
	var known struct {
		FsNameNoExt  string `json:"fs_name_no_ext"`
		FsNameNoTags string `json:"fs_name_no_tags"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		// Loose payload; matching just degrades to filename stems.
		return nil
	}
	d.FsNameNoExt = known.FsNameNoExt
	d.FsNameNoTags = known.FsNameNoTags
	return nil
}

func (d RommData) MarshalJSON() ([]byte, error) {
	if len(d.Raw) == 0 {
		return []byte("null"), nil
	}
	return d.Raw, nil
}

// RomFile is one file belonging to a ROM (multi-file games have several).
type RomFile struct {
	FileName      string `json:"file_name"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

// Game represents a ROM entry from the RomM catalog. (platform_slug, file_name)
// is the local-disk identity; ID is the server identity.
type Game struct {
	ID            uint      `json:"id"`
	Name          string    `json:"name"`
	FileName      string    `json:"fs_name"`
	PlatformName  string    `json:"platform_name"`
	PlatformSlug  string    `json:"platform_slug"`
	Multi         bool      `json:"multi"`
	FileSizeBytes int64     `json:"fs_size_bytes"`
	Files         []RomFile `json:"files"`
	RommData      RommData  `json:"romm_data"`

	// Local state, maintained in memory only.
	IsDownloaded bool   `json:"is_downloaded,omitempty"`
	LocalPath    string `json:"local_path,omitempty"`
	LocalSize    int64  `json:"local_size,omitempty"`
}

// SizeBytes returns the best-known total size: the summed file list when
// present, otherwise the advertised top-level size.
func (g *Game) SizeBytes() int64 {
	var total int64
	for _, f := range g.Files {
		total += f.FileSizeBytes
	}
	if total > 0 {
		return total
	}
	return g.FileSizeBytes
}

// Stem returns the catalog filename without its extension.
func (g *Game) Stem() string {
	if g.RommData.FsNameNoExt != "" {
		return g.RommData.FsNameNoExt
	}
	return strings.TrimSuffix(g.FileName, filepath.Ext(g.FileName))
}

package retroarch

import (
	"os"
	"strings"
)

// NamingScheme is how an installation names its per-system save folders.
type NamingScheme string

const (
	NamingCoreNames     NamingScheme = "core-names"
	NamingPlatformSlugs NamingScheme = "platform-slugs"
)

// Known core display folder names, as RetroArch creates them under saves/.
var knownCoreFolders = map[string]bool{
	"Snes9x": true, "bsnes": true, "Nestopia": true, "FCEUmm": true,
	"Mesen": true, "Mupen64Plus-Next": true, "ParaLLEl N64": true,
	"Gambatte": true, "SameBoy": true, "mGBA": true, "VBA-M": true,
	"melonDS": true, "DeSmuME": true, "Beetle PSX": true, "Beetle PSX HW": true,
	"PCSX-ReARMed": true, "SwanStation": true, "DuckStation": true,
	"PPSSPP": true, "Genesis Plus GX": true, "PicoDrive": true,
	"BlastEm": true, "Beetle Saturn": true, "Flycast": true,
	"Beetle PCE Fast": true, "Beetle SuperGrafx": true, "Beetle WonderSwan": true,
	"Beetle NeoPop": true, "Beetle VB": true, "Stella": true, "Handy": true,
	"VICE x64sc": true, "PUAE": true, "DOSBox-Pure": true, "MAME": true,
	"FinalBurn Neo": true, "Dolphin": true, "Citra": true,
}

// Known platform slugs, for installations configured to sort saves by system.
var knownPlatformSlugs = map[string]bool{
	"nes": true, "snes": true, "n64": true, "gamecube": true, "wii": true,
	"gb": true, "gbc": true, "gba": true, "nds": true, "3ds": true,
	"ps": true, "psx": true, "ps2": true, "psp": true,
	"genesis": true, "megadrive": true, "sms": true, "gamegear": true,
	"segacd": true, "saturn": true, "dreamcast": true, "dc": true,
	"atari2600": true, "atari5200": true, "atari7800": true, "lynx": true,
	"jaguar": true, "pc-engine": true, "wonderswan": true,
	"neo-geo-pocket": true, "arcade": true, "mame": true,
	"c64": true, "amiga": true, "msx": true, "dos": true,
}

// DetectNamingScheme scans the immediate subdirectories of the save/state
// roots and counts matches against the known core-folder and platform-slug
// sets; the dominant style wins. Unknown layouts fall back to core names.
func DetectNamingScheme(roots ...string) NamingScheme {
	coreHits, slugHits := 0, 0
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			name := e.Name()
			if knownCoreFolders[name] {
				coreHits++
			}
			if knownPlatformSlugs[strings.ToLower(name)] {
				slugHits++
			}
		}
	}
	if slugHits > coreHits {
		return NamingPlatformSlugs
	}
	return NamingCoreNames
}

// serverEmulatorToSlug maps the server's normalized emulator keys back to
// platform slugs, for installations using slug-named folders.
var serverEmulatorToSlug = map[string]string{
	"snes9x":           "snes",
	"bsnes":            "snes",
	"nestopia":         "nes",
	"fceumm":           "nes",
	"mesen":            "nes",
	"mupen64plus":      "n64",
	"mupen64plus_next": "n64",
	"gambatte":         "gb",
	"sameboy":          "gb",
	"mgba":             "gba",
	"vbam":             "gba",
	"melonds":          "nds",
	"desmume":          "nds",
	"beetle_psx":       "psx",
	"beetle_psx_hw":    "psx",
	"pcsx_rearmed":     "psx",
	"swanstation":      "psx",
	"ppsspp":           "psp",
	"genesis_plus_gx":  "genesis",
	"picodrive":        "genesis",
	"blastem":          "genesis",
	"beetle_saturn":    "saturn",
	"flycast":          "dreamcast",
	"beetle_pce_fast":  "pc-engine",
	"beetle_wswan":     "wonderswan",
	"beetle_ngp":       "neo-geo-pocket",
	"beetle_vb":        "virtualboy",
	"stella":           "atari2600",
	"handy":            "lynx",
	"vice_x64sc":       "c64",
	"puae":             "amiga",
	"dosbox_pure":      "dos",
	"fbneo":            "arcade",
	"mame":             "arcade",
}

// serverEmulatorToFolder maps server emulator keys to the display folder
// names RetroArch uses (core-name scheme).
var serverEmulatorToFolder = map[string]string{
	"snes9x":           "Snes9x",
	"nestopia":         "Nestopia",
	"fceumm":           "FCEUmm",
	"mesen":            "Mesen",
	"mupen64plus_next": "Mupen64Plus-Next",
	"gambatte":         "Gambatte",
	"sameboy":          "SameBoy",
	"mgba":             "mGBA",
	"melonds":          "melonDS",
	"desmume":          "DeSmuME",
	"beetle_psx":       "Beetle PSX",
	"beetle_psx_hw":    "Beetle PSX HW",
	"pcsx_rearmed":     "PCSX-ReARMed",
	"swanstation":      "SwanStation",
	"ppsspp":           "PPSSPP",
	"genesis_plus_gx":  "Genesis Plus GX",
	"picodrive":        "PicoDrive",
	"blastem":          "BlastEm",
	"beetle_saturn":    "Beetle Saturn",
	"flycast":          "Flycast",
	"beetle_pce_fast":  "Beetle PCE Fast",
	"beetle_wswan":     "Beetle WonderSwan",
	"beetle_ngp":       "Beetle NeoPop",
	"beetle_vb":        "Beetle VB",
	"stella":           "Stella",
	"handy":            "Handy",
	"vice_x64sc":       "VICE x64sc",
	"puae":             "PUAE",
	"dosbox_pure":      "DOSBox-Pure",
	"fbneo":            "FinalBurn Neo",
	"mame":             "MAME",
}

// EmulatorFolder resolves a server emulator key to the local save folder name
// for the given naming scheme. Unknown keys fall back to generic cleanup:
// strip "_libretro", underscores to spaces, Title Case.
func EmulatorFolder(serverKey string, scheme NamingScheme) string {
	key := strings.ToLower(strings.TrimSuffix(serverKey, "_libretro"))

	if scheme == NamingPlatformSlugs {
		if slug, ok := serverEmulatorToSlug[key]; ok {
			return slug
		}
		return key
	}

	if folder, ok := serverEmulatorToFolder[key]; ok {
		return folder
	}
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// preferredSlugEmulator picks one canonical emulator key per slug-named
// folder, so uploads from slug installations report a stable emulator.
var preferredSlugEmulator = map[string]string{
	"snes": "snes9x", "nes": "nestopia", "n64": "mupen64plus_next",
	"gb": "gambatte", "gbc": "gambatte", "gba": "mgba", "nds": "melonds",
	"psx": "pcsx_rearmed", "ps": "pcsx_rearmed", "psp": "ppsspp",
	"genesis": "genesis_plus_gx", "megadrive": "genesis_plus_gx",
	"saturn": "beetle_saturn", "dreamcast": "flycast", "dc": "flycast",
	"pc-engine": "beetle_pce_fast", "wonderswan": "beetle_wswan",
	"neo-geo-pocket": "beetle_ngp", "virtualboy": "beetle_vb",
	"atari2600": "stella", "lynx": "handy", "c64": "vice_x64sc",
	"amiga": "puae", "dos": "dosbox_pure", "arcade": "fbneo", "mame": "mame",
}

// FolderEmulatorKey is the reverse direction: a local save folder name to the
// server emulator key used on uploads.
func FolderEmulatorKey(folder string) string {
	for key, name := range serverEmulatorToFolder {
		if name == folder {
			return key
		}
	}
	if key, ok := preferredSlugEmulator[strings.ToLower(folder)]; ok {
		return key
	}
	return strings.ToLower(strings.ReplaceAll(folder, " ", "_"))
}

package cache

// fallbackPlatformNames maps the well-known platform slugs to display names.
// It is always consulted; server-supplied entries override an entry only when
// they are strictly more informative than the value here.
var fallbackPlatformNames = map[string]string{
	"nes":                  "Nintendo Entertainment System",
	"famicom":              "Famicom",
	"fds":                  "Famicom Disk System",
	"snes":                 "Super Nintendo Entertainment System",
	"sfam":                 "Super Famicom",
	"n64":                  "Nintendo 64",
	"gamecube":             "Nintendo GameCube",
	"ngc":                  "Nintendo GameCube",
	"wii":                  "Nintendo Wii",
	"gb":                   "Game Boy",
	"gbc":                  "Game Boy Color",
	"gba":                  "Game Boy Advance",
	"nds":                  "Nintendo DS",
	"3ds":                  "Nintendo 3DS",
	"virtualboy":           "Virtual Boy",
	"ps":                   "PlayStation",
	"psx":                  "PlayStation",
	"ps2":                  "PlayStation 2",
	"ps3":                  "PlayStation 3",
	"psp":                  "PlayStation Portable",
	"psvita":               "PlayStation Vita",
	"genesis-slash-megadrive": "Sega Genesis/Mega Drive",
	"genesis":              "Sega Genesis",
	"megadrive":            "Sega Mega Drive",
	"sms":                  "Sega Master System",
	"gamegear":             "Sega Game Gear",
	"sega32":               "Sega 32X",
	"segacd":               "Sega CD",
	"saturn":               "Sega Saturn",
	"dc":                   "Sega Dreamcast",
	"dreamcast":            "Sega Dreamcast",
	"atari2600":            "Atari 2600",
	"atari5200":            "Atari 5200",
	"atari7800":            "Atari 7800",
	"lynx":                 "Atari Lynx",
	"jaguar":               "Atari Jaguar",
	"turbografx16--1":      "TurboGrafx-16",
	"turbografx-16-slash-pc-engine-cd": "TurboGrafx-CD",
	"pc-engine":            "PC Engine",
	"wonderswan":           "WonderSwan",
	"wonderswan-color":     "WonderSwan Color",
	"neo-geo-pocket":       "Neo Geo Pocket",
	"neo-geo-pocket-color": "Neo Geo Pocket Color",
	"neogeoaes":            "Neo Geo AES",
	"neogeomvs":            "Neo Geo MVS",
	"arcade":               "Arcade",
	"mame":                 "Arcade (MAME)",
	"c64":                  "Commodore 64",
	"amiga":                "Commodore Amiga",
	"msx":                  "MSX",
	"dos":                  "DOS",
	"win":                  "Windows",
	"3do":                  "3DO Interactive Multiplayer",
	"colecovision":         "ColecoVision",
	"intellivision":        "Intellivision",
	"vectrex":              "Vectrex",
	"switch":               "Nintendo Switch",
	"wiiu":                 "Nintendo Wii U",
}

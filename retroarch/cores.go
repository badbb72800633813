package retroarch

import "runtime"

// CoreMap maps ROM extensions to default libretro cores. Shared extensions
// (.cue, .iso, .bin) default to the most common system.
var CoreMap = map[string]string{
	// Nintendo
	".nes": "nestopia_libretro",
	".fds": "nestopia_libretro",
	".sfc": "snes9x_libretro",
	".smc": "snes9x_libretro",
	".z64": "mupen64plus_next_libretro",
	".n64": "mupen64plus_next_libretro",
	".v64": "mupen64plus_next_libretro",
	".gb":  "gambatte_libretro",
	".gbc": "gambatte_libretro",
	".gba": "mgba_libretro",
	".nds": "melonds_libretro",
	".vb":  "beetle_vb_libretro",

	// Sega
	".md":  "genesis_plus_gx_libretro",
	".smd": "genesis_plus_gx_libretro",
	".gen": "genesis_plus_gx_libretro",
	".sms": "genesis_plus_gx_libretro",
	".gg":  "genesis_plus_gx_libretro",
	".32x": "picodrive_libretro",
	".cue": "genesis_plus_gx_libretro",

	// Sony
	".iso": "pcsx_rearmed_libretro",
	".bin": "pcsx_rearmed_libretro",
	".chd": "pcsx_rearmed_libretro",
	".cso": "ppsspp_libretro",

	// Atari
	".a26": "stella_libretro",
	".a52": "a5200_libretro",
	".a78": "prosystem_libretro",
	".lnx": "handy_libretro",
	".jag": "virtualjaguar_libretro",

	// Computers
	".d64": "vice_x64sc_libretro",
	".prg": "vice_x64sc_libretro",
	".t64": "vice_x64sc_libretro",
	".adf": "puae_libretro",
	".uae": "puae_libretro",

	// Others
	".pce": "mednafen_pce_fast_libretro",
	".sgx": "mednafen_pce_fast_libretro",
	".ws":  "mednafen_wswan_libretro",
	".wsc": "mednafen_wswan_libretro",
	".ngp": "mednafen_ngp_libretro",
	".ngc": "mednafen_ngp_libretro",
}

// CoreExt returns the dynamic library extension for the current OS.
func CoreExt() string {
	switch runtime.GOOS {
	case "windows":
		return ".dll"
	case "darwin":
		return ".dylib"
	default:
		return ".so"
	}
}

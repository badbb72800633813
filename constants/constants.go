package constants

import "time"

// Path Components
const (
	AppDir      = ".romm-autosync"
	CacheDir    = "cache"
	ConfigDir   = "config"
	SettingsINI = "settings.ini"
	LockFile    = "autosync.lock"

	GamesCacheFile    = "games_data.json"
	PlatformCacheFile = "platform_mapping.json"
	FilenameCacheFile = "filename_mapping.json"
)

// Directory Categories
const (
	DirSaves  = "saves"
	DirStates = "states"
	DirSystem = "system"
)

// Save and state extensions recognized on disk. ".state.auto" is a compound
// extension and must be matched against the full lowercased file name.
var (
	SaveExtensions = []string{".srm", ".sav"}
	StateExtensions = []string{".state", ".state1", ".state2", ".state3", ".state4",
		".state5", ".state6", ".state7", ".state8", ".state9"}
)

const StateAutoSuffix = ".state.auto"

// State slots as the server reports them.
const (
	SlotAuto      = "auto"
	SlotQuicksave = "quicksave"
)

// RetroArch network command interface.
const (
	UDPHost        = "127.0.0.1"
	UDPPort        = 55355
	UDPTimeout     = 2 * time.Second
	CmdShowMessage = "SHOW_MSG"
	CmdGetStatus   = "GET_STATUS"
)

// Catalog fetch tuning.
const (
	CacheExpiry       = 24 * time.Hour
	CountCacheTTL     = 30 * time.Second
	FetchChunkSize    = 500
	FetchBatchPages   = 2
	FetchMaxParallel  = 4
	FetchAppendBuffer = 200
)

// HTTP timeouts per request class.
const (
	TimeoutJSON   = 10 * time.Second
	TimeoutStream = 30 * time.Second
	TimeoutUpload = 60 * time.Second
)

// Token refresh is attempted when less than this much lifetime remains.
const TokenRefreshWindow = 300 * time.Second

// Auto-sync engine timing.
const (
	StartupGrace      = 5 * time.Second
	UploadDebounce    = 3 * time.Second
	RedirtyWindow     = 10 * time.Second
	PostDownloadMute  = 30 * time.Second
	RecentSyncWindow  = 30 * time.Second
	WorkerTick        = 1 * time.Second
	MonitorTick       = 1 * time.Second
	NoContentRetryCap = 3
	StopJoinTimeout   = 5 * time.Second
)

// Server keeps at most this many revisions per state slot when autocleanup is
// requested on upload.
const StateAutocleanupLimit = 5

// Smart conflict policy windows (see types.OverwritePolicy).
const (
	SmartServerNewerBy = 10 * time.Second
	SmartLocalNewerBy  = 60 * time.Second
)

// Collection loop defaults.
const DefaultSyncInterval = 120 * time.Second

// Multipart field names the server expects.
const (
	FieldSaveFile       = "saveFile"
	FieldStateFile      = "stateFile"
	FieldScreenshotFile = "screenshotFile"
)

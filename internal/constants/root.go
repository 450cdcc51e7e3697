package constants

import "time"

const (
	AppName            = "habitrefresh"
	DefaultKeyringUser = "habit-source-connection"
	DefaultConfigDir   = "~/.config/habitrefresh"
	DefaultStateFile   = "state.db"
	DefaultConfigFile  = "config.toml"
	Version            = "v0.3.0"

	// EnvPrefix prefixes every environment override (e.g. HABITREFRESH_DEBUG)
	EnvPrefix = "HABITREFRESH_"

	// Persisted key-value slots shared with the display layer
	KeyLastProcessedDate = "lastProcessedDate"
	KeySnapshot          = "widgetSnapshotJson"
	KeySnapshotLegacy    = "habits_widget_data"

	// Legacy per-instance snapshot keys: HabitWidgetPrefs_<n>.widget_data, n in [0, LegacyInstanceSlots)
	LegacyInstanceKeyPattern = "HabitWidgetPrefs_%d.widget_data"
	LegacyInstanceSlots      = 10

	// Habit database
	DefaultHabitDBName = "tiny_wins.db"

	// Host application fallback
	HostRefreshAction      = "DAILY_REFRESH_WIDGET_DATA"
	HostLockfileName       = "habit-host.lock"
	HostSecretHeader       = "X-Habit-Host-Secret"
	HostAppIdentifier      = "com.example.tiny_wins"
	HostRequestTimeout     = 2 * time.Second
	FallbackGracePeriod    = 3 * time.Second
	MaxFallbackGracePeriod = 30 * time.Second
	DefaultHostExecutable  = "tiny-wins"
	HostProcessNamePrefix  = "tiny-wins"
	HostMidnightRefreshArg = "--midnight-refresh"

	// Notification broadcast
	DefaultRenderTopic  = "habits/widgets/render"
	DefaultMQTTClientID = "habitrefresh"
	PublishTimeout      = 5 * time.Second
	RenderStateReady    = "ready"
	RenderStateEmpty    = "empty"

	// Scheduling
	WakeModeAuto       = "auto"
	WakeModeWallClock  = "wallclock"
	WakeModeTimer      = "timer"
	WallClockSleepCap  = 60 * time.Second
	DefaultRetrySpec   = "@every 15m"
	WatchDebounce      = 250 * time.Millisecond
	DefaultControlAddr = "127.0.0.1:7878"

	// Control API
	ControlSecretHeader = "X-Habitrefresh-Secret"
)

package config

import "time"

const (
	AppName    = "clipkeep"
	ConfigName = "clipkeep"
	EnvPrefix  = "CLIPKEEP"
	DotEnvFile = ".env"

	DBFileName    = "clipkeep.db"
	ImagesDirName = "images"

	DefaultDataDir = "~/.local/share/clipkeep"

	DefaultPollInterval      = 500 * time.Millisecond
	MinPollInterval          = 50 * time.Millisecond
	DefaultRetentionInterval = time.Hour
	DefaultOrphanGrace       = 10 * time.Minute

	ClipboardAuto    = "auto"
	ClipboardNative  = "native"
	ClipboardCommand = "command"
)

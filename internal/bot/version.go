package bot

// Set at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

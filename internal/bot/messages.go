package bot

// =============================================================================
// General messages
// =============================================================================

const (
	MsgUnexpectedErr = `Unexpected error: %s`
	MsgStartPrompt   = "Send a photo of a fishing spot to get a recommendation"
	MsgVersionInfo   = "Version: %s\nBuilt: %s"

	MsgWelcome = `🎣 *Welcome to FishCast!*

Send me a photo of a fishing spot and I'll tell you how, when and with what to fish it.

Commands:
/provider - pick a default analysis provider
/analyze - analyze the staged photo
/status - show what's staged
/usage - show API usage
/forecast - fishing forecast for a location
/catch - log a catch
/catches - show your catch log
/reset - discard the staged photo`
)

// =============================================================================
// Photo intake
// =============================================================================

const (
	MsgPhotoStaged = `📷 Photo staged (%s).

Pick an analysis provider below, or send another photo to replace it.`
	MsgAlbumFirstPhotoUsed = "Albums are analyzed one photo at a time. I staged the first photo and ignored the other %s."
	MsgPhotoDownloadErr    = "Could not download the photo from Telegram. Please send it again."
)

// =============================================================================
// Analysis messages
// =============================================================================

const (
	MsgAnalyzing      = "🔍 Analyzing your spot with %s..."
	MsgAnalysisBusy   = "An analysis is already running. Wait for it to finish before starting another."
	MsgNoStagedImage  = "No photo staged yet. Send a photo of a fishing spot first."
	MsgAnalysisResult = "🎣 *Fishing recommendation* · %s\n\n%s"
	MsgAnalysisReset  = "Cleared the staged photo. Send a new one whenever you're ready."
)

// =============================================================================
// Provider selection messages
// =============================================================================

const (
	MsgUnknownProvider = "Unknown provider %q. Use smart, gemini or hf."
	MsgDefaultProvider = "Default provider is now *%s*. New photos are analyzed with it automatically."
	MsgProviderCleared = "Default provider cleared. You'll pick one for each photo."
	MsgCurrentProvider = "Current default provider: *%s*.\n\nChange it with `/provider smart|gemini|hf` or clear it with `/provider off`."
	MsgNoProviderSet   = "No default provider set, so you pick one for each photo.\n\nSet one with `/provider smart|gemini|hf`."
)

// =============================================================================
// Status and usage messages
// =============================================================================

const (
	MsgStatusIdle   = "Nothing staged. Send a photo of a fishing spot to begin."
	MsgStatusStaged = "📷 Staged: %s (%s). Waiting for a provider choice."
	MsgStatusBusy   = "🔍 Analysis in progress. Hang tight."
	MsgStatusResult = "Last analysis by %s is ready. Send a new photo for another."
	MsgStatusError  = "Last analysis failed: %s"

	MsgUsageReport = `📊 *FishCast usage*
Today: %d/%d used, %d left (%.0f%%)
This minute: %d/%d used, %d left`
	MsgUsageUnknown = "Usage numbers aren't available right now. Try again in a moment."
)

// =============================================================================
// Catch log, forecast and health messages
// =============================================================================

const (
	MsgCatchUsage    = "Usage: `/catch species | bait | location | notes`\nNotes are optional.\nExample: `/catch Pike | spinner | Lake Saimaa`"
	MsgCatchLogged   = "✅ %s"
	MsgCatchFailed   = "Could not save the catch: %s"
	MsgCatchesErr    = "Could not fetch the catch log: %s"
	MsgNoCatches     = "No catches logged yet. Use /catch after you land one."
	MsgCatchesHeader = "🐟 *Catch log* (%s)\n\n"
	MsgCatchItem     = "• *%s* with %s at %s (%s %s)\n"
	MsgCatchNotes    = "  _%s_\n"

	MsgForecastUsage  = "Usage: `/forecast <location>`\nExample: `/forecast Lake Saimaa`"
	MsgForecastErr    = "Could not fetch a forecast: %s"
	MsgForecastReport = "🌤 *Fishing forecast · %s*\n\n%s\n\n*Conditions:* %s\n*Best times:* %s"

	MsgHealthOk       = "✅ %s is up."
	MsgHealthDegraded = "⚠️ %s reports status: %s"
	MsgHealthErr      = "❌ Analysis service is unreachable: %s"
)

// =============================================================================
// Admin command messages
// =============================================================================

const (
	MsgAdminUsage           = "Usage:\n`/admin users add <user_id>`\n`/admin users remove <user_id>`\n`/admin users list`\n`/admin stats`"
	MsgAdminUserAddUsage    = "Usage: `/admin users add <user_id>`"
	MsgAdminUserRemoveUsage = "Usage: `/admin users remove <user_id>`"
	MsgAdminUserInvalidID   = "Invalid user ID. Give a number."
	MsgAdminUserAdded       = "✅ User `%d` added."
	MsgAdminUserRemoved     = "🗑 User `%d` removed."
	MsgAdminNoUsers         = "No allowed users."
	MsgAdminAllowedUsers    = "*Allowed users:*\n"
	MsgAdminStats           = "📈 *Analysis journal*\nTotal: %d\nSucceeded: %d\nFailed: %d"
)

// =============================================================================
// Provider button labels
// =============================================================================

const (
	BtnProviderSmart  = "🤖 Smart auto"
	BtnProviderGemini = "✨ Gemini"
	BtnProviderHF     = "🤗 Hugging Face"
)

package sys

// --- Message Constants ---

const (
	// --- Infrastructure & Lifecycle ---
	MsgConfigFailedToLoad  = "Failed to load config: %v"
	MsgConfigMissingToken  = "DISCORD_TOKEN is not set in .env file"
	MsgConfigInvalidValue  = "Ignoring invalid %s=%q, using default %v"
	MsgDatabaseInitSuccess = "Database initialized successfully"
	MsgDatabaseTableError  = "Failed to create table: %w"
	MsgDatabasePragmaError = "Failed to set pragma %s: %w"
	MsgDaemonStarting      = "Starting..."
	MsgBotStarting         = "Starting %s..."
	MsgBotReady            = "%s is ready! (ID: %s) (PID: %d) (Took: %dms)"
	MsgBotShutdown         = "Shutting down %s..."
	MsgBotKillingOld       = "Killing running instance... (PID: %d)"
	MsgBotOldTerminated    = "Old instance terminated."
	MsgBotRegisterFail     = "Command registration failed: %v"
	MsgGenericError        = "%v"

	// --- Command Loader & Registry ---
	MsgLoaderSyncCommands   = "Syncing %s commands..."
	MsgLoaderUpToDate       = "[LOADER] Commands are up to date. (Hash: %s)"
	MsgLoaderDevStarting    = "[DEV] Registering commands to guild: %s"
	MsgLoaderDevRegistered  = "[DEV] Registered: %s"
	MsgLoaderDevFail        = "[DEV] Registration failed: %v"
	MsgLoaderProdStarting   = "[PROD] Registering commands globally..."
	MsgLoaderProdRegistered = "[PROD] Registered: %s"
	MsgLoaderProdFail       = "[PROD] Global registration failed: %w"
	MsgLoaderPanicRecovered = "Panic recovered in handler: %v"

	// --- Voice System ---
	MsgVoiceJoining          = "Joining channel %s in guild %s"
	MsgVoiceJoinFail         = "Failed to connect to voice in guild %s: %v"
	MsgVoiceQueued           = "Queued %s in guild %s (position %d)"
	MsgVoiceBacklogQueued    = "Queued %d playlist entries in guild %s"
	MsgVoicePlaying          = "Playing track: %s · %s (%s)"
	MsgVoicePlayFail         = "Engine refused %s in guild %s: %v"
	MsgVoiceEngineError      = "Playback error on %s in guild %s: %v"
	MsgVoiceStartTimeout     = "Track %s never started in guild %s, skipping"
	MsgVoiceFinished         = "Playback finished: %s"
	MsgVoiceDraining         = "Queue empty in guild %s, disconnecting in %v unless new tracks arrive"
	MsgVoiceIdleDisconnect   = "Idle timeout reached in guild %s, disconnecting"
	MsgVoiceDisconnectFail   = "Failed to disconnect in guild %s: %v"
	MsgVoiceStopped          = "Stopped playback in guild %s"
	MsgVoiceDeparted         = "Bot disconnected by external event in guild %s"
	MsgVoiceBackpressure     = "Queue in guild %s holds %d tracks, pausing resolution"
	MsgVoiceResolutionFail   = "Skipping %s in guild %s: %v"
	MsgVoiceMalformedEntry   = "Dropping malformed metadata for %s in guild %s"
	MsgVoicePlaylistDropped  = "Dropped %d malformed entries from playlist %s in guild %s"
	MsgVoiceInterruptStart   = "Interrupting %s in guild %s at %v"
	MsgVoiceInterruptResume  = "Resuming %s in guild %s from %v"
	MsgVoiceInterruptFail    = "Interrupt clip failed in guild %s: %v"
	MsgVoiceLoopPanic        = "Recovered from panic in %s loop for guild %s: %v"
	MsgVoiceStatusFail       = "Failed to update status for %s: %v"
	MsgVoiceHistoryFail      = "Failed to record history for guild %s: %v"
	MsgVoiceTranscoderFail   = "Transcoder %s failed: %v"
	MsgVoiceShutdown         = "Shutting down voice manager..."
	MsgPresenceRotated       = "Presence set to %q (next in %v)"
	MsgPresenceUpdateFail    = "Failed to update presence: %v"
	MsgResolverSearchFail    = "Search failed for %q: %v"
	MsgResolverExtractFail   = "Extract failed for %s: %v"
	MsgResolverNoResults     = "No results for %q"
	MsgReaperSwept           = "Swept %d cache entries and %d idle sessions"
	MsgReaperEvicted         = "Evicted idle session in guild %s (idle %v)"
	MsgReaperTickFailed      = "Sweep tick failed: %v (restarting)"
	MsgReaperStopped         = "Reaper stopped"
	MsgDatabaseHistoryFailed = "Failed to query history: %v"

	// --- User-facing replies ---
	MsgVoiceAddedToQueue   = "✅ Added to queue (position %d): [%s](%s)"
	MsgVoiceAddedPlaylist  = "✅ Added **%d** tracks from the playlist to the queue."
	MsgVoiceDisconnected   = "Disconnected!"
	MsgVoiceSkipped        = "⏭️ Skipped."
	MsgVoiceCleared        = "🧹 Queue cleared."
	MsgVoicePaused         = "Playback paused."
	MsgVoiceResumed        = "Playback resumed."
	MsgVoiceInterrupted    = "📢 Override clip played, resuming playback."
	MsgVoiceQueueHeader    = "**Queue:**\n"
	MsgVoiceQueueEmpty     = "_Empty_"
	MsgVoiceQueueNow       = "▶️ **Now Playing:**\n[%s](%s) | %s\n\n"
	MsgVoiceQueueItem      = "`%d.` [%s](%s)\n"
	MsgVoiceQueueMore      = "\n*...and %d more*"
	MsgVoiceQueuePending   = "\n*%d more resolving...*"
	MsgVoiceHistoryHeader  = "**Recently played:**\n"
	MsgVoiceHistoryItem    = "`%d.` [%s](%s) · <t:%d:R>\n"
	MsgVoiceHistoryEmpty   = "Nothing has been played here yet."
	MsgVoicePlayFailed     = "Failed: %v"
	MsgVoiceInterruptUsage = "No override clip configured. Pass one with the `clip` option."

	ErrVoiceNotInChannel    = "You need to be in a voice channel!"
	ErrVoiceNoSession       = "Not in a voice channel!"
	ErrVoiceNoResults       = "No results found!"
	ErrVoiceNothingPlaying  = "Nothing is playing to pause!"
	ErrVoiceNothingPaused   = "Nothing is paused to resume!"
	ErrVoiceNothingToSkip   = "Nothing is playing to skip!"
	ErrVoiceInterruptBusy   = "An override clip is already playing."
	ErrVoiceGuildOnly       = "This command can only be used in a server."
	ErrVoiceHistoryFetchErr = "Failed to retrieve playback history."
	ErrVoiceNothingToCut    = "Nothing is playing to interrupt!"
	ErrVoiceNotReady        = "Voice system is still starting, try again in a moment."
)

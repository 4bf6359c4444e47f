package proc

import "errors"

var (
	ErrResolutionFailure   = errors.New("resolution failure")
	ErrNoResultsFound      = errors.New("no results found")
	ErrNotInVoiceChannel   = errors.New("not in a voice channel")
	ErrNoActiveSession     = errors.New("no active voice session")
	ErrNothingPlaying      = errors.New("nothing is playing")
	ErrNothingPaused       = errors.New("nothing is paused")
	ErrPlaybackEngine      = errors.New("playback engine error")
	ErrInterruptInProgress = errors.New("interrupt already in progress")
	ErrNoInterruptClip     = errors.New("no interrupt clip configured")
	ErrPoolClosed          = errors.New("worker pool closed")
	errStartTimeout        = errors.New("track never started")
)

package application

import "github.com/JonMunkholm/dialcodes/internal/core"

// DoneMsg reports a finished action in the status line.
type DoneMsg string

// ErrMsg reports a failed action in the status line.
type ErrMsg struct{ Err error }

// reviewStartedMsg switches the model to the review screen.
type reviewStartedMsg struct {
	review *core.Review
	watch  *renderWatch
}

// renderedMsg is sent when a review render completes. The surface itself is
// re-read from the review, so a late message never shows a stale image.
type renderedMsg struct{ watch *renderWatch }

// modeMsg changes the mode used for reviews started afterwards.
type modeMsg core.PayloadMode

package level

import (
	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/proof"
	"github.com/ecoloop/ecoloop/internal/session"
)

// Every message carries the session it belongs to. Messages for another
// session, or arriving after the screen closed, are dropped.

// playbackTickMsg advances the simulated video.
type playbackTickMsg struct {
	SessionID string
}

// verdictDueMsg is sent when the segment quiz verdict has been shown long
// enough.
type verdictDueMsg struct {
	SessionID string
}

// restartSettledMsg clears the restart flag after a rewind.
type restartSettledMsg struct {
	SessionID string
}

// reportDoneMsg carries the outcome of a progress report.
type reportDoneMsg struct {
	SessionID string
	Kind      session.ReportKind
	Result    api.ProgressResult
	Err       error
}

// proofDoneMsg carries the outcome of a proof upload.
type proofDoneMsg struct {
	SessionID    string
	Verification api.Verification
	File         proof.File
	Err          error
}

// proofResult bundles what proof.SubmitLevel returns.
type proofResult struct {
	verification api.Verification
	file         proof.File
}

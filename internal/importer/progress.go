package importer

// Progress checkpoints for the UI progress bar. The exact values are a
// presentation detail; what matters is that progress never regresses while
// an import is pending.
const (
	progressStart      = 5
	progressTriggered  = 10
	progressSnapshotID = 15
	progressResumed    = 20
	progressPollFloor  = 25
	progressPollCeil   = 90
	progressSaving     = 95
	progressDone       = 100
)

// pollProgress maps the attempt counter linearly onto the polling band.
func pollProgress(attempt, maxAttempts int) int {
	if maxAttempts <= 0 {
		return progressPollFloor
	}
	if attempt > maxAttempts {
		attempt = maxAttempts
	}
	return progressPollFloor + attempt*(progressPollCeil-progressPollFloor)/maxAttempts
}

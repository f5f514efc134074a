package pipeline

import "time"

// Recorder receives run measurements. metrics.Recorder implements it.
type Recorder interface {
	RunFinished(succeeded bool, state string, elapsed time.Duration, reduction float64)
	StylesheetsProcessed(downloaded, skipped int)
	BytesPurged(original, purged int64)
	WorkspaceReleased(err error)
}

// nopRecorder discards every measurement.
type nopRecorder struct{}

func (nopRecorder) RunFinished(bool, string, time.Duration, float64) {}
func (nopRecorder) StylesheetsProcessed(int, int)                    {}
func (nopRecorder) BytesPurged(int64, int64)                         {}
func (nopRecorder) WorkspaceReleased(error)                          {}

package ports

import "fmt"

// Stage error taxonomy. The driver matches these with errors.As to decide
// whether a failure is terminal for the job, retryable with an alternate
// provider, or scoped to a single moment.

// AcquisitionError means the source URL could not be resolved to a local
// file (unreachable, restricted, downloader exited non-zero). Terminal; the
// driver never retries acquisition.
type AcquisitionError struct {
	URL string
	Err error
}

func (e *AcquisitionError) Error() string { return fmt.Sprintf("acquisition failed for %s: %v", e.URL, e.Err) }
func (e *AcquisitionError) Unwrap() error { return e.Err }

// TranscriptionError means the selected provider failed. Terminal unless the
// job explicitly configured fallback to the alternate provider.
type TranscriptionError struct {
	Provider string
	Err      error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed (%s): %v", e.Provider, e.Err)
}
func (e *TranscriptionError) Unwrap() error { return e.Err }

// SelectionError means the model response stayed unparseable after retries,
// or validation left zero usable moments. Terminal.
type SelectionError struct {
	Reason string
	Err    error
}

func (e *SelectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("moment selection failed: %s: %v", e.Reason, e.Err)
	}
	return "moment selection failed: " + e.Reason
}
func (e *SelectionError) Unwrap() error { return e.Err }

// RenderError is scoped to one moment. The renderer records it on the clip
// list and keeps going with the remaining moments.
type RenderError struct {
	Title string
	Err   error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render failed for %q: %v", e.Title, e.Err) }
func (e *RenderError) Unwrap() error { return e.Err }

// CancelledError marks a user-initiated stop, distinguishable from failure.
type CancelledError struct{}

func (e *CancelledError) Error() string { return "Manually stopped" }

package capture

import "fmt"

// Setup stages reported by SetupError.
const (
	StagePersona = "persona"
	StageNetwork = "network"
)

// SetupError is returned by New when the browser session could not be
// prepared for capture. Harvesting is impossible after a SetupError.
type SetupError struct {
	Stage string
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("capture: setup failed at %s stage: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

package analysis

import "fmt"

// Pipeline stage names, used in logs and StageError.
const (
	StageLoad        = "load"
	StageIndex       = "urban-index"
	StageJoin        = "join"
	StageExploration = "exploration"
	StagePerception  = "perception"
	StageDissection  = "dissection"
	StageResiduals   = "residuals"
	StageUncertainty = "uncertainty"
)

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

package etl

import "fmt"

// Stage is the pipeline state a run is in. A run moves through the stages in
// order and ends in StageSuccess or StageFailed; there is no retry loop
// inside a run.
type Stage string

const (
	StageIdle                 Stage = "idle"
	StageConnecting           Stage = "connecting"
	StageDeterminingWatermark Stage = "determining_watermark"
	StageExtracting           Stage = "extracting"
	StageTransforming         Stage = "transforming"
	StageLoading              Stage = "loading"
	StageComputingMetrics     Stage = "computing_metrics"
	StageSuccess              Stage = "success"
	StageFailed               Stage = "failed"
)

// ErrorKind classifies a stage-fatal pipeline failure.
type ErrorKind string

const (
	// KindConnection: the source did not answer the connection probe.
	KindConnection ErrorKind = "connection"
	// KindExtraction: an API call failed mid-fetch; nothing gets loaded.
	KindExtraction ErrorKind = "extraction"
	// KindNormalization: a record cannot be mapped to canonical form; the
	// whole run's transformed data is discarded.
	KindNormalization ErrorKind = "normalization"
	// KindLoad: the loading stage failed beyond per-entity recovery.
	KindLoad ErrorKind = "load"
	// KindMetrics: an aggregate query or computation failed.
	KindMetrics ErrorKind = "metrics"
)

// PipelineError is a stage-fatal failure. It unwinds to the run driver,
// which stamps the run failed and persists the log; it never propagates
// across sources.
type PipelineError struct {
	Stage Stage
	Kind  ErrorKind
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s error in %s stage: %v", e.Kind, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

package metrics

/*
Labels and so on for metrics used in imagecached.
*/

const (
	LabelMethod  = "method"
	LabelSuccess = "success"

	// Labels for cache outcome metrics
	LabelOutcome = "outcome"
	LabelRoute   = "route"
)

package middleware

const (
	// MetrAttrOutcome is the metric attribute for the call outcome
	MetrAttrOutcome     = "outcome"
	MetrAttrMethod      = "method"
	MetrAttrStatus      = "status"
	MetrAttrPathPattern = "path_pattern"
	MetrAttrPath        = "path"
	MetrAttrHost        = "host"
)

// ErrFormatter maps an error to a low-cardinality outcome label
type ErrFormatter func(error) string

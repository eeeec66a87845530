package som

import "errors"

var (
	// InvalidConfigurationErr signals a bad parameter e.g. grid size or epoch count.
	InvalidConfigurationErr = errors.New("invalid configuration")
	// DimensionalityErr signals PCA initialization on under-ranked data.
	DimensionalityErr = errors.New("insufficient dimensionality")
	// InsufficientDataErr signals a request for more clusters than available units.
	InsufficientDataErr = errors.New("insufficient data")
	// MalformedInputErr signals non-numeric, missing or inconsistent input values.
	MalformedInputErr = errors.New("malformed input")
)

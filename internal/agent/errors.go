// Package agent holds the errors shared by the pipeline, compiler and rollup.
package agent

import (
	"fmt"
	"strings"
)

// ConfigurationError reports settings a run needs but does not have
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) == 0 {
		return "missing configuration"
	}
	return fmt.Sprintf("missing configuration: %s", strings.Join(e.Missing, ", "))
}

package admission

import (
	"fmt"

	"github.com/uber/workloadcompactor/pkg/graph"
)

// validationError carries the status code an invalid request should
// surface, without mutating the graph.
type validationError struct {
	status StatusCode
	msg    string
}

func (e *validationError) Error() string { return e.msg }

func errMissing(field string) error {
	return &validationError{status: StatusErrMissingArgument, msg: fmt.Sprintf("missing %s", field)}
}

func errInvalid(format string, args ...interface{}) error {
	return &validationError{status: StatusErrInvalidArgument, msg: fmt.Sprintf(format, args...)}
}

func errNameInUse(status StatusCode, kind, name string) error {
	return &validationError{status: status, msg: fmt.Sprintf("%s %q already in use", kind, name)}
}

func errNonexistent(status StatusCode, kind, name string) error {
	return &validationError{status: status, msg: fmt.Sprintf("%s %q does not exist", kind, name)}
}

// statusOf extracts the StatusCode carried by a validationError, or
// StatusErrInvalidArgument for any other error.
func statusOf(err error) StatusCode {
	if ve, ok := err.(*validationError); ok {
		return ve.status
	}
	return StatusErrInvalidArgument
}

// validateBatch checks every uniqueness and well-formedness rule of §4.6
// step 1 before any graph mutation happens.
func validateBatch(g *graph.Graph, batch []ClientInfo) error {
	seenClientNames := make(map[string]bool, len(batch))
	seenFlowNames := make(map[string]bool)

	for _, c := range batch {
		if c.Name == "" {
			return errMissing("client name")
		}
		if seenClientNames[c.Name] {
			return errNameInUse(StatusErrClientNameInUse, "client", c.Name)
		}
		seenClientNames[c.Name] = true
		if _, ok := g.Client(c.Name); ok {
			return errNameInUse(StatusErrClientNameInUse, "client", c.Name)
		}
		if c.SLOSeconds <= 0 {
			return errInvalid("client %q: SLO must be positive", c.Name)
		}
		if c.SLOPercentile != 0 && (c.SLOPercentile <= 0 || c.SLOPercentile >= 100) {
			return errInvalid("client %q: SLO percentile must be in (0,100)", c.Name)
		}
		if len(c.Flows) == 0 {
			return errMissing(fmt.Sprintf("flows for client %q", c.Name))
		}

		for _, f := range c.Flows {
			if f.Name == "" {
				return errMissing("flow name")
			}
			if seenFlowNames[f.Name] {
				return errNameInUse(StatusErrFlowNameInUse, "flow", f.Name)
			}
			seenFlowNames[f.Name] = true
			if _, ok := g.Flow(f.Name); ok {
				return errNameInUse(StatusErrFlowNameInUse, "flow", f.Name)
			}
			if len(f.QueueNames) == 0 {
				return errMissing(fmt.Sprintf("queue path for flow %q", f.Name))
			}
			for _, qn := range f.QueueNames {
				if _, ok := g.Queue(qn); !ok {
					return errNonexistent(StatusErrQueueNameNonexistent, "queue", qn)
				}
			}
			if f.Arrival == nil {
				return errMissing(fmt.Sprintf("arrival curve for flow %q", f.Name))
			}
		}
	}
	return nil
}

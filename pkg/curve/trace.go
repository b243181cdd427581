package curve

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/uber/workloadcompactor/pkg/estimator"
)

// TraceEntry is one parsed line of a trace file, per §6: arrival
// timestamp in nanoseconds, request size in bytes, and direction.
type TraceEntry struct {
	ArrivalNanos int64
	SizeBytes    float64
	IsRead       bool
}

const (
	diskRead  = "DiskRead"
	diskWrite = "DiskWrite"
)

// TraceReader streams a trace CSV one line at a time rather than loading
// it fully into memory, matching how a large production trace is read
// only once to build its arrival curve.
type TraceReader struct {
	scanner *bufio.Scanner
}

// NewTraceReader wraps r as a TraceReader.
func NewTraceReader(r io.Reader) *TraceReader {
	return &TraceReader{scanner: bufio.NewScanner(r)}
}

// Next returns the next trace entry, or io.EOF when the trace is
// exhausted.
func (t *TraceReader) Next() (TraceEntry, error) {
	for t.scanner.Scan() {
		line := strings.TrimSpace(t.scanner.Text())
		if line == "" {
			continue
		}
		return parseTraceLine(line)
	}
	if err := t.scanner.Err(); err != nil {
		return TraceEntry{}, errors.Wrap(err, "read trace line")
	}
	return TraceEntry{}, io.EOF
}

func parseTraceLine(line string) (TraceEntry, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return TraceEntry{}, errors.Errorf("malformed trace line %q: expected 3 fields, got %d", line, len(fields))
	}

	arrivalNanos, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return TraceEntry{}, errors.Wrapf(err, "parse arrival time in %q", line)
	}

	sizeBytes, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 16, 64)
	if err != nil {
		return TraceEntry{}, errors.Wrapf(err, "parse hex size in %q", line)
	}

	var isRead bool
	switch strings.TrimSpace(fields[2]) {
	case diskRead:
		isRead = true
	case diskWrite:
		isRead = false
	default:
		return TraceEntry{}, errors.Errorf("unknown request kind %q in %q", fields[2], line)
	}

	return TraceEntry{ArrivalNanos: arrivalNanos, SizeBytes: float64(sizeBytes), IsRead: isRead}, nil
}

// BuildFromTrace reads the entries in r once, converts each through est
// into a Sample held in memory, and builds the pruned arrival curve from
// those samples (Build rescans them once per swept rate).
func BuildFromTrace(r io.Reader, est estimator.Estimator, maxBreakpoints int) (Curve, error) {
	tr := NewTraceReader(r)
	var samples []Sample
	for {
		entry, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Curve{}, err
		}

		work, err := est.Work(entry.SizeBytes, entry.IsRead)
		if err != nil {
			return Curve{}, errors.Wrap(err, "estimate work for trace entry")
		}
		samples = append(samples, Sample{ArrivalNanos: entry.ArrivalNanos, Work: work})
	}

	return Build(samples, maxBreakpoints), nil
}

package curve

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// csvPrecision matches §6's "15-digit precision" requirement for the
// arrival-curve cache format.
const csvPrecision = 15

// WriteCSV persists c to w in the cache format of §6: one "<x>,<y>,<slope>"
// line per breakpoint, excluding the leading (0,0,+Inf) sentinel.
func WriteCSV(w io.Writer, c Curve) error {
	cw := csv.NewWriter(w)
	for _, bp := range c.Breakpoints[1:] {
		record := []string{
			strconv.FormatFloat(bp.X, 'g', csvPrecision, 64),
			strconv.FormatFloat(bp.Y, 'g', csvPrecision, 64),
			strconv.FormatFloat(bp.Slope, 'g', csvPrecision, 64),
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "write arrival curve breakpoint")
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV loads an arrival curve previously written by WriteCSV, prepending
// the synthetic (0,0,+Inf) sentinel.
func ReadCSV(r io.Reader) (Curve, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3

	c := NewCurve()
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Curve{}, errors.Wrap(err, "read arrival curve breakpoint")
		}

		x, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return Curve{}, errors.Wrap(err, "parse breakpoint x")
		}
		y, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return Curve{}, errors.Wrap(err, "parse breakpoint y")
		}
		slope, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return Curve{}, errors.Wrap(err, "parse breakpoint slope")
		}
		c.Breakpoints = append(c.Breakpoints, Breakpoint{X: x, Y: y, Slope: slope})
	}
	return c, nil
}

// WriteFile writes c to the given path, creating or truncating it.
func WriteFile(path string, c Curve) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create arrival curve cache file %q", path)
	}
	defer f.Close()
	return WriteCSV(f, c)
}

// ReadFile loads an arrival curve from the given path.
func ReadFile(path string) (Curve, error) {
	f, err := os.Open(path)
	if err != nil {
		return Curve{}, errors.Wrapf(err, "open arrival curve cache file %q", path)
	}
	defer f.Close()
	return ReadCSV(f)
}

// Validate checks the invariants of §8: concave (non-increasing slopes),
// non-decreasing y and x, starting at (0,0).
func Validate(c Curve) error {
	if len(c.Breakpoints) == 0 {
		return errors.New("arrival curve has no breakpoints")
	}
	sentinel := c.Breakpoints[0]
	if sentinel.X != 0 || sentinel.Y != 0 || !math.IsInf(sentinel.Slope, 1) {
		return errors.New("arrival curve is missing the (0,0,+Inf) sentinel")
	}
	for i := 1; i < len(c.Breakpoints); i++ {
		prev, cur := c.Breakpoints[i-1], c.Breakpoints[i]
		if cur.X < prev.X {
			return errors.Errorf("breakpoint %d: x decreased (%v < %v)", i, cur.X, prev.X)
		}
		if cur.Y < prev.Y {
			return errors.Errorf("breakpoint %d: y decreased (%v < %v)", i, cur.Y, prev.Y)
		}
		if i > 1 && cur.Slope > prev.Slope {
			return errors.Errorf("breakpoint %d: slope increased (%v > %v)", i, cur.Slope, prev.Slope)
		}
	}
	return nil
}

package builtin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/xcrap/pkg/record"
)

var (
	numberPattern  = regexp.MustCompile(`[-+]?(?:\d[\d,]*(?:\.\d+)?|\.\d+)`)
	integerPattern = regexp.MustCompile(`[-+]?\d[\d,]*`)
)

// ParseNumber reads the first decimal number in the value, ignoring
// currency symbols, units and comma grouping: "$1,299.50" becomes 1299.5.
// Numbers pass through unchanged.
func ParseNumber(_ context.Context, v record.Value) (record.Value, error) {
	if v.Kind() == record.KindNumber {
		return v, nil
	}
	return mapValue("number", v, func(s string) (record.Value, error) {
		m := numberPattern.FindString(s)
		if m == "" {
			return record.Absent(), fmt.Errorf("%w: no number in %q", ErrNoMatch, s)
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			return record.Absent(), err
		}
		return record.Number(f), nil
	})
}

// ParseInt reads the first integer in the value. Digits after a decimal
// point are not part of the integer. Numbers are truncated toward zero;
// NaN, infinities and values outside the int64 range fail with
// ErrOutOfRange.
func ParseInt(_ context.Context, v record.Value) (record.Value, error) {
	if f, ok := v.Float(); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) || f >= 1<<63 || f < -(1<<63) {
			return record.Absent(), fmt.Errorf("int: %w: %v", ErrOutOfRange, f)
		}
		return record.Number(float64(int64(f))), nil
	}
	return mapValue("int", v, func(s string) (record.Value, error) {
		m := integerPattern.FindString(s)
		if m == "" {
			return record.Absent(), fmt.Errorf("%w: no integer in %q", ErrNoMatch, s)
		}
		i, err := strconv.ParseInt(strings.ReplaceAll(m, ",", ""), 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			return record.Absent(), fmt.Errorf("%w: %s", ErrOutOfRange, m)
		}
		if err != nil {
			return record.Absent(), err
		}
		return record.Number(float64(i)), nil
	})
}

// ParseBool accepts the strconv forms plus yes/no, y/n and on/off.
func ParseBool(_ context.Context, v record.Value) (record.Value, error) {
	if v.Kind() == record.KindBool {
		return v, nil
	}
	return mapValue("bool", v, func(s string) (record.Value, error) {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "yes", "y", "on":
			return record.Bool(true), nil
		case "no", "n", "off":
			return record.Bool(false), nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return record.Absent(), err
		}
		return record.Bool(b), nil
	})
}

// ParseDate parses a date in any common layout.
func ParseDate(_ context.Context, v record.Value) (record.Value, error) {
	if v.Kind() == record.KindTime {
		return v, nil
	}
	return mapValue("date", v, func(s string) (record.Value, error) {
		t, err := dateparse.ParseAny(strings.TrimSpace(s))
		if err != nil {
			return record.Absent(), err
		}
		return record.Time(t), nil
	})
}

// ParseBytes parses a human readable size such as "42 MB" or "1.5GiB"
// into a number of bytes.
func ParseBytes(_ context.Context, v record.Value) (record.Value, error) {
	if v.Kind() == record.KindNumber {
		return v, nil
	}
	return mapValue("bytes", v, func(s string) (record.Value, error) {
		n, err := humanize.ParseBytes(strings.TrimSpace(s))
		if err != nil {
			return record.Absent(), err
		}
		return record.Number(float64(n)), nil
	})
}

// Package cronspec binds the Manager's scheduling needs to a concrete
// cron-expression parser/ticker. This is the external collaborator named in
// the specification: the core never constructs or interprets a cron
// expression beyond the reserved watch job's "*/N * * * * *".
package cronspec

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts both the traditional 5-field expression and the 6-field
// (seconds-first) dialect the watch job uses, plus the predefined macros
// (@yearly, @monthly, @weekly, @daily, @hourly, @every <duration>).
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Schedule computes the next activation time for a parsed cron expression.
type Schedule struct {
	expr  string
	inner cron.Schedule
}

// Parse validates and parses a cron expression. It accepts both 5-field and
// 6-field (seconds-first) expressions, and the standard @-prefixed macros.
func Parse(expr string) (*Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("cronspec: empty expression")
	}
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("cronspec: invalid expression %q: %w", expr, err)
	}
	return &Schedule{expr: expr, inner: s}, nil
}

// MustParse parses expr and panics on error; intended for the system's own
// fixed watch-job expression, never for operator-supplied input.
func MustParse(expr string) *Schedule {
	s, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// Next returns the next activation time strictly after from.
func (s *Schedule) Next(from time.Time) time.Time {
	return s.inner.Next(from)
}

// String returns the original expression text.
func (s *Schedule) String() string {
	return s.expr
}

// WatchExpr builds the reserved watch job's cron expression for the given
// interval in seconds, clamped to [1, 5] by the caller.
func WatchExpr(intervalSeconds int) string {
	return fmt.Sprintf("*/%d * * * * *", intervalSeconds)
}

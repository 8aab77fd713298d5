// Package cronplan turns schedule strings into scheduled work on a
// sched.Worker.
//
// Supported forms:
//   - Cron (crontab.guru-style): "*/5 * * * *", "@hourly", "@every 55m"
//   - Interval duration: "55m", "2h30m"
//
// Optional prefixes:
//   - "cron:" forces cron parsing
//   - "interval:" or "every:" forces interval parsing
//
// Interval plans map onto the worker's drift-free periodic scheduling;
// cron plans chain one-shot submissions at each computed activation.
package cronplan

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"tempo/pkg/sched"
	"tempo/pkg/subscription"
)

// Kind describes the normalized kind of a schedule string.
type Kind int

const (
	KindCron Kind = iota
	KindInterval
)

var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Plan is a parsed, validated schedule string.
type Plan struct {
	Kind  Kind
	Expr  string        // cron kind
	Every time.Duration // interval kind

	cronSched cron.Schedule
}

// Parse parses and validates a schedule string.
func Parse(raw string) (Plan, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Plan{}, fmt.Errorf("schedule required")
	}

	// Prefixes (explicit)
	low := strings.ToLower(s)
	if strings.HasPrefix(low, "cron:") {
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return Plan{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return parseCron(expr)
	}
	for _, prefix := range []string{"interval:", "every:"} {
		if strings.HasPrefix(low, prefix) {
			return parseInterval(strings.TrimSpace(s[len(prefix):]))
		}
	}

	// Heuristics: any whitespace or leading '@' means cron.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}
	if d, err := time.ParseDuration(s); err == nil {
		return intervalPlan(d)
	}
	return Plan{}, fmt.Errorf("unrecognized schedule %q (want cron expr or duration)", raw)
}

func parseCron(expr string) (Plan, error) {
	cs, err := parser.Parse(expr)
	if err != nil {
		return Plan{}, fmt.Errorf("cron %q: %w", expr, err)
	}
	return Plan{Kind: KindCron, Expr: expr, cronSched: cs}, nil
}

func parseInterval(v string) (Plan, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return Plan{}, fmt.Errorf("interval %q: %w", v, err)
	}
	return intervalPlan(d)
}

func intervalPlan(d time.Duration) (Plan, error) {
	if d <= 0 {
		return Plan{}, fmt.Errorf("interval must be > 0, got %v", d)
	}
	return Plan{Kind: KindInterval, Every: d}, nil
}

// Next returns the first activation strictly after t.
func (p Plan) Next(t time.Time) time.Time {
	switch p.Kind {
	case KindCron:
		if p.cronSched == nil {
			return time.Time{}
		}
		return p.cronSched.Next(t)
	case KindInterval:
		return t.Add(p.Every)
	}
	return time.Time{}
}

func (p Plan) String() string {
	if p.Kind == KindCron {
		return "cron:" + p.Expr
	}
	return "every:" + p.Every.String()
}

// Run schedules job on w under the given lifetime. Unsubscribing the
// lifetime (or the worker) stops the chain; a run already in progress
// finishes its current call.
//
// The observed time handed to job is the worker's clock at dispatch.
func Run(w sched.Worker, lifetime *subscription.Subscription, p Plan, job func(now time.Time)) {
	switch p.Kind {
	case KindInterval:
		scbl := sched.NewScopedSchedulable(lifetime, w, sched.MakeAction(func(s sched.Schedulable) {
			job(s.Now())
		}))
		w.SchedulePeriodically(w.Now().Add(p.Every), p.Every, scbl)
	case KindCron:
		scbl := sched.MakeScopedSchedulable(lifetime, w, func(s sched.Schedulable) {
			job(s.Now())
			if next := p.Next(s.Now()); !next.IsZero() {
				s.ScheduleAt(next)
			}
		})
		if first := p.Next(w.Now()); !first.IsZero() {
			w.ScheduleAt(first, scbl)
		}
	}
}

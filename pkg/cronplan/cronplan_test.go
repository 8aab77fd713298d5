package cronplan_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempo/pkg/cronplan"
	"tempo/pkg/sched/virtual"
	"tempo/pkg/subscription"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantErr bool
		kind    cronplan.Kind
		every   time.Duration
	}{
		{name: "five field cron", in: "*/5 * * * *", kind: cronplan.KindCron},
		{name: "descriptor hourly", in: "@hourly", kind: cronplan.KindCron},
		{name: "descriptor every", in: "@every 55m", kind: cronplan.KindCron},
		{name: "plain duration", in: "55m", kind: cronplan.KindInterval, every: 55 * time.Minute},
		{name: "compound duration", in: "2h30m", kind: cronplan.KindInterval, every: 2*time.Hour + 30*time.Minute},
		{name: "cron prefix", in: "cron:0 12 * * 1", kind: cronplan.KindCron},
		{name: "interval prefix", in: "interval:90s", kind: cronplan.KindInterval, every: 90 * time.Second},
		{name: "every prefix", in: "every:10m", kind: cronplan.KindInterval, every: 10 * time.Minute},
		{name: "surrounding space", in: "  @daily  ", kind: cronplan.KindCron},
		{name: "empty", in: "", wantErr: true},
		{name: "blank cron prefix", in: "cron:", wantErr: true},
		{name: "gibberish", in: "soonish", wantErr: true},
		{name: "six fields", in: "* * * * * *", wantErr: true},
		{name: "zero interval", in: "0s", wantErr: true},
		{name: "negative interval", in: "interval:-5m", wantErr: true},
		{name: "bad interval prefix", in: "interval:tomorrow", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := cronplan.Parse(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.kind, p.Kind)
			if tc.kind == cronplan.KindInterval {
				assert.Equal(t, tc.every, p.Every)
			}
		})
	}
}

func TestNext(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)

	p, err := cronplan.Parse("interval:45s")
	require.NoError(t, err)
	assert.Equal(t, at.Add(45*time.Second), p.Next(at))

	p, err = cronplan.Parse("0 * * * *")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC), p.Next(at))
}

func TestString(t *testing.T) {
	p, err := cronplan.Parse("@hourly")
	require.NoError(t, err)
	assert.Equal(t, "cron:@hourly", p.String())

	p, err = cronplan.Parse("55m")
	require.NoError(t, err)
	assert.Equal(t, "every:55m0s", p.String())
}

func TestRunInterval(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	v := virtual.New(start)
	w := v.Scheduler().CreateWorker()

	p, err := cronplan.Parse("1m")
	require.NoError(t, err)

	lifetime := subscription.New()
	var fired []time.Time
	cronplan.Run(w, lifetime, p, func(now time.Time) {
		fired = append(fired, now)
	})

	v.AdvanceTo(start.Add(3*time.Minute + 30*time.Second))

	require.Len(t, fired, 3)
	for i, got := range fired {
		assert.Equal(t, start.Add(time.Duration(i+1)*time.Minute), got)
	}
}

func TestRunCron(t *testing.T) {
	start := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	v := virtual.New(start)
	w := v.Scheduler().CreateWorker()

	p, err := cronplan.Parse("0 * * * *")
	require.NoError(t, err)

	lifetime := subscription.New()
	var fired []time.Time
	cronplan.Run(w, lifetime, p, func(now time.Time) {
		fired = append(fired, now)
	})

	v.AdvanceTo(start.Add(3 * time.Hour)) // through 13:30

	require.Len(t, fired, 3)
	assert.Equal(t, time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC), fired[0])
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), fired[1])
	assert.Equal(t, time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC), fired[2])
}

func TestRunStopsOnUnsubscribe(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	v := virtual.New(start)
	w := v.Scheduler().CreateWorker()

	p, err := cronplan.Parse("1m")
	require.NoError(t, err)

	lifetime := subscription.New()
	fired := 0
	cronplan.Run(w, lifetime, p, func(time.Time) { fired++ })

	v.AdvanceTo(start.Add(2 * time.Minute))
	require.Equal(t, 2, fired)

	lifetime.Unsubscribe()
	v.AdvanceTo(start.Add(30 * time.Minute))
	assert.Equal(t, 2, fired)
	assert.Equal(t, 0, v.Len())
}

func TestRunWorkerCancelStopsChain(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	v := virtual.New(start)
	w := v.Scheduler().CreateWorker()

	p, err := cronplan.Parse("@hourly")
	require.NoError(t, err)

	lifetime := subscription.New()
	fired := 0
	cronplan.Run(w, lifetime, p, func(time.Time) { fired++ })

	w.Unsubscribe()
	v.AdvanceTo(start.Add(5 * time.Hour))

	assert.Zero(t, fired)
	assert.False(t, lifetime.IsSubscribed(), "worker cancellation cascades into the plan's lifetime")
}

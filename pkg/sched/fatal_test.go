package sched_test

import (
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempo/pkg/sched"
	"tempo/pkg/sched/virtual"
)

const fatalEnv = "TEMPO_SCHED_FATAL_CASE"

// Fatal paths call os.Exit, so each case re-runs the test binary and
// asserts on the child's exit status and stderr.
func runFatalCase(t *testing.T, testName, caseName string) string {
	t.Helper()

	cmd := exec.Command(os.Args[0], "-test.run=^"+testName+"$")
	cmd.Env = append(os.Environ(), fatalEnv+"="+caseName)
	out, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr, "child must terminate abnormally, output: %s", out)
	require.Equal(t, 2, exitErr.ExitCode())
	return string(out)
}

func TestInvokeUnsubscribedAborts(t *testing.T) {
	if os.Getenv(fatalEnv) == "invoke-unsubscribed" {
		v := virtual.New(time.Unix(0, 0))
		w := v.Scheduler().CreateWorker()
		scbl := sched.MakeSchedulable(w, func(sched.Schedulable) {})
		w.Unsubscribe()
		scbl.Invoke(sched.NewRecursion(false).Recurse())
		return
	}
	out := runFatalCase(t, "TestInvokeUnsubscribedAborts", "invoke-unsubscribed")
	assert.Contains(t, out, "sched: fatal:")
	assert.Contains(t, out, "unsubscribed")
}

func TestInvokeEmptyActionAborts(t *testing.T) {
	if os.Getenv(fatalEnv) == "invoke-empty" {
		v := virtual.New(time.Unix(0, 0))
		w := v.Scheduler().CreateWorker()
		scbl := sched.NewSchedulable(w, sched.EmptyAction())
		scbl.Invoke(sched.NewRecursion(false).Recurse())
		return
	}
	out := runFatalCase(t, "TestInvokeEmptyActionAborts", "invoke-empty")
	assert.Contains(t, out, "sched: fatal:")
	assert.Contains(t, out, "empty action")
}

func TestRequestRecurseOutsideScopeAborts(t *testing.T) {
	if os.Getenv(fatalEnv) == "recurse-outside" {
		v := virtual.New(time.Unix(0, 0))
		w := v.Scheduler().CreateWorker()
		scbl := sched.MakeSchedulable(w, func(sched.Schedulable) {})
		scbl.RequestRecurse()
		return
	}
	out := runFatalCase(t, "TestRequestRecurseOutsideScopeAborts", "recurse-outside")
	assert.Contains(t, out, "sched: fatal:")
	assert.Contains(t, out, "invocation scope")
}

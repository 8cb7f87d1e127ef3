package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrailHuang/conshell/internal/cmdline"
	"github.com/TrailHuang/conshell/pkg/types"
)

func noop(c types.Console, args []string) error { return nil }

func complete(r *Registry, text string) (string, []string) {
	rep, help := r.Complete(0, 0, cmdline.Parse(text))
	return rep.Format(), help
}

func TestCompleteUniqueCommand(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"login"}, nil, noop, nil))
	require.NoError(t, r.Add(0, 0, []string{"sleep"}, []string{"<seconds>"}, noop, nil))

	rep, help := complete(r, "lo")
	assert.Equal(t, "login", rep)
	assert.Empty(t, help)

	// With placeholders the completion opens the argument region.
	rep, help = complete(r, "sl")
	assert.Equal(t, "sleep ", rep)
	assert.Equal(t, []string{"<seconds>"}, help)
}

func TestCompleteWordDivergence(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"get", "hostname"}, nil, noop, nil))
	require.NoError(t, r.Add(0, 0, []string{"get", "uptime"}, nil, noop, nil))

	// The shared first word completes; the second is a decision point.
	rep, help := complete(r, "ge")
	assert.Equal(t, "get ", rep)
	assert.Equal(t, []string{"hostname", "uptime"}, help)

	rep, help = complete(r, "get h")
	assert.Equal(t, "get hostname", rep)
	assert.Empty(t, help)
}

func TestCompleteMidWordDivergence(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"show", "thing1"}, nil, noop, nil))
	require.NoError(t, r.Add(0, 0, []string{"show", "thing2"}, nil, noop, nil))
	require.NoError(t, r.Add(0, 0, []string{"show", "thing3"}, nil, noop, nil))

	rep, help := complete(r, "sho")
	assert.Equal(t, "show thing", rep)
	assert.Equal(t, []string{"thing1", "thing2", "thing3"}, help)
}

func TestCompleteEndedCandidate(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"show"}, nil, noop, nil))
	require.NoError(t, r.Add(0, 0, []string{"show", "thing1"}, nil, noop, nil))
	require.NoError(t, r.Add(0, 0, []string{"show", "thing2"}, nil, noop, nil))

	// "show" is invocable as-is (the empty help line) while longer
	// siblings continue.
	rep, help := complete(r, "show")
	assert.Equal(t, "show ", rep)
	assert.Equal(t, []string{"", "thing1", "thing2"}, help)
}

func TestCompletePartialPrefixFilters(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"log"}, nil, noop, nil))
	require.NoError(t, r.Add(0, 0, []string{"logging"}, nil, noop, nil))

	rep, help := complete(r, "lo")
	assert.Equal(t, "log", rep)
	assert.Equal(t, []string{"log", "logging"}, help)

	rep, help = complete(r, "loggi")
	assert.Equal(t, "logging", rep)
	assert.Empty(t, help)
}

func TestCompleteEscapesNameWords(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"say hi"}, nil, noop, nil))

	rep, help := complete(r, "sa")
	assert.Equal(t, `say\ hi`, rep)
	assert.Empty(t, help)
}

func TestCompleteArgumentsWithCallback(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"log", "level"}, []string{"<level>"}, noop,
		func(confirmed []string, partial string) []string {
			return []string{"debug", "info", "warn", "warning", "error"}
		}))

	// An empty partial lists every candidate.
	rep, help := complete(r, "log level ")
	assert.Equal(t, "log level ", rep)
	assert.Equal(t, []string{"debug", "info", "warn", "warning", "error"}, help)

	// A unique prefix splices the candidate in.
	rep, help = complete(r, "log level d")
	assert.Equal(t, "log level debug", rep)
	assert.Empty(t, help)

	// Two candidates share the prefix: help only.
	rep, help = complete(r, "log level w")
	assert.Equal(t, "log level w", rep)
	assert.Equal(t, []string{"warn", "warning"}, help)

	rep, help = complete(r, "log level x")
	assert.Equal(t, "log level x", rep)
	assert.Empty(t, help)
}

func TestCompleteArgumentsTrailingSpaceWhenMoreExpected(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"copy"}, []string{"<src>", "<dst>"}, noop,
		func(confirmed []string, partial string) []string {
			if len(confirmed) == 0 {
				return []string{"alpha"}
			}
			return []string{"beta"}
		}))

	rep, _ := complete(r, "copy al")
	assert.Equal(t, "copy alpha ", rep)

	rep, _ = complete(r, "copy alpha be")
	assert.Equal(t, "copy alpha beta", rep)
}

func TestCompleteArgumentsWithoutCallback(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"sleep"}, []string{"<seconds>"}, noop, nil))

	rep, help := complete(r, "sleep ")
	assert.Equal(t, "sleep ", rep)
	assert.Equal(t, []string{"<seconds>"}, help)

	// Argument region exhausted: nothing to offer.
	rep, help = complete(r, "sleep 5 ")
	assert.Equal(t, "sleep 5 ", rep)
	assert.Empty(t, help)
}

func TestCompleteRespectsVisibility(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"login"}, nil, noop, nil))
	require.NoError(t, r.Add(0, 1, []string{"logout"}, nil, noop, nil))

	rep, help := r.Complete(0, 0, cmdline.Parse("lo"))
	assert.Equal(t, "login", rep.Format())
	assert.Empty(t, help)

	_, help = r.Complete(0, 1, cmdline.Parse("lo"))
	assert.Equal(t, []string{"login", "logout"}, help)
}

func TestCompleteEmptyLineListsFirstWords(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"show"}, nil, noop, nil))
	require.NoError(t, r.Add(0, 0, []string{"get", "uptime"}, nil, noop, nil))

	rep, help := r.Complete(0, 0, cmdline.Line{})
	assert.True(t, rep.Equal(cmdline.Line{}))
	assert.Equal(t, []string{"show", "get uptime"}, help)
}

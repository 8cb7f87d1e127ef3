package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrailHuang/conshell/internal/cmdline"
	"github.com/TrailHuang/conshell/pkg/types"
)

func record(calls *[][]string) types.Handler {
	return func(c types.Console, args []string) error {
		*calls = append(*calls, append([]string(nil), args...))
		return nil
	}
}

func run(t *testing.T, r *Registry, ctx types.Context, flags types.Flags, text string) error {
	t.Helper()
	return r.Execute(nil, ctx, flags, cmdline.Parse(text))
}

func TestAddCountsRequiredArguments(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"copy"}, []string{"<one>", "<two>", "[three]"}, record(new([][]string)), nil))
	cmd := r.commands[0]
	assert.Equal(t, 2, cmd.minimum)
	assert.Equal(t, 3, cmd.maximum)

	assert.Error(t, r.Add(0, 0, nil, nil, nil, nil))
	assert.Error(t, r.Add(0, 0, []string{""}, nil, nil, nil))
}

func TestFindPrefersLongestName(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"show"}, nil, record(new([][]string)), nil))
	require.NoError(t, r.Add(0, 0, []string{"show", "version"}, nil, record(new([][]string)), nil))

	got := r.Find(0, 0, []string{"show"}, false)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"show"}, got[0].Name())

	got = r.Find(0, 0, []string{"show", "version"}, false)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"show", "version"}, got[0].Name())
}

func TestFindPartialPrefix(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"get", "hostname"}, nil, record(new([][]string)), nil))
	require.NoError(t, r.Add(0, 0, []string{"get", "uptime"}, nil, record(new([][]string)), nil))

	assert.Len(t, r.Find(0, 0, []string{"get", "h"}, true), 1)
	assert.Len(t, r.Find(0, 0, []string{"get"}, true), 2)
	// A prefix word only counts when it is the last one on the line.
	assert.Empty(t, r.Find(0, 0, []string{"ge", "hostname"}, true))
}

func TestExecuteDispatch(t *testing.T) {
	var show, version [][]string
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"show"}, nil, record(&show), nil))
	require.NoError(t, r.Add(0, 0, []string{"show", "version"}, nil, record(&version), nil))

	require.NoError(t, run(t, r, 0, 0, "show"))
	require.NoError(t, run(t, r, 0, 0, "show version"))
	assert.Len(t, show, 1)
	assert.Len(t, version, 1)
}

func TestExecuteArguments(t *testing.T) {
	var calls [][]string
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"copy"}, []string{"<src>", "<dst>", "[mode]"}, record(&calls), nil))

	err := run(t, r, 0, 0, "copy a")
	assert.ErrorIs(t, err, ErrNotEnoughArguments)

	err = run(t, r, 0, 0, "copy a b c d")
	assert.ErrorIs(t, err, ErrTooManyArguments)

	require.NoError(t, run(t, r, 0, 0, "copy a b"))
	require.NoError(t, run(t, r, 0, 0, `copy "a b" c strict`))
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"a", "b"}, calls[0])
	assert.Equal(t, []string{"a b", "c", "strict"}, calls[1])
}

func TestExecuteUnknown(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"show"}, nil, record(new([][]string)), nil))

	err := run(t, r, 0, 0, "nope")
	assert.ErrorIs(t, err, ErrCommandNotFound)
	assert.Contains(t, err.Error(), "nope")
}

func TestExecuteAmbiguousRegistration(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"dup"}, nil, record(new([][]string)), nil))
	require.NoError(t, r.Add(0, 0, []string{"dup"}, nil, record(new([][]string)), nil))

	err := run(t, r, 0, 0, "dup")
	assert.ErrorIs(t, err, ErrAmbiguousRegistration)
}

func TestExecuteShadowedByLongerSiblings(t *testing.T) {
	var show [][]string
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"show"}, nil, record(&show), nil))
	require.NoError(t, r.Add(0, 0, []string{"show", "version"}, nil, record(new([][]string)), nil))
	require.NoError(t, r.Add(0, 0, []string{"show", "uptime"}, nil, record(new([][]string)), nil))

	// A trailing token cannot be told apart from a sibling's name word.
	err := run(t, r, 0, 0, "show vers")
	assert.ErrorIs(t, err, ErrCommandNotFound)

	require.NoError(t, run(t, r, 0, 0, "show"))
	assert.Len(t, show, 1)
}

func TestVisibility(t *testing.T) {
	const authed types.Flags = 1 << 0
	var calls [][]string
	r := New()
	require.NoError(t, r.Add(1, 0, []string{"config"}, nil, record(&calls), nil))
	require.NoError(t, r.Add(0, authed, []string{"logout"}, nil, record(&calls), nil))

	assert.ErrorIs(t, run(t, r, 0, 0, "config"), ErrCommandNotFound)
	require.NoError(t, run(t, r, 1, 0, "config"))

	assert.ErrorIs(t, run(t, r, 0, 0, "logout"), ErrCommandNotFound)
	require.NoError(t, run(t, r, 0, authed, "logout"))
	require.Len(t, calls, 2)
}

func TestHandlerErrorPassesThrough(t *testing.T) {
	boom := errors.New("boom")
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"fail"}, nil, func(c types.Console, args []string) error {
		return boom
	}, nil))

	assert.ErrorIs(t, run(t, r, 0, 0, "fail"), boom)
}

func TestCommandAccessorsCopy(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0, 0, []string{"show"}, []string{"[what]"}, record(new([][]string)), nil))
	cmd := r.Find(0, 0, []string{"show"}, false)[0]

	name := cmd.Name()
	name[0] = strings.ToUpper(name[0])
	assert.Equal(t, []string{"show"}, cmd.Name())

	ph := cmd.Placeholders()
	ph[0] = "x"
	assert.Equal(t, []string{"[what]"}, cmd.Placeholders())
}

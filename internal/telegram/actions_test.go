package telegram

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Action
		err  bool
	}{
		{name: "menu", data: "menu", want: Action{Kind: ActionMainMenu}},
		{name: "new dialog", data: "new_dialog", want: Action{Kind: ActionNewDialog}},
		{name: "model with arg", data: "model:gpt-4o", want: Action{Kind: ActionChooseModel, Arg: "gpt-4o"}},
		{name: "open dialog", data: "open:17", want: Action{Kind: ActionOpenDialog, Arg: "17"}},
		{name: "subscribe", data: "plan:premium", want: Action{Kind: ActionSubscribe, Arg: "premium"}},
		{name: "unknown kind", data: "launch_missiles", err: true},
		{name: "missing arg", data: "model", err: true},
		{name: "empty arg", data: "model:", err: true},
		{name: "arg on bare action", data: "menu:extra", err: true},
		{name: "empty data", data: "", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.data)
			if tt.err {
				require.ErrorIs(t, err, ErrMalformedAction)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestActionEncodeRoundTrip(t *testing.T) {
	actions := []Action{
		{Kind: ActionMainMenu},
		{Kind: ActionChooseRole, Arg: "translator"},
		{Kind: ActionOpenDialog, Arg: "5"},
	}
	for _, a := range actions {
		parsed, err := ParseAction(a.Encode())
		require.NoError(t, err)
		require.Equal(t, a, parsed)
	}
}

func TestActionDialogID(t *testing.T) {
	a := Action{Kind: ActionOpenDialog, Arg: "12"}
	id, err := a.DialogID()
	require.NoError(t, err)
	require.EqualValues(t, 12, id)

	for _, arg := range []string{"abc", "-3", "0"} {
		a := Action{Kind: ActionOpenDialog, Arg: arg}
		_, err := a.DialogID()
		require.ErrorIs(t, err, ErrMalformedAction)
	}
}

func TestActionLimit(t *testing.T) {
	a := Action{Kind: ActionSetLimit, Arg: "10"}
	limit, err := a.Limit()
	require.NoError(t, err)
	require.Equal(t, 10, limit)

	for _, arg := range []string{"ten", "0", "-1"} {
		a := Action{Kind: ActionSetLimit, Arg: arg}
		_, err := a.Limit()
		require.ErrorIs(t, err, ErrMalformedAction)
	}
}

package telegram

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMalformedAction marks callback data that does not decode into a known
// action. Stale keyboards and hand-crafted payloads both land here.
var ErrMalformedAction = errors.New("malformed callback action")

type ActionKind string

const (
	ActionMainMenu     ActionKind = "menu"
	ActionShowBuy      ActionKind = "buy"
	ActionShowDialogs  ActionKind = "dialogs"
	ActionNewDialog    ActionKind = "new_dialog"
	ActionChooseModel  ActionKind = "model"
	ActionChooseRole   ActionKind = "role"
	ActionOpenDialog   ActionKind = "open"
	ActionModeText     ActionKind = "text"
	ActionModeImage    ActionKind = "image"
	ActionSettings     ActionKind = "settings"
	ActionSetModel     ActionKind = "set_model"
	ActionSetRole      ActionKind = "set_role"
	ActionSetLimit     ActionKind = "set_limit"
	ActionResetContext ActionKind = "reset"
	ActionTopUp        ActionKind = "topup"
	ActionSubscribe    ActionKind = "plan"
)

// Action is a decoded callback payload: a kind plus an optional argument,
// encoded on the wire as "kind" or "kind:arg".
type Action struct {
	Kind ActionKind
	Arg  string
}

func (a Action) Encode() string {
	if a.Arg == "" {
		return string(a.Kind)
	}
	return string(a.Kind) + ":" + a.Arg
}

// DialogID decodes the argument as a dialog id.
func (a Action) DialogID() (int64, error) {
	id, err := strconv.ParseInt(a.Arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrMalformedAction
	}
	return id, nil
}

// Limit decodes the argument as a history limit.
func (a Action) Limit() (int, error) {
	limit, err := strconv.Atoi(a.Arg)
	if err != nil || limit <= 0 {
		return 0, ErrMalformedAction
	}
	return limit, nil
}

var actionsWithArg = map[ActionKind]bool{
	ActionChooseModel: true,
	ActionChooseRole:  true,
	ActionOpenDialog:  true,
	ActionSetModel:    true,
	ActionSetRole:     true,
	ActionSetLimit:    true,
	ActionSubscribe:   true,
}

var actionsWithoutArg = map[ActionKind]bool{
	ActionMainMenu:     true,
	ActionShowBuy:      true,
	ActionShowDialogs:  true,
	ActionNewDialog:    true,
	ActionModeText:     true,
	ActionModeImage:    true,
	ActionSettings:     true,
	ActionResetContext: true,
	ActionTopUp:        true,
}

// ParseAction decodes callback data. Unknown kinds, missing arguments and
// arguments on argument-less kinds all fail with ErrMalformedAction.
func ParseAction(data string) (Action, error) {
	kind, arg, hasArg := strings.Cut(data, ":")
	action := Action{Kind: ActionKind(kind), Arg: arg}
	switch {
	case actionsWithArg[action.Kind]:
		if !hasArg || arg == "" {
			return Action{}, ErrMalformedAction
		}
		return action, nil
	case actionsWithoutArg[action.Kind]:
		if hasArg {
			return Action{}, ErrMalformedAction
		}
		return action, nil
	default:
		return Action{}, ErrMalformedAction
	}
}

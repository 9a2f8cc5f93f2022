package proctor

import "strings"

// keyAction is the classification of one key_down event.
type keyAction struct {
	violation ViolationType
	combo     string
	escape    bool
}

var (
	clipboardKeys = map[string]bool{"c": true, "x": true, "v": true, "a": true}
	devToolsShift = map[string]bool{"i": true, "j": true, "c": true}
)

// classifyKey maps a key_down event to a violation. The zero value means the
// key is allowed.
func classifyKey(ev Event) keyAction {
	key := strings.ToLower(ev.Key)
	mod := ev.Ctrl || ev.Meta

	switch {
	case key == "f12":
		return keyAction{violation: ViolationDevTools, combo: "F12"}
	case mod && ev.Shift && devToolsShift[key]:
		return keyAction{violation: ViolationDevTools, combo: comboLabel(ev, true, key)}
	case mod && key == "u":
		return keyAction{violation: ViolationDevTools, combo: comboLabel(ev, false, key)}
	case mod && clipboardKeys[key]:
		return keyAction{violation: ViolationCopyAttempt, combo: comboLabel(ev, false, key)}
	case key == "escape" || key == "esc":
		return keyAction{escape: true, combo: "Escape"}
	}
	return keyAction{}
}

func comboLabel(ev Event, shift bool, key string) string {
	var b strings.Builder
	if ev.Meta && !ev.Ctrl {
		b.WriteString("Cmd+")
	} else {
		b.WriteString("Ctrl+")
	}
	if shift {
		b.WriteString("Shift+")
	}
	b.WriteString(strings.ToUpper(key))
	return b.String()
}

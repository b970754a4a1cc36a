package conversation

// KeyboardKind selects how the transport renders the reply keyboard.
type KeyboardKind int

const (
	// KeyboardNone leaves the current keyboard untouched.
	KeyboardNone KeyboardKind = iota
	// KeyboardRemove hides the reply keyboard.
	KeyboardRemove
	// KeyboardMain shows the transport's main menu.
	KeyboardMain
	// KeyboardMenu shows Rows.
	KeyboardMenu
)

// Control marks a navigation button. Selectable items use ControlNone.
type Control int

const (
	ControlNone Control = iota
	ControlBackToMain
	ControlBackToRegions
)

// Button is one menu entry. Label is empty for navigation controls; the
// transport supplies their display text.
type Button struct {
	Label   string
	Control Control
}

// Keyboard describes the reply keyboard attached to a message.
type Keyboard struct {
	Kind KeyboardKind
	Rows [][]Button
}

// Reply is one outbound message.
type Reply struct {
	Text     string
	Markdown bool
	Keyboard Keyboard
}

const menuColumns = 2

// Menu lays items out in rows of at most two, followed by nav on its own row.
func Menu(items []string, nav Control) Keyboard {
	rows := make([][]Button, 0, (len(items)+menuColumns-1)/menuColumns+1)
	for i := 0; i < len(items); i += menuColumns {
		end := min(i+menuColumns, len(items))
		row := make([]Button, 0, end-i)
		for _, item := range items[i:end] {
			row = append(row, Button{Label: item})
		}
		rows = append(rows, row)
	}
	rows = append(rows, []Button{{Control: nav}})
	return Keyboard{Kind: KeyboardMenu, Rows: rows}
}

func mainMenu() Keyboard { return Keyboard{Kind: KeyboardMain} }
func removeKeyboard() Keyboard { return Keyboard{Kind: KeyboardRemove} }

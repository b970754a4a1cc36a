package conversation

import "fmt"

// Kind tags an inbound user action. The transport layer maps raw updates to
// kinds; the machine never inspects button labels.
type Kind int

const (
	// KindStart resets the conversation and greets the user.
	KindStart Kind = iota
	// KindBrowse opens the region menu.
	KindBrowse
	// KindSelect carries free text picked from (or typed over) the current menu.
	KindSelect
	// KindBackToMain leaves the flow and restores the main menu.
	KindBackToMain
	// KindBackToRegions returns from the city menu to the region menu.
	KindBackToRegions
	// KindLocation carries shared device coordinates.
	KindLocation
	// KindCancel aborts the flow.
	KindCancel
)

var kindNames = [...]string{"start", "browse", "select", "back_main", "back_regions", "location", "cancel"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Action is one inbound user action.
type Action struct {
	Kind Kind
	Text string
	Lat  float64
	Lon  float64
}

// Constructors for the argument-free actions.

func Start() Action { return Action{Kind: KindStart} }
func Browse() Action { return Action{Kind: KindBrowse} }
func BackToMain() Action { return Action{Kind: KindBackToMain} }
func BackToRegions() Action { return Action{Kind: KindBackToRegions} }
func Cancel() Action { return Action{Kind: KindCancel} }

// Select wraps a text selection.
func Select(text string) Action { return Action{Kind: KindSelect, Text: text} }

// Location wraps shared coordinates.
func Location(lat, lon float64) Action { return Action{Kind: KindLocation, Lat: lat, Lon: lon} }

// User identifies who sent a turn.
type User struct {
	ID        int64
	Username  string
	FirstName string
}

// Turn is one inbound action of a conversation.
type Turn struct {
	SessionID int64
	User      User
	Action    Action
}

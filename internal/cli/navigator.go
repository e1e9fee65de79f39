package cli

import (
	"fmt"
	"os"
	"sync"
)

// sessionNavigator is the client's Navigator for the terminal. Outside the
// TUI it tells the user to log in again; inside it hands the path to the chat
// screen.
type sessionNavigator struct {
	mu      sync.Mutex
	target  string
	onRoute func(path string)
}

func (n *sessionNavigator) Navigate(path string) {
	n.mu.Lock()
	n.target = path
	onRoute := n.onRoute
	n.mu.Unlock()

	if onRoute != nil {
		onRoute(path)
		return
	}
	fmt.Fprintln(os.Stderr, "Your session has expired. Run 'finchat login' to sign in again.")
}

// Target returns the last path navigated to, or "".
func (n *sessionNavigator) Target() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.target
}

// route installs fn as the handler for navigation and returns a restore func.
func (n *sessionNavigator) route(fn func(path string)) func() {
	n.mu.Lock()
	prev := n.onRoute
	n.onRoute = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		n.onRoute = prev
		n.mu.Unlock()
	}
}

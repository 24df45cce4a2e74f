package session

import "sync"

const (
	RouteLogin   = "login"
	RouteHome    = "home"
	RoutePayment = "payment"
)

// Navigator resets the client's screen history.
type Navigator interface {
	ResetTo(route string)
}

// Navigation is the server-side view of the client's route stack.
type Navigation struct {
	mu     sync.Mutex
	stack  []string
	resets int
	notice string
}

func NewNavigation(root string) *Navigation {
	return &Navigation{stack: []string{root}}
}

func (n *Navigation) Push(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stack = append(n.stack, route)
}

// ResetTo drops the history and makes route the only entry.
func (n *Navigation) ResetTo(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stack = []string{route}
	n.resets++
}

func (n *Navigation) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.stack) == 0 {
		return ""
	}
	return n.stack[len(n.stack)-1]
}

func (n *Navigation) Depth() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.stack)
}

func (n *Navigation) Resets() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resets
}

// SetNotice stores a message for the client to show once.
func (n *Navigation) SetNotice(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notice = msg
}

// TakeNotice returns the pending notice and clears it.
func (n *Navigation) TakeNotice() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	msg := n.notice
	n.notice = ""
	return msg
}

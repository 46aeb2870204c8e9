package discord

import "sync"

// confirms tracks pending yes/no gates keyed by the originating interaction
// id. The component dispatcher resolves them when the operator clicks.
type confirms struct {
	mu      sync.Mutex
	pending map[string]chan bool
}

func newConfirms() *confirms {
	return &confirms{pending: make(map[string]chan bool)}
}

func (c *confirms) register(nonce string) <-chan bool {
	ch := make(chan bool, 1)
	c.mu.Lock()
	c.pending[nonce] = ch
	c.mu.Unlock()
	return ch
}

// resolve delivers the answer to the waiting command, if it is still
// waiting. Late clicks after a timeout are ignored.
func (c *confirms) resolve(nonce string, answer bool) bool {
	c.mu.Lock()
	ch, ok := c.pending[nonce]
	delete(c.pending, nonce)
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- answer
	return true
}

func (c *confirms) drop(nonce string) {
	c.mu.Lock()
	delete(c.pending, nonce)
	c.mu.Unlock()
}

package submit

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownPrompt is returned when answering a prompt that expired or
// was already answered.
var ErrUnknownPrompt = errors.New("submit: unknown prompt")

// Prompt is a confirmation waiting for a remote user.
type Prompt struct {
	ID      string
	ItemID  string
	Message string
}

// Broker relays confirmation dialogs of flows running for remote clients.
// A flow's Confirm blocks until Answer is called with the prompt ID or the
// flow's context ends.
type Broker struct {
	mu      sync.Mutex
	pending map[string]chan bool
}

func NewBroker() *Broker {
	return &Broker{pending: make(map[string]chan bool)}
}

// Dialogs returns the dialogs of one flow.
func (b *Broker) Dialogs(itemID string) *RemoteDialogs {
	return &RemoteDialogs{
		broker:  b,
		itemID:  itemID,
		prompts: make(chan Prompt, 1),
	}
}

// Answer delivers the user's answer to prompt id.
func (b *Broker) Answer(id string, confirm bool) error {
	b.mu.Lock()
	ch, ok := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()
	if !ok {
		return ErrUnknownPrompt
	}
	ch <- confirm
	return nil
}

// Pending returns the number of prompts waiting for an answer.
func (b *Broker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Broker) register(id string) chan bool {
	ch := make(chan bool, 1)
	b.mu.Lock()
	b.pending[id] = ch
	b.mu.Unlock()
	return ch
}

func (b *Broker) forget(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// RemoteDialogs implements host.Dialogs for one flow. Prompts are published
// on Prompts; alerts are collected for the response.
type RemoteDialogs struct {
	broker  *Broker
	itemID  string
	prompts chan Prompt

	mu     sync.Mutex
	alerts []string
}

// Prompts delivers the confirmation the flow is waiting on.
func (d *RemoteDialogs) Prompts() <-chan Prompt {
	return d.prompts
}

func (d *RemoteDialogs) Confirm(ctx context.Context, message string) (bool, error) {
	p := Prompt{ID: uuid.NewString(), ItemID: d.itemID, Message: message}
	answer := d.broker.register(p.ID)
	defer d.broker.forget(p.ID)

	select {
	case d.prompts <- p:
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case ok := <-answer:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (d *RemoteDialogs) Alert(_ context.Context, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, message)
	return nil
}

// Alerts returns the alerts shown so far.
func (d *RemoteDialogs) Alerts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.alerts...)
}

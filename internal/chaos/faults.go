// internal/chaos/faults.go
package chaos

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"prestamos/internal/content"
	"prestamos/internal/delivery"
	"prestamos/internal/store"
)

var ErrInjected = errors.New("chaos: injected fault")

// Switch turns a fault on and off. The zero value is off.
type Switch struct {
	on atomic.Bool
}

func (s *Switch) Trip()         { s.on.Store(true) }
func (s *Switch) Reset()        { s.on.Store(false) }
func (s *Switch) Tripped() bool { return s.on.Load() }

func (s *Switch) action(kind, target string, on bool) Action {
	return Action{
		Type:   kind,
		Target: target,
		Execute: func(context.Context) error {
			if on {
				s.Trip()
			} else {
				s.Reset()
			}
			return nil
		},
	}
}

// FaultyProvider fails every send while its switch is tripped.
type FaultyProvider struct {
	delivery.Provider
	Fault *Switch
}

func (p *FaultyProvider) Send(ctx context.Context, msg delivery.Message) (string, error) {
	if p.Fault.Tripped() {
		return "", ErrInjected
	}
	return p.Provider.Send(ctx, msg)
}

// FaultyGenerator fails every generation while its switch is tripped.
type FaultyGenerator struct {
	content.Generator
	Fault *Switch
}

func (g *FaultyGenerator) Generate(ctx context.Context, facts content.Facts) (content.Content, error) {
	if g.Fault.Tripped() {
		return content.Content{}, ErrInjected
	}
	return g.Generator.Generate(ctx, facts)
}

// FaultyStore rejects multi-path updates while its switch is tripped.
// Reads keep working.
type FaultyStore struct {
	store.Store
	UpdateFault *Switch
}

func (s *FaultyStore) Update(ctx context.Context, values map[string]any) error {
	if s.UpdateFault.Tripped() {
		return ErrInjected
	}
	return s.Store.Update(ctx, values)
}

// Sink is an in-memory provider that counts what it accepted.
type Sink struct {
	name string

	mu   sync.Mutex
	sent []delivery.Message
}

func NewSink(name string) *Sink { return &Sink{name: name} }

func (s *Sink) Name() string { return s.name }

func (s *Sink) Send(_ context.Context, msg delivery.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.name + "-" + msg.To, nil
}

func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// EventsChannel is the Redis pub/sub channel session events are relayed on.
const EventsChannel = "auth:events"

type relayedEvent struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// OnSessionChange registers fn for every session transition and returns a
// function that removes it. fn runs on the emitting goroutine and must not
// block.
func (p *Provider) OnSessionChange(fn func(Event)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) dispatch(ev Event) {
	p.mu.RLock()
	fns := make([]func(Event), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// emit delivers ev locally and relays it to other server instances. Relay
// failures are logged and otherwise ignored.
func (p *Provider) emit(ctx context.Context, ev Event) {
	p.dispatch(ev)

	b, err := json.Marshal(relayedEvent{Origin: p.instance, Event: ev})
	if err != nil {
		p.log.Error("marshaling session event", "err", err)
		return
	}
	if err := p.redis.Publish(context.WithoutCancel(ctx), EventsChannel, b).Err(); err != nil {
		p.log.Warn("relaying session event", "type", ev.Type, "err", err)
	}
}

// Listen relays session events published by other instances to local
// subscribers until ctx is cancelled.
func (p *Provider) Listen(ctx context.Context) error {
	sub := p.redis.Subscribe(ctx, EventsChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", EventsChannel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var re relayedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &re); err != nil {
				p.log.Warn("dropping malformed session event", "err", err)
				continue
			}
			if re.Origin == p.instance {
				continue
			}
			p.dispatch(re.Event)
		}
	}
}

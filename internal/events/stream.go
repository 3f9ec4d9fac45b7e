package events

import "github.com/kelindar/event"

// Stream copies every target event published on bus into ch until the
// returned cancel func runs. A full ch drops the event instead of stalling
// the dispatcher queue.
func Stream(bus *Bus, ch chan<- any) (cancel func()) {
	subs := []func(){
		forward[TargetStateChangedEvent](bus, ch),
		forward[TargetSignalEvent](bus, ch),
		forward[TargetAddedEvent](bus, ch),
		forward[TargetRemovedEvent](bus, ch),
	}
	return func() {
		for _, unsub := range subs {
			unsub()
		}
	}
}

func forward[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// Package bus publishes parse events on an asaskevich/EventBus so several
// independent consumers can follow one parse.
package bus

import (
	"context"

	"github.com/asaskevich/EventBus"
	"github.com/modfin/cardx"
)

// DefaultTopic is used when no topic is given.
const DefaultTopic = "cardx:events"

// Event is what travels over the bus. Property events have a Name, data
// events do not; a data event with empty Data ends the property value.
type Event struct {
	Name   string
	Params cardx.Params
	Data   []byte
}

// IsProperty reports whether e is a property event.
func (e Event) IsProperty() bool {
	return e.Name != ""
}

// Publisher is a cardx.Handler that publishes every event on one topic.
// Subscribers are called with (context.Context, bus.Event). Data is copied,
// asynchronous subscribers may keep it.
type Publisher struct {
	bus   EventBus.Bus
	topic string
}

func NewPublisher(b EventBus.Bus, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{bus: b, topic: topic}
}

func (p *Publisher) Property(ctx context.Context, name string, params cardx.Params) error {
	p.bus.Publish(p.topic, ctx, Event{Name: name, Params: params})
	return nil
}

func (p *Publisher) Data(ctx context.Context, data []byte) error {
	var cp []byte
	if len(data) > 0 {
		cp = append(make([]byte, 0, len(data)), data...)
	}
	p.bus.Publish(p.topic, ctx, Event{Data: cp})
	return nil
}

// Subscription is returned by Subscribe.
type Subscription struct {
	bus   EventBus.Bus
	topic string
	fn    func(context.Context, Event)
}

// Subscribe attaches h to topic. EventBus has no way to return errors to the
// publisher, errors from h are handed to onErr, which may be nil.
// With async set, h runs on its own goroutine, events stay in order; call
// WaitAsync on the bus before looking at the results.
func Subscribe(b EventBus.Bus, topic string, h cardx.Handler, async bool, onErr func(error)) (*Subscription, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	fn := func(ctx context.Context, e Event) {
		var err error
		if e.IsProperty() {
			err = h.Property(ctx, e.Name, e.Params)
		} else {
			err = h.Data(ctx, e.Data)
		}
		if err != nil && onErr != nil {
			onErr(err)
		}
	}

	var err error
	if async {
		// transactional, one event at a time
		err = b.SubscribeAsync(topic, fn, true)
	} else {
		err = b.Subscribe(topic, fn)
	}
	if err != nil {
		return nil, err
	}
	return &Subscription{bus: b, topic: topic, fn: fn}, nil
}

// Unsubscribe detaches the handler. EventBus tells handlers apart by their
// code only, with several subscriptions on one topic any one of them is removed.
func (s *Subscription) Unsubscribe() error {
	return s.bus.Unsubscribe(s.topic, s.fn)
}

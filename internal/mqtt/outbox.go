package mqtt

import "github.com/charmbracelet/log"

// bufferedMsg is a serialized MQTT message held until the broker is reachable.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while the broker is unreachable.
// A retained message replaces any earlier retained message on its topic, since
// the broker keeps only the last one. When full, the oldest button edge is
// evicted before any retained status.
// Not safe for concurrent use; RealPublisher guards it with its mutex.
type outbox struct {
	limit   int
	msgs    []bufferedMsg
	dropped int
}

func newOutbox(limit int) *outbox {
	return &outbox{limit: limit}
}

func (o *outbox) add(msg bufferedMsg) {
	if msg.retained {
		for i, m := range o.msgs {
			if m.retained && m.topic == msg.topic {
				o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
				break
			}
		}
	}
	if len(o.msgs) >= o.limit {
		if o.dropped == 0 {
			log.Warn("mqtt outbox full, dropping oldest", "limit", o.limit)
		}
		o.evict()
		o.dropped++
	}
	o.msgs = append(o.msgs, msg)
}

func (o *outbox) evict() {
	for i, m := range o.msgs {
		if !m.retained {
			o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
			return
		}
	}
	o.msgs = o.msgs[1:]
}

// take empties the outbox, returning its messages oldest first and the number
// dropped since the last take.
func (o *outbox) take() ([]bufferedMsg, int) {
	msgs, dropped := o.msgs, o.dropped
	o.msgs = nil
	o.dropped = 0
	return msgs, dropped
}

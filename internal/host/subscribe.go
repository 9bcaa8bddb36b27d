package host

import "github.com/lox/metasino/internal/store"

// Subscribe returns a channel receiving every event recorded from now on and
// a function that cancels the subscription. A subscriber that falls more
// than buffer events behind misses events rather than stalling the host.
func (h *Host) Subscribe(buffer int) (<-chan store.Event, func()) {
	ch := make(chan store.Event, buffer)

	h.subMu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch
	h.subMu.Unlock()

	return ch, func() {
		h.subMu.Lock()
		defer h.subMu.Unlock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
	}
}

func (h *Host) publish(ev store.Event) {
	h.subMu.RLock()
	defer h.subMu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("Subscriber buffer full, dropping event", "subscriber", id, "table", ev.TableID, "seq", ev.Seq)
		}
	}
}

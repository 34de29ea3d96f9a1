package board

// Subscribe returns a buffered channel that receives every published view:
// after each successful Load and each confirmed drop.
func (b *Board) Subscribe() chan View {
	ch := make(chan View, 16)
	b.subMu.Lock()
	b.subs[ch] = struct{}{}
	b.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Board) Unsubscribe(ch chan View) {
	b.subMu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.subMu.Unlock()
}

// publish is called with b.mu held so views arrive in the order the state
// changed. It never blocks.
func (b *Board) publish(v View) {
	b.subMu.RLock()
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			// subscriber is behind; drop rather than block the engine
		}
	}
	b.subMu.RUnlock()
}

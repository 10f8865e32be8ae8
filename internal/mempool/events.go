package mempool

import (
	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

// NewTxEvent announces a transaction admitted to the Unconfirmed pool,
// for gossip relay to peers.
type NewTxEvent struct {
	TxHash      types.Hash
	Transaction *tx.Transaction
}

const defaultTxSubscriberCapacity = 64

type txSubscriber struct {
	ch     chan NewTxEvent
	closed bool
}

// Subscribe registers for newly-admitted transactions. The returned
// func unsubscribes and closes the channel; callers must keep draining
// it until then to avoid blocking publish.
func (p *Pool) Subscribe() (<-chan NewTxEvent, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub := &txSubscriber{ch: make(chan NewTxEvent, defaultTxSubscriberCapacity)}
	p.subscribers = append(p.subscribers, sub)

	unsubscribe := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, s := range p.subscribers {
			if s == sub {
				p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
				break
			}
		}
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}
	return sub.ch, unsubscribe
}

// publish fans ev out to every live subscriber without blocking; a
// subscriber whose buffer is full misses the event. Callers must hold
// p.mu.
func (p *Pool) publish(ev NewTxEvent) {
	for _, sub := range p.subscribers {
		if sub.closed {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

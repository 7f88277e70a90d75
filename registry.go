package main

import (
	"container/list"
)

// registry is the ordered set of live clients. It is owned by the hub
// goroutine and never touched from anywhere else.
type registry struct {
	order   *list.List
	clients map[*client]*list.Element
}

func newRegistry() *registry {
	return &registry{
		order:   list.New(),
		clients: make(map[*client]*list.Element),
	}
}

func (r *registry) add(c *client) {
	if _, ok := r.clients[c]; ok {
		return
	}
	r.clients[c] = r.order.PushBack(c)
	incr("clients", 1)
}

func (r *registry) has(c *client) bool {
	_, ok := r.clients[c]
	return ok
}

// remove drops c from the set and closes it. It reports whether c was
// registered.
func (r *registry) remove(c *client) bool {
	e, ok := r.clients[c]
	if !ok {
		return false
	}
	r.order.Remove(e)
	delete(r.clients, c)
	decr("clients", 1)
	if c.handshake {
		decr("clients.handshaken", 1)
	}
	c.close()
	return true
}

func (r *registry) len() int {
	return len(r.clients)
}

func (r *registry) each(fn func(c *client)) {
	for e := r.order.Front(); e != nil; e = e.Next() {
		fn(e.Value.(*client))
	}
}

// broadcast queues frame on every handshaken client, in insertion order.
// A client whose queue is full misses the frame but stays registered.
func (r *registry) broadcast(frame []byte) (sent, dropped int) {
	r.each(func(c *client) {
		if !c.handshake {
			return
		}
		if c.queue(frame) {
			sent++
			return
		}
		dropped++
	})
	return sent, dropped
}

func (r *registry) stats() registryStats {
	s := registryStats{Clients: r.len()}
	r.each(func(c *client) {
		if c.handshake {
			s.Handshaken++
		}
	})
	return s
}

func (r *registry) closeAll() {
	var all []*client
	r.each(func(c *client) { all = append(all, c) })
	for _, c := range all {
		r.remove(c)
	}
}

type registryStats struct {
	Clients    int `json:"clients"`
	Handshaken int `json:"handshaken"`
}

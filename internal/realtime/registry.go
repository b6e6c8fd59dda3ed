package realtime

import (
	"errors"
	"log"
	"sync"
)

var ErrAlreadyAdmitted = errors.New("connection already admitted")

// Registry is the session registry and channel membership table. It maps
// connection ids to live connections, identities to their connection sets
// (the implicit per-user channel) and topic names to subscriber sets.
//
// It is the only shared mutable state in the realtime core. The router and
// the publisher go through these methods and never touch the maps; each
// method is a single lock-guarded step, so independent connections'
// lifecycle events may interleave freely.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Client
	byUser map[int]map[*Client]struct{}
	topics map[string]map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Client),
		byUser: make(map[int]map[*Client]struct{}),
		topics: make(map[string]map[*Client]struct{}),
	}
}

// Admit registers an authenticated connection and auto-joins it to its
// identity channel in the same step. Admitting the same connection id
// twice is refused without side effects.
func (r *Registry) Admit(c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[c.ID]; ok {
		return ErrAlreadyAdmitted
	}

	r.byID[c.ID] = c
	if _, ok := r.byUser[c.UserID]; !ok {
		r.byUser[c.UserID] = make(map[*Client]struct{})
	}
	r.byUser[c.UserID][c] = struct{}{}
	return nil
}

// Remove deletes the connection from its identity channel and from every
// topic it had joined, pruning empty sets so nothing dangles. Removing an
// unknown id is a logged no-op; other connections must never be affected.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[connID]
	if !ok {
		log.Printf("registry: remove of unknown connection %s", connID)
		return
	}
	delete(r.byID, connID)

	if members, ok := r.byUser[c.UserID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(r.byUser, c.UserID)
		}
	}

	for topic := range c.topics {
		r.dropFromTopic(c, topic)
	}
	c.topics = nil
}

// Lookup returns the live connections for an identity. An offline identity
// yields an empty slice; that is a normal state, not an error.
func (r *Registry) Lookup(userID int) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	conns := make([]*Client, 0, len(members))
	for c := range members {
		conns = append(conns, c)
	}
	return conns
}

// JoinTopic subscribes the connection to a topic channel. Idempotent.
func (r *Registry) JoinTopic(c *Client, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.topics == nil {
		// Connection already removed; a late join must not resurrect it.
		return
	}
	if _, ok := r.topics[topic]; !ok {
		r.topics[topic] = make(map[*Client]struct{})
	}
	r.topics[topic][c] = struct{}{}
	c.topics[topic] = struct{}{}
}

// LeaveTopic unsubscribes the connection. Leaving a topic it never joined
// is a no-op.
func (r *Registry) LeaveTopic(c *Client, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dropFromTopic(c, topic)
	delete(c.topics, topic)
}

// TopicMembers returns the current subscribers of a topic, possibly none.
func (r *Registry) TopicMembers(topic string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.topics[topic]
	if !ok {
		return nil
	}
	conns := make([]*Client, 0, len(members))
	for c := range members {
		conns = append(conns, c)
	}
	return conns
}

// ConnectionCount reports the number of live connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// CloseAll shuts down every live connection. Used at process stop; the
// transport teardown runs each connection's normal cleanup path.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	conns := make([]*Client, 0, len(r.byID))
	for _, c := range r.byID {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		c.shutdown()
	}
}

// dropFromTopic removes c from a topic set and prunes the set when empty.
// Caller holds r.mu.
func (r *Registry) dropFromTopic(c *Client, topic string) {
	members, ok := r.topics[topic]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.topics, topic)
	}
}

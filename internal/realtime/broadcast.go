package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// Publisher pushes one opaque frame per publish to every current member of
// a topic channel. Fire-and-forget: no persistence, no acknowledgement, no
// replay for late joiners. Intentionally decoupled from the per-user
// router.
type Publisher struct {
	registry *Registry
}

func NewPublisher(registry *Registry) *Publisher {
	return &Publisher{registry: registry}
}

// Publish delivers the body to every connection joined to topic and
// returns how many connections were written to. Zero members is a normal
// outcome, not an error.
func (p *Publisher) Publish(topic, contentType string, body []byte) int {
	members := p.registry.TopicMembers(topic)
	if len(members) == 0 {
		return 0
	}

	frame := mustMarshal(ServerEvent{
		Type:        EventBroadcast,
		Topic:       topic,
		ContentType: contentType,
		Body:        string(body),
	})
	for _, c := range members {
		c.enqueue(frame)
	}
	return len(members)
}

// BroadcastRequest is the trigger payload, shared by the HTTP endpoint and
// the Redis bridge. The body is opaque to this core; consumers treat a
// broadcast as a "something changed, refresh" signal.
type BroadcastRequest struct {
	Topic       string `json:"topic"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

// HandleTrigger is the internal HTTP trigger: POST a BroadcastRequest,
// get 202 with the delivered connection count.
func (p *Publisher) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Topic == "" {
		http.Error(w, "Missing topic", http.StatusBadRequest)
		return
	}
	if req.ContentType == "" {
		req.ContentType = "text/plain"
	}

	delivered := p.Publish(req.Topic, req.ContentType, []byte(req.Body))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]int{"delivered": delivered})
}

// RedisBridge subscribes to a Redis channel and republishes each payload
// through the Publisher. It lets the other backend processes (order
// service, admin jobs) fire notifications without talking HTTP to this
// one; in-process fan-out is unchanged.
type RedisBridge struct {
	rdb       *redis.Client
	channel   string
	publisher *Publisher
}

func NewRedisBridge(rdb *redis.Client, channel string, publisher *Publisher) *RedisBridge {
	return &RedisBridge{rdb: rdb, channel: channel, publisher: publisher}
}

// Run consumes trigger payloads until the context is cancelled. A payload
// that does not decode is logged and skipped; the bridge never dies over
// one bad message.
func (b *RedisBridge) Run(ctx context.Context) {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var req BroadcastRequest
			if err := json.Unmarshal([]byte(msg.Payload), &req); err != nil || req.Topic == "" {
				log.Printf("broadcast bridge: dropping malformed payload on %s", b.channel)
				continue
			}
			if req.ContentType == "" {
				req.ContentType = "text/plain"
			}
			b.publisher.Publish(req.Topic, req.ContentType, []byte(req.Body))
		}
	}
}

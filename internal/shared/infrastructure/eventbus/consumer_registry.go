package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// ConsumerRegistry routes events to consumers by routing key. Consumer
// patterns follow RabbitMQ topic rules so a consumer behaves the same
// in process and behind a queue binding: "*" matches one dot-separated
// word and "#" matches zero or more.
type ConsumerRegistry struct {
	mu       sync.RWMutex
	bindings []binding
	logger   *slog.Logger
}

type binding struct {
	pattern  string
	consumer EventConsumer
}

// NewConsumerRegistry creates an empty registry.
func NewConsumerRegistry(logger *slog.Logger) *ConsumerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerRegistry{logger: logger}
}

// Register binds consumer to each pattern it declares.
func (r *ConsumerRegistry) Register(consumer EventConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pattern := range consumer.EventTypes() {
		r.bindings = append(r.bindings, binding{pattern: pattern, consumer: consumer})
	}
}

// EventTypes returns the distinct bound patterns, sorted.
func (r *ConsumerRegistry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.bindings))
	types := make([]string, 0, len(r.bindings))
	for _, b := range r.bindings {
		if _, ok := seen[b.pattern]; ok {
			continue
		}
		seen[b.pattern] = struct{}{}
		types = append(types, b.pattern)
	}
	sort.Strings(types)
	return types
}

// consumersFor returns each consumer bound to routingKey once, in
// registration order.
func (r *ConsumerRegistry) consumersFor(routingKey string) []EventConsumer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []EventConsumer
	for _, b := range r.bindings {
		if !TopicMatches(b.pattern, routingKey) {
			continue
		}
		duplicate := false
		for _, c := range matched {
			if c == b.consumer {
				duplicate = true
				break
			}
		}
		if !duplicate {
			matched = append(matched, b.consumer)
		}
	}
	return matched
}

// Dispatch hands event to every matching consumer. All of them run even
// when one fails; the errors are joined.
func (r *ConsumerRegistry) Dispatch(ctx context.Context, event *ConsumedEvent) error {
	var errs []error
	for _, consumer := range r.consumersFor(event.RoutingKey) {
		if err := consumer.Handle(ctx, event); err != nil {
			r.logger.ErrorContext(ctx, "consumer failed to handle event",
				"routing_key", event.RoutingKey,
				"event_id", event.EventID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TopicMatches reports whether routingKey matches a topic pattern.
func TopicMatches(pattern, routingKey string) bool {
	if pattern == routingKey {
		return true
	}
	return matchWords(strings.Split(pattern, "."), strings.Split(routingKey, "."))
}

func matchWords(pattern, key []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "#":
			rest := pattern[1:]
			for i := 0; i <= len(key); i++ {
				if matchWords(rest, key[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(key) == 0 {
				return false
			}
		default:
			if len(key) == 0 || key[0] != pattern[0] {
				return false
			}
		}
		pattern, key = pattern[1:], key[1:]
	}
	return len(key) == 0
}

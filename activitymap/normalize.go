// Package activitymap flattens storefront activity events into a transport
// agnostic record for log pipelines and audit stores.
package activitymap

import (
	"fmt"
	"strings"
	"time"

	storefront "github.com/goliatone/go-storefront"
)

const (
	// MetadataKeyActorType stores the actor type derived from ActorRef.Type.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyFromState stores the source session state of a transition.
	MetadataKeyFromState = "from_state"
	// MetadataKeyToState stores the target session state of a transition.
	MetadataKeyToState = "to_state"
)

const defaultActorID = "system"

// objectKeys maps a channel to its default object type and the metadata key
// holding the object id.
var objectKeys = map[string]struct {
	objectType string
	idKey      string
}{
	"auth":    {objectType: "user"},
	"session": {objectType: "session"},
	"cart":    {objectType: "product", idKey: "product_id"},
	"order":   {objectType: "order", idKey: "order_id"},
}

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(storefront.ActivityEvent) string
}

// Normalize converts a storefront.ActivityEvent into a Normalized record.
// The channel is the event type prefix ("cart" for "cart.mutation.success")
// unless overridden.
func Normalize(event storefront.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{actorFallback: defaultActorID}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	channel := firstNonEmpty(options.channel, channelOf(event.EventType))
	objectType := firstNonEmpty(options.objectType, objectKeys[channel].objectType)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID: firstNonEmpty(
			strings.TrimSpace(event.Actor.ID),
			strings.TrimSpace(event.UserID),
			options.actorFallback,
		),
		Verb:       string(event.EventType),
		ObjectType: objectType,
		ObjectID:   resolveObjectID(event, channel, options.objectIDResolver),
		Channel:    channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel forces the channel of every record.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType forces the object type of every record.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction.
func WithObjectIDResolver(resolver func(storefront.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the actor id used when the event names no actor.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			opts.actorFallback = actorID
		}
	}
}

func channelOf(t storefront.ActivityEventType) string {
	prefix, _, _ := strings.Cut(string(t), ".")
	return prefix
}

func resolveObjectID(event storefront.ActivityEvent, channel string, resolver func(storefront.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	if key := objectKeys[channel].idKey; key != "" {
		if v, ok := event.Metadata[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return strings.TrimSpace(event.UserID)
}

func normalizeMetadata(event storefront.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)
	set := func(key string, value any, overwrite bool) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[key]; exists && !overwrite {
			return
		}
		metadata[key] = value
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		set(MetadataKeyActorType, actorType, false)
	}
	if event.FromState != "" {
		set(MetadataKeyFromState, string(event.FromState), true)
	}
	if event.ToState != "" {
		set(MetadataKeyToState, string(event.ToState), true)
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

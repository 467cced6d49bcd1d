package audit

import (
	"context"

	id "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
)

// ChannelStore hands events to the in-process audit worker instead of
// writing a sink directly, so request handlers never wait on Kafka or the
// outbox table.
type ChannelStore struct {
	inbox chan<- Event
}

func NewChannelStore(inbox chan<- Event) *ChannelStore {
	return &ChannelStore{inbox: inbox}
}

// Append enqueues the event. A full inbox reports an error instead of
// blocking the request path.
func (s *ChannelStore) Append(_ context.Context, event Event) error {
	select {
	case s.inbox <- event:
		return nil
	default:
		return dErrors.New(dErrors.CodeInternal, "audit inbox is full")
	}
}

// ListByActor is not served from the write path; queries go to the
// materialized sink downstream.
func (s *ChannelStore) ListByActor(context.Context, id.UserID) ([]Event, error) {
	return nil, dErrors.New(dErrors.CodeInternal, "audit reads are served downstream")
}

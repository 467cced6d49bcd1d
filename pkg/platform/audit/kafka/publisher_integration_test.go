//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	id "refward/pkg/domain"
	"refward/pkg/platform/audit"
	auditkafka "refward/pkg/platform/audit/kafka"
	"refward/pkg/testutil/containers"
)

const testTopic = "refward.audit.test"

type PublisherSuite struct {
	suite.Suite
	brokers   []string
	publisher *auditkafka.Publisher
}

func TestPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.brokers = mgr.GetRedpanda(s.T()).Brokers

	publisher, err := auditkafka.New(context.Background(), s.brokers, testTopic)
	s.Require().NoError(err)
	s.publisher = publisher
}

func (s *PublisherSuite) TearDownSuite() {
	if s.publisher != nil {
		s.publisher.Close()
	}
}

func (s *PublisherSuite) TestAppendRoundTrip() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	actor := id.NewUserID()
	event := audit.Event{
		Category:   audit.CategoryCompliance,
		Timestamp:  time.Now().UTC().Truncate(time.Millisecond),
		Actor:      actor,
		Action:     string(audit.EventEarningApproved),
		Resource:   "earning",
		ResourceID: id.NewEarningID().String(),
		Details:    map[string]string{"amount_cents": "2000"},
	}
	s.Require().NoError(s.publisher.Append(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.pollForActor(ctx, consumer, actor)
	s.Require().NotNil(record, "produced event not observed on topic")
	s.Equal(actor.String(), string(record.Key))

	var decoded audit.Event
	s.Require().NoError(json.Unmarshal(record.Value, &decoded))
	s.Equal(event.Action, decoded.Action)
	s.Equal(event.Resource, decoded.Resource)
	s.Equal(event.Details, decoded.Details)
}

func (s *PublisherSuite) TestListByActorUnsupported() {
	_, err := s.publisher.ListByActor(context.Background(), id.NewUserID())
	s.Error(err)
}

// pollForActor fetches until it sees a record keyed by actor. The topic is
// shared across the suite run, so tests match on their own key instead of
// assuming an empty log.
func (s *PublisherSuite) pollForActor(ctx context.Context, consumer *kgo.Client, actor id.UserID) *kgo.Record {
	for {
		fetches := consumer.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return nil
		}
		for _, fetchErr := range fetches.Errors() {
			s.T().Fatalf("fetch error: %v", fetchErr.Err)
		}
		var found *kgo.Record
		fetches.EachRecord(func(r *kgo.Record) {
			if string(r.Key) == actor.String() {
				found = r
			}
		})
		if found != nil {
			return found
		}
	}
}

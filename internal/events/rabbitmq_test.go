package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpup/trailguide/server/internal/lib/geo"
	"github.com/dpup/trailguide/server/internal/lib/navigation"
)

// MockChannel is a mock implementation of Channel
type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind, durable, autoDelete, internal, noWait, args).Error(0)
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(ctx, exchange, key, mandatory, immediate, msg).Error(0)
}

func (m *MockChannel) Close() error {
	return m.Called().Error(0)
}

var here = geo.Point{Latitude: 33.4580, Longitude: 126.9420}

func TestRabbitMQPublisher_Publish(t *testing.T) {
	ch := &MockChannel{}
	ch.On("ExchangeDeclare", "trailguide.navigation", "fanout", true, false, false, false, amqp.Table(nil)).Return(nil)

	var published []amqp.Publishing
	var keys []string
	ch.On("PublishWithContext", mock.Anything, "trailguide.navigation", mock.Anything, false, false, mock.Anything).
		Run(func(args mock.Arguments) {
			keys = append(keys, args.String(2))
			published = append(published, args.Get(5).(amqp.Publishing))
		}).Return(nil)

	publisher, err := NewRabbitMQPublisher(ch, "trailguide.navigation")
	require.NoError(t, err)
	publisher.now = func() time.Time { return time.Unix(1760400000, 0) }

	err = publisher.Publish(context.Background(), "session-1", here, []navigation.Event{
		navigation.RerouteRequested{Reason: navigation.ReasonOffRoute, DistanceToRouteMeters: 72.5},
		navigation.ProximityArrival{StopID: "seongsan", DistanceMeters: 12},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"reroute_requested", "proximity_arrival"}, keys)
	require.Len(t, published, 2)
	assert.Equal(t, "application/json", published[0].ContentType)

	var msg Message
	require.NoError(t, json.Unmarshal(published[1].Body, &msg))
	assert.Equal(t, "session-1", msg.SessionID)
	assert.Equal(t, "proximity_arrival", msg.Type)
	assert.Equal(t, int64(1760400000), msg.Timestamp)
	assert.Equal(t, 33.4580, msg.Location.Latitude)
	assert.JSONEq(t, `{"stop_id":"seongsan","distance_m":12}`, string(msg.Event))

	ch.AssertExpectations(t)
}

func TestRabbitMQPublisher_NoEvents(t *testing.T) {
	ch := &MockChannel{}
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	publisher, err := NewRabbitMQPublisher(ch, "x")
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(context.Background(), "s", here, nil))
	ch.AssertNotCalled(t, "PublishWithContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRabbitMQPublisher_Errors(t *testing.T) {
	ch := &MockChannel{}
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("access refused")).Once()

	_, err := NewRabbitMQPublisher(ch, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declare exchange")

	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(amqp.ErrClosed)
	ch.On("Close").Return(nil)

	publisher, err := NewRabbitMQPublisher(ch, "x")
	require.NoError(t, err)

	err = publisher.Publish(context.Background(), "s", here, []navigation.Event{
		navigation.ProximityApproach{StopID: "a", DistanceMeters: 150},
	})
	assert.ErrorIs(t, err, amqp.ErrClosed)
	assert.NoError(t, publisher.Close())
}

func TestEncode(t *testing.T) {
	bodies, err := Encode("s", here, []navigation.Event{
		navigation.ProximityApproach{StopID: "a", DistanceMeters: 150},
	}, time.Unix(10, 0))
	require.NoError(t, err)
	require.Len(t, bodies, 1)
	assert.JSONEq(t, `{
		"session_id": "s",
		"type": "proximity_approach",
		"location": {"latitude": 33.458, "longitude": 126.942},
		"event": {"stop_id": "a", "distance_m": 150},
		"timestamp": 10
	}`, string(bodies[0]))
}

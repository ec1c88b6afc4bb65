package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"composite/internal/platform/messaging"
	"composite/internal/platform/messaging/memory"
	"composite/internal/platform/messaging/mocks"
	dErrors "composite/pkg/domain-errors"
	"composite/pkg/platform/sentinel"
)

type DispatcherSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	publisher *mocks.MockPublisher
	logger    *slog.Logger
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *DispatcherSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *DispatcherSuite) TestDispatchMessage() {
	s.Run("create event carries envelope and headers", func() {
		got := make(chan messaging.Message, 1)
		s.publisher.EXPECT().
			Publish(gomock.Any(), "products", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, msg messaging.Message) error {
				got <- msg
				return nil
			})

		d := New(s.publisher, WithLogger(s.logger))
		defer func() { s.Require().NoError(d.Close(context.Background())) }()

		ev := NewCreated(1, map[string]any{"productId": 1, "name": "p1"})
		s.Require().NoError(d.Dispatch(context.Background(), "products", ev))

		var msg messaging.Message
		select {
		case msg = <-got:
		case <-time.After(time.Second):
			s.FailNow("event was not published")
		}

		s.Equal("1", msg.Key)
		s.Equal("1", msg.Headers[messaging.HeaderPartitionKey])
		s.Equal("CREATE", msg.Headers[messaging.HeaderEventType])
		_, err := uuid.Parse(msg.Headers[messaging.HeaderEventID])
		s.NoError(err)

		var body map[string]any
		s.Require().NoError(json.Unmarshal(msg.Value, &body))
		s.Equal("CREATE", body["eventType"])
		s.EqualValues(1, body["key"])
		s.Equal("p1", body["data"].(map[string]any)["name"])
		s.NotEmpty(body["eventCreatedAt"])
	})

	s.Run("delete event has null data", func() {
		got := make(chan messaging.Message, 1)
		s.publisher.EXPECT().
			Publish(gomock.Any(), "reviews", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, msg messaging.Message) error {
				got <- msg
				return nil
			})

		d := New(s.publisher, WithLogger(s.logger))
		defer func() { s.Require().NoError(d.Close(context.Background())) }()

		s.Require().NoError(d.Dispatch(context.Background(), "reviews", NewDeleted(7)))

		msg := <-got
		var body map[string]any
		s.Require().NoError(json.Unmarshal(msg.Value, &body))
		s.Equal("DELETE", body["eventType"])
		s.EqualValues(7, body["key"])
		s.Contains(body, "data")
		s.Nil(body["data"])
	})
}

func (s *DispatcherSuite) TestSameKeyKeepsOrder() {
	pub := memory.NewPublisher()
	d := New(pub, WithLogger(s.logger), WithWorkers(4), WithQueueSize(400))

	for i := range 100 {
		key := i%3 + 1
		s.Require().NoError(d.Dispatch(context.Background(), "products", NewCreated(key, i)))
	}
	s.Require().NoError(d.Close(context.Background()))

	msgs := pub.Messages("products")
	s.Require().Len(msgs, 100)

	last := map[string]int{}
	for _, m := range msgs {
		var body struct {
			Data int `json:"data"`
		}
		s.Require().NoError(json.Unmarshal(m.Value, &body))
		if prev, ok := last[m.Key]; ok {
			s.Greater(body.Data, prev, "key %s out of order", m.Key)
		}
		last[m.Key] = body.Data
	}
	s.Len(last, 3)
}

func (s *DispatcherSuite) TestBackpressure() {
	s.Run("full queue rejects without blocking", func() {
		started := make(chan struct{})
		release := make(chan struct{})
		s.publisher.EXPECT().
			Publish(gomock.Any(), "products", gomock.Any()).
			DoAndReturn(func(context.Context, string, messaging.Message) error {
				close(started)
				<-release
				return nil
			})
		s.publisher.EXPECT().Publish(gomock.Any(), "products", gomock.Any()).Return(nil)

		d := New(s.publisher, WithLogger(s.logger), WithWorkers(1), WithQueueSize(1))

		s.Require().NoError(d.Dispatch(context.Background(), "products", NewCreated(1, nil)))
		<-started
		s.Require().NoError(d.Dispatch(context.Background(), "products", NewCreated(1, nil)))

		err := d.Dispatch(context.Background(), "products", NewCreated(1, nil))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDispatchRejected))
		s.ErrorIs(err, sentinel.ErrQueueFull)

		close(release)
		s.Require().NoError(d.Close(context.Background()))
	})

	s.Run("keys on other workers are unaffected", func() {
		release := make(chan struct{})
		started := make(chan struct{})
		s.publisher.EXPECT().
			Publish(gomock.Any(), "products", gomock.Any()).
			DoAndReturn(func(context.Context, string, messaging.Message) error {
				close(started)
				<-release
				return nil
			})
		s.publisher.EXPECT().Publish(gomock.Any(), "products", gomock.Any()).Return(nil).Times(2)

		d := New(s.publisher, WithLogger(s.logger), WithWorkers(2), WithQueueSize(2))

		s.Require().NoError(d.Dispatch(context.Background(), "products", NewCreated(2, nil)))
		<-started
		s.Require().NoError(d.Dispatch(context.Background(), "products", NewCreated(2, nil)))
		s.Require().NoError(d.Dispatch(context.Background(), "products", NewCreated(1, nil)))

		close(release)
		s.Require().NoError(d.Close(context.Background()))
	})
}

func (s *DispatcherSuite) TestPublishFailureIsNotReported() {
	done := make(chan struct{})
	s.publisher.EXPECT().
		Publish(gomock.Any(), "products", gomock.Any()).
		DoAndReturn(func(context.Context, string, messaging.Message) error {
			defer close(done)
			return errors.New("broker down")
		})

	d := New(s.publisher, WithLogger(s.logger))
	s.NoError(d.Dispatch(context.Background(), "products", NewCreated(1, nil)))
	<-done
	s.NoError(d.Close(context.Background()))
}

func (s *DispatcherSuite) TestClose() {
	s.Run("drains queued events", func() {
		pub := memory.NewPublisher()
		d := New(pub, WithLogger(s.logger), WithWorkers(2))
		for i := 1; i <= 10; i++ {
			s.Require().NoError(d.Dispatch(context.Background(), "reviews", NewDeleted(i)))
		}
		s.Require().NoError(d.Close(context.Background()))
		s.Len(pub.Messages("reviews"), 10)
	})

	s.Run("rejects after close", func() {
		d := New(memory.NewPublisher(), WithLogger(s.logger))
		s.Require().NoError(d.Close(context.Background()))
		s.NoError(d.Close(context.Background()))

		err := d.Dispatch(context.Background(), "products", NewDeleted(1))
		s.True(dErrors.HasCode(err, dErrors.CodeDispatchRejected))
		s.ErrorIs(err, sentinel.ErrClosed)
	})

	s.Run("gives up when context ends", func() {
		release := make(chan struct{})
		defer close(release)
		s.publisher.EXPECT().
			Publish(gomock.Any(), "products", gomock.Any()).
			DoAndReturn(func(context.Context, string, messaging.Message) error {
				<-release
				return nil
			})

		d := New(s.publisher, WithLogger(s.logger), WithWorkers(1))
		s.Require().NoError(d.Dispatch(context.Background(), "products", NewCreated(1, nil)))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := d.Close(ctx)
		s.ErrorIs(err, context.DeadlineExceeded)
	})
}

func TestWorkerFor(t *testing.T) {
	d := &Dispatcher{workers: 4}
	for key := -8; key <= 8; key++ {
		w := d.workerFor(key)
		if w < 0 || w >= 4 {
			t.Fatalf("key %s mapped to worker %d", strconv.Itoa(key), w)
		}
	}
	if d.workerFor(5) != d.workerFor(5) {
		t.Fatal("routing must be stable")
	}
}

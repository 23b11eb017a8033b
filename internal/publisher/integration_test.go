//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) config(name string) Config {
	return Config{
		URL:        s.amqpURL,
		Exchange:   "exchange-" + name,
		RoutingKey: "routing-" + name,
		QueueName:  "queue-" + name,
	}
}

func (s *RabbitMQIntegrationSuite) TestPublisher_Connection() {
	pub, err := NewRabbitMQ(s.config("connection"), s.logger)
	s.NoError(err)
	s.NotNil(pub)

	s.NoError(pub.Close())
}

func (s *RabbitMQIntegrationSuite) TestSend_DeliversConfirmedMessage() {
	cfg := s.config("send")
	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	text := "City: Beograd\nPrice: 110,000\nLink: https://x/1"
	s.Require().NoError(pub.Send(s.ctx, "chat-42", text))

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	s.Equal("application/json", msg.ContentType)
	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)

	var received NotificationMessage
	s.Require().NoError(json.Unmarshal(msg.Body, &received))
	s.Equal("chat-42", received.ChatID)
	s.Equal(text, received.Text)
	s.False(received.Timestamp.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestSend_PreservesOrder() {
	cfg := s.config("order")
	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	for _, chat := range []string{"a", "b", "c"} {
		s.Require().NoError(pub.Send(s.ctx, chat, "hello "+chat))
	}

	var got []string
	for i := 0; i < 3; i++ {
		msg := s.consumeMessage(cfg)
		s.Require().NotNil(msg)
		var received NotificationMessage
		s.Require().NoError(json.Unmarshal(msg.Body, &received))
		got = append(got, received.ChatID)
	}
	s.Equal([]string{"a", "b", "c"}, got)
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msg, ok, err := ch.Get(cfg.QueueName, true)
	deadline := time.Now().Add(5 * time.Second)
	for err == nil && !ok && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
		msg, ok, err = ch.Get(cfg.QueueName, true)
	}
	s.Require().NoError(err)
	if !ok {
		s.Fail("Timeout waiting for message")
		return nil
	}
	return &msg
}

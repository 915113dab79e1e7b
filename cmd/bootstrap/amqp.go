package bootstrap

import (
	"context"

	"expertbooking/internal/infra/notify"
	"expertbooking/internal/pkg/config"
	"expertbooking/internal/usecase/shared"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
)

var AMQPModule = fx.Module("amqp",
	fx.Provide(
		NewAMQPConnection,
		fx.Annotate(
			NewNotificationPublisher,
			fx.As(new(shared.NotificationPublisher)),
		),
	),
)

func NewAMQPConnection(lc fx.Lifecycle, cfg config.Config) (*amqp.Connection, error) {
	conn, err := amqp.Dial(cfg.AMQP.URL)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return conn.Close()
		},
	})

	return conn, nil
}

func NewNotificationPublisher(conn *amqp.Connection, cfg config.Config) (*notify.Publisher, error) {
	return notify.NewPublisher(conn, cfg.AMQP.Queue)
}

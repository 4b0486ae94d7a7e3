package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/segbench/internal/util"
	"github.com/OFFIS-RIT/segbench/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// EvaluateQueue carries EvaluateJobMsg bodies for the worker.
const EvaluateQueue = "evaluate_queue"

// retryTTL is how long a failed delivery waits in the _retry queue before
// it is dead-lettered back to its origin queue.
const retryTTL = int32(10000)

// EvaluateJobMsg asks the worker to execute a stored run.
type EvaluateJobMsg struct {
	ID string `json:"id"`
}

// Declarer is the part of *amqp091.Channel used to declare queues.
type Declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
}

// Publisher is the part of *amqp091.Channel used to publish.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// ConnURL builds the broker url from the RABBITMQ_* variables.
func ConnURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnv("RABBITMQ_USER"),
		util.GetEnv("RABBITMQ_PASSWORD"),
		util.GetEnv("RABBITMQ_HOST"),
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)
}

// Init dials the broker, retrying while it starts up.
func Init(ctx context.Context) (*amqp091.Connection, error) {
	url := ConnURL()
	return util.RetryWithContext(ctx, 5, 2*time.Second, func(ctx context.Context) (*amqp091.Connection, error) {
		conn, err := amqp091.Dial(url)
		if err != nil {
			logger.Warn("[Queue] Failed to connect to RabbitMQ", "err", err)
		}
		return conn, err
	})
}

// SetupQueues declares each queue with its _dlq and _retry companions.
func SetupQueues(ch Declarer, queueNames []string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             retryTTL,
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", retryName, err)
		}
	}

	return nil
}

// Publish sends a persistent message to queueName on the default exchange.
func Publish(ctx context.Context, ch Publisher, queueName string, data []byte, headers amqp091.Table) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.PublishWithContext(ctx, "", queueName, false, false, publishing)
}

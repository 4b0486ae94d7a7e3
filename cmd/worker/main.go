package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/segbench/internal/bootstrap"
	"github.com/OFFIS-RIT/segbench/internal/queue"
	"github.com/OFFIS-RIT/segbench/internal/store"
	"github.com/OFFIS-RIT/segbench/internal/util"
	"github.com/OFFIS-RIT/segbench/pkg/leaselock"
	"github.com/OFFIS-RIT/segbench/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	util.LoadEnv()
	bootstrap.InitLogger("worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiClient, err := bootstrap.NewAIClient(ctx)
	if err != nil {
		logger.Fatal("Could not create AI client", "err", err)
	}

	dbURL := util.GetEnv("DATABASE_URL")
	if err := store.Migrate(dbURL); err != nil {
		logger.Fatal("Failed to migrate database", "err", err)
	}
	pgConn, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	handler := queue.NewHandler(queue.NewHandlerParams{
		Runs:   store.NewRunStore(pgConn),
		Runner: bootstrap.NewOrchestrator(aiClient),
		Locks:  leaselock.New(pgConn, leaselock.Options{Owner: "worker-"}),
	})

	conn, err := queue.Init(ctx)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.EvaluateQueue}); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	// one evaluation at a time per worker
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := ch.Consume(
		queue.EvaluateQueue,
		"evaluate_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.EvaluateQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.EvaluateQueue)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.EvaluateQueue)
				return
			}

			startTime := time.Now()
			logger.Info("Received message", "queue", queue.EvaluateQueue)

			if err := handler.ProcessEvaluateMessage(ctx, msg.Body); err != nil {
				logger.Error("Error processing message", "queue", queue.EvaluateQueue, "err", err)
				queue.HandleProcessingError(context.WithoutCancel(ctx), ch, msg, queue.EvaluateQueue, err)
			} else if err := msg.Ack(false); err != nil {
				logger.Error("Failed to ack message", "err", err)
			}

			bootstrap.LogMetrics(aiClient, "[Worker]")
			logger.Info("Processing time", "duration", time.Since(startTime).Round(time.Second).String())
		}
	}
}

// Package worker runs the background retraining loop: transaction events
// from AMQP mark the model dirty, and a debounced loop retrains at most
// once per interval.
package worker

import (
	"context"
	"log/slog"
	"time"

	"moneta/internal/amqp"
	"moneta/internal/services"
)

type RetrainWorker struct {
	classifier   *services.ClassifierService
	transactions services.TransactionRepo
	client       *amqp.Client
	minInterval  time.Duration

	dirty chan struct{}
}

func NewRetrainWorker(classifier *services.ClassifierService, transactions services.TransactionRepo, client *amqp.Client, minInterval time.Duration) *RetrainWorker {
	if minInterval <= 0 {
		minInterval = 30 * time.Second
	}
	return &RetrainWorker{
		classifier:   classifier,
		transactions: transactions,
		client:       client,
		minInterval:  minInterval,
		dirty:        make(chan struct{}, 1),
	}
}

// StartupTrainCheck trains once at startup when the classifier is not
// ready but labeled transactions already exist, e.g. after a lost model.
func (w *RetrainWorker) StartupTrainCheck(ctx context.Context) error {
	if w.classifier.Status().Ready {
		return nil
	}
	count, err := w.transactions.CountAll(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		slog.InfoContext(ctx, "No transactions yet, skipping startup training")
		return nil
	}
	trained, err := w.classifier.Train(ctx)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Startup training finished", "trained", trained)
	return nil
}

// Run consumes transaction events and retrains the classifier, coalescing
// bursts of events into a single run and spacing runs by minInterval.
// It blocks until the context is cancelled.
func (w *RetrainWorker) Run(ctx context.Context) error {
	go w.retrainLoop(ctx)

	return w.client.ConsumeTransactionChanged(ctx, func(msg *amqp.TransactionChangedMessage) error {
		slog.DebugContext(ctx, "Transaction event received",
			"id", msg.ID, "action", msg.Action)
		w.markDirty()
		return nil
	})
}

func (w *RetrainWorker) markDirty() {
	select {
	case w.dirty <- struct{}{}:
	default:
	}
}

func (w *RetrainWorker) retrainLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.dirty:
		}

		trained, err := w.classifier.Train(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Retraining failed", "error", err)
		} else if trained {
			status := w.classifier.Status()
			slog.InfoContext(ctx, "Retraining finished", "labels", status.Labels)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.minInterval):
		}
	}
}

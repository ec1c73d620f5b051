package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"moneta/internal/classifier"
	"moneta/internal/core"
	"moneta/internal/modelstore"
)

// SentinelLabel is returned when no confident prediction is available.
const SentinelLabel = "uncategorized"

const defaultTrainPageSize = 100

// ClassifierService owns the live classifier model and drives its
// lifecycle: load with backup recovery, paged training with an atomic
// model swap, best-effort persistence, lazy prediction and reset.
type ClassifierService struct {
	store        modelstore.Store
	transactions TransactionRepo
	pageSize     int

	mu          sync.RWMutex
	model       *classifier.Model
	ready       bool
	lastTrained time.Time

	// training collapses concurrent Train calls onto a single run;
	// late callers share the first run's result instead of interleaving.
	training singleflight.Group
}

// Status is a snapshot of the service for operators and callers that want
// to decide whether to train proactively.
type Status struct {
	Ready         bool
	LastTrained   time.Time
	PrimaryExists bool
	BackupExists  bool
	Labels        int
}

func NewClassifierService(store modelstore.Store, transactions TransactionRepo, pageSize int) *ClassifierService {
	if pageSize <= 0 {
		pageSize = defaultTrainPageSize
	}
	return &ClassifierService{
		store:        store,
		transactions: transactions,
		pageSize:     pageSize,
		model:        classifier.New(),
	}
}

// Load restores the persisted model at startup. A missing, empty or
// malformed primary falls back exactly once to the backup slot; a
// recovered backup is promoted back to primary. When both fail the
// corrupt primary is deleted and the service stays uninitialized with an
// empty model. Load never returns an error, only whether a model is ready.
func (s *ClassifierService) Load(ctx context.Context) bool {
	model, err := s.store.Load()
	if err == nil {
		s.install(model, time.Time{})
		slog.InfoContext(ctx, "Classifier model loaded", "labels", model.Labels(), "documents", model.Documents())
		return true
	}
	if errors.Is(err, modelstore.ErrNotFound) {
		slog.InfoContext(ctx, "No primary model artifact, trying backup")
	} else {
		slog.WarnContext(ctx, "Primary model artifact unreadable, trying backup", "error", err)
	}

	backup, berr := s.store.LoadBackup()
	if berr == nil {
		if perr := s.store.PromoteBackup(); perr != nil {
			slog.WarnContext(ctx, "Failed to promote backup to primary", "error", perr)
		}
		s.install(backup, time.Time{})
		slog.WarnContext(ctx, "Classifier model recovered from backup",
			"labels", backup.Labels(), "documents", backup.Documents())
		return true
	}

	if !errors.Is(err, modelstore.ErrNotFound) || !errors.Is(berr, modelstore.ErrNotFound) {
		// Both generations are gone; training data still exists in the
		// transaction store, but the trained state is lost.
		slog.WarnContext(ctx, "Classifier model unrecoverable, starting empty",
			"primary_error", err, "backup_error", berr)
	}
	if rerr := s.store.RemovePrimary(); rerr != nil {
		slog.WarnContext(ctx, "Failed to remove corrupt primary artifact", "error", rerr)
	}
	s.clear()
	return false
}

// Train rebuilds the model from every labeled transaction, streaming in
// fixed-size pages. It returns false when no training examples exist, in
// which case the live model and readiness are untouched. Only one training
// run executes at a time; concurrent callers share its outcome.
func (s *ClassifierService) Train(ctx context.Context) (bool, error) {
	v, err, _ := s.training.Do("train", func() (any, error) {
		return s.train(ctx)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (s *ClassifierService) train(ctx context.Context) (bool, error) {
	model := classifier.New()
	examples := 0
	skip := 0
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		page, err := s.transactions.FindPage(ctx, skip, s.pageSize)
		if err != nil {
			return false, fmt.Errorf("load training page at offset %d: %w", skip, err)
		}
		for _, tx := range page {
			if tx.CategoryName == "" {
				continue
			}
			model.Train(classifier.Normalize(tx.Description, string(tx.Type)), tx.CategoryName)
			examples++
		}
		if len(page) < s.pageSize {
			break
		}
		skip += len(page)
	}

	if examples == 0 {
		slog.InfoContext(ctx, "Training skipped, no labeled transactions")
		return false, nil
	}

	s.install(model, time.Now())
	slog.InfoContext(ctx, "Classifier model trained",
		"examples", examples, "labels", model.Labels())

	// Persistence is best effort: the swapped-in model stays active even
	// when the on-disk copy could not be updated. Status exposes the gap.
	if err := s.store.Save(model); err != nil {
		slog.WarnContext(ctx, "Failed to persist trained model, in-memory model remains active", "error", err)
	}
	return true, nil
}

// Predict returns the best category label for a transaction. When the
// service is not ready it attempts one synchronous training run first.
// Prediction never fails; it degrades to the sentinel label.
func (s *ClassifierService) Predict(ctx context.Context, description string, t core.TransactionType) string {
	model, ready := s.snapshot()
	if !ready {
		if _, err := s.Train(ctx); err != nil {
			slog.WarnContext(ctx, "Lazy training before prediction failed", "error", err)
		}
		if model, ready = s.snapshot(); !ready {
			return SentinelLabel
		}
	}
	label, ok := model.Predict(classifier.Normalize(description, string(t)))
	if !ok {
		return SentinelLabel
	}
	return label
}

// Reset deletes both persisted artifacts and replaces the live model with
// an empty one.
func (s *ClassifierService) Reset(ctx context.Context) error {
	if err := s.store.RemoveAll(); err != nil {
		return fmt.Errorf("remove model artifacts: %w", err)
	}
	s.clear()
	slog.InfoContext(ctx, "Classifier model reset")
	return nil
}

func (s *ClassifierService) Status() Status {
	s.mu.RLock()
	ready, last, labels := s.ready, s.lastTrained, s.model.Labels()
	s.mu.RUnlock()
	return Status{
		Ready:         ready,
		LastTrained:   last,
		PrimaryExists: s.store.PrimaryExists(),
		BackupExists:  s.store.BackupExists(),
		Labels:        labels,
	}
}

func (s *ClassifierService) install(model *classifier.Model, trainedAt time.Time) {
	s.mu.Lock()
	s.model = model
	s.ready = true
	s.lastTrained = trainedAt
	s.mu.Unlock()
}

func (s *ClassifierService) clear() {
	s.mu.Lock()
	s.model = classifier.New()
	s.ready = false
	s.lastTrained = time.Time{}
	s.mu.Unlock()
}

func (s *ClassifierService) snapshot() (*classifier.Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model, s.ready
}

package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"moneta/internal/classifier"
)

const (
	// MinEvaluationSamples is the smallest labeled set Evaluate accepts.
	MinEvaluationSamples = 10
	// DefaultSampleCap bounds how many transactions evaluation fetches
	// when the caller does not specify a cap.
	DefaultSampleCap = 1000

	evalFetchPageSize = 100
)

// EvaluationService measures predictive quality on ephemeral models built
// from stored labeled transactions. It holds no state shared with the
// production classifier and never mutates it.
type EvaluationService struct {
	transactions TransactionRepo
}

// LabelMetrics are the per-label derived scores of an evaluation run.
// Every ratio is 0 when its denominator is 0.
type LabelMetrics struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// EvaluationReport is the outcome of a single 80/20 train/test run.
type EvaluationReport struct {
	Samples   int
	TrainSize int
	TestSize  int
	Correct   int
	Accuracy  float64
	// Confusion maps actual label -> predicted label -> count over the
	// union of labels seen in truths and predictions.
	Confusion map[string]map[string]int
	Metrics   map[string]LabelMetrics
}

// FoldResult is one held-out fold of a cross-validation run.
type FoldResult struct {
	Fold      int
	TrainSize int
	TestSize  int
	Correct   int
	Accuracy  float64
}

type CrossValidationReport struct {
	Samples      int
	Folds        []FoldResult
	MeanAccuracy float64
}

func NewEvaluationService(transactions TransactionRepo) *EvaluationService {
	return &EvaluationService{transactions: transactions}
}

// Evaluate trains a throwaway model on the first 80% of up to sampleCap
// labeled transactions (in stored order, no shuffling) and scores it on
// the remaining 20%.
func (s *EvaluationService) Evaluate(ctx context.Context, sampleCap int) (*EvaluationReport, error) {
	examples, err := s.fetchExamples(ctx, sampleCap)
	if err != nil {
		return nil, err
	}
	if len(examples) < MinEvaluationSamples {
		return nil, fmt.Errorf("%w: have %d labeled transactions, need at least %d",
			ErrInsufficientData, len(examples), MinEvaluationSamples)
	}

	split := len(examples) * 4 / 5
	trainSet, testSet := examples[:split], examples[split:]

	model := classifier.New()
	for _, ex := range trainSet {
		model.Train(ex.Text, ex.Label)
	}

	report := &EvaluationReport{
		Samples:   len(examples),
		TrainSize: len(trainSet),
		TestSize:  len(testSet),
		Confusion: make(map[string]map[string]int),
	}
	for _, ex := range testSet {
		predicted, ok := model.Predict(ex.Text)
		if !ok {
			predicted = SentinelLabel
		}
		row, exists := report.Confusion[ex.Label]
		if !exists {
			row = make(map[string]int)
			report.Confusion[ex.Label] = row
		}
		row[predicted]++
		if predicted == ex.Label {
			report.Correct++
		}
	}
	if report.TestSize > 0 {
		report.Accuracy = float64(report.Correct) / float64(report.TestSize)
	}
	report.Metrics = deriveMetrics(report.Confusion)
	return report, nil
}

// CrossValidate partitions up to sampleCap labeled transactions into k
// contiguous folds and scores each fold against a model trained on the
// others. Folds run concurrently; each builds its own isolated model.
func (s *EvaluationService) CrossValidate(ctx context.Context, k, sampleCap int) (*CrossValidationReport, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidFoldCount, k)
	}
	examples, err := s.fetchExamples(ctx, sampleCap)
	if err != nil {
		return nil, err
	}
	if len(examples) < 2*k {
		return nil, fmt.Errorf("%w: have %d labeled transactions, need at least %d for %d folds",
			ErrInsufficientData, len(examples), 2*k, k)
	}

	n := len(examples)
	report := &CrossValidationReport{
		Samples: n,
		Folds:   make([]FoldResult, k),
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for i := 0; i < k; i++ {
		fold := i
		start, end := fold*n/k, (fold+1)*n/k
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			model := classifier.New()
			for j, ex := range examples {
				if j >= start && j < end {
					continue
				}
				model.Train(ex.Text, ex.Label)
			}
			result := FoldResult{
				Fold:      fold,
				TrainSize: n - (end - start),
				TestSize:  end - start,
			}
			for _, ex := range examples[start:end] {
				predicted, ok := model.Predict(ex.Text)
				if ok && predicted == ex.Label {
					result.Correct++
				}
			}
			if result.TestSize > 0 {
				result.Accuracy = float64(result.Correct) / float64(result.TestSize)
			}
			mu.Lock()
			report.Folds[fold] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum := 0.0
	for _, fold := range report.Folds {
		sum += fold.Accuracy
	}
	report.MeanAccuracy = sum / float64(k)
	return report, nil
}

// fetchExamples pages through stored transactions in id order and builds
// up to cap training examples from the ones that carry a category.
func (s *EvaluationService) fetchExamples(ctx context.Context, cap int) ([]classifier.Example, error) {
	if cap <= 0 {
		cap = DefaultSampleCap
	}
	examples := make([]classifier.Example, 0, min(cap, evalFetchPageSize))
	skip := 0
	for len(examples) < cap {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := s.transactions.FindPage(ctx, skip, evalFetchPageSize)
		if err != nil {
			return nil, fmt.Errorf("load evaluation page at offset %d: %w", skip, err)
		}
		for _, tx := range page {
			if tx.CategoryName == "" {
				continue
			}
			examples = append(examples, classifier.Example{
				Text:  classifier.Normalize(tx.Description, string(tx.Type)),
				Label: tx.CategoryName,
			})
			if len(examples) == cap {
				break
			}
		}
		if len(page) < evalFetchPageSize {
			break
		}
		skip += len(page)
	}
	return examples, nil
}

func deriveMetrics(confusion map[string]map[string]int) map[string]LabelMetrics {
	labels := make(map[string]struct{})
	for actual, row := range confusion {
		labels[actual] = struct{}{}
		for predicted := range row {
			labels[predicted] = struct{}{}
		}
	}

	names := make([]string, 0, len(labels))
	for label := range labels {
		names = append(names, label)
	}
	sort.Strings(names)

	metrics := make(map[string]LabelMetrics, len(names))
	for _, label := range names {
		tp := confusion[label][label]
		fn := 0
		for _, count := range confusion[label] {
			fn += count
		}
		fn -= tp
		fp := 0
		for actual, row := range confusion {
			if actual == label {
				continue
			}
			fp += row[label]
		}

		m := LabelMetrics{Support: tp + fn}
		if tp+fp > 0 {
			m.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			m.Recall = float64(tp) / float64(tp+fn)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		metrics[label] = m
	}
	return metrics
}

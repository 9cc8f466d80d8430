package predictor

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/quantora/mlserve/internal/dataset"
	"github.com/quantora/mlserve/internal/metrics"
	"github.com/quantora/mlserve/internal/models"
)

// BatchItem is one input of a batch prediction.
type BatchItem struct {
	Symbol string
	Frame  *dataset.Frame
}

// BatchPredict fans the pipeline out over a bounded worker pool. Results
// arrive in completion order, not input order. A failing item is logged and
// excluded from the result list; it never aborts sibling items or the batch.
func (p *Pipeline) BatchPredict(ctx context.Context, name string, items []BatchItem) []*models.PredictionResult {
	if len(items) == 0 {
		return nil
	}

	jobs := make(chan BatchItem)
	results := make(chan *models.PredictionResult)

	var wg sync.WaitGroup
	for w := 0; w < p.batchWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				itemID := uuid.NewString()
				res, err := p.Predict(ctx, name, item.Symbol, item.Frame, 0)
				if err != nil {
					p.logger.WithError(err).WithFields(logrus.Fields{
						"item_id": itemID,
						"model":   name,
						"symbol":  item.Symbol,
					}).Warn("Batch item failed")
					metrics.BatchItemsTotal.WithLabelValues("failed").Inc()
					continue
				}
				metrics.BatchItemsTotal.WithLabelValues("ok").Inc()
				results <- res
			}
		}()
	}

	go func() {
		for _, item := range items {
			jobs <- item
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	out := make([]*models.PredictionResult, 0, len(items))
	for res := range results {
		out = append(out, res)
	}
	return out
}

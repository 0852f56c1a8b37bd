package catalog

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"daigo/pkg/logger"
)

// Probe names one (color, size) combination to check exactly.
type Probe struct {
	ColorCode string
	SizeCode  string
}

// BuildProbeSet prunes the full color x size grid against the stock union:
// a size absent from the union has no stock in any color, so probing it
// would only burn quota on a known answer.
func BuildProbeSet(colorCodes, sizeCodes []string, union map[string]bool) []Probe {
	probes := make([]Probe, 0, len(colorCodes)*len(sizeCodes))
	for _, c := range colorCodes {
		for _, s := range sizeCodes {
			if union[s] {
				probes = append(probes, Probe{ColorCode: c, SizeCode: s})
			}
		}
	}
	return probes
}

// Reconciler resolves exact per-(color, size) availability for one product
// by running the pruned probe set with bounded parallelism.
type Reconciler struct {
	client      *Client
	concurrency int
}

func NewReconciler(client *Client, concurrency int) *Reconciler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reconciler{client: client, concurrency: concurrency}
}

// Run executes the probes and returns availability keyed by color code then
// size code. Probe failures count as out of stock, so the batch itself never
// fails; a canceled context stops scheduling new probes.
func (r *Reconciler) Run(ctx context.Context, code string, probes []Probe) map[string]map[string]bool {
	result := make(map[string]map[string]bool, len(probes))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, p := range probes {
		p := p
		g.Go(func() error {
			ok := false
			if gctx.Err() == nil {
				ok = r.client.HasStock(gctx, code, p.ColorCode, p.SizeCode)
			}
			mu.Lock()
			byColor, exists := result[p.ColorCode]
			if !exists {
				byColor = make(map[string]bool)
				result[p.ColorCode] = byColor
			}
			byColor[p.SizeCode] = ok
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	logger.DebugCF("catalog", "stock reconciliation complete", map[string]interface{}{
		logger.FieldProductCode: code,
		logger.FieldCount:       len(probes),
	})
	return result
}

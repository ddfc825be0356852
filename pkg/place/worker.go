package place

import (
	"sort"
	"sync"

	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// WorkerPool evaluates independent tryPlaceTable candidates in parallel, per spec
// §4.8's "Scheduling model": each call is pure with respect to the current Placed
// history and emits a candidate that is later merged deterministically by original
// request index, so results never depend on goroutine scheduling order. A fixed
// channel of work items feeds a fixed goroutine count, drained with a WaitGroup.
type WorkerPool struct {
	NumWorkers int
}

// NewWorkerPool returns a pool sized to n, or at least one worker when n <= 0.
func NewWorkerPool(n int) *WorkerPool {
	if n <= 0 {
		n = 1
	}
	return &WorkerPool{NumWorkers: n}
}

type placeRequest struct {
	index int
	table *ir.Table
}

type placeResponse struct {
	index   int
	table   string
	placed  *Placed
	ok      bool
}

// EvaluateAll runs tryPlaceTable for every table in names against the same base
// placed history and returns the successful candidates indexed by name, merged in
// the deterministic request order of names regardless of which goroutine finished
// first.
func (wp *WorkerPool) EvaluateAll(tables map[string]*ir.Table, stage int, nextLogicalID int, base *Placed, mem device.MemoryAllocator, xbar device.CrossbarAllocator, imem device.ImemAllocator, names []string) map[string]*Placed {
	reqs := make(chan placeRequest, len(names))
	for i, name := range names {
		reqs <- placeRequest{index: i, table: tables[name]}
	}
	close(reqs)

	resps := make([]placeResponse, len(names))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < wp.NumWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range reqs {
				candidate, ok := tryPlaceTable(req.table, stage, nextLogicalID+req.index, base, mem, xbar, imem)
				mu.Lock()
				resps[req.index] = placeResponse{index: req.index, table: req.table.Name, placed: candidate, ok: ok}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Slice(resps, func(i, j int) bool { return resps[i].index < resps[j].index })
	out := make(map[string]*Placed, len(names))
	for _, r := range resps {
		if r.ok {
			out[r.table] = r.placed
		}
	}
	return out
}

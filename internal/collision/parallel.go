package collision

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/contactsim/internal/dynamo"
)

func (s *Solver) workers() int {
	if s.settings.Workers > 0 {
		return s.settings.Workers
	}
	return dynamo.Workers()
}

// ApplyParallel runs Apply over islands concurrently. Islands must not
// share a movable particle; BuildIslands produces such a partition.
// Within an island contacts are solved in order.
func (s *Solver) ApplyParallel(dt float64, islands [][]*Handle, iteration, totalIterations int) bool {
	s.container.lock()
	defer s.container.unlock()

	// The group only bounds concurrency; island tasks cannot fail and report
	// through needsAnother.
	var needsAnother atomic.Bool
	var g errgroup.Group
	g.SetLimit(s.workers())
	for _, island := range islands {
		g.Go(func() error {
			var scratch []ContactPoint
			if s.apply(dt, island, &scratch) {
				needsAnother.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()
	return needsAnother.Load()
}

// ApplyPushOutParallel is the island-parallel form of ApplyPushOut. The
// same disjointness requirement applies.
func (s *Solver) ApplyPushOutParallel(dt float64, islands [][]*Handle, static StaticSet, iteration, totalIterations int) bool {
	s.container.lock()
	defer s.container.unlock()

	// The group only bounds concurrency; island tasks cannot fail and report
	// through needsAnother.
	var needsAnother atomic.Bool
	var g errgroup.Group
	g.SetLimit(s.workers())
	for _, island := range islands {
		g.Go(func() error {
			var scratch []ContactPoint
			if s.pushOut(island, static, iteration, totalIterations, &scratch) {
				needsAnother.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()
	return needsAnother.Load()
}

// Copyright (c) 2024 EffortlessMetrics
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package executor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/EffortlessMetrics/shipper/internal/shipper/store"
	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
)

// Parallel runs the engine over a plan's dependency levels: level 0 has no
// in-plan dependencies, level k's packages all depend only on levels < k.
// Levels are a strict barrier — level k+1 never starts until every package
// in level k has reached a terminal (or fatally-aborted) state. Within a
// level, up to MaxConcurrent packages run concurrently.
type Parallel struct {
	engine        *Engine
	maxConcurrent int
}

// NewParallel creates a Parallel executor over engine, bounding per-level
// fan-out at maxConcurrent (clamped to at least 1).
func NewParallel(engine *Engine, maxConcurrent int) *Parallel {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Parallel{engine: engine, maxConcurrent: maxConcurrent}
}

// Run partitions plan into dependency levels and drives each level's
// packages through the engine, up to MaxConcurrent at a time. If any package
// in a level returns Failed{Permanent}, the rest of that level is still
// allowed to finish (errgroup.Group without a derived context never cancels
// sibling goroutines); once the level completes, no further level starts.
func (p *Parallel) Run(ctx context.Context, plan *types.ReleasePlan, state *types.ExecutionState, token string) error {
	if err := p.engine.emit(store.EventExecutionStarted, "", nil); err != nil {
		return err
	}

	levels := computeLevels(plan)

	var fatal error
	for _, level := range levels {
		var g errgroup.Group
		g.SetLimit(p.maxConcurrent)

		for _, pkg := range level {
			pkg := pkg
			g.Go(func() error {
				return p.engine.runPackage(ctx, plan, state, token, pkg)
			})
		}

		if err := g.Wait(); err != nil {
			fatal = err
			break
		}
	}

	if fatal != nil {
		_ = p.engine.emit(store.EventExecutionFinished, "", map[string]string{"outcome": "aborted", "reason": fatal.Error()})
		return fatal
	}

	return p.engine.emit(store.EventExecutionFinished, "", map[string]string{"outcome": "completed"})
}

// computeLevels buckets plan.Packages by dependency depth, relying on the
// Plan Builder's guarantee that plan.Packages is already topologically
// sorted: by the time a package is visited, every package it depends on
// already has a level assigned.
func computeLevels(plan *types.ReleasePlan) [][]types.PlannedPackage {
	level := make(map[string]int, len(plan.Packages))
	maxLevel := 0

	for _, pkg := range plan.Packages {
		key := pkg.Key()
		lvl := 0
		for _, dep := range plan.DependsOn[key] {
			if depLevel, ok := level[dep]; ok && depLevel+1 > lvl {
				lvl = depLevel + 1
			}
		}
		level[key] = lvl
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}

	levels := make([][]types.PlannedPackage, maxLevel+1)
	for _, pkg := range plan.Packages {
		lvl := level[pkg.Key()]
		levels[lvl] = append(levels[lvl], pkg)
	}
	return levels
}

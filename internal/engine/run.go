package engine

import (
	"cmp"
	"slices"
	"sync"

	"github.com/wildstyl3r/cleed/internal/layer"
)

// Run computes all energies of the scan on Threads() workers and returns
// the results ordered by energy. The first error stops the run; energies
// still queued are skipped.
func (m *Model) Run() ([]Result, error) {
	var computeWg, stateWg sync.WaitGroup
	var results []Result
	var firstErr error
	var errOnce sync.Once
	failed := make(chan struct{})

	resultflow := make(chan Result, len(m.Energies))
	stateWg.Add(1)
	go func() {
		for r := range resultflow {
			results = append(results, r)
		}
		stateWg.Done()
	}()

	computeflow := make(chan float64, len(m.Energies))
	for _, e := range m.Energies {
		computeflow <- e
	}
	close(computeflow)

	status := []string{"//", "==", "\\\\", "||"}
	for range m.Parameters.Threads() {
		computeWg.Add(1)
		go func() {
			defer computeWg.Done()
			p := m.NewParams()
			cache := layer.NewCache()
			counter := 0
			for engV := range computeflow {
				select {
				case <-failed:
					continue
				default:
				}
				counter++
				if m.Parameters.Verbose() {
					print("\r" + status[counter&0b11])
				}
				r, err := m.Step(p, cache, engV)
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						close(failed)
					})
					continue
				}
				resultflow <- r
			}
		}()
	}
	computeWg.Wait()
	close(resultflow)
	stateWg.Wait()
	if m.Parameters.Verbose() {
		print("\r")
	}
	if firstErr != nil {
		return nil, firstErr
	}

	slices.SortFunc(results, func(a, b Result) int { return cmp.Compare(a.Energy, b.Energy) })
	return results, nil
}

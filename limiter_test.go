package gspawn_test

import (
	"sync"
	"testing"

	"github.com/cat2neat/gspawn"
)

func TestMaxWorkerLimiter(t *testing.T) {
	t.Parallel()
	const max = 64
	ml := gspawn.MaxWorkerLimiter{Max: max}
	_, h, _ := newTestHandle()

	// single
	for i := 0; i < max; i++ {
		if !ml.OnSpawn(h) {
			t.Errorf("gspawn_test: MaxWorkerLimiter.OnSpawn expected: true actual: false\n")
		}
	}
	if ml.OnSpawn(h) {
		t.Errorf("gspawn_test: MaxWorkerLimiter.OnSpawn expected: false actual: true\n")
	}
	ml.OnReclaim(nil)
	if !ml.OnSpawn(h) {
		t.Errorf("gspawn_test: MaxWorkerLimiter.OnSpawn expected: true actual: false\n")
	}
	// parallel
	ml = gspawn.MaxWorkerLimiter{Max: max}
	wg := sync.WaitGroup{}
	for i := 0; i < max/2; i++ {
		wg.Add(1)
		go func() {
			ml.OnSpawn(h)
			wg.Done()
		}()
	}
	wg.Wait()
	for i := 0; i < max/2; i++ {
		li := i // capture
		wg.Add(1)
		go func() {
			if li%2 == 0 {
				ml.OnSpawn(h)
			} else {
				ml.OnReclaim(nil)
			}
			wg.Done()
		}()
	}
	wg.Wait()
	if ml.Current() != max/2 {
		t.Errorf("gspawn_test: MaxWorkerLimiter.Current expected: %d actual: %d\n", max/2, ml.Current())
	}
	for i := 0; i < max/2; i++ {
		ml.OnSpawn(h)
	}
	if ml.OnSpawn(h) {
		t.Errorf("gspawn_test: MaxWorkerLimiter.OnSpawn expected: false actual: true\n")
	}
	ml.OnReclaim(nil)
	if !ml.OnSpawn(h) {
		t.Errorf("gspawn_test: MaxWorkerLimiter.OnSpawn expected: true actual: false\n")
	}
}

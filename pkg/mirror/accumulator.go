package mirror

import "sync"

// accumulator collects what the workers learn during a pass: the fresh
// digest of every source file that was mirrored successfully, and the full
// set of mirror paths the pass produced.
//
// When a worker dies mid-pass the accumulator is marked degraded instead of
// being torn down, so extraction still yields everything the surviving
// workers inserted.
type accumulator struct {
	digests  map[string]string
	mirrored map[string]struct{}
	degraded bool
	lock     sync.Mutex
}

func newAccumulator() *accumulator {
	return &accumulator{
		digests:  map[string]string{},
		mirrored: map[string]struct{}{},
	}
}

// recordMirrored marks dest as belonging to the current pass, which shields
// it from the orphan sweep.
func (acc *accumulator) recordMirrored(dest string) {
	acc.lock.Lock()
	defer acc.lock.Unlock()
	acc.mirrored[dest] = struct{}{}
}

// recordDigest stores the fresh digest of a source file whose mirror entry
// is now up to date.
func (acc *accumulator) recordDigest(source, dig string) {
	acc.lock.Lock()
	defer acc.lock.Unlock()
	acc.digests[source] = dig
}

// markDegraded flags that a worker died before finishing an entry, so the
// extracted results may be missing some of its insertions.
func (acc *accumulator) markDegraded() {
	acc.lock.Lock()
	defer acc.lock.Unlock()
	acc.degraded = true
}

// extract returns whatever has been recorded so far, and whether the pass
// was degraded. The maps are returned directly rather than copied: the
// callers only extract after every worker has exited.
func (acc *accumulator) extract() (map[string]string, map[string]struct{}, bool) {
	acc.lock.Lock()
	defer acc.lock.Unlock()
	return acc.digests, acc.mirrored, acc.degraded
}

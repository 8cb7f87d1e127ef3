package shell

import "sync"

// Scheduler is the active-shell registry. The host's main loop calls
// ServiceAll repeatedly; every registered shell gets exactly one quantum per
// sweep, in registration order. Shells register themselves on construction
// and are pruned when they finish stopping.
type Scheduler struct {
	mu     sync.Mutex
	shells []*Shell
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

func (sc *Scheduler) add(s *Shell) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.shells = append(sc.shells, s)
}

func (sc *Scheduler) remove(s *Shell) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for i, cand := range sc.shells {
		if cand == s {
			sc.shells = append(sc.shells[:i], sc.shells[i+1:]...)
			return
		}
	}
}

// ServiceAll runs one quantum for every registered shell. Shells created or
// removed during the sweep take effect on the next one.
func (sc *Scheduler) ServiceAll() {
	sc.mu.Lock()
	shells := append([]*Shell(nil), sc.shells...)
	sc.mu.Unlock()
	for _, s := range shells {
		s.Step()
	}
}

// Len reports the number of registered shells.
func (sc *Scheduler) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.shells)
}

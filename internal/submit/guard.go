package submit

import "sync"

// Guard prevents overlapping submits for the same item. The zero value is
// ready to use.
type Guard struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

// TryAcquire marks key as busy. It returns false if a submit for key is
// already running; otherwise release must be called once the flow ends.
func (g *Guard) TryAcquire(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy == nil {
		g.busy = make(map[string]struct{})
	}
	if _, running := g.busy[key]; running {
		return nil, false
	}
	g.busy[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.busy, key)
			g.mu.Unlock()
		})
	}, true
}

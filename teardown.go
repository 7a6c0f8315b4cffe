package cacus

// teardown owns destroy callbacks for a group of native objects. Objects are
// pushed as they are created and released in reverse order, so a parent is
// always destroyed after every child created from it.
type teardown struct {
	steps []teardownStep
}

type teardownStep struct {
	name string
	fn   func()
}

func (t *teardown) push(name string, fn func()) {
	t.steps = append(t.steps, teardownStep{name: name, fn: fn})
}

// run releases everything in reverse creation order and empties the list.
func (t *teardown) run() {
	for i := len(t.steps) - 1; i >= 0; i-- {
		t.steps[i].fn()
	}
	t.steps = t.steps[:0]
}

func (t *teardown) len() int { return len(t.steps) }

// names lists the pending steps in the order run would release them.
func (t *teardown) names() []string {
	out := make([]string, 0, len(t.steps))
	for i := len(t.steps) - 1; i >= 0; i-- {
		out = append(out, t.steps[i].name)
	}
	return out
}

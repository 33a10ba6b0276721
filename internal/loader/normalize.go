package loader

import "babel/internal/engine"

type fileState struct {
	last  float64
	ended bool
}

// normalizer enforces the per-artifact record grammar
// start (progress)* end, in first-seen order.
type normalizer struct {
	modelID string
	emit    engine.ProgressFunc
	files   map[string]*fileState
	order   []string
}

func newNormalizer(modelID string, emit engine.ProgressFunc) *normalizer {
	return &normalizer{modelID: modelID, emit: emit, files: make(map[string]*fileState)}
}

func (n *normalizer) count() int { return len(n.order) }

func (n *normalizer) observe(p engine.Progress) {
	if p.File == "" {
		return
	}
	if p.Name == "" {
		p.Name = n.modelID
	}
	st, seen := n.files[p.File]
	if seen && st.ended {
		return
	}
	if !seen {
		st = &fileState{}
		n.files[p.File] = st
		n.order = append(n.order, p.File)
		start := p
		start.Phase = engine.PhaseStart
		start.Progress = 0
		n.emit(start)
		if p.Phase == engine.PhaseStart {
			return
		}
	}

	switch p.Phase {
	case engine.PhaseStart:
	case engine.PhaseProgress:
		pct := engine.ClampPercent(p.Progress)
		if pct <= st.last {
			return
		}
		st.last = pct
		p.Progress = pct
		n.emit(p)
	case engine.PhaseEnd:
		st.ended = true
		p.Progress = 100
		n.emit(p)
	}
}

// finish closes every artifact that never reported an end and emits the
// ready record.
func (n *normalizer) finish() {
	for _, file := range n.order {
		st := n.files[file]
		if st.ended {
			continue
		}
		st.ended = true
		n.emit(engine.Progress{File: file, Phase: engine.PhaseEnd, Progress: 100, Name: n.modelID})
	}
	n.emit(engine.Progress{Phase: engine.PhaseReady, Name: n.modelID})
}

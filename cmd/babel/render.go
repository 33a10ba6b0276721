package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"babel/internal/uistate"
)

// translateRenderer draws session states: load progress on the status writer
// and generated text on the output writer.
type translateRenderer struct {
	mu          sync.Mutex
	out         io.Writer
	status      io.Writer
	stream      bool
	interactive bool

	printed  int
	bars     map[string]*progressbar.ProgressBar
	loading  map[string]bool
	ready    uistate.Readiness
	finished bool
}

func newTranslateRenderer(out, status io.Writer, stream bool) *translateRenderer {
	return &translateRenderer{
		out:         out,
		status:      status,
		stream:      stream,
		interactive: shouldColorize(status),
		bars:        make(map[string]*progressbar.ProgressBar),
		loading:     make(map[string]bool),
	}
}

func (r *translateRenderer) observe(state uistate.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.render(state)
}

// finish renders the final state once and closes any open progress bars.
func (r *translateRenderer) finish(state uistate.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.render(state)
	r.finished = true

	for file := range r.loading {
		r.abandonLoading(file)
	}
	switch {
	case state.Err != nil:
		if r.printed > 0 {
			fmt.Fprintln(r.out)
		}
	case r.stream && r.printed > 0:
		fmt.Fprintln(r.out)
	case r.stream && state.Final != "":
		fmt.Fprintln(r.out, state.Final)
	case !r.stream && state.Final != "":
		fmt.Fprintln(r.out, state.Final)
	}
}

func (r *translateRenderer) render(state uistate.State) {
	present := make(map[string]bool, len(state.Items))
	for _, item := range state.Items {
		present[item.File] = true
		if !r.loading[item.File] {
			r.startLoading(item.File)
		}
		if bar := r.bars[item.File]; bar != nil {
			_ = bar.Set(int(item.Progress))
		}
	}
	for file := range r.loading {
		switch {
		case present[file]:
		case state.Err != nil:
			r.abandonLoading(file)
		default:
			r.doneLoading(file)
		}
	}

	if state.Ready == uistate.ReadyTrue && r.ready == uistate.ReadyFalse {
		fmt.Fprintln(r.status, "Model ready")
	}
	r.ready = state.Ready

	if r.stream && len(state.Output) > r.printed {
		fmt.Fprint(r.out, state.Output[r.printed:])
		r.printed = len(state.Output)
	}
}

func (r *translateRenderer) startLoading(file string) {
	r.loading[file] = true
	if !r.interactive {
		fmt.Fprintf(r.status, "Loading %s...\n", file)
		return
	}
	r.bars[file] = progressbar.NewOptions(100,
		progressbar.OptionSetWriter(r.status),
		progressbar.OptionSetDescription(file),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(r.status) }),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func (r *translateRenderer) doneLoading(file string) {
	delete(r.loading, file)
	if bar := r.bars[file]; bar != nil {
		_ = bar.Finish()
		delete(r.bars, file)
		return
	}
	fmt.Fprintf(r.status, "Loaded %s\n", file)
}

func (r *translateRenderer) abandonLoading(file string) {
	delete(r.loading, file)
	if bar := r.bars[file]; bar != nil {
		_ = bar.Clear()
		delete(r.bars, file)
	}
}

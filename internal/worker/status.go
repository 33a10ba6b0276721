package worker

import "babel/internal/loader"

// StatusSummary is a point-in-time view of the worker.
type StatusSummary struct {
	Running     bool
	Engine      string
	Model       string
	LoaderState loader.State
	Loads       int
	Queued      int
	QueueDepth  int
	Current     string
	Ports       int
	Processed   int
	Failed      int
	Rejected    int
	LastError   string
}

// Status returns the latest worker information.
func (w *Worker) Status() StatusSummary {
	w.mu.RLock()
	running := w.running
	current := w.current
	lastErr := w.lastErr
	w.mu.RUnlock()

	ld := w.Loader()
	summary := StatusSummary{
		Running:     running,
		Engine:      w.engineName,
		Model:       ld.ModelID(),
		LoaderState: ld.State(),
		Loads:       ld.Loads(),
		Queued:      len(w.queue),
		QueueDepth:  cap(w.queue),
		Current:     current,
		Ports:       int(w.ports.Load()),
		Processed:   int(w.processed.Load()),
		Failed:      int(w.failed.Load()),
		Rejected:    int(w.rejected.Load()),
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	return summary
}

package response

import "net/http"

// Recorder remembers the status and the error written through it so the
// logging and metrics middleware can report them after the handler returns.
type Recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	err         error
}

// NewRecorder wraps w, reusing w when it is already a Recorder.
func NewRecorder(w http.ResponseWriter) *Recorder {
	if rec, ok := w.(*Recorder); ok {
		return rec
	}
	return &Recorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *Recorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *Recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

func (r *Recorder) Status() int {
	return r.status
}

func (r *Recorder) WroteHeader() bool {
	return r.wroteHeader
}

func (r *Recorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// ErrorFromWriter returns the error passed to Error, if w recorded one.
func ErrorFromWriter(w http.ResponseWriter) error {
	if rec, ok := w.(*Recorder); ok {
		return rec.err
	}
	return nil
}

package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"gemini-proxy/logging"
)

var log = logging.GetLogger()

type statusWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.written += n
	return n, err
}

func logRequest(req *http.Request, status, written int, dur time.Duration) {
	log.Infof("%s -- %s -- %s -- %d -- %dB -- %s", req.RemoteAddr, req.Method, req.URL.Path, status, written, dur.Round(time.Millisecond))
}

func logAndReturnError(w http.ResponseWriter, httpResponseStr string, code int, consoleStr ...string) {
	// consoleStr is optional.
	if len(consoleStr) > 0 {
		log.Errorln(consoleStr[0])
	} else {
		log.Errorln(httpResponseStr)
	}
	body, _ := json.Marshal(ErrorResponse{Error: httpResponseStr})
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

package server

import "net/http"

type rwWrapper struct {
	http.ResponseWriter
	status int
	done   bool
}

func (rw *rwWrapper) WriteHeader(code int) {
	if rw.done {
		return
	}
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
	rw.done = true
}

func (rw *rwWrapper) Write(b []byte) (int, error) {
	if !rw.done {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// logger is middleware to log all HTTP requests and responses
func (s *server) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rww := &rwWrapper{ResponseWriter: w}
		next.ServeHTTP(rww, r)
		s.log.Req.Printf("%v %v %v %d %s", r.RemoteAddr, r.Method, r.RequestURI, rww.status, w.Header().Get("Content-Length"))
	})
}

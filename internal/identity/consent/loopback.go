package consent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

const donePage = `<!doctype html><html><body><p>devlog: you can close this window.</p></body></html>`

// Loopback recibe exactamente un redirect OAuth en 127.0.0.1. Cada instancia
// atiende un intento de autorización y se cierra cuando Wait retorna.
type Loopback struct {
	ln     net.Listener
	srv    *http.Server
	path   string
	result *Promise[url.Values]
}

// Listen abre un receptor loopback en un puerto efímero. path es el path del
// callback ("/callback").
func Listen(path string) (*Loopback, error) {
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("consent: listen: %w", err)
	}
	l := &Loopback{ln: ln, path: path, result: NewPromise[url.Values]()}
	mux := http.NewServeMux()
	mux.HandleFunc(path, l.handle)
	l.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.result.Reject(fmt.Errorf("consent: serve: %w", err))
		}
	}()
	return l, nil
}

// RedirectURL es la URL a registrar como redirect_uri para este intento.
func (l *Loopback) RedirectURL() string {
	return "http://" + l.ln.Addr().String() + l.path
}

func (l *Loopback) handle(w http.ResponseWriter, r *http.Request) {
	var values url.Values
	switch r.Method {
	case http.MethodGet:
		values = r.URL.Query()
	case http.MethodPost:
		// response_mode=form_post (Apple)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		values = r.PostForm
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !l.result.Resolve(values) {
		http.Error(w, "this sign-in attempt is already finished", http.StatusGone)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(donePage))
}

// Wait devuelve los parámetros del callback y apaga el receptor.
func (l *Loopback) Wait(ctx context.Context) (url.Values, error) {
	defer l.Close()
	return l.result.Wait(ctx)
}

// Close detiene el receptor. Se puede llamar más de una vez.
func (l *Loopback) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.srv.Shutdown(ctx); err != nil {
		logger.L().Debug("loopback shutdown", logger.Component("consent"), logger.Err(err))
		return err
	}
	return nil
}

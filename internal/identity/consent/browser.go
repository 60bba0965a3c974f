package consent

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

// Browser le muestra al usuario una URL de autorización.
type Browser interface {
	Open(ctx context.Context, url string) error
}

// BrowserFunc adapta una función a Browser.
type BrowserFunc func(ctx context.Context, url string) error

func (f BrowserFunc) Open(ctx context.Context, url string) error { return f(ctx, url) }

// PrintBrowser escribe la URL para que el usuario la abra a mano.
type PrintBrowser struct {
	Out io.Writer
}

func (b PrintBrowser) Open(_ context.Context, u string) error {
	_, err := fmt.Fprintf(b.Out, "Open this URL to continue:\n\n  %s\n\n", u)
	return err
}

// SystemBrowser lanza el handler de URLs de la plataforma y además imprime la
// URL por si no hay handler.
type SystemBrowser struct {
	Out io.Writer
	// Command arma el proceso del handler; nil usa el de la plataforma.
	Command func(ctx context.Context, url string) *exec.Cmd
}

func (b SystemBrowser) Open(ctx context.Context, u string) error {
	if err := (PrintBrowser{Out: b.Out}).Open(ctx, u); err != nil {
		return err
	}
	command := b.Command
	if command == nil {
		command = platformOpener
	}
	log := logger.From(ctx).With(logger.Component("consent"))
	cmd := command(ctx, u)
	if err := cmd.Start(); err != nil {
		// alcanza con la URL impresa
		log.Debug("no url handler", logger.Err(err))
		return nil
	}
	go func() {
		err := cmd.Wait()
		log.Debug("url handler exited", logger.Err(err))
	}()
	return nil
}

func platformOpener(ctx context.Context, u string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.CommandContext(ctx, "open", u)
	case "windows":
		return exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", u)
	default:
		return exec.CommandContext(ctx, "xdg-open", u)
	}
}

// Authorize abre authURL y espera el redirect en lb. Un error access_denied del
// IdP (o user_cancelled_authorize de Apple) es UserCancelled; cualquier otro
// error del IdP es BadServerResponse.
func Authorize(ctx context.Context, b Browser, lb *Loopback, authURL string) (url.Values, error) {
	if err := b.Open(ctx, authURL); err != nil {
		lb.Close()
		return nil, identity.Wrap(identity.KindInternal, err, "open browser")
	}
	values, err := lb.Wait(ctx)
	if err != nil {
		return nil, err
	}
	switch e := values.Get("error"); e {
	case "":
		return values, nil
	case "access_denied", "user_cancelled_authorize":
		return nil, identity.Errorf(identity.KindUserCancelled, "consent denied")
	default:
		return nil, identity.Errorf(identity.KindBadServerResponse, "authorization error %q", e)
	}
}

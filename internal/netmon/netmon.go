// Package netmon vigila la conectividad con un dial TCP periódico. Vive
// durante todo el proceso, independiente de las operaciones de identidad.
package netmon

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

// DialFunc abre una conexión; se reemplaza en tests.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Monitor expone el último estado conocido y un stream de cambios.
type Monitor struct {
	addr     string
	interval time.Duration
	timeout  time.Duration
	dial     DialFunc

	mu        sync.RWMutex
	connected bool
	subs      map[int]chan bool
	nextID    int
}

// New crea un monitor para addr (host:puerto). Arranca desconectado hasta el
// primer chequeo.
func New(addr string, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	d := &net.Dialer{}
	return &Monitor{
		addr:     addr,
		interval: interval,
		timeout:  3 * time.Second,
		dial:     d.DialContext,
		subs:     map[int]chan bool{},
	}
}

// WithDialer reemplaza el dialer (tests).
func (m *Monitor) WithDialer(d DialFunc) *Monitor {
	m.dial = d
	return m
}

// Connected devuelve el último resultado del chequeo.
func (m *Monitor) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Subscribe entrega el estado actual y luego cada cambio. cancel libera la
// suscripción y cierra el canal.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan bool, 4)
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	ch <- m.connected

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

// Check hace un intento de conexión y actualiza el estado.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	conn, err := m.dial(ctx, "tcp", m.addr)
	ok := err == nil
	if ok {
		_ = conn.Close()
	}
	m.set(ok)
	return ok
}

func (m *Monitor) set(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected == v {
		return
	}
	m.connected = v
	logger.L().Debug("connectivity changed", logger.Component("netmon"), logger.Bool("connected", v))
	for _, ch := range m.subs {
		select {
		case ch <- v:
		default:
			// buffer lleno: se descarta el más viejo para que el último estado llegue
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// Run hace un chequeo inmediato y luego uno por intervalo hasta que ctx termine.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)
	m.loop(ctx)
}

// Start hace el primer chequeo de forma sincrónica, para que Connected sea
// válido al retornar, y sigue en background.
func (m *Monitor) Start(ctx context.Context) {
	m.Check(ctx)
	go m.loop(ctx)
}

func (m *Monitor) loop(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Check(ctx)
		}
	}
}

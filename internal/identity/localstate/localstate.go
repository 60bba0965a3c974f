// Package localstate persiste el estado del CLI entre ejecuciones: la sesión
// de Firebase, el nombre completo que Apple sólo entrega una vez, el token de
// Google para poder desconectarlo y el token de mensajería del dispositivo.
// Todo vive en un único state.yaml (0600) dentro del directorio de estado.
package localstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const fileName = "state.yaml"

// Session es la sesión de Firebase guardada para reanudar sin volver a pasar
// por el proveedor.
type Session struct {
	UID             string    `yaml:"uid"`
	IDToken         string    `yaml:"id_token"`
	RefreshToken    string    `yaml:"refresh_token"`
	ExpiresAt       time.Time `yaml:"expires_at"`
	Email           string    `yaml:"email,omitempty"`
	DisplayName     string    `yaml:"display_name,omitempty"`
	PhotoURL        string    `yaml:"photo_url,omitempty"`
	CurrentProvider string    `yaml:"current_provider,omitempty"`
	Providers       []string  `yaml:"providers,omitempty"`
}

// State es el contenido completo del archivo.
type State struct {
	Session *Session `yaml:"session,omitempty"`
	// AppleNames: subject de Apple -> nombre completo.
	AppleNames        map[string]string `yaml:"apple_names,omitempty"`
	GoogleAccessToken string            `yaml:"google_access_token,omitempty"`
	MessagingToken    string            `yaml:"messaging_token,omitempty"`
}

// Store serializa lecturas y escrituras del archivo dentro del proceso.
type Store struct {
	path string
	mu   sync.Mutex
}

// Open usa dir como directorio de estado (se crea con 0700 si falta).
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("localstate: empty state dir")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("localstate: %w", err)
	}
	return &Store{path: filepath.Join(dir, fileName)}, nil
}

// Path devuelve la ruta del archivo de estado.
func (s *Store) Path() string { return s.path }

func (s *Store) read() (State, error) {
	var st State
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("localstate: read: %w", err)
	}
	if err := yaml.Unmarshal(b, &st); err != nil {
		return st, fmt.Errorf("localstate: decode %s: %w", s.path, err)
	}
	return st, nil
}

func (s *Store) write(st State) error {
	b, err := yaml.Marshal(st)
	if err != nil {
		return err
	}
	if err := atomicWriteFile(s.path, b, 0o600); err != nil {
		return fmt.Errorf("localstate: write: %w", err)
	}
	return nil
}

// Load devuelve el estado actual (vacío si el archivo no existe).
func (s *Store) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Update aplica fn sobre el estado y lo persiste si fn no falla.
func (s *Store) Update(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(&st); err != nil {
		return err
	}
	return s.write(st)
}

// ─── Sesión ───

// Session devuelve la sesión guardada o nil.
func (s *Store) Session() (*Session, error) {
	st, err := s.Load()
	if err != nil {
		return nil, err
	}
	return st.Session, nil
}

func (s *Store) SaveSession(sess *Session) error {
	return s.Update(func(st *State) error {
		st.Session = sess
		return nil
	})
}

// ClearSession borra la sesión y el token de Google; conserva los nombres de Apple.
func (s *Store) ClearSession() error {
	return s.Update(func(st *State) error {
		st.Session = nil
		st.GoogleAccessToken = ""
		return nil
	})
}

// ─── Nombres de Apple ───

// FullName devuelve el nombre guardado para el subject de Apple.
func (s *Store) FullName(subject string) (string, error) {
	st, err := s.Load()
	if err != nil {
		return "", err
	}
	return st.AppleNames[subject], nil
}

func (s *Store) SaveFullName(subject, name string) error {
	if subject == "" || name == "" {
		return nil
	}
	return s.Update(func(st *State) error {
		if st.AppleNames == nil {
			st.AppleNames = map[string]string{}
		}
		st.AppleNames[subject] = name
		return nil
	})
}

// ─── Google ───

func (s *Store) GoogleToken() (string, error) {
	st, err := s.Load()
	if err != nil {
		return "", err
	}
	return st.GoogleAccessToken, nil
}

func (s *Store) SetGoogleToken(token string) error {
	return s.Update(func(st *State) error {
		st.GoogleAccessToken = token
		return nil
	})
}

// ─── Mensajería ───

func (s *Store) MessagingToken() (string, error) {
	st, err := s.Load()
	if err != nil {
		return "", err
	}
	return st.MessagingToken, nil
}

func (s *Store) SetMessagingToken(token string) error {
	return s.Update(func(st *State) error {
		st.MessagingToken = token
		return nil
	})
}

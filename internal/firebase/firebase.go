// Package firebase inicializa el Admin SDK y expone la parte de Firebase Auth
// que usa el broker detrás de una interfaz chica.
package firebase

import (
	"context"
	"errors"
	"fmt"

	gcfs "cloud.google.com/go/firestore"
	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

var ErrUserNotFound = errors.New("firebase: user not found")

type Config struct {
	ProjectID       string
	CredentialsFile string // vacío => Application Default Credentials
}

// Profile son los datos con los que se crea un usuario nuevo.
type Profile struct {
	Email       string
	DisplayName string
	PhotoURL    string
}

// Admin es lo que el broker necesita de Firebase Auth.
type Admin interface {
	// VerifyIDToken valida el ID token del llamador y devuelve su uid.
	VerifyIDToken(ctx context.Context, idToken string) (string, error)
	// UserByEmail devuelve ErrUserNotFound si no hay cuenta con ese email.
	UserByEmail(ctx context.Context, email string) (string, error)
	CreateUser(ctx context.Context, p Profile) (string, error)
	CustomToken(ctx context.Context, uid string) (string, error)
}

// App agrupa los clientes del Admin SDK.
type App struct {
	Auth      Admin
	Firestore *gcfs.Client
}

// Init crea la app. Firestore sólo se abre si withFirestore es true.
func Init(ctx context.Context, cfg Config, withFirestore bool) (*App, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := fb.NewApp(ctx, &fb.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase: new app: %w", err)
	}
	ac, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: auth client: %w", err)
	}
	out := &App{Auth: &adminAuth{c: ac}}
	if withFirestore {
		fs, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("firebase: firestore client: %w", err)
		}
		out.Firestore = fs
	}
	return out, nil
}

type adminAuth struct {
	c *auth.Client
}

func (a *adminAuth) VerifyIDToken(ctx context.Context, idToken string) (string, error) {
	tok, err := a.c.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", err
	}
	return tok.UID, nil
}

func (a *adminAuth) UserByEmail(ctx context.Context, email string) (string, error) {
	u, err := a.c.GetUserByEmail(ctx, email)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return u.UID, nil
}

func (a *adminAuth) CreateUser(ctx context.Context, p Profile) (string, error) {
	params := (&auth.UserToCreate{}).Email(p.Email)
	if p.DisplayName != "" {
		params = params.DisplayName(p.DisplayName)
	}
	if p.PhotoURL != "" {
		params = params.PhotoURL(p.PhotoURL)
	}
	u, err := a.c.CreateUser(ctx, params)
	if err != nil {
		return "", err
	}
	return u.UID, nil
}

func (a *adminAuth) CustomToken(ctx context.Context, uid string) (string, error) {
	return a.c.CustomToken(ctx, uid)
}

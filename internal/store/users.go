package store

import (
	"context"
	"errors"

	"github.com/dropDatabas3/devlog/internal/store/core"
)

// UserInfo es el documento users/{uid}/userData/info.
type UserInfo struct {
	DisplayName     string `json:"displayName"`
	Email           string `json:"email"`
	CurrentProvider string `json:"currentProvider"`
	PhotoURL        string `json:"photoURL"`
}

// Users agrupa las operaciones sobre el árbol users/{uid}.
type Users struct {
	docs core.DocumentStore
}

func NewUsers(docs core.DocumentStore) *Users {
	return &Users{docs: docs}
}

// GetInfo devuelve un UserInfo vacío si el documento no existe.
func (u *Users) GetInfo(ctx context.Context, uid string) (UserInfo, error) {
	doc, err := u.docs.Get(ctx, core.InfoDoc(uid))
	if errors.Is(err, core.ErrNotFound) {
		return UserInfo{}, nil
	}
	if err != nil {
		return UserInfo{}, err
	}
	return UserInfo{
		DisplayName:     doc.String("displayName"),
		Email:           doc.String("email"),
		CurrentProvider: doc.String("currentProvider"),
		PhotoURL:        doc.String("photoURL"),
	}, nil
}

// MergeInfo escribe sólo los campos no vacíos.
func (u *Users) MergeInfo(ctx context.Context, uid string, in UserInfo) error {
	fields := core.Document{}
	if in.DisplayName != "" {
		fields["displayName"] = in.DisplayName
	}
	if in.Email != "" {
		fields["email"] = in.Email
	}
	if in.CurrentProvider != "" {
		fields["currentProvider"] = in.CurrentProvider
	}
	if in.PhotoURL != "" {
		fields["photoURL"] = in.PhotoURL
	}
	if len(fields) == 0 {
		return nil
	}
	return u.docs.Merge(ctx, core.InfoDoc(uid), fields)
}

// DeleteAll borra users/{uid} y todo lo anidado.
func (u *Users) DeleteAll(ctx context.Context, uid string) error {
	return u.docs.DeleteRecursive(ctx, core.UserDoc(uid))
}

package auth

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// ErrUserNotFound is returned by a UserStore for unknown usernames.
var ErrUserNotFound = errors.New("usuário não encontrado")

// User is an account allowed to log in.
type User struct {
	Username     string   `firestore:"username"`
	PasswordHash string   `firestore:"passwordHash"`
	Roles        []string `firestore:"roles"`
}

// UserStore looks accounts up by username.
type UserStore interface {
	FindUser(ctx context.Context, username string) (*User, error)
}

// StaticUsers serves the single admin account from configuration.
type StaticUsers struct {
	admin User
}

// NewStaticUsers creates a store holding one admin with a bcrypt hash.
func NewStaticUsers(username, passwordHash string) *StaticUsers {
	return &StaticUsers{admin: User{Username: username, PasswordHash: passwordHash, Roles: []string{RoleAdmin}}}
}

func (s *StaticUsers) FindUser(_ context.Context, username string) (*User, error) {
	if s.admin.PasswordHash == "" || username != s.admin.Username {
		return nil, ErrUserNotFound
	}
	u := s.admin
	return &u, nil
}

// FirestoreUsers reads accounts from the "users" collection.
type FirestoreUsers struct {
	db *firestore.Client
}

func NewFirestoreUsers(db *firestore.Client) *FirestoreUsers {
	return &FirestoreUsers{db: db}
}

func (s *FirestoreUsers) FindUser(ctx context.Context, username string) (*User, error) {
	query := s.db.Collection("users").Where("username", "==", username).Limit(1).Documents(ctx)
	defer query.Stop()

	doc, err := query.Next()
	if err == iterator.Done {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	var user User
	if err := doc.DataTo(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

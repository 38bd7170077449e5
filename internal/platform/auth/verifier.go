package auth

import (
	"context"
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"github.com/medivision/medivision/internal/platform/apperr"
)

// Principal identifies an authenticated caller.
type Principal struct {
	Subject string `json:"username"`
	Role    string `json:"role"`
}

// CredentialVerifier checks a username/password pair and returns the
// authenticated principal. Implementations return an unauthorized error when
// the credentials do not match anything they know about.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (*Principal, error)
}

// StaticVerifier matches the single configured service account.
type StaticVerifier struct {
	Username string
	Password string
	RoleName string
}

func (v *StaticVerifier) Verify(ctx context.Context, username, password string) (*Principal, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(v.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(v.Password)) == 1
	if !userOK || !passOK {
		return nil, apperr.Unauthorized("incorrect username or password")
	}
	role := v.RoleName
	if role == "" {
		role = "admin"
	}
	return &Principal{Subject: username, Role: role}, nil
}

// Credential is the stored record a PhysicianCredentialStore resolves a
// username to: the bcrypt hash plus an active flag.
type Credential struct {
	Username       string
	HashedPassword string
	Active         bool
}

// PhysicianCredentialStore looks up login credentials by username. The
// physician repository implements it.
type PhysicianCredentialStore interface {
	CredentialsByUsername(ctx context.Context, username string) (*Credential, error)
}

// PhysicianVerifier authenticates physicians against their stored bcrypt
// password hashes. Deactivated physicians cannot log in.
type PhysicianVerifier struct {
	Store PhysicianCredentialStore
}

func (v *PhysicianVerifier) Verify(ctx context.Context, username, password string) (*Principal, error) {
	cred, err := v.Store.CredentialsByUsername(ctx, username)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("incorrect username or password")
		}
		return nil, err
	}
	if !cred.Active {
		return nil, apperr.Unauthorized("account is deactivated")
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.HashedPassword), []byte(password)) != nil {
		return nil, apperr.Unauthorized("incorrect username or password")
	}
	return &Principal{Subject: cred.Username, Role: "physician"}, nil
}

// VerifierChain tries each verifier in order. Unauthorized results fall
// through to the next verifier; any other error stops the chain.
type VerifierChain []CredentialVerifier

func (vc VerifierChain) Verify(ctx context.Context, username, password string) (*Principal, error) {
	for _, v := range vc {
		p, err := v.Verify(ctx, username, password)
		if err == nil {
			return p, nil
		}
		if !apperr.IsKind(err, apperr.KindUnauthorized) {
			return nil, err
		}
	}
	return nil, apperr.Unauthorized("incorrect username or password")
}

// HashPassword produces a bcrypt hash suitable for storage.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

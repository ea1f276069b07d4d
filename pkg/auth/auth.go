// Package auth checks inbound API credentials against a fixed,
// pre-loaded key set. Keys are opaque; there is no cryptographic
// verification here - JWS enforcement is a policy flag the trust engine
// emits, not something this package implements.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/ghifiardi/gatra-world-monitor/pkg/httpx"
)

// Auth modes. In optional mode a missing credential yields an
// anonymous principal, but a present-and-wrong credential still fails.
const (
	ModeRequired = "required"
	ModeOptional = "optional"
	ModeDisabled = "disabled"
)

const (
	headerAPIKey  = "x-api-key"
	headerAgentID = "x-a2a-agent-id"
)

var (
	ErrMissingCredential = errors.New("auth: missing credential")
	ErrUnknownCredential = errors.New("auth: unrecognized credential")
)

// Principal identifies the calling agent for the rest of the pipeline.
type Principal struct {
	AgentID       string
	Authenticated bool
}

// Credential pairs an opaque API key with the agent it belongs to.
type Credential struct {
	Key   string `yaml:"key" json:"key"`
	Agent string `yaml:"agent" json:"agent"`
}

// KeyStore is the read-only credential set, loaded once at boot. Keys
// are stored hashed so a memory dump does not leak them.
type KeyStore struct {
	byHash map[[32]byte]string
}

func NewKeyStore(creds []Credential) *KeyStore {
	ks := &KeyStore{byHash: map[[32]byte]string{}}
	for _, c := range creds {
		key := strings.TrimSpace(c.Key)
		if key == "" {
			continue
		}
		ks.byHash[sha256.Sum256([]byte(key))] = strings.TrimSpace(c.Agent)
	}
	return ks
}

// Lookup returns the agent registered for a key.
func (ks *KeyStore) Lookup(key string) (string, bool) {
	if ks == nil {
		return "", false
	}
	h := sha256.Sum256([]byte(key))
	for stored, agent := range ks.byHash {
		if subtle.ConstantTimeCompare(stored[:], h[:]) == 1 {
			return agent, true
		}
	}
	return "", false
}

func (ks *KeyStore) Len() int {
	if ks == nil {
		return 0
	}
	return len(ks.byHash)
}

// Authenticate resolves the caller's principal per the configured mode.
func Authenticate(mode string, ks *KeyStore, r *http.Request) (Principal, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	key := extractKey(r)
	agentHeader := strings.TrimSpace(r.Header.Get(headerAgentID))

	if mode == ModeDisabled {
		return Principal{AgentID: agentIDOr(agentHeader, "anonymous")}, nil
	}
	if key == "" {
		if mode == ModeOptional {
			return Principal{AgentID: agentIDOr(agentHeader, "anonymous")}, nil
		}
		return Principal{}, ErrMissingCredential
	}
	agent, ok := ks.Lookup(key)
	if !ok {
		return Principal{}, ErrUnknownCredential
	}
	// The registered name wins over the self-reported header so a
	// spoofed x-a2a-agent-id cannot borrow another agent's standing.
	return Principal{AgentID: agentIDOr(agent, agentIDOr(agentHeader, "anonymous")), Authenticated: true}, nil
}

// Middleware guards mutating admin routes. Disabled mode leaves them
// open for local development; any other mode demands a valid
// credential even when the request pipeline itself runs optional,
// since these routes reconfigure the policy the pipeline enforces.
func Middleware(mode string, ks *KeyStore) func(http.Handler) http.Handler {
	open := strings.ToLower(strings.TrimSpace(mode)) == ModeDisabled
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !open {
				if _, err := Authenticate(ModeRequired, ks, r); err != nil {
					httpx.Error(w, http.StatusUnauthorized, "credential required")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractKey accepts a bearer token or the custom API-key header.
func extractKey(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return strings.TrimSpace(r.Header.Get(headerAPIKey))
}

func agentIDOr(id, fallback string) string {
	if id != "" {
		return id
	}
	return fallback
}

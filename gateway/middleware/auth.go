package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"satvault/crypto"
	"satvault/gateway/auth"
	"satvault/observability/logging"
)

// HeaderCaller names the caller when authentication is disabled.
const HeaderCaller = "X-Caller"

type AuthConfig struct {
	Enabled       bool
	HMACSecret    string
	Issuer        string
	Audience      string
	OptionalPaths []string
	ClockSkew     time.Duration
}

type contextKey string

const ContextKeyCaller contextKey = "gateway.caller"

// Authenticator resolves the calling identity from a bearer token's subject.
type Authenticator struct {
	cfg    AuthConfig
	logger *slog.Logger
	token  auth.TokenConfig
}

func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		cfg:    cfg,
		logger: logger,
		token: auth.TokenConfig{
			Secret:    cfg.HMACSecret,
			Issuer:    cfg.Issuer,
			Audience:  cfg.Audience,
			ClockSkew: cfg.ClockSkew,
		},
	}
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (crypto.Address, bool) {
	caller, ok := ctx.Value(ContextKeyCaller).(crypto.Address)
	if !ok || caller.IsZero() {
		return crypto.Address{}, false
	}
	return caller, true
}

// WithCaller attaches caller to ctx.
func WithCaller(ctx context.Context, caller crypto.Address) context.Context {
	return context.WithValue(ctx, ContextKeyCaller, caller)
}

// Middleware authenticates requests. Requests without credentials continue
// anonymously; handlers for mutating routes reject them. Invalid credentials
// are rejected here.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.cfg.Enabled {
				if raw := strings.TrimSpace(r.Header.Get(HeaderCaller)); raw != "" {
					caller, err := crypto.DecodeAddress(raw)
					if err != nil {
						writeUnauthorized(w, "invalid caller header")
						return
					}
					r = r.WithContext(WithCaller(r.Context(), caller))
				}
				next.ServeHTTP(w, r)
				return
			}
			tokenString := extractBearer(r.Header.Get("Authorization"))
			if tokenString == "" {
				if a.isOptional(r.URL.Path) || r.Method == http.MethodGet {
					next.ServeHTTP(w, r)
					return
				}
				writeUnauthorized(w, "missing bearer token")
				return
			}
			caller, err := auth.ParseToken(a.token, tokenString)
			if err != nil {
				a.logger.Info("auth: token validation failed",
					logging.MaskField("token", tokenString),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()))
				writeUnauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

func (a *Authenticator) isOptional(path string) bool {
	for _, prefix := range a.cfg.OptionalPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="satvault"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"Unauthenticated","message":"` + message + `"}}`))
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Middleware advertises the server's API version on every response and
// rejects callers whose Storefront-Client version has a different major.
// The header is optional: callers that omit it are served.
func Middleware(apiVersion string, logger *slog.Logger) func(http.Handler) http.Handler {
	apiHeader, err := FormatAPIHeader(apiVersion)
	if err != nil {
		logger.Error("cannot format API header", slog.String("error", err.Error()))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiHeader != "" {
				w.Header().Set(APIHeader, apiHeader)
			}

			if isExemptPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get(ClientHeader)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			info, err := ParseClientHeader(header)
			if err != nil {
				logger.Warn("invalid Storefront-Client header",
					slog.String("header", header),
					slog.String("error", err.Error()))
				writeNegotiationError(w, http.StatusBadRequest, "invalid_client_header",
					"Invalid Storefront-Client header: "+err.Error())
				return
			}

			if err := CheckCompatible(apiVersion, info.Version); err != nil {
				var verErr *VersionError
				if errors.As(err, &verErr) {
					writeNegotiationError(w, http.StatusBadRequest, verErr.Code, verErr.Message)
					return
				}
			}

			ctx := context.WithValue(r.Context(), ClientInfoKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// isExemptPath returns true for infrastructure paths.
func isExemptPath(path string) bool {
	return path == "/health" || path == "/healthz"
}

// writeNegotiationError uses the same envelope as the REST handlers.
func writeNegotiationError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}{}
	resp.Error.Code = code
	resp.Error.Message = message

	json.NewEncoder(w).Encode(resp)
}

// GetClientInfo retrieves the caller's ClientInfo from request context.
// Returns false if the caller sent no Storefront-Client header.
func GetClientInfo(ctx context.Context) (ClientInfo, bool) {
	info, ok := ctx.Value(ClientInfoKey).(ClientInfo)
	return info, ok
}

package storefront

import (
	"context"
	"log/slog"
	"net/http"

	"storefront/internal/localstore"
)

// cookieHolder is implemented by backends with a cookie jar (api.Client).
type cookieHolder interface {
	Cookies() []*http.Cookie
	SetCookies([]*http.Cookie)
}

// storedCookie is the persisted form of a session cookie. The jar only
// hands back name and value, so that is all there is to keep.
type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// restoreCookies seeds the backend's jar from the cookies key so a
// restarted process resumes the same backend session.
func (sf *Storefront) restoreCookies(ctx context.Context) {
	h, ok := sf.api.(cookieHolder)
	if !ok {
		return
	}
	var stored []storedCookie
	found, err := localstore.GetJSON(ctx, sf.store, localstore.KeyCookies, &stored)
	if err != nil {
		sf.logger.Warn("discarding unreadable cookies", slog.String("error", err.Error()))
		sf.forgetCookies(ctx)
		return
	}
	if !found {
		return
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	h.SetCookies(cookies)
}

// saveCookies persists the jar's cookies for the backend origin.
func (sf *Storefront) saveCookies(ctx context.Context) {
	h, ok := sf.api.(cookieHolder)
	if !ok {
		return
	}
	cookies := h.Cookies()
	if len(cookies) == 0 {
		return
	}
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
	}
	if err := localstore.SetJSON(ctx, sf.store, localstore.KeyCookies, stored); err != nil {
		sf.logger.Warn("persisting cookies failed", slog.String("error", err.Error()))
	}
}

func (sf *Storefront) forgetCookies(ctx context.Context) {
	if err := sf.store.Delete(ctx, localstore.KeyCookies); err != nil {
		sf.logger.Warn("deleting cookies failed", slog.String("error", err.Error()))
	}
}

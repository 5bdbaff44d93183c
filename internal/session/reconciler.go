// Package session reconciles the client's notion of who is signed in with
// the backend's. The backend session lives in an HTTP-only cookie the client
// can't read, so the only way to know is to ask (GET /auth/me) and to react
// when any later request comes back 401.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"storefront/internal/backend"
	"storefront/internal/localstore"
	"storefront/internal/model"
)

// Observer is notified after every session change, outside any lock.
type Observer func(prev, next model.Session)

// Reconciler owns the Session value.
type Reconciler struct {
	api    backend.Auth
	store  localstore.Store
	logger *slog.Logger

	checks       singleflight.Group
	unauthorized *Signal

	mu        sync.Mutex
	state     model.Session
	nextID    int
	observers []observerEntry
}

type observerEntry struct {
	id int
	fn Observer
}

// New returns a reconciler in the initializing state.
func New(api backend.Auth, store localstore.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		api:          api,
		store:        store,
		logger:       logger,
		unauthorized: NewSignal(),
		state:        model.NewSession(),
	}
}

// Session returns a copy of the current state.
func (r *Reconciler) Session() model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copySession(r.state)
}

// Unauthorized is the de-duplicated session-expired signal.
func (r *Reconciler) Unauthorized() *Signal {
	return r.unauthorized
}

// Subscribe registers an auth-change observer.
func (r *Reconciler) Subscribe(fn Observer) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.observers = append(r.observers, observerEntry{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, o := range r.observers {
			if o.id == id {
				r.observers = append(r.observers[:i:i], r.observers[i+1:]...)
				return
			}
		}
	}
}

// Restore seeds the profile and bearer token from local storage so a UI can
// render optimistically. Only User is seeded: the session stays Initializing
// and unauthenticated until Init settles, so nothing gated on Authenticated
// reaches the backend on the strength of a stale profile.
func (r *Reconciler) Restore(ctx context.Context) {
	var token string
	if ok, err := localstore.GetJSON(ctx, r.store, localstore.KeyToken, &token); err == nil && ok && token != "" {
		r.api.SetToken(token)
	}

	var user model.UserProfile
	ok, err := localstore.GetJSON(ctx, r.store, localstore.KeyUser, &user)
	if err != nil {
		r.logger.Warn("discarding unreadable stored profile", slog.String("error", err.Error()))
		r.forgetProfile(ctx)
		return
	}
	if !ok {
		return
	}
	r.update(func(s *model.Session) {
		if !s.Initializing {
			return
		}
		s.User = &user
	})
}

// Init asks the backend who the ambient credential belongs to. Concurrent
// callers share one request; once it settles the next call checks again.
// Never returns an error: anything but a profile means unauthenticated.
func (r *Reconciler) Init(ctx context.Context) model.Session {
	v, _, _ := r.checks.Do("init", func() (any, error) {
		return r.check(ctx), nil
	})
	return v.(model.Session)
}

func (r *Reconciler) check(ctx context.Context) model.Session {
	var token string
	if ok, err := localstore.GetJSON(ctx, r.store, localstore.KeyToken, &token); err == nil && ok && token != "" {
		r.api.SetToken(token)
	}

	user, err := r.api.CurrentUser(ctx)
	if err != nil {
		if !model.IsUnauthorized(err) {
			r.logger.Warn("session check failed, continuing signed out",
				slog.String("error", err.Error()))
		}
		r.forgetProfile(ctx)
		return r.update(func(s *model.Session) {
			s.User = nil
			s.Authenticated = false
			s.Initializing = false
		})
	}

	r.persistProfile(ctx, user)
	return r.update(func(s *model.Session) {
		s.User = user
		s.Authenticated = true
		s.Initializing = false
	})
}

// Login signs in and starts a fresh unauthorized episode.
func (r *Reconciler) Login(ctx context.Context, creds model.Credentials) (model.Session, error) {
	s, _, err := r.SignIn(ctx, creds)
	return s, err
}

// SignIn is Login that also reports whether this call is the one that moved
// the session from signed out to signed in. Of several concurrent sign-ins
// exactly one sees started == true.
func (r *Reconciler) SignIn(ctx context.Context, creds model.Credentials) (s model.Session, started bool, err error) {
	if creds.Email == "" || creds.Password == "" {
		return r.Session(), false, model.NewValidationError("credentials", "email and password are required")
	}
	r.unauthorized.Reset()

	res, err := r.api.Login(ctx, creds)
	if err != nil {
		return r.Session(), false, err
	}
	if res.User == nil {
		return r.Session(), false, model.NewUpstreamError("login", errors.New("no profile in response"))
	}

	r.persistProfile(ctx, res.User)
	if res.Token != "" {
		if err := localstore.SetJSON(ctx, r.store, localstore.KeyToken, res.Token); err != nil {
			r.logger.Warn("could not persist bearer token", slog.String("error", err.Error()))
		}
	}

	r.logger.Info("signed in", slog.String("user_id", res.User.ID))
	prev, next := r.transition(func(s *model.Session) {
		s.User = res.User
		s.Authenticated = true
		s.Initializing = false
	})
	return next, !prev.Authenticated, nil
}

// Register creates an account. It does not sign in.
func (r *Reconciler) Register(ctx context.Context, reg model.Registration) (*model.UserProfile, error) {
	if reg.Email == "" || reg.Password == "" || reg.Name == "" {
		return nil, model.NewValidationError("registration", "name, email and password are required")
	}
	res, err := r.api.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	return res.User, nil
}

// Logout ends the session. The backend call is best effort; local state is
// cleared whatever it returns.
func (r *Reconciler) Logout(ctx context.Context) model.Session {
	if err := r.api.Logout(ctx); err != nil {
		r.logger.Warn("logout request failed", slog.String("error", err.Error()))
	}
	r.api.SetToken("")

	for _, key := range []string{localstore.KeyUser, localstore.KeyToken, localstore.KeyCart} {
		if err := r.store.Delete(ctx, key); err != nil {
			r.logger.Warn("clearing local state failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}

	return r.update(func(s *model.Session) {
		s.User = nil
		s.Authenticated = false
		s.Initializing = false
	})
}

// HandleUnauthorized reacts to a 401 on any non-quiet request: the local
// profile is dropped, the session flips to unauthenticated, and the
// unauthorized signal is raised once per episode.
func (r *Reconciler) HandleUnauthorized() {
	r.forgetProfile(context.Background())
	r.update(func(s *model.Session) {
		s.User = nil
		s.Authenticated = false
	})
	if r.unauthorized.Raise() {
		r.logger.Info("session expired")
	}
}

// UpdateProfile merges non-empty fields of patch into the signed-in profile
// and persists it. The backend is not called.
func (r *Reconciler) UpdateProfile(ctx context.Context, patch model.UserProfile) (model.Session, error) {
	current := r.Session()
	if !current.Authenticated || current.User == nil {
		return current, model.NewAuthenticationRequiredError("profile update")
	}

	merged := *current.User
	if patch.Name != "" {
		merged.Name = patch.Name
	}
	if patch.Email != "" {
		merged.Email = patch.Email
	}
	if patch.Role != "" {
		merged.Role = patch.Role
	}
	if patch.EmailVerified {
		merged.EmailVerified = true
	}

	r.persistProfile(ctx, &merged)
	return r.update(func(s *model.Session) {
		s.User = &merged
	}), nil
}

func (r *Reconciler) persistProfile(ctx context.Context, user *model.UserProfile) {
	if user == nil {
		return
	}
	if err := localstore.SetJSON(ctx, r.store, localstore.KeyUser, user); err != nil {
		r.logger.Warn("could not persist profile", slog.String("error", err.Error()))
	}
}

func (r *Reconciler) forgetProfile(ctx context.Context) {
	if err := r.store.Delete(ctx, localstore.KeyUser); err != nil && !errors.Is(err, localstore.ErrNotFound) {
		r.logger.Warn("could not clear profile", slog.String("error", err.Error()))
	}
}

// update applies fn to the state and notifies observers if anything changed.
func (r *Reconciler) update(fn func(*model.Session)) model.Session {
	_, next := r.transition(fn)
	return next
}

// transition is update returning the state fn was applied to as well.
func (r *Reconciler) transition(fn func(*model.Session)) (prev, next model.Session) {
	r.mu.Lock()
	prev = copySession(r.state)
	fn(&r.state)
	next = copySession(r.state)
	observers := make([]observerEntry, len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()

	if !sameSession(prev, next) {
		for _, o := range observers {
			o.fn(prev, next)
		}
	}
	return prev, next
}

func copySession(s model.Session) model.Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func sameSession(a, b model.Session) bool {
	if a.Authenticated != b.Authenticated || a.Initializing != b.Initializing {
		return false
	}
	if (a.User == nil) != (b.User == nil) {
		return false
	}
	return a.User == nil || *a.User == *b.User
}

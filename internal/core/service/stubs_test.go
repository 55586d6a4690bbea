package service

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/facegate/facegate/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Account repository
// ---------------------------------------------------------------------------

type stubAccountRepo struct {
	mu         sync.Mutex
	accounts   map[string]*domain.Account
	order      []string
	unreadable []domain.StoredTemplate

	findErr   error
	createErr error
	setErr    error
	scanErr   error
	deleted   []string
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{accounts: make(map[string]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.FaceTemplate = append([]byte(nil), a.FaceTemplate...)
	return &clone
}

func (r *stubAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	a, ok := r.accounts[email]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (r *stubAccountRepo) Create(_ context.Context, account *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	if _, exists := r.accounts[account.Email]; exists {
		return nil, domain.ErrEmailTaken
	}
	stored := cloneAccount(account)
	if stored.ID == "" {
		stored.ID = "id-" + account.Email
	}
	r.accounts[stored.Email] = stored
	r.order = append(r.order, stored.Email)
	return cloneAccount(stored), nil
}

func (r *stubAccountRepo) Delete(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[email]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(r.accounts, email)
	for i, e := range r.order {
		if e == email {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.deleted = append(r.deleted, email)
	return nil
}

func (r *stubAccountRepo) SetTemplate(_ context.Context, email string, blob []byte, version int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setErr != nil {
		return r.setErr
	}
	a, ok := r.accounts[email]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.FaceTemplate = append([]byte(nil), blob...)
	a.TemplateVersion = version
	return nil
}

func (r *stubAccountRepo) ScanTemplates(_ context.Context) iter.Seq2[domain.StoredTemplate, error] {
	r.mu.Lock()
	var snapshot []domain.StoredTemplate
	for _, email := range r.order {
		a := r.accounts[email]
		if len(a.FaceTemplate) == 0 {
			continue
		}
		snapshot = append(snapshot, domain.StoredTemplate{
			Email:   a.Email,
			Blob:    append([]byte(nil), a.FaceTemplate...),
			Version: a.TemplateVersion,
		})
	}
	snapshot = append(snapshot, r.unreadable...)
	scanErr := r.scanErr
	r.mu.Unlock()

	return func(yield func(domain.StoredTemplate, error) bool) {
		if scanErr != nil {
			yield(domain.StoredTemplate{}, scanErr)
			return
		}
		for _, st := range snapshot {
			if !yield(st, nil) {
				return
			}
		}
	}
}

// seed inserts an account with a raw template blob, bypassing encoding.
func (r *stubAccountRepo) seed(email string, blob []byte, version int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[email] = &domain.Account{ID: "id-" + email, Email: email, FaceTemplate: blob, TemplateVersion: version}
	r.order = append(r.order, email)
}

// seedUnreadable adds a scanned record the backing store could not decode.
func (r *stubAccountRepo) seedUnreadable(email string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unreadable = append(r.unreadable, domain.StoredTemplate{Email: email, Err: err})
}

// ---------------------------------------------------------------------------
// Template source
// ---------------------------------------------------------------------------

type stubSource struct {
	templates []domain.Template
	err       error
}

func (s *stubSource) AllTemplates(_ context.Context) iter.Seq2[domain.Template, error] {
	return func(yield func(domain.Template, error) bool) {
		for _, t := range s.templates {
			if !yield(t, nil) {
				return
			}
		}
		if s.err != nil {
			yield(domain.Template{}, s.err)
		}
	}
}

// ---------------------------------------------------------------------------
// Feature extractor: images are plain strings naming a prepared vector.
// ---------------------------------------------------------------------------

type stubExtractor struct {
	vectors map[string]domain.FeatureVector
	err     error
	calls   int
}

func (e *stubExtractor) Extract(r io.Reader) (domain.FeatureVector, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	key, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	v, ok := e.vectors[string(key)]
	if !ok {
		return nil, domain.ErrNotDetected
	}
	return append(domain.FeatureVector(nil), v...), nil
}

// ---------------------------------------------------------------------------
// Session store
// ---------------------------------------------------------------------------

type stubSessionStore struct {
	mu       sync.Mutex
	sessions map[string]time.Duration
	saveErr  error
	existErr error
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{sessions: make(map[string]time.Duration)}
}

func (s *stubSessionStore) Save(_ context.Context, session *domain.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.sessions[session.ID] = ttl
	return nil
}

func (s *stubSessionStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existErr != nil {
		return false, s.existErr
	}
	_, ok := s.sessions[id]
	return ok, nil
}

func (s *stubSessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *stubSessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var errBoom = errors.New("boom")

func mustFormat(version int) domain.TemplateFormat {
	f, err := domain.LookupFormat(version)
	if err != nil {
		panic(err)
	}
	return f
}

// uniformVector returns a vector of the format's length filled with val. Two
// uniform vectors differ by |a-b| * Size in Euclidean distance.
func uniformVector(f domain.TemplateFormat, val float32) domain.FeatureVector {
	v := make(domain.FeatureVector, f.VectorLen())
	for i := range v {
		v[i] = val
	}
	return v
}

package service

import (
	"context"
	"sort"
	"sync"

	"collabsearch-be/internal/dto"
	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/repository/contract"
	"collabsearch-be/internal/repository/specification"
	"collabsearch-be/internal/repository/unitofwork"
	"collabsearch-be/pkg/events"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeStore is a shared in-memory backing for the fake repositories. It
// interprets the same specification values the GORM implementations do.
type fakeStore struct {
	mu           sync.Mutex
	sessions     map[uuid.UUID]*entity.SearchSession
	participants map[uuid.UUID]*entity.Participant
	states       map[uuid.UUID]map[string]*entity.StateEntry
	events       []*entity.SearchEvent
	sequences    map[uuid.UUID]int64
	annotations  map[uuid.UUID]*entity.Annotation
	conflicts    map[uuid.UUID]*entity.ConflictRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:     make(map[uuid.UUID]*entity.SearchSession),
		participants: make(map[uuid.UUID]*entity.Participant),
		states:       make(map[uuid.UUID]map[string]*entity.StateEntry),
		sequences:    make(map[uuid.UUID]int64),
		annotations:  make(map[uuid.UUID]*entity.Annotation),
		conflicts:    make(map[uuid.UUID]*entity.ConflictRecord),
	}
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505"}
}

type specFilter struct {
	id          *uuid.UUID
	sessionId   *uuid.UUID
	userId      *uuid.UUID
	workspaceId *uuid.UUID
	stateKey    *string
	status      *string
	visibleTo   *uuid.UUID
	activeOnly  bool
	afterSeq    *int64
	orderField  string
	orderDesc   bool
	limit       int
	extra       map[string]interface{}
}

func parseSpecs(specs []specification.Specification) specFilter {
	f := specFilter{extra: map[string]interface{}{}}
	for _, s := range specs {
		switch v := s.(type) {
		case specification.ByID:
			id := v.ID
			f.id = &id
		case specification.BySessionID:
			id := v.SessionID
			f.sessionId = &id
		case specification.ByUserID:
			id := v.UserID
			f.userId = &id
		case specification.ByWorkspaceID:
			id := v.WorkspaceID
			f.workspaceId = &id
		case specification.ByStateKey:
			key := v.Key
			f.stateKey = &key
		case specification.ByStatus:
			status := v.Status
			f.status = &status
		case specification.VisibleTo:
			id := v.UserID
			f.visibleTo = &id
		case specification.ActiveOnly:
			f.activeOnly = true
		case specification.AfterSequence:
			from := v.From
			f.afterSeq = &from
		case specification.OrderBy:
			f.orderField = v.Field
			f.orderDesc = v.Desc
		case specification.Pagination:
			f.limit = v.Limit
		case specification.FilterBy:
			f.extra[v.Field] = v.Value
		}
	}
	return f
}

// --- session repository ---

type fakeSessionRepo struct{ store *fakeStore }

func (r *fakeSessionRepo) Create(_ context.Context, session *entity.SearchSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.sessions[session.Id] = session
	return nil
}

func (r *fakeSessionRepo) Update(_ context.Context, session *entity.SearchSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.sessions[session.Id] = session
	return nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if session, ok := r.store.sessions[id]; ok {
		session.IsDeleted = true
	}
	return nil
}

func (r *fakeSessionRepo) matches(session *entity.SearchSession, f specFilter) bool {
	if session.IsDeleted {
		return false
	}
	if f.id != nil && session.Id != *f.id {
		return false
	}
	if f.workspaceId != nil && session.WorkspaceId != *f.workspaceId {
		return false
	}
	if f.activeOnly && !session.IsActive {
		return false
	}
	return true
}

func (r *fakeSessionRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.SearchSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	for _, session := range r.store.sessions {
		if r.matches(session, f) {
			return session, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.SearchSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	var out []*entity.SearchSession
	for _, session := range r.store.sessions {
		if r.matches(session, f) {
			out = append(out, session)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

// --- participant repository ---

type fakeParticipantRepo struct{ store *fakeStore }

func (r *fakeParticipantRepo) Create(_ context.Context, participant *entity.Participant) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.participants {
		if existing.SessionId == participant.SessionId && existing.UserId == participant.UserId {
			return uniqueViolation()
		}
	}
	r.store.participants[participant.Id] = participant
	return nil
}

func (r *fakeParticipantRepo) Update(_ context.Context, participant *entity.Participant) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.participants[participant.Id] = participant
	return nil
}

func (r *fakeParticipantRepo) matches(p *entity.Participant, f specFilter) bool {
	if f.id != nil && p.Id != *f.id {
		return false
	}
	if f.sessionId != nil && p.SessionId != *f.sessionId {
		return false
	}
	if f.userId != nil && p.UserId != *f.userId {
		return false
	}
	if f.activeOnly && !p.IsActive {
		return false
	}
	return true
}

func (r *fakeParticipantRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	for _, p := range r.store.participants {
		if r.matches(p, f) {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakeParticipantRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	var out []*entity.Participant
	for _, p := range r.store.participants {
		if r.matches(p, f) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeParticipantRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

// --- session state repository ---

type fakeStateRepo struct{ store *fakeStore }

func (r *fakeStateRepo) Create(_ context.Context, entry *entity.StateEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	keys := r.store.states[entry.SessionId]
	if keys == nil {
		keys = make(map[string]*entity.StateEntry)
		r.store.states[entry.SessionId] = keys
	}
	if _, exists := keys[entry.Key]; exists {
		return uniqueViolation()
	}
	copied := *entry
	keys[entry.Key] = &copied
	return nil
}

func (r *fakeStateRepo) UpdateWithVersion(_ context.Context, entry *entity.StateEntry, expectedVersion int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	keys := r.store.states[entry.SessionId]
	current, ok := keys[entry.Key]
	if !ok || current.Version != expectedVersion {
		return false, nil
	}
	copied := *entry
	keys[entry.Key] = &copied
	return true, nil
}

func (r *fakeStateRepo) SetBlocked(_ context.Context, sessionId uuid.UUID, key string, blocked bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if entry, ok := r.store.states[sessionId][key]; ok {
		entry.Blocked = blocked
	}
	return nil
}

func (r *fakeStateRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.StateEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	if f.sessionId == nil || f.stateKey == nil {
		return nil, nil
	}
	entry, ok := r.store.states[*f.sessionId][*f.stateKey]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (r *fakeStateRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.StateEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	var out []*entity.StateEntry
	if f.sessionId == nil {
		return out, nil
	}
	for _, entry := range r.store.states[*f.sessionId] {
		copied := *entry
		out = append(out, &copied)
	}
	return out, nil
}

// --- search event repository ---

type fakeEventRepo struct{ store *fakeStore }

func (r *fakeEventRepo) NextSequence(_ context.Context, sessionId uuid.UUID) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.sequences[sessionId]++
	return r.store.sequences[sessionId], nil
}

func (r *fakeEventRepo) Append(_ context.Context, event *entity.SearchEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.events = append(r.store.events, event)
	return nil
}

func (r *fakeEventRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.SearchEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	var out []*entity.SearchEvent
	for _, event := range r.store.events {
		if f.sessionId != nil && event.SessionId != *f.sessionId {
			continue
		}
		if f.afterSeq != nil && event.SequenceNumber <= *f.afterSeq {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool {
		if f.orderDesc {
			return out[i].SequenceNumber > out[j].SequenceNumber
		}
		return out[i].SequenceNumber < out[j].SequenceNumber
	})
	if f.limit > 0 && len(out) > f.limit {
		out = out[:f.limit]
	}
	return out, nil
}

func (r *fakeEventRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

// --- annotation repository ---

type fakeAnnotationRepo struct{ store *fakeStore }

func (r *fakeAnnotationRepo) Create(_ context.Context, annotation *entity.Annotation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.annotations[annotation.Id] = annotation
	return nil
}

func (r *fakeAnnotationRepo) Update(_ context.Context, annotation *entity.Annotation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.annotations[annotation.Id] = annotation
	return nil
}

func (r *fakeAnnotationRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if annotation, ok := r.store.annotations[id]; ok {
		annotation.IsDeleted = true
	}
	return nil
}

func (r *fakeAnnotationRepo) matches(a *entity.Annotation, f specFilter) bool {
	if a.IsDeleted {
		return false
	}
	if f.id != nil && a.Id != *f.id {
		return false
	}
	if f.sessionId != nil && a.SessionId != *f.sessionId {
		return false
	}
	if f.visibleTo != nil && !a.IsShared && a.AuthorId != *f.visibleTo {
		return false
	}
	return true
}

func (r *fakeAnnotationRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.Annotation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	for _, a := range r.store.annotations {
		if r.matches(a, f) {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAnnotationRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.Annotation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	var out []*entity.Annotation
	for _, a := range r.store.annotations {
		if r.matches(a, f) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- conflict repository ---

type fakeConflictRepo struct{ store *fakeStore }

func (r *fakeConflictRepo) Create(_ context.Context, record *entity.ConflictRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.conflicts[record.Id] = record
	return nil
}

func (r *fakeConflictRepo) Update(_ context.Context, record *entity.ConflictRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.conflicts[record.Id] = record
	return nil
}

func (r *fakeConflictRepo) CancelBySession(_ context.Context, sessionId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, record := range r.store.conflicts {
		if record.SessionId == sessionId && record.Status == entity.ConflictPending {
			record.Status = entity.ConflictCancelled
		}
	}
	return nil
}

func (r *fakeConflictRepo) matches(c *entity.ConflictRecord, f specFilter) bool {
	if f.id != nil && c.Id != *f.id {
		return false
	}
	if f.sessionId != nil && c.SessionId != *f.sessionId {
		return false
	}
	if f.status != nil && string(c.Status) != *f.status {
		return false
	}
	if key, ok := f.extra["state_key"]; ok && c.Key != key.(string) {
		return false
	}
	return true
}

func (r *fakeConflictRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.ConflictRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	for _, c := range r.store.conflicts {
		if r.matches(c, f) {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeConflictRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.ConflictRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	var out []*entity.ConflictRecord
	for _, c := range r.store.conflicts {
		if r.matches(c, f) {
			out = append(out, c)
		}
	}
	return out, nil
}

// --- unit of work ---

type fakeUnitOfWork struct{ store *fakeStore }

func (u *fakeUnitOfWork) Begin(context.Context) error { return nil }
func (u *fakeUnitOfWork) Commit() error               { return nil }
func (u *fakeUnitOfWork) Rollback() error             { return nil }

func (u *fakeUnitOfWork) SearchSessionRepository() contract.SearchSessionRepository {
	return &fakeSessionRepo{store: u.store}
}
func (u *fakeUnitOfWork) ParticipantRepository() contract.ParticipantRepository {
	return &fakeParticipantRepo{store: u.store}
}
func (u *fakeUnitOfWork) SessionStateRepository() contract.SessionStateRepository {
	return &fakeStateRepo{store: u.store}
}
func (u *fakeUnitOfWork) SearchEventRepository() contract.SearchEventRepository {
	return &fakeEventRepo{store: u.store}
}
func (u *fakeUnitOfWork) AnnotationRepository() contract.AnnotationRepository {
	return &fakeAnnotationRepo{store: u.store}
}
func (u *fakeUnitOfWork) ConflictRepository() contract.ConflictRepository {
	return &fakeConflictRepo{store: u.store}
}

type fakeFactory struct{ store *fakeStore }

func (f *fakeFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork {
	return &fakeUnitOfWork{store: f.store}
}

// --- broadcast and bus doubles ---

type capturePublisher struct {
	mu        sync.Mutex
	envelopes []*dto.BroadcastEnvelope
}

func (p *capturePublisher) PublishBroadcast(_ context.Context, env *dto.BroadcastEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, env)
	return nil
}

func (p *capturePublisher) all() []*dto.BroadcastEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*dto.BroadcastEnvelope, len(p.envelopes))
	copy(out, p.envelopes)
	return out
}

type captureBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *captureBus) Publish(_ context.Context, event events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *captureBus) ofType(eventType string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// --- logger double ---

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

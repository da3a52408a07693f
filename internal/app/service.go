package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"atto/internal/cache"
	"atto/internal/config"
	"atto/internal/media"
	"atto/internal/rbac"
	"atto/internal/search"
	"atto/internal/store"
	"atto/internal/util"
)

// Service is the authorization and consistency layer. Every mutation runs
// in one store transaction; cache keys touched by it are dropped after the
// commit. Authorization always reads the store, never the cache.
type Service struct {
	cfg    config.Config
	store  *store.Store
	cache  cache.Cache
	keys   cache.Keys
	ids    *util.IDGenerator
	log    *slog.Logger
	search search.Engine
	media  media.Remover
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithSearch replaces the default store-only search.
func WithSearch(engine search.Engine) Option {
	return func(s *Service) { s.search = engine }
}

func WithMedia(remover media.Remover) Option {
	return func(s *Service) { s.media = remover }
}

func New(cfg config.Config, dataStore *store.Store, c cache.Cache, ids *util.IDGenerator, opts ...Option) *Service {
	if c == nil {
		c = cache.NoCache{}
	}
	s := &Service{
		cfg:   cfg,
		store: dataStore,
		cache: c,
		keys:  cache.Keys{Namespace: cfg.Namespace},
		ids:   ids,
		log:   slog.Default(),
		media: media.Noop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.search == nil {
		s.search = search.NewService(nil, dataStore, s.log)
	}
	return s
}

// bounded caps one store round trip.
func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

// read runs a store-only lookup outside any transaction.
func read[T any](ctx context.Context, s *Service, entity string, load func(context.Context, *store.Queries) (T, error)) (T, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	item, err := load(ctx, s.store.Queries)
	if err != nil {
		var zero T
		return zero, storeError(entity, err)
	}
	return item, nil
}

// fetchCached is the lookaside read: the cache first, then the store,
// populating the cache on the way out. A cache failure only costs a
// round trip. The key's generation is taken before the store read, so a
// write that commits in between leaves the populated value unreadable.
func fetchCached[T any](ctx context.Context, s *Service, key, entity string, load func(context.Context, *store.Queries) (T, error)) (T, error) {
	gen := cache.Generation(ctx, s.cache, key)
	if item, ok := cache.GetTimed[T](ctx, s.cache, key, gen); ok {
		return item, nil
	}

	item, err := read(ctx, s, entity, load)
	if err != nil {
		return item, err
	}
	if !cache.SetTimed(ctx, s.cache, key, item, gen, s.cfg.CacheTTL) {
		s.log.Warn("cache populate failed", "key", key)
	}
	return item, nil
}

// repo is the generic repository: one entity kind, how to load it by id
// and every cache key a loaded value is reachable under.
type repo[T any] struct {
	name string
	load func(ctx context.Context, q *store.Queries, id uint64) (T, error)
	keys func(k cache.Keys, item T) []string
}

// byID adapts a store method expression to the repo loader shape.
func byID[T any](get func(*store.Queries, context.Context, uint64) (T, error)) func(context.Context, *store.Queries, uint64) (T, error) {
	return func(ctx context.Context, q *store.Queries, id uint64) (T, error) {
		return get(q, ctx, id)
	}
}

func idKey[T any](name string, id func(T) uint64) func(cache.Keys, T) []string {
	return func(k cache.Keys, item T) []string {
		return []string{k.Key(name, id(item))}
	}
}

// get is the cached read used for display.
func (r repo[T]) get(ctx context.Context, s *Service, id uint64) (T, error) {
	return fetchCached(ctx, s, s.keys.Key(r.name, id), r.name, func(ctx context.Context, q *store.Queries) (T, error) {
		return r.load(ctx, q, id)
	})
}

// fresh skips the cache.
func (r repo[T]) fresh(ctx context.Context, s *Service, id uint64) (T, error) {
	return read(ctx, s, r.name, func(ctx context.Context, q *store.Queries) (T, error) {
		return r.load(ctx, q, id)
	})
}

// in reads inside the running transaction.
func (r repo[T]) in(ctx context.Context, w *work, id uint64) (T, error) {
	item, err := r.load(ctx, w.q, id)
	if err != nil {
		var zero T
		return zero, storeError(r.name, err)
	}
	return item, nil
}

func (r repo[T]) stale(w *work, item T) {
	w.stale(r.keys(w.keys, item)...)
}

const (
	entityUser         = "user"
	entityCommunity    = "community"
	entityMembership   = "membership"
	entityPost         = "post"
	entityQuestion     = "question"
	entityRequest      = "request"
	entityReaction     = "reaction"
	entityFollow       = "follow"
	entityBlock        = "block"
	entityIPBlock      = "ipblock"
	entityIPBan        = "ipban"
	entityNotification = "notification"
	entityReport       = "report"
	entityWarning      = "warning"
	entityAuditLog     = "auditlog"
	entityJournal      = "journal"
	entityJournalRole  = "journal_membership"
	entityEntry        = "entry"
)

var (
	accounts = repo[store.Account]{
		name: entityUser,
		load: byID((*store.Queries).GetAccount),
		keys: func(k cache.Keys, a store.Account) []string {
			return []string{k.Key(entityUser, a.ID), k.Key(entityUser, a.Username)}
		},
	}
	communities = repo[store.Community]{
		name: entityCommunity,
		load: byID((*store.Queries).GetCommunity),
		keys: func(k cache.Keys, c store.Community) []string {
			return []string{k.Key(entityCommunity, c.ID), k.Key(entityCommunity, c.Title)}
		},
	}
	requests = repo[store.ActionRequest]{
		name: entityRequest,
		load: byID((*store.Queries).GetRequest),
		keys: func(k cache.Keys, r store.ActionRequest) []string {
			return []string{
				k.Key(entityRequest, r.ID),
				requestAssetKey(k, r.ActionType, r.LinkedAsset),
				requestOwnerKey(k, r.Owner, r.ActionType, r.LinkedAsset),
			}
		},
	}
	memberships = repo[store.Membership]{
		name: entityMembership,
		load: byID((*store.Queries).GetMembership),
		keys: idKey(entityMembership, func(m store.Membership) uint64 { return m.ID }),
	}
	posts = repo[store.Post]{
		name: entityPost,
		load: byID((*store.Queries).GetPost),
		keys: idKey(entityPost, func(p store.Post) uint64 { return p.ID }),
	}
	questions = repo[store.Question]{
		name: entityQuestion,
		load: byID((*store.Queries).GetQuestion),
		keys: idKey(entityQuestion, func(q store.Question) uint64 { return q.ID }),
	}
	reactions = repo[store.Reaction]{
		name: entityReaction,
		load: byID((*store.Queries).GetReaction),
		keys: idKey(entityReaction, func(r store.Reaction) uint64 { return r.ID }),
	}
	notifications = repo[store.Notification]{
		name: entityNotification,
		load: byID((*store.Queries).GetNotification),
		keys: idKey(entityNotification, func(n store.Notification) uint64 { return n.ID }),
	}
	reports = repo[store.Report]{
		name: entityReport,
		load: byID((*store.Queries).GetReport),
		keys: idKey(entityReport, func(r store.Report) uint64 { return r.ID }),
	}
	warnings = repo[store.Warning]{
		name: entityWarning,
		load: byID((*store.Queries).GetWarning),
		keys: idKey(entityWarning, func(w store.Warning) uint64 { return w.ID }),
	}
	auditLog = repo[store.AuditLogEntry]{
		name: entityAuditLog,
		load: byID((*store.Queries).GetAuditLogEntry),
		keys: idKey(entityAuditLog, func(e store.AuditLogEntry) uint64 { return e.ID }),
	}
	journals = repo[store.Journal]{
		name: entityJournal,
		load: byID((*store.Queries).GetJournal),
		keys: idKey(entityJournal, func(j store.Journal) uint64 { return j.ID }),
	}
	journalRoles = repo[store.JournalMembership]{
		name: entityJournalRole,
		load: byID((*store.Queries).GetJournalMembership),
		keys: idKey(entityJournalRole, func(m store.JournalMembership) uint64 { return m.ID }),
	}
	entries = repo[store.JournalEntry]{
		name: entityEntry,
		load: byID((*store.Queries).GetJournalEntry),
		keys: idKey(entityEntry, func(e store.JournalEntry) uint64 { return e.ID }),
	}
)

func requestAssetKey(k cache.Keys, action store.ActionType, asset uint64) string {
	return k.Key(entityRequest, fmt.Sprintf("%s:%d", action, asset))
}

func requestOwnerKey(k cache.Keys, owner uint64, action store.ActionType, asset uint64) string {
	return k.Key(entityRequest, fmt.Sprintf("%d:%s:%d", owner, action, asset))
}

// work is one unit of work: a transaction plus the cache keys and
// post-commit hooks it collected.
type work struct {
	s     *Service
	q     *store.Queries
	keys  cache.Keys
	dirty []string
	after []func(context.Context)
}

func (w *work) stale(keys ...string) {
	w.dirty = append(w.dirty, keys...)
}

// then runs fn once the transaction has committed and the cache has been
// invalidated.
func (w *work) then(fn func(ctx context.Context)) {
	w.after = append(w.after, fn)
}

// atomically runs fn in one transaction. Store writes commit first, cache
// invalidation follows and post-commit hooks run last.
func (s *Service) atomically(ctx context.Context, fn func(ctx context.Context, w *work) error) error {
	txCtx, cancel := s.bounded(ctx)
	defer cancel()

	w := &work{s: s, keys: s.keys}
	err := s.store.WithTx(txCtx, func(q *store.Queries) error {
		w.q = q
		return fn(txCtx, w)
	})
	if err != nil {
		return storeError("record", err)
	}

	for _, key := range w.dirty {
		if !cache.Invalidate(ctx, s.cache, key) {
			s.log.Warn("cache invalidation failed", "key", key)
		}
	}
	for _, hook := range w.after {
		hook(ctx)
	}
	return nil
}

// adjust applies a counter delta and marks the counted entity stale under
// every key it is cached by.
func (w *work) adjust(ctx context.Context, c store.Counter, id uint64, delta int64) error {
	if id == 0 || delta == 0 {
		return nil
	}
	if err := w.q.Adjust(ctx, c, id, delta); err != nil {
		return storeError(c.Table(), err)
	}
	switch c.Table() {
	case "users":
		account, err := w.q.GetAccount(ctx, id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return storeError(entityUser, err)
		}
		if err == nil {
			accounts.stale(w, account)
		}
		w.stale(w.keys.Key(entityUser, id))
	case "communities":
		community, err := w.q.GetCommunity(ctx, id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return storeError(entityCommunity, err)
		}
		if err == nil {
			communities.stale(w, community)
		}
		w.stale(w.keys.Key(entityCommunity, id))
	case "posts":
		w.stale(w.keys.Key(entityPost, id))
	case "questions":
		w.stale(w.keys.Key(entityQuestion, id))
	}
	return nil
}

// actor reloads the caller inside the transaction so authorization sees
// the persisted permissions, not whatever the caller was resolved as.
func (w *work) actor(ctx context.Context, caller *store.Account) (store.Account, error) {
	if caller == nil || caller.ID == 0 {
		return store.Account{}, denied("sign in required")
	}
	account, err := w.q.GetAccount(ctx, caller.ID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Account{}, denied("unknown account")
	}
	if err != nil {
		return store.Account{}, storeError(entityUser, err)
	}
	if account.Permissions.IsBanned() {
		return store.Account{}, denied("account is banned")
	}
	return account, nil
}

// grant describes one three-way authorization: the resource owner, a
// role in the resource's community or journal, or a platform-wide bit.
type grant struct {
	owner    uint64
	scope    uint64
	role     rbac.Community
	journal  rbac.Journal
	platform rbac.Platform
	action   string
}

// authorizeCommunity passes when actor owns the resource, holds g.role in
// community g.scope, or holds g.platform. Access through the platform bit
// alone is written to the audit log.
func (w *work) authorizeCommunity(ctx context.Context, actor store.Account, g grant) error {
	if actor.ID != 0 && actor.ID == g.owner {
		return nil
	}
	if g.scope != 0 && g.role != 0 {
		m, err := w.q.GetMembershipByOwnerCommunity(ctx, actor.ID, g.scope)
		switch {
		case err == nil:
			if m.Role.Check(g.role) {
				return nil
			}
		case !errors.Is(err, store.ErrNotFound):
			return storeError(entityMembership, err)
		}
	}
	return w.platformOverride(ctx, actor, g)
}

// authorizeJournal is authorizeCommunity for journal memberships.
func (w *work) authorizeJournal(ctx context.Context, actor store.Account, g grant) error {
	if actor.ID != 0 && actor.ID == g.owner {
		return nil
	}
	if g.scope != 0 && g.journal != 0 {
		m, err := w.q.GetJournalMembershipByOwnerJournal(ctx, actor.ID, g.scope)
		switch {
		case err == nil:
			if m.Role.Check(g.journal) {
				return nil
			}
		case !errors.Is(err, store.ErrNotFound):
			return storeError(entityJournalRole, err)
		}
	}
	return w.platformOverride(ctx, actor, g)
}

func (w *work) platformOverride(ctx context.Context, actor store.Account, g grant) error {
	if g.platform == 0 || !actor.Permissions.Check(g.platform) {
		return denied("not allowed to " + g.action)
	}
	return w.audit(ctx, actor.ID, fmt.Sprintf("%s (as %s)", g.action, g.platform))
}

// require checks a platform-only permission and audits the action.
func (w *work) require(ctx context.Context, actor store.Account, perm rbac.Platform, action string) error {
	if !actor.Permissions.Check(perm) {
		return denied("not allowed to " + action)
	}
	return w.audit(ctx, actor.ID, action)
}

func (w *work) audit(ctx context.Context, moderator uint64, content string) error {
	entry := store.AuditLogEntry{
		ID:        w.s.ids.Next(),
		Created:   util.Now(),
		Moderator: moderator,
		Content:   content,
	}
	if err := w.q.InsertAuditLogEntry(ctx, entry); err != nil {
		return storeError(entityAuditLog, err)
	}
	return nil
}

// notify inserts a notification in the running transaction and bumps the
// owner's unread count. Owner 0 is nobody.
func (w *work) notify(ctx context.Context, owner uint64, title, content string) error {
	if owner == 0 {
		return nil
	}
	n := store.Notification{
		ID:      w.s.ids.Next(),
		Created: util.Now(),
		Title:   title,
		Content: content,
		Owner:   owner,
	}
	if err := w.q.InsertNotification(ctx, n); err != nil {
		return storeError(entityNotification, err)
	}
	return w.adjust(ctx, store.AccountNotifications, owner, 1)
}

// optional turns a not-found lookup into ok=false.
func optional[T any](item T, err error) (T, bool, error) {
	if errors.Is(err, store.ErrNotFound) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		var zero T
		return zero, false, err
	}
	return item, true, nil
}

func checkLength(field, value string, minLen, maxLen int) error {
	n := len(value)
	if n < minLen {
		return invalid(fmt.Sprintf("%s is too short", field), map[string]any{"field": field, "min": minLen})
	}
	if n > maxLen {
		return invalid(fmt.Sprintf("%s is too long", field), map[string]any{"field": field, "max": maxLen})
	}
	return nil
}

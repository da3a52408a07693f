package app

import (
	"context"
	"fmt"

	"atto/internal/rbac"
	"atto/internal/store"
	"atto/internal/util"
)

// addRequest opens a pending action for owner and bumps its request count.
func (w *work) addRequest(ctx context.Context, owner uint64, action store.ActionType, asset uint64) error {
	r := store.ActionRequest{
		ID:          w.s.ids.Next(),
		Created:     util.Now(),
		Owner:       owner,
		ActionType:  action,
		LinkedAsset: asset,
	}
	if err := w.q.InsertRequest(ctx, r); err != nil {
		if store.IsUniqueViolation(err) {
			return invalid("request already exists", nil)
		}
		return storeError(entityRequest, err)
	}
	requests.stale(w, r)
	return w.adjust(ctx, store.AccountRequests, owner, 1)
}

func (w *work) removeRequest(ctx context.Context, r store.ActionRequest) error {
	if err := w.q.DeleteRequest(ctx, r.ID); err != nil {
		return storeError(entityRequest, err)
	}
	requests.stale(w, r)
	return w.adjust(ctx, store.AccountRequests, r.Owner, -1)
}

func (s *Service) GetRequest(ctx context.Context, id uint64) (store.ActionRequest, error) {
	return requests.get(ctx, s, id)
}

// GetRequestByLinkedAsset finds the open request of one kind for asset,
// such as the answer request of a question. Follow requests share their
// linked asset across owners and are looked up with
// GetRequestByOwnerLinkedAsset instead.
func (s *Service) GetRequestByLinkedAsset(ctx context.Context, action store.ActionType, asset uint64) (store.ActionRequest, error) {
	if action == store.ActionFollow {
		return store.ActionRequest{}, invalid("follow requests need an owner", nil)
	}
	key := requestAssetKey(s.keys, action, asset)
	return fetchCached(ctx, s, key, entityRequest, func(ctx context.Context, q *store.Queries) (store.ActionRequest, error) {
		return q.GetRequestByLinkedAsset(ctx, action, asset)
	})
}

func (s *Service) GetRequestByOwnerLinkedAsset(ctx context.Context, owner uint64, action store.ActionType, asset uint64) (store.ActionRequest, error) {
	key := requestOwnerKey(s.keys, owner, action, asset)
	return fetchCached(ctx, s, key, entityRequest, func(ctx context.Context, q *store.Queries) (store.ActionRequest, error) {
		return q.GetRequestByOwnerLinkedAsset(ctx, owner, action, asset)
	})
}

func (s *Service) ListRequests(ctx context.Context, actor *store.Account) ([]store.ActionRequest, error) {
	if actor == nil || actor.ID == 0 {
		return nil, denied("sign in required")
	}
	return read(ctx, s, entityRequest, func(ctx context.Context, q *store.Queries) ([]store.ActionRequest, error) {
		return q.ListRequestsByOwner(ctx, actor.ID)
	})
}

// DeleteRequest dismisses a pending action. Dismissing a join request
// also withdraws the pending membership; dismissing an answer request
// leaves the question unanswerable.
func (s *Service) DeleteRequest(ctx context.Context, actor *store.Account, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		r, err := requests.in(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.authorizeCommunity(ctx, me, grant{
			owner:    r.Owner,
			platform: rbac.ManageRequests,
			action:   fmt.Sprintf("delete request %d", r.ID),
		}); err != nil {
			return err
		}
		return w.dismissRequest(ctx, r)
	})
}

// dismissRequest removes r and withdraws the pending membership of a
// join request.
func (w *work) dismissRequest(ctx context.Context, r store.ActionRequest) error {
	if err := w.removeRequest(ctx, r); err != nil {
		return err
	}
	if r.ActionType != store.ActionCommunityJoin {
		return nil
	}
	m, found, err := optional(w.q.GetMembership(ctx, r.LinkedAsset))
	if err != nil {
		return storeError(entityMembership, err)
	}
	if found && m.Role.IsRequested() {
		if err := w.q.DeleteMembership(ctx, m.ID); err != nil {
			return storeError(entityMembership, err)
		}
		memberships.stale(w, m)
	}
	return nil
}

// ClearRequests dismisses every pending request of the actor. Unanswered
// questions behind answer requests are deleted with them.
func (s *Service) ClearRequests(ctx context.Context, actor *store.Account) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		pending, err := w.q.ListRequestsByOwner(ctx, me.ID)
		if err != nil {
			return storeError(entityRequest, err)
		}
		for _, r := range pending {
			if r.ActionType != store.ActionAnswer {
				if err := w.dismissRequest(ctx, r); err != nil {
					return err
				}
				continue
			}
			question, found, err := optional(w.q.GetQuestion(ctx, r.LinkedAsset))
			if err != nil {
				return storeError(entityQuestion, err)
			}
			if !found {
				if err := w.removeRequest(ctx, r); err != nil {
					return err
				}
				continue
			}
			// removes the request as well
			if err := w.removeQuestion(ctx, question); err != nil {
				return err
			}
		}
		return nil
	})
}

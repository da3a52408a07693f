package app

import (
	"context"
	"fmt"

	"atto/internal/rbac"
	"atto/internal/store"
)

// Notify delivers a notification to owner. There is no acknowledgement.
func (s *Service) Notify(ctx context.Context, owner uint64, title, content string) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		if _, err := accounts.in(ctx, w, owner); err != nil {
			return err
		}
		return w.notify(ctx, owner, title, content)
	})
}

func (w *work) ownNotification(ctx context.Context, actor store.Account, id uint64) (store.Notification, error) {
	n, err := notifications.in(ctx, w, id)
	if err != nil {
		return store.Notification{}, err
	}
	err = w.authorizeCommunity(ctx, actor, grant{
		owner:    n.Owner,
		platform: rbac.ManageNotifications,
		action:   fmt.Sprintf("manage notification %d", n.ID),
	})
	if err != nil {
		return store.Notification{}, err
	}
	return n, nil
}

func (s *Service) ListNotifications(ctx context.Context, actor *store.Account) ([]store.Notification, error) {
	if actor == nil || actor.ID == 0 {
		return nil, denied("sign in required")
	}
	return read(ctx, s, entityNotification, func(ctx context.Context, q *store.Queries) ([]store.Notification, error) {
		return q.ListNotificationsByOwner(ctx, actor.ID)
	})
}

// SetNotificationRead marks a notification read or unread. The owner's
// unread count only moves on an actual transition.
func (s *Service) SetNotificationRead(ctx context.Context, actor *store.Account, id uint64, isRead bool) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		n, err := w.ownNotification(ctx, me, id)
		if err != nil {
			return err
		}
		if n.Read == isRead {
			return nil
		}
		if err := w.q.UpdateNotificationRead(ctx, n.ID, isRead); err != nil {
			return storeError(entityNotification, err)
		}
		notifications.stale(w, n)
		delta := int64(1)
		if isRead {
			delta = -1
		}
		return w.adjust(ctx, store.AccountNotifications, n.Owner, delta)
	})
}

func (s *Service) DeleteNotification(ctx context.Context, actor *store.Account, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		n, err := w.ownNotification(ctx, me, id)
		if err != nil {
			return err
		}
		return w.removeNotification(ctx, n)
	})
}

// ClearNotifications deletes every notification of the actor.
func (s *Service) ClearNotifications(ctx context.Context, actor *store.Account) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		all, err := w.q.ListNotificationsByOwner(ctx, me.ID)
		if err != nil {
			return storeError(entityNotification, err)
		}
		for _, n := range all {
			if err := w.removeNotification(ctx, n); err != nil {
				return err
			}
		}
		return nil
	})
}

func (w *work) removeNotification(ctx context.Context, n store.Notification) error {
	if err := w.q.DeleteNotification(ctx, n.ID); err != nil {
		return storeError(entityNotification, err)
	}
	notifications.stale(w, n)
	if n.Read {
		return nil
	}
	return w.adjust(ctx, store.AccountNotifications, n.Owner, -1)
}

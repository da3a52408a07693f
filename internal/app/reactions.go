package app

import (
	"context"
	"fmt"

	"atto/internal/rbac"
	"atto/internal/store"
	"atto/internal/util"
)

// reactionCounter picks the counter a reaction of polarity isLike on an
// asset of kind moves.
func reactionCounter(kind store.AssetType, isLike bool) (store.Counter, bool) {
	var like, dislike store.Counter
	switch kind {
	case store.AssetPost:
		like, dislike = store.PostLikes, store.PostDislikes
	case store.AssetQuestion:
		like, dislike = store.QuestionLikes, store.QuestionDislikes
	case store.AssetCommunity:
		like, dislike = store.CommunityLikes, store.CommunityDislikes
	default:
		return store.Counter{}, false
	}
	if isLike {
		return like, true
	}
	return dislike, true
}

// assetOwner loads the asset a reaction points at and returns its owner.
func (w *work) assetOwner(ctx context.Context, asset uint64, kind store.AssetType) (uint64, error) {
	switch kind {
	case store.AssetPost:
		p, err := posts.in(ctx, w, asset)
		return p.Owner, err
	case store.AssetQuestion:
		q, err := questions.in(ctx, w, asset)
		return q.Owner, err
	case store.AssetCommunity:
		c, err := communities.in(ctx, w, asset)
		return c.Owner, err
	default:
		return 0, invalid("cannot react to this kind of asset", map[string]any{"asset_type": kind})
	}
}

// React records the actor's reaction to an asset. Reacting again with the
// same polarity is rejected; the opposite polarity replaces the old
// reaction. Likes notify the asset owner.
func (s *Service) React(ctx context.Context, actor *store.Account, asset uint64, kind store.AssetType, isLike bool) (store.Reaction, error) {
	var reaction store.Reaction
	err := s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		owner, err := w.assetOwner(ctx, asset, kind)
		if err != nil {
			return err
		}
		counter, _ := reactionCounter(kind, isLike)

		existing, found, err := optional(w.q.GetReactionByOwnerAsset(ctx, me.ID, asset))
		if err != nil {
			return storeError(entityReaction, err)
		}
		if found {
			if existing.IsLike == isLike {
				return invalid("already reacted", nil)
			}
			if err := w.removeReaction(ctx, existing); err != nil {
				return err
			}
		}

		reaction = store.Reaction{
			ID:        s.ids.Next(),
			Created:   util.Now(),
			Owner:     me.ID,
			Asset:     asset,
			AssetType: kind,
			IsLike:    isLike,
		}
		if err := w.q.InsertReaction(ctx, reaction); err != nil {
			return storeError(entityReaction, err)
		}
		reactions.stale(w, reaction)
		if err := w.adjust(ctx, counter, asset, 1); err != nil {
			return err
		}
		if isLike && owner != me.ID {
			return w.notify(ctx, owner, "Your content has received a like!",
				fmt.Sprintf("@%s liked your %s.", me.Username, kind))
		}
		return nil
	})
	if err != nil {
		return store.Reaction{}, err
	}
	return reaction, nil
}

func (s *Service) GetReaction(ctx context.Context, id uint64) (store.Reaction, error) {
	return reactions.get(ctx, s, id)
}

// ReactionOf is the actor's current reaction to asset, read from the store.
func (s *Service) ReactionOf(ctx context.Context, owner, asset uint64) (store.Reaction, error) {
	return read(ctx, s, entityReaction, func(ctx context.Context, q *store.Queries) (store.Reaction, error) {
		return q.GetReactionByOwnerAsset(ctx, owner, asset)
	})
}

// DeleteReaction is the exact inverse of React, without a notification.
func (s *Service) DeleteReaction(ctx context.Context, actor *store.Account, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		r, err := reactions.in(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.authorizeCommunity(ctx, me, grant{
			owner:    r.Owner,
			platform: rbac.ManageReactions,
			action:   fmt.Sprintf("delete reaction %d", r.ID),
		}); err != nil {
			return err
		}
		return w.removeReaction(ctx, r)
	})
}

func (w *work) removeReaction(ctx context.Context, r store.Reaction) error {
	if err := w.q.DeleteReaction(ctx, r.ID); err != nil {
		return storeError(entityReaction, err)
	}
	reactions.stale(w, r)

	counter, ok := reactionCounter(r.AssetType, r.IsLike)
	if !ok {
		return nil
	}
	return w.adjust(ctx, counter, r.Asset, -1)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"atto/internal/rbac"
	"atto/internal/store"
	"atto/internal/util"
)

// blocks reports whether initiator has blocked receiver.
func (w *work) blocks(ctx context.Context, initiator, receiver uint64) (bool, error) {
	if initiator == 0 || receiver == 0 {
		return false, nil
	}
	_, found, err := optional(w.q.GetEdgeByPair(ctx, store.Blocks, initiator, receiver))
	if err != nil {
		return false, storeError(entityBlock, err)
	}
	return found, nil
}

// addFollow inserts the edge and moves both counts in the same
// transaction.
func (w *work) addFollow(ctx context.Context, initiator, receiver uint64) error {
	edge := store.Edge{ID: w.s.ids.Next(), Created: util.Now(), Initiator: initiator, Receiver: receiver}
	if err := w.q.InsertEdge(ctx, store.Follows, edge); err != nil {
		if store.IsUniqueViolation(err) {
			return invalid("already following", nil)
		}
		return storeError(entityFollow, err)
	}
	if err := w.adjust(ctx, store.AccountFollowing, initiator, 1); err != nil {
		return err
	}
	return w.adjust(ctx, store.AccountFollowers, receiver, 1)
}

func (w *work) removeFollow(ctx context.Context, edge store.Edge) error {
	if err := w.q.DeleteEdge(ctx, store.Follows, edge.ID); err != nil {
		return storeError(entityFollow, err)
	}
	if err := w.adjust(ctx, store.AccountFollowing, edge.Initiator, -1); err != nil {
		return err
	}
	return w.adjust(ctx, store.AccountFollowers, edge.Receiver, -1)
}

// Follow follows target. A private profile gets a follow request instead
// and Follow reports false until it is accepted.
func (s *Service) Follow(ctx context.Context, actor *store.Account, target uint64) (bool, error) {
	var followed bool
	err := s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		if me.ID == target {
			return invalid("cannot follow yourself", nil)
		}
		other, err := accounts.in(ctx, w, target)
		if err != nil {
			return err
		}
		for _, pair := range [][2]uint64{{other.ID, me.ID}, {me.ID, other.ID}} {
			blocked, err := w.blocks(ctx, pair[0], pair[1])
			if err != nil {
				return err
			}
			if blocked {
				return denied("cannot follow a blocked account")
			}
		}
		if _, found, err := optional(w.q.GetEdgeByPair(ctx, store.Follows, me.ID, other.ID)); err != nil {
			return storeError(entityFollow, err)
		} else if found {
			return invalid("already following", nil)
		}

		if other.Settings.PrivateProfile {
			if err := w.addRequest(ctx, other.ID, store.ActionFollow, me.ID); err != nil {
				return err
			}
			return w.notify(ctx, other.ID, "You have a new follow request",
				fmt.Sprintf("@%s asked to follow you.", me.Username))
		}
		if err := w.addFollow(ctx, me.ID, other.ID); err != nil {
			return err
		}
		followed = true
		return w.notify(ctx, other.ID, "Somebody followed you!", fmt.Sprintf("@%s followed you.", me.Username))
	})
	return followed, err
}

// AcceptFollowRequest turns a pending follow request of the actor into a
// follow.
func (s *Service) AcceptFollowRequest(ctx context.Context, actor *store.Account, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		r, err := requests.in(ctx, w, id)
		if err != nil {
			return err
		}
		if r.Owner != me.ID || r.ActionType != store.ActionFollow {
			return notFound(entityRequest)
		}
		if err := w.removeRequest(ctx, r); err != nil {
			return err
		}
		follower, err := accounts.in(ctx, w, r.LinkedAsset)
		if err != nil {
			return err
		}
		if err := w.addFollow(ctx, follower.ID, me.ID); err != nil {
			return err
		}
		return w.notify(ctx, follower.ID, "Your follow request was accepted",
			fmt.Sprintf("@%s accepted your follow request.", me.Username))
	})
}

func (s *Service) Unfollow(ctx context.Context, actor *store.Account, target uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		edge, err := w.q.GetEdgeByPair(ctx, store.Follows, me.ID, target)
		if err != nil {
			return storeError(entityFollow, err)
		}
		return w.removeFollow(ctx, edge)
	})
}

// RemoveFollow deletes a follow edge by id: either side of it may, as may
// platform follow managers.
func (s *Service) RemoveFollow(ctx context.Context, actor *store.Account, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		edge, err := w.q.GetEdge(ctx, store.Follows, id)
		if err != nil {
			return storeError(entityFollow, err)
		}
		if me.ID != edge.Receiver {
			if err := w.authorizeCommunity(ctx, me, grant{
				owner:    edge.Initiator,
				platform: rbac.ManageFollows,
				action:   fmt.Sprintf("delete follow %d", edge.ID),
			}); err != nil {
				return err
			}
		}
		return w.removeFollow(ctx, edge)
	})
}

func (s *Service) ListFollowers(ctx context.Context, account uint64, batch, number int) ([]store.Edge, error) {
	return read(ctx, s, entityFollow, func(ctx context.Context, q *store.Queries) ([]store.Edge, error) {
		return q.ListEdgesByReceiver(ctx, store.Follows, account, batch, number)
	})
}

// IsFollowing is a store read so it can gate private profiles.
func (s *Service) IsFollowing(ctx context.Context, initiator, receiver uint64) (bool, error) {
	_, err := read(ctx, s, entityFollow, func(ctx context.Context, q *store.Queries) (store.Edge, error) {
		return q.GetEdgeByPair(ctx, store.Follows, initiator, receiver)
	})
	return exists(err)
}

// Block blocks target and drops follows in both directions.
func (s *Service) Block(ctx context.Context, actor *store.Account, target uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		if me.ID == target {
			return invalid("cannot block yourself", nil)
		}
		other, err := accounts.in(ctx, w, target)
		if err != nil {
			return err
		}
		edge := store.Edge{ID: s.ids.Next(), Created: util.Now(), Initiator: me.ID, Receiver: other.ID}
		if err := w.q.InsertEdge(ctx, store.Blocks, edge); err != nil {
			if store.IsUniqueViolation(err) {
				return invalid("already blocked", nil)
			}
			return storeError(entityBlock, err)
		}
		for _, pair := range [][2]uint64{{me.ID, other.ID}, {other.ID, me.ID}} {
			follow, found, err := optional(w.q.GetEdgeByPair(ctx, store.Follows, pair[0], pair[1]))
			if err != nil {
				return storeError(entityFollow, err)
			}
			if found {
				if err := w.removeFollow(ctx, follow); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *Service) Unblock(ctx context.Context, actor *store.Account, target uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		edge, err := w.q.GetEdgeByPair(ctx, store.Blocks, me.ID, target)
		if err != nil {
			return storeError(entityBlock, err)
		}
		if err := w.q.DeleteEdge(ctx, store.Blocks, edge.ID); err != nil {
			return storeError(entityBlock, err)
		}
		return nil
	})
}

// IsBlocked reports whether initiator has blocked receiver.
func (s *Service) IsBlocked(ctx context.Context, initiator, receiver uint64) (bool, error) {
	_, err := read(ctx, s, entityBlock, func(ctx context.Context, q *store.Queries) (store.Edge, error) {
		return q.GetEdgeByPair(ctx, store.Blocks, initiator, receiver)
	})
	return exists(err)
}

// BlockIP stops an address from asking the actor questions.
func (s *Service) BlockIP(ctx context.Context, actor *store.Account, ip string) (store.IPBlock, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return store.IPBlock{}, invalid("ip is required", nil)
	}
	var block store.IPBlock
	err := s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		block = store.IPBlock{ID: s.ids.Next(), Created: util.Now(), Initiator: me.ID, Receiver: ip}
		if err := w.q.InsertIPBlock(ctx, block); err != nil {
			if store.IsUniqueViolation(err) {
				return invalid("already blocked", nil)
			}
			return storeError(entityIPBlock, err)
		}
		return nil
	})
	if err != nil {
		return store.IPBlock{}, err
	}
	return block, nil
}

// BlockQuestionAsker blocks the address a question was asked from, which
// is how anonymous askers are blocked.
func (s *Service) BlockQuestionAsker(ctx context.Context, actor *store.Account, question uint64) (store.IPBlock, error) {
	q, err := questions.fresh(ctx, s, question)
	if err != nil {
		return store.IPBlock{}, err
	}
	if actor == nil || q.Receiver != actor.ID {
		return store.IPBlock{}, denied("only the receiver can block the asker")
	}
	return s.BlockIP(ctx, actor, q.IP)
}

func (s *Service) UnblockIP(ctx context.Context, actor *store.Account, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		block, err := w.q.GetIPBlock(ctx, id)
		if err != nil {
			return storeError(entityIPBlock, err)
		}
		if block.Initiator != me.ID {
			return denied("not your block")
		}
		if err := w.q.DeleteIPBlock(ctx, id); err != nil {
			return storeError(entityIPBlock, err)
		}
		return nil
	})
}

// exists turns a lookup error into a presence flag.
func exists(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

package app

import (
	"context"
	"errors"
	"fmt"

	"atto/internal/rbac"
	"atto/internal/store"
	"atto/internal/util"
)

type CreateQuestionInput struct {
	Content   string
	Receiver  uint64
	Community uint64
	IsGlobal  bool
	// Anonymous hides the asker even when signed in.
	Anonymous bool
}

// CreateQuestion asks a question. A direct question opens exactly one
// answer request for its receiver; a global question is posted to a
// community, or to the receiver's profile when no community is given, and
// needs no request. actor may be nil for anonymous asks.
func (s *Service) CreateQuestion(ctx context.Context, actor *store.Account, in CreateQuestionInput, ip string) (store.Question, error) {
	if err := checkLength("content", in.Content, 2, 2048); err != nil {
		return store.Question{}, err
	}
	question := store.Question{
		ID:       s.ids.Next(),
		Created:  util.Now(),
		Content:  in.Content,
		IsGlobal: in.IsGlobal,
		IP:       ip,
	}

	err := s.atomically(ctx, func(ctx context.Context, w *work) error {
		var me *store.Account
		if actor != nil && actor.ID != 0 {
			account, err := w.actor(ctx, actor)
			if err != nil {
				return err
			}
			me = &account
		}
		if ip != "" {
			if _, banned, err := optional(w.q.GetIPBan(ctx, ip)); err != nil {
				return storeError(entityIPBan, err)
			} else if banned {
				return denied("this address is banned")
			}
		}

		if in.IsGlobal && (me == nil || in.Anonymous) {
			return denied("global questions cannot be anonymous")
		}
		if in.IsGlobal && in.Community != 0 {
			community, err := communities.in(ctx, w, in.Community)
			if err != nil {
				return err
			}
			ok, err := w.canPost(ctx, community, me)
			if err != nil {
				return err
			}
			if !community.Context.EnableQuestions || !ok {
				return disabled("questions are disabled in this community")
			}
			question.Owner = me.ID
			question.Community = community.ID
			return w.insertQuestion(ctx, question)
		}

		receiver, err := accounts.in(ctx, w, in.Receiver)
		if err != nil {
			return err
		}
		if !receiver.Settings.EnableQuestions {
			return disabled("this account does not accept questions")
		}
		anonymous := me == nil || in.Anonymous
		if anonymous && !receiver.Settings.AllowAnonymousQuestions {
			return disabled("this account does not accept anonymous questions")
		}
		if ip != "" {
			if _, found, err := optional(w.q.GetIPBlockByPair(ctx, receiver.ID, ip)); err != nil {
				return storeError(entityIPBlock, err)
			} else if found {
				return denied("you are blocked by this account")
			}
		}
		if me != nil {
			blocked, err := w.blocks(ctx, receiver.ID, me.ID)
			if err != nil {
				return err
			}
			if blocked {
				return denied("you are blocked by this account")
			}
			if !anonymous {
				question.Owner = me.ID
			}
		}
		question.Receiver = receiver.ID

		if err := w.insertQuestion(ctx, question); err != nil {
			return err
		}
		// global questions on a profile are open to everyone
		if question.IsGlobal {
			return nil
		}
		return w.addRequest(ctx, receiver.ID, store.ActionAnswer, question.ID)
	})
	if err != nil {
		return store.Question{}, err
	}
	return question, nil
}

func (w *work) insertQuestion(ctx context.Context, question store.Question) error {
	if err := w.q.InsertQuestion(ctx, question); err != nil {
		return storeError(entityQuestion, err)
	}
	questions.stale(w, question)
	return nil
}

func (s *Service) GetQuestion(ctx context.Context, id uint64) (store.Question, error) {
	return questions.get(ctx, s, id)
}

func (s *Service) ListReceivedQuestions(ctx context.Context, receiver uint64) ([]store.Question, error) {
	return read(ctx, s, entityQuestion, func(ctx context.Context, q *store.Queries) ([]store.Question, error) {
		return q.ListQuestionsByReceiver(ctx, receiver)
	})
}

func (s *Service) ListGlobalQuestions(ctx context.Context, community uint64, batch, number int) ([]store.Question, error) {
	return read(ctx, s, entityQuestion, func(ctx context.Context, q *store.Queries) ([]store.Question, error) {
		return q.ListGlobalQuestions(ctx, community, batch, number)
	})
}

// DeleteQuestion removes a question, its open answer request and every
// post answering it. The asker, the receiver, community question
// managers and platform question managers may delete.
func (s *Service) DeleteQuestion(ctx context.Context, actor *store.Account, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		question, err := questions.in(ctx, w, id)
		if err != nil {
			return err
		}
		if question.Receiver == 0 || me.ID != question.Receiver {
			if err := w.authorizeCommunity(ctx, me, grant{
				owner:    question.Owner,
				scope:    question.Community,
				role:     rbac.CommunityManageQuestions,
				platform: rbac.ManageQuestions,
				action:   fmt.Sprintf("delete question %d", question.ID),
			}); err != nil {
				return err
			}
		}
		return w.removeQuestion(ctx, question)
	})
}

func (w *work) removeQuestion(ctx context.Context, question store.Question) error {
	if err := w.q.DeleteQuestion(ctx, question.ID); err != nil {
		return storeError(entityQuestion, err)
	}
	questions.stale(w, question)

	if !question.IsGlobal {
		r, found, err := optional(w.q.GetRequestByLinkedAsset(ctx, store.ActionAnswer, question.ID))
		if err != nil {
			return storeError(entityRequest, err)
		}
		if found {
			if err := w.removeRequest(ctx, r); err != nil {
				return err
			}
		}
	}

	answers, err := w.q.ListAnswers(ctx, question.ID)
	if err != nil {
		return storeError(entityPost, err)
	}
	for _, p := range answers {
		if err := w.removePost(ctx, p); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	received, err := w.q.ListReactionsByAsset(ctx, question.ID)
	if err != nil {
		return storeError(entityReaction, err)
	}
	for _, r := range received {
		if err := w.q.DeleteReaction(ctx, r.ID); err != nil {
			return storeError(entityReaction, err)
		}
		reactions.stale(w, r)
	}
	return nil
}

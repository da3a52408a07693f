package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"atto/internal/rbac"
	"atto/internal/search"
	"atto/internal/store"
	"atto/internal/util"
)

var mentionPattern = regexp.MustCompile(`@([a-z0-9_.\-]{2,32})`)

// mentions lists the distinct usernames mentioned in content.
func mentions(content string) []string {
	var names []string
	seen := map[string]bool{}
	for _, match := range mentionPattern.FindAllStringSubmatch(content, -1) {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

type CreatePostInput struct {
	Content    string
	Community  uint64
	ReplyingTo uint64
	Answering  uint64
	Reposting  uint64
	IsNSFW     bool
}

// CreatePost writes a post, comment or answer. Replies inherit the
// parent's community; answers to a direct question consume the
// receiver's pending request.
func (s *Service) CreatePost(ctx context.Context, actor *store.Account, in CreatePostInput) (store.Post, error) {
	if err := checkLength("content", in.Content, 2, 4096); err != nil {
		return store.Post{}, err
	}

	post := store.Post{
		ID:         s.ids.Next(),
		Created:    util.Now(),
		Content:    in.Content,
		Community:  in.Community,
		ReplyingTo: in.ReplyingTo,
		Context:    store.DefaultPostContext(),
	}
	post.Context.IsNSFW = in.IsNSFW
	post.Context.Reposting = in.Reposting
	post.Context.Answering = in.Answering

	err := s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		post.Owner = me.ID

		var parent store.Post
		if in.ReplyingTo != 0 {
			parent, err = posts.in(ctx, w, in.ReplyingTo)
			if err != nil {
				return err
			}
			blocked, err := w.blocks(ctx, parent.Owner, me.ID)
			if err != nil {
				return err
			}
			if blocked {
				return denied("you are blocked by the author of this post")
			}
			if !parent.Context.CommentsEnabled {
				return denied("post has comments disabled")
			}
			post.Community = parent.Community
		}

		skipCommunity := false
		if in.Answering != 0 {
			question, err := questions.in(ctx, w, in.Answering)
			if err != nil {
				return err
			}
			if question.IsGlobal {
				post.Community = question.Community
				// profile-wide global questions are answered on profiles
				if question.Community == 0 {
					skipCommunity = true
				}
			} else {
				if question.Receiver != me.ID {
					return denied("only the receiver can answer this question")
				}
				request, err := w.q.GetRequestByOwnerLinkedAsset(ctx, me.ID, store.ActionAnswer, question.ID)
				if errors.Is(err, store.ErrNotFound) {
					return invalid("question was already answered", nil)
				}
				if err != nil {
					return storeError(entityRequest, err)
				}
				if err := w.removeRequest(ctx, request); err != nil {
					return err
				}
				// direct answers live on the receiver's profile
				if in.ReplyingTo == 0 && in.Community == 0 {
					skipCommunity = true
				}
			}
			if err := w.adjust(ctx, store.QuestionAnswers, question.ID, 1); err != nil {
				return err
			}
			if question.Owner != me.ID {
				if err := w.notify(ctx, question.Owner, "Your question has received a new answer!",
					fmt.Sprintf("@%s answered your question.", me.Username)); err != nil {
					return err
				}
			}
		}

		if !skipCommunity {
			community, err := communities.in(ctx, w, post.Community)
			if errors.Is(err, ErrNotFound) {
				community = store.VoidCommunity()
			} else if err != nil {
				return err
			}
			ok, err := w.canPost(ctx, community, &me)
			if err != nil {
				return err
			}
			if !ok {
				return denied("not allowed to post in this community")
			}
		}

		if err := w.q.InsertPost(ctx, post); err != nil {
			return storeError(entityPost, err)
		}
		posts.stale(w, post)
		if err := w.adjust(ctx, store.AccountPosts, me.ID, 1); err != nil {
			return err
		}

		if in.ReplyingTo != 0 {
			if err := w.adjust(ctx, store.PostComments, parent.ID, 1); err != nil {
				return err
			}
			if parent.Owner != me.ID {
				if err := w.notify(ctx, parent.Owner, "Your post has received a new comment!",
					fmt.Sprintf("@%s commented on your post %d.", me.Username, parent.ID)); err != nil {
					return err
				}
			}
		}

		for _, name := range mentions(post.Content) {
			if name == me.Username {
				continue
			}
			mentioned, found, err := optional(w.q.GetAccountByUsername(ctx, name))
			if err != nil {
				return storeError(entityUser, err)
			}
			if !found {
				continue
			}
			if err := w.notify(ctx, mentioned.ID, "You've been mentioned in a post!",
				fmt.Sprintf("@%s mentioned you in their post %d.", me.Username, post.ID)); err != nil {
				return err
			}
		}

		w.then(func(context.Context) {
			s.search.IndexPost(search.RecordFromPost(post))
		})
		return nil
	})
	if err != nil {
		return store.Post{}, err
	}
	return post, nil
}

func (s *Service) GetPost(ctx context.Context, id uint64) (store.Post, error) {
	return posts.get(ctx, s, id)
}

func (s *Service) ListCommunityPosts(ctx context.Context, community uint64, batch, number int) ([]store.Post, error) {
	return read(ctx, s, entityPost, func(ctx context.Context, q *store.Queries) ([]store.Post, error) {
		return q.ListPostsByCommunity(ctx, community, batch, number)
	})
}

func (s *Service) ListReplies(ctx context.Context, parent uint64, batch, number int) ([]store.Post, error) {
	return read(ctx, s, entityPost, func(ctx context.Context, q *store.Queries) ([]store.Post, error) {
		return q.ListReplies(ctx, parent, batch, number)
	})
}

func (s *Service) ListAnswers(ctx context.Context, question uint64) ([]store.Post, error) {
	return read(ctx, s, entityPost, func(ctx context.Context, q *store.Queries) ([]store.Post, error) {
		return q.ListAnswers(ctx, question)
	})
}

func (w *work) authorizePost(ctx context.Context, actor store.Account, post store.Post, action string) error {
	platform := rbac.ManagePosts
	if post.ReplyingTo != 0 {
		platform = rbac.ManagePostReplies
	}
	return w.authorizeCommunity(ctx, actor, grant{
		owner:    post.Owner,
		scope:    post.Community,
		role:     rbac.CommunityManagePosts,
		platform: platform,
		action:   fmt.Sprintf("%s post %d", action, post.ID),
	})
}

// UpdatePostContent edits the text of a post. Only its author may.
func (s *Service) UpdatePostContent(ctx context.Context, actor *store.Account, id uint64, content string) error {
	if err := checkLength("content", content, 2, 4096); err != nil {
		return err
	}
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		post, err := posts.in(ctx, w, id)
		if err != nil {
			return err
		}
		if post.Owner != me.ID {
			return denied("only the author can edit a post")
		}
		post.Content = content
		post.Context.Edited = util.Now()
		if err := w.q.UpdatePostContent(ctx, id, content, post.Context); err != nil {
			return storeError(entityPost, err)
		}
		posts.stale(w, post)
		w.then(func(context.Context) {
			s.search.IndexPost(search.RecordFromPost(post))
		})
		return nil
	})
}

// UpdatePostContext changes the flags of a post. Pinning to the community
// needs MANAGE_PINS in it or platform MANAGE_POSTS; pinning to a profile
// is for the author only.
func (s *Service) UpdatePostContext(ctx context.Context, actor *store.Account, id uint64, value store.PostContext) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		post, err := posts.in(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.authorizePost(ctx, me, post, "update context of"); err != nil {
			return err
		}
		if value.IsPinned != post.Context.IsPinned {
			if err := w.authorizeCommunity(ctx, me, grant{
				scope:    post.Community,
				role:     rbac.CommunityManagePins,
				platform: rbac.ManagePosts,
				action:   fmt.Sprintf("pin post %d", post.ID),
			}); err != nil {
				return err
			}
		}
		if value.IsProfilePinned != post.Context.IsProfilePinned && me.ID != post.Owner {
			return denied("only the author can pin a post to their profile")
		}

		// linkage and edit time are not caller controlled
		value.Answering = post.Context.Answering
		value.Reposting = post.Context.Reposting
		value.Edited = post.Context.Edited
		if err := w.q.UpdatePostContext(ctx, id, value); err != nil {
			return storeError(entityPost, err)
		}
		posts.stale(w, post)
		return nil
	})
}

// DeletePost removes a post, its reactions and its counter contributions.
// Replies to it stay and read as replies to a missing parent.
func (s *Service) DeletePost(ctx context.Context, actor *store.Account, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		post, err := posts.in(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.authorizePost(ctx, me, post, "delete"); err != nil {
			return err
		}
		return w.removePost(ctx, post)
	})
}

func (w *work) removePost(ctx context.Context, post store.Post) error {
	received, err := w.q.ListReactionsByAsset(ctx, post.ID)
	if err != nil {
		return storeError(entityReaction, err)
	}
	for _, r := range received {
		if err := w.q.DeleteReaction(ctx, r.ID); err != nil {
			return storeError(entityReaction, err)
		}
		reactions.stale(w, r)
	}
	if err := w.q.DeletePost(ctx, post.ID); err != nil {
		return storeError(entityPost, err)
	}
	posts.stale(w, post)
	if err := w.adjust(ctx, store.AccountPosts, post.Owner, -1); err != nil {
		return err
	}
	if err := w.adjust(ctx, store.PostComments, post.ReplyingTo, -1); err != nil {
		return err
	}
	if err := w.adjust(ctx, store.QuestionAnswers, post.Context.Answering, -1); err != nil {
		return err
	}
	w.then(func(context.Context) {
		w.s.search.DeletePost(post.ID)
	})
	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"atto/internal/media"
	"atto/internal/rbac"
	"atto/internal/store"
	"atto/internal/util"
)

func (s *Service) validTitle(title string) error {
	if err := checkLength("title", title, 2, 32); err != nil {
		return err
	}
	for _, r := range title {
		if r > 127 || r == ' ' {
			return invalid("title contains characters that are not allowed", nil)
		}
	}
	if title != strings.ToLower(title) {
		return invalid("title must be lowercase", nil)
	}
	if slices.Contains(s.cfg.BannedTitles, title) {
		return invalid("this title cannot be used", nil)
	}
	return nil
}

// CreateCommunity creates a community owned by the actor together with
// the owner's administrator membership.
func (s *Service) CreateCommunity(ctx context.Context, actor *store.Account, title string) (store.Community, error) {
	title = strings.TrimSpace(title)
	if err := s.validTitle(title); err != nil {
		return store.Community{}, err
	}

	var community store.Community
	err := s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		if !me.Permissions.Check(rbac.InfiniteCommunities) {
			owned, err := w.q.CountAdministeredCommunities(ctx, me.ID)
			if err != nil {
				return storeError(entityCommunity, err)
			}
			if owned >= int64(s.cfg.MaxOwnedCommunities) {
				return invalid("you already own too many communities", map[string]any{"max": s.cfg.MaxOwnedCommunities})
			}
		}
		n, err := w.q.CountCommunitiesByTitle(ctx, title)
		if err != nil {
			return storeError(entityCommunity, err)
		}
		if n > 0 {
			return invalid("title in use", nil)
		}

		community = store.Community{
			ID:          s.ids.Next(),
			Created:     util.Now(),
			Title:       title,
			Owner:       me.ID,
			ReadAccess:  store.ReadEverybody,
			WriteAccess: store.WriteJoined,
			JoinAccess:  store.JoinEverybody,
		}
		if err := w.q.InsertCommunity(ctx, community); err != nil {
			return storeError(entityCommunity, err)
		}
		communities.stale(w, community)

		_, err = w.addMembership(ctx, me.ID, community.ID, rbac.DefaultMember|rbac.CommunityAdministrator)
		return err
	})
	if err != nil {
		return store.Community{}, err
	}
	community.MemberCount = 1
	return community, nil
}

func (s *Service) GetCommunity(ctx context.Context, id uint64) (store.Community, error) {
	return communities.get(ctx, s, id)
}

func (s *Service) GetCommunityByTitle(ctx context.Context, title string) (store.Community, error) {
	return fetchCached(ctx, s, s.keys.Key(entityCommunity, title), entityCommunity, func(ctx context.Context, q *store.Queries) (store.Community, error) {
		return q.GetCommunityByTitle(ctx, title)
	})
}

// CommunityOrVoid resolves a community for display; deleted communities
// read as the void community.
func (s *Service) CommunityOrVoid(ctx context.Context, id uint64) (store.Community, error) {
	community, err := s.GetCommunity(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return store.VoidCommunity(), nil
	}
	return community, err
}

func (w *work) authorizeCommunityAdmin(ctx context.Context, actor store.Account, community store.Community, action string) error {
	return w.authorizeCommunity(ctx, actor, grant{
		owner:    community.Owner,
		scope:    community.ID,
		role:     rbac.CommunityAdministrator,
		platform: rbac.ManageCommunities,
		action:   fmt.Sprintf("%s community %d", action, community.ID),
	})
}

// RenameCommunity changes the title. Both the old and the new title keys
// are invalidated so neither lookup can serve a stale entity.
func (s *Service) RenameCommunity(ctx context.Context, actor *store.Account, id uint64, title string) error {
	title = strings.TrimSpace(title)
	if err := s.validTitle(title); err != nil {
		return err
	}
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		community, err := communities.in(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.authorizeCommunityAdmin(ctx, me, community, "rename"); err != nil {
			return err
		}
		if community.Title == title {
			return nil
		}
		n, err := w.q.CountCommunitiesByTitle(ctx, title)
		if err != nil {
			return storeError(entityCommunity, err)
		}
		if n > 0 {
			return invalid("title in use", nil)
		}
		if err := w.q.UpdateCommunityTitle(ctx, id, title); err != nil {
			return storeError(entityCommunity, err)
		}
		communities.stale(w, community)
		w.stale(w.keys.Key(entityCommunity, title))
		return nil
	})
}

func (s *Service) UpdateCommunityContext(ctx context.Context, actor *store.Account, id uint64, value store.CommunityContext) error {
	if err := checkLength("display name", value.DisplayName, 0, 32); err != nil {
		return err
	}
	if err := checkLength("description", value.Description, 0, 4096); err != nil {
		return err
	}
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		community, err := communities.in(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.authorizeCommunityAdmin(ctx, me, community, "update"); err != nil {
			return err
		}
		if err := w.q.UpdateCommunityContext(ctx, id, value); err != nil {
			return storeError(entityCommunity, err)
		}
		communities.stale(w, community)
		return nil
	})
}

func (s *Service) UpdateCommunityAccess(ctx context.Context, actor *store.Account, id uint64, readAccess store.ReadAccess, writeAccess store.WriteAccess, joinAccess store.JoinAccess) error {
	switch {
	case readAccess != store.ReadEverybody && readAccess != store.ReadJoined:
		return invalid("unknown read access", map[string]any{"value": readAccess})
	case writeAccess != store.WriteEverybody && writeAccess != store.WriteJoined && writeAccess != store.WriteOwner:
		return invalid("unknown write access", map[string]any{"value": writeAccess})
	case joinAccess != store.JoinEverybody && joinAccess != store.JoinRequest && joinAccess != store.JoinNobody:
		return invalid("unknown join access", map[string]any{"value": joinAccess})
	}
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		community, err := communities.in(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.authorizeCommunityAdmin(ctx, me, community, "change access of"); err != nil {
			return err
		}
		if err := w.q.UpdateCommunityAccess(ctx, id, readAccess, writeAccess, joinAccess); err != nil {
			return storeError(entityCommunity, err)
		}
		communities.stale(w, community)
		return nil
	})
}

// TransferCommunity hands ownership to another account, which becomes
// an administrator member.
func (s *Service) TransferCommunity(ctx context.Context, actor *store.Account, id, owner uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		community, err := communities.in(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.authorizeCommunity(ctx, me, grant{
			owner:    community.Owner,
			platform: rbac.ManageCommunities,
			action:   fmt.Sprintf("transfer community %d", community.ID),
		}); err != nil {
			return err
		}
		if _, err := accounts.in(ctx, w, owner); err != nil {
			return err
		}
		if err := w.q.UpdateCommunityOwner(ctx, id, owner); err != nil {
			return storeError(entityCommunity, err)
		}
		communities.stale(w, community)

		m, found, err := optional(w.q.GetMembershipByOwnerCommunity(ctx, owner, id))
		if err != nil {
			return storeError(entityMembership, err)
		}
		if !found {
			_, err := w.addMembership(ctx, owner, id, rbac.DefaultMember|rbac.CommunityAdministrator)
			return err
		}
		role := (m.Role &^ (rbac.CommunityRequested | rbac.CommunityBanned)) | rbac.DefaultMember | rbac.CommunityAdministrator
		return w.setMembershipRole(ctx, m, role)
	})
}

// DeleteCommunity removes the community and its memberships. Posts stay
// and read as belonging to the void community.
func (s *Service) DeleteCommunity(ctx context.Context, actor *store.Account, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		community, err := communities.in(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.authorizeCommunity(ctx, me, grant{
			owner:    community.Owner,
			platform: rbac.ManageCommunities,
			action:   fmt.Sprintf("delete community %d", community.ID),
		}); err != nil {
			return err
		}
		return w.purgeCommunity(ctx, community)
	})
}

func (w *work) purgeCommunity(ctx context.Context, community store.Community) error {
	members, err := w.q.ListAllMembershipsByCommunity(ctx, community.ID)
	if err != nil {
		return storeError(entityMembership, err)
	}
	for _, m := range members {
		if err := w.removeMembership(ctx, m); err != nil {
			return err
		}
	}
	received, err := w.q.ListReactionsByAsset(ctx, community.ID)
	if err != nil {
		return storeError(entityReaction, err)
	}
	for _, r := range received {
		if err := w.q.DeleteReaction(ctx, r.ID); err != nil {
			return storeError(entityReaction, err)
		}
		reactions.stale(w, r)
	}
	if err := w.q.DeleteCommunity(ctx, community.ID); err != nil {
		return storeError(entityCommunity, err)
	}
	communities.stale(w, community)

	w.then(func(ctx context.Context) {
		keys := []string{media.Key(media.CommunityAvatar, community.ID), media.Key(media.CommunityBanner, community.ID)}
		if err := w.s.media.Remove(ctx, keys...); err != nil {
			w.s.log.Error("remove community media", "community", community.ID, "err", err)
		}
	})
	return nil
}

// CheckCanPost applies the community write access to account. A nil
// account is anonymous.
func (s *Service) CheckCanPost(ctx context.Context, community store.Community, account *store.Account) (bool, error) {
	var ok bool
	err := s.atomically(ctx, func(ctx context.Context, w *work) error {
		var err error
		ok, err = w.canPost(ctx, community, account)
		return err
	})
	return ok, err
}

func (w *work) canPost(ctx context.Context, community store.Community, account *store.Account) (bool, error) {
	if account == nil || account.ID == 0 {
		return false, nil
	}
	if community.ID == 0 {
		return false, nil
	}
	if community.WriteAccess == store.WriteOwner {
		return account.ID == community.Owner, nil
	}
	if account.ID == community.Owner {
		return true, nil
	}
	m, found, err := optional(w.q.GetMembershipByOwnerCommunity(ctx, account.ID, community.ID))
	if err != nil {
		return false, storeError(entityMembership, err)
	}
	switch community.WriteAccess {
	case store.WriteJoined:
		return found && m.Role.IsMember(), nil
	default:
		return !found || !contains(m.Role, rbac.CommunityBanned), nil
	}
}

func contains(role, bit rbac.Community) bool {
	return role&bit == bit
}

// counted reports whether a membership role counts toward member_count.
func counted(role rbac.Community) bool {
	return !role.IsRequested()
}

func (w *work) addMembership(ctx context.Context, owner, community uint64, role rbac.Community) (store.Membership, error) {
	m := store.Membership{
		ID:        w.s.ids.Next(),
		Created:   util.Now(),
		Owner:     owner,
		Community: community,
		Role:      role,
	}
	if err := w.q.InsertMembership(ctx, m); err != nil {
		if store.IsUniqueViolation(err) {
			return store.Membership{}, invalid("already a member", nil)
		}
		return store.Membership{}, storeError(entityMembership, err)
	}
	memberships.stale(w, m)
	if counted(role) {
		if err := w.adjust(ctx, store.CommunityMembers, community, 1); err != nil {
			return store.Membership{}, err
		}
	}
	return m, nil
}

func (w *work) setMembershipRole(ctx context.Context, m store.Membership, role rbac.Community) error {
	if err := w.q.UpdateMembershipRole(ctx, m.ID, role); err != nil {
		return storeError(entityMembership, err)
	}
	memberships.stale(w, m)
	switch {
	case !counted(m.Role) && counted(role):
		if err := w.adjust(ctx, store.CommunityMembers, m.Community, 1); err != nil {
			return err
		}
		return w.dropJoinRequest(ctx, m)
	case counted(m.Role) && !counted(role):
		return w.adjust(ctx, store.CommunityMembers, m.Community, -1)
	}
	return nil
}

func (w *work) removeMembership(ctx context.Context, m store.Membership) error {
	if err := w.q.DeleteMembership(ctx, m.ID); err != nil {
		return storeError(entityMembership, err)
	}
	memberships.stale(w, m)
	if !counted(m.Role) {
		return w.dropJoinRequest(ctx, m)
	}
	return w.adjust(ctx, store.CommunityMembers, m.Community, -1)
}

// dropJoinRequest removes the owner's pending join request for m.
func (w *work) dropJoinRequest(ctx context.Context, m store.Membership) error {
	r, found, err := optional(w.q.GetRequestByLinkedAsset(ctx, store.ActionCommunityJoin, m.ID))
	if err != nil {
		return storeError(entityRequest, err)
	}
	if !found {
		return nil
	}
	return w.removeRequest(ctx, r)
}

// JoinCommunity adds the actor to a community. Communities that join by
// request get a pending membership and a join request for the owner.
func (s *Service) JoinCommunity(ctx context.Context, actor *store.Account, community uint64) (store.Membership, error) {
	var m store.Membership
	err := s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		target, err := communities.in(ctx, w, community)
		if err != nil {
			return err
		}
		switch target.JoinAccess {
		case store.JoinNobody:
			return denied("this community is not accepting members")
		case store.JoinRequest:
			m, err = w.addMembership(ctx, me.ID, target.ID, rbac.PendingMember)
			if err != nil {
				return err
			}
			if err := w.addRequest(ctx, target.Owner, store.ActionCommunityJoin, m.ID); err != nil {
				return err
			}
			return w.notify(ctx, target.Owner, "Somebody wants to join your community",
				fmt.Sprintf("@%s asked to join %s.", me.Username, target.Title))
		default:
			m, err = w.addMembership(ctx, me.ID, target.ID, rbac.DefaultMember)
			return err
		}
	})
	if err != nil {
		return store.Membership{}, err
	}
	return m, nil
}

// LeaveCommunity removes the actor's own membership. Owners cannot leave.
func (s *Service) LeaveCommunity(ctx context.Context, actor *store.Account, community uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		target, err := communities.in(ctx, w, community)
		if err != nil {
			return err
		}
		if target.Owner == me.ID {
			return invalid("the owner cannot leave the community", nil)
		}
		m, err := w.q.GetMembershipByOwnerCommunity(ctx, me.ID, community)
		if err != nil {
			return storeError(entityMembership, err)
		}
		if contains(m.Role, rbac.CommunityBanned) {
			return denied("banned members cannot leave")
		}
		return w.removeMembership(ctx, m)
	})
}

func (s *Service) GetMembership(ctx context.Context, id uint64) (store.Membership, error) {
	return memberships.get(ctx, s, id)
}

// MembershipOf is a store read: it is what authorization sees.
func (s *Service) MembershipOf(ctx context.Context, owner, community uint64) (store.Membership, error) {
	return read(ctx, s, entityMembership, func(ctx context.Context, q *store.Queries) (store.Membership, error) {
		return q.GetMembershipByOwnerCommunity(ctx, owner, community)
	})
}

func (s *Service) ListCommunityMembers(ctx context.Context, community uint64, batch, number int) ([]store.Membership, error) {
	return read(ctx, s, entityMembership, func(ctx context.Context, q *store.Queries) ([]store.Membership, error) {
		return q.ListMembershipsByCommunity(ctx, community, batch, number)
	})
}

func (s *Service) ListAccountMemberships(ctx context.Context, owner uint64) ([]store.Membership, error) {
	return read(ctx, s, entityMembership, func(ctx context.Context, q *store.Queries) ([]store.Membership, error) {
		return q.ListMembershipsByOwner(ctx, owner)
	})
}

func (w *work) authorizeRoles(ctx context.Context, actor store.Account, community store.Community, action string) error {
	return w.authorizeCommunity(ctx, actor, grant{
		owner:    community.Owner,
		scope:    community.ID,
		role:     rbac.CommunityManageRoles,
		platform: rbac.ManageMemberships,
		action:   action,
	})
}

// UpdateMembershipRole changes a member's role. Moving a membership out
// of REQUESTED accepts it.
func (s *Service) UpdateMembershipRole(ctx context.Context, actor *store.Account, id uint64, role rbac.Community) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		m, err := memberships.in(ctx, w, id)
		if err != nil {
			return err
		}
		community, err := communities.in(ctx, w, m.Community)
		if err != nil {
			return err
		}
		if err := w.authorizeRoles(ctx, me, community, fmt.Sprintf("update role of membership %d", m.ID)); err != nil {
			return err
		}
		if m.Owner == community.Owner && !me.Permissions.IsAdmin() {
			return denied("cannot change the role of the community owner")
		}
		if contains(role, rbac.CommunityAdministrator) && me.ID != community.Owner && !me.Permissions.Check(rbac.ManageMemberships) {
			return denied("only the owner can appoint administrators")
		}
		return w.setMembershipRole(ctx, m, role)
	})
}

// DeleteMembership removes another member from a community.
func (s *Service) DeleteMembership(ctx context.Context, actor *store.Account, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		m, err := memberships.in(ctx, w, id)
		if err != nil {
			return err
		}
		community, found, err := optional(w.q.GetCommunity(ctx, m.Community))
		if err != nil {
			return storeError(entityCommunity, err)
		}
		if found && m.Owner == community.Owner {
			return invalid("the owner cannot be removed from the community", nil)
		}
		if m.Owner != me.ID {
			if !found {
				community = store.VoidCommunity()
			}
			if err := w.authorizeRoles(ctx, me, community, fmt.Sprintf("delete membership %d", m.ID)); err != nil {
				return err
			}
		}
		return w.removeMembership(ctx, m)
	})
}

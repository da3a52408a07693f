package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"atto/internal/cache"
	"atto/internal/rbac"
	"atto/internal/store"
)

func TestJournalWriteAccess(t *testing.T) {
	svc := newTestService(t, cache.NoCache{})
	ctx := context.Background()
	owner := signup(t, svc, "owner")
	member := signup(t, svc, "member")
	other := signup(t, svc, "other")

	journal, err := svc.CreateJournal(ctx, &owner, "daily", "what happened today?")
	require.NoError(t, err)
	_, err = svc.AddJournalMember(ctx, &owner, journal.ID, member.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, fresh(t, svc, member.ID).NotificationCount)

	tests := []struct {
		access store.JournalWriteAccess
		actor  *store.Account
		ok     bool
	}{
		{access: store.JournalWriteOwner, actor: &owner, ok: true},
		{access: store.JournalWriteOwner, actor: &member, ok: true},
		{access: store.JournalWriteOwner, actor: &other},
		{access: store.JournalWriteOwner, actor: nil},
		{access: store.JournalWriteAuthenticated, actor: &other, ok: true},
		{access: store.JournalWriteAuthenticated, actor: nil},
		{access: store.JournalWriteEverybody, actor: nil, ok: true},
	}
	for _, tt := range tests {
		name := string(tt.access) + "/anonymous"
		if tt.actor != nil {
			name = string(tt.access) + "/" + tt.actor.Username
		}
		t.Run(name, func(t *testing.T) {
			require.NoError(t, svc.UpdateJournal(ctx, &owner, journal.ID, journal.Title, journal.Prompt, store.JournalReadEverybody, tt.access))
			entry, err := svc.CreateEntry(ctx, tt.actor, journal.ID, "an entry")
			if !tt.ok {
				require.ErrorIs(t, err, ErrPermissionDenied)
				return
			}
			require.NoError(t, err)
			if tt.actor == nil {
				require.Zero(t, entry.Owner)
			}
		})
	}
}

func TestJournalReadAccess(t *testing.T) {
	svc := newTestService(t, cache.NoCache{})
	ctx := context.Background()
	owner := signup(t, svc, "owner")
	member := signup(t, svc, "member")
	other := signup(t, svc, "other")
	mod := promote(t, svc, signup(t, svc, "mod"), rbac.PlatformDefault|rbac.ManageJournals)

	journal, err := svc.CreateJournal(ctx, &owner, "secret", "private thoughts")
	require.NoError(t, err)
	_, err = svc.AddJournalMember(ctx, &owner, journal.ID, member.ID)
	require.NoError(t, err)
	require.NoError(t, svc.UpdateJournal(ctx, &owner, journal.ID, "secret", "private thoughts", store.JournalReadPrivate, store.JournalWriteOwner))
	journal, err = svc.GetJournal(ctx, journal.ID)
	require.NoError(t, err)

	tests := []struct {
		name   string
		viewer *store.Account
		want   bool
	}{
		{name: "owner", viewer: &owner, want: true},
		{name: "member", viewer: &member, want: true},
		{name: "moderator", viewer: &mod, want: true},
		{name: "other", viewer: &other},
		{name: "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.CanReadJournal(ctx, tt.viewer, journal)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestJournalMembersAndEntries(t *testing.T) {
	svc := newTestService(t, cache.NoCache{})
	ctx := context.Background()
	owner := signup(t, svc, "owner")
	member := signup(t, svc, "member")
	other := signup(t, svc, "other")

	journal, err := svc.CreateJournal(ctx, &owner, "daily", "what happened today?")
	require.NoError(t, err)
	_, err = svc.AddJournalMember(ctx, &other, journal.ID, member.ID)
	require.ErrorIs(t, err, ErrPermissionDenied)
	m, err := svc.AddJournalMember(ctx, &owner, journal.ID, member.ID)
	require.NoError(t, err)
	_, err = svc.AddJournalMember(ctx, &owner, journal.ID, member.ID)
	require.ErrorIs(t, err, ErrValidation)

	entry, err := svc.CreateEntry(ctx, &member, journal.ID, "first entry")
	require.NoError(t, err)
	require.ErrorIs(t, svc.UpdateEntry(ctx, &owner, entry.ID, "edited"), ErrPermissionDenied)
	require.NoError(t, svc.UpdateEntry(ctx, &member, entry.ID, "edited"))
	got, err := svc.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, "edited", got.Content)

	require.ErrorIs(t, svc.DeleteEntry(ctx, &other, entry.ID), ErrPermissionDenied)
	require.NoError(t, svc.DeleteEntry(ctx, &owner, entry.ID))

	require.NoError(t, svc.UpdateJournalMemberRole(ctx, &owner, m.ID, rbac.JournalDefault))
	_, err = svc.CreateEntry(ctx, &member, journal.ID, "second entry")
	require.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, svc.RemoveJournalMember(ctx, &member, m.ID))
	members, err := svc.ListJournalMembers(ctx, journal.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
}

func TestDeleteJournal(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		owner := signup(t, svc, "owner")
		other := signup(t, svc, "other")

		journal, err := svc.CreateJournal(ctx, &owner, "daily", "what happened today?")
		require.NoError(t, err)
		entry, err := svc.CreateEntry(ctx, &owner, journal.ID, "first entry")
		require.NoError(t, err)
		_, err = svc.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		_, err = svc.GetJournal(ctx, journal.ID)
		require.NoError(t, err)

		require.ErrorIs(t, svc.DeleteJournal(ctx, &other, journal.ID), ErrPermissionDenied)
		require.NoError(t, svc.DeleteJournal(ctx, &owner, journal.ID))

		_, err = svc.GetJournal(ctx, journal.ID)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = svc.GetEntry(ctx, entry.ID)
		require.ErrorIs(t, err, ErrNotFound)
		journals, err := svc.ListJournals(ctx, owner.ID)
		require.NoError(t, err)
		require.Empty(t, journals)
	})
}

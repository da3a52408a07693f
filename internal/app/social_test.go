package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"atto/internal/cache"
	"atto/internal/rbac"
	"atto/internal/store"
)

func TestFollowCounters(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		alice := signup(t, svc, "alice")
		bob := signup(t, svc, "bob")
		_, err := svc.GetAccount(ctx, bob.ID)
		require.NoError(t, err)

		followed, err := svc.Follow(ctx, &alice, bob.ID)
		require.NoError(t, err)
		require.True(t, followed)

		_, err = svc.Follow(ctx, &alice, bob.ID)
		require.ErrorIs(t, err, ErrValidation)
		_, err = svc.Follow(ctx, &alice, alice.ID)
		require.ErrorIs(t, err, ErrValidation)

		b, err := svc.GetAccount(ctx, bob.ID)
		require.NoError(t, err)
		require.EqualValues(t, 1, b.FollowerCount)
		require.EqualValues(t, 1, b.NotificationCount)
		a, err := svc.GetAccount(ctx, alice.ID)
		require.NoError(t, err)
		require.EqualValues(t, 1, a.FollowingCount)

		following, err := svc.IsFollowing(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		require.True(t, following)

		require.NoError(t, svc.Unfollow(ctx, &alice, bob.ID))
		b, err = svc.GetAccount(ctx, bob.ID)
		require.NoError(t, err)
		require.Zero(t, b.FollowerCount)
		a, err = svc.GetAccount(ctx, alice.ID)
		require.NoError(t, err)
		require.Zero(t, a.FollowingCount)
	})
}

func TestPrivateProfileFollowRequest(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		alice := signup(t, svc, "alice")
		bob := signup(t, svc, "bob")
		settings := store.DefaultAccountSettings()
		settings.PrivateProfile = true
		require.NoError(t, svc.UpdateAccountSettings(ctx, &bob, bob.ID, settings))

		followed, err := svc.Follow(ctx, &alice, bob.ID)
		require.NoError(t, err)
		require.False(t, followed)
		_, err = svc.Follow(ctx, &alice, bob.ID)
		require.ErrorIs(t, err, ErrValidation)

		request, err := svc.GetRequestByOwnerLinkedAsset(ctx, bob.ID, store.ActionFollow, alice.ID)
		require.NoError(t, err)
		require.Equal(t, bob.ID, request.Owner)

		require.ErrorIs(t, svc.AcceptFollowRequest(ctx, &alice, request.ID), ErrNotFound)
		require.NoError(t, svc.AcceptFollowRequest(ctx, &bob, request.ID))

		following, err := svc.IsFollowing(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		require.True(t, following)
		b, err := svc.GetAccount(ctx, bob.ID)
		require.NoError(t, err)
		require.EqualValues(t, 1, b.FollowerCount)
		require.Zero(t, b.RequestCount)
	})
}

func TestPendingFollowRequestsAreKeyedByOwner(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		alice := signup(t, svc, "alice")
		settings := store.DefaultAccountSettings()
		settings.PrivateProfile = true
		targets := []store.Account{signup(t, svc, "bob"), signup(t, svc, "carol")}
		for _, target := range targets {
			require.NoError(t, svc.UpdateAccountSettings(ctx, &target, target.ID, settings))
			followed, err := svc.Follow(ctx, &alice, target.ID)
			require.NoError(t, err)
			require.False(t, followed)
		}

		for _, target := range targets {
			request, err := svc.GetRequestByOwnerLinkedAsset(ctx, target.ID, store.ActionFollow, alice.ID)
			require.NoError(t, err)
			require.Equal(t, target.ID, request.Owner)
		}
		_, err := svc.GetRequestByLinkedAsset(ctx, store.ActionFollow, alice.ID)
		require.ErrorIs(t, err, ErrValidation)

		carol := targets[1]
		request, err := svc.GetRequestByOwnerLinkedAsset(ctx, carol.ID, store.ActionFollow, alice.ID)
		require.NoError(t, err)
		require.NoError(t, svc.AcceptFollowRequest(ctx, &carol, request.ID))
		_, err = svc.GetRequestByOwnerLinkedAsset(ctx, carol.ID, store.ActionFollow, alice.ID)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = svc.GetRequestByOwnerLinkedAsset(ctx, targets[0].ID, store.ActionFollow, alice.ID)
		require.NoError(t, err)
	})
}

func TestBlockDropsFollows(t *testing.T) {
	svc := newTestService(t, cache.NoCache{})
	ctx := context.Background()
	alice := signup(t, svc, "alice")
	bob := signup(t, svc, "bob")

	_, err := svc.Follow(ctx, &alice, bob.ID)
	require.NoError(t, err)
	_, err = svc.Follow(ctx, &bob, alice.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Block(ctx, &alice, bob.ID))
	require.ErrorIs(t, svc.Block(ctx, &alice, bob.ID), ErrValidation)

	for _, id := range []uint64{alice.ID, bob.ID} {
		account := fresh(t, svc, id)
		require.Zero(t, account.FollowerCount)
		require.Zero(t, account.FollowingCount)
	}
	_, err = svc.Follow(ctx, &bob, alice.ID)
	require.ErrorIs(t, err, ErrPermissionDenied)
	_, err = svc.Follow(ctx, &alice, bob.ID)
	require.ErrorIs(t, err, ErrPermissionDenied)

	blocked, err := svc.IsBlocked(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, blocked)
	require.NoError(t, svc.Unblock(ctx, &alice, bob.ID))
	blocked, err = svc.IsBlocked(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.False(t, blocked)
}

func TestRemoveFollow(t *testing.T) {
	svc := newTestService(t, cache.NoCache{})
	ctx := context.Background()
	alice := signup(t, svc, "alice")
	bob := signup(t, svc, "bob")
	carol := signup(t, svc, "carol")
	mod := promote(t, svc, signup(t, svc, "mod"), rbac.PlatformDefault|rbac.ManageFollows)

	_, err := svc.Follow(ctx, &alice, bob.ID)
	require.NoError(t, err)
	_, err = svc.Follow(ctx, &carol, bob.ID)
	require.NoError(t, err)
	edges, err := svc.ListFollowers(ctx, bob.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, edges, 2)

	var byAlice, byCarol store.Edge
	for _, edge := range edges {
		if edge.Initiator == alice.ID {
			byAlice = edge
		} else {
			byCarol = edge
		}
	}
	require.ErrorIs(t, svc.RemoveFollow(ctx, &carol, byAlice.ID), ErrPermissionDenied)
	require.NoError(t, svc.RemoveFollow(ctx, &bob, byAlice.ID))
	require.NoError(t, svc.RemoveFollow(ctx, &mod, byCarol.ID))
	require.Zero(t, fresh(t, svc, bob.ID).FollowerCount)
}

func TestNotificationReadIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		alice := signup(t, svc, "alice")
		bob := signup(t, svc, "bob")
		require.NoError(t, svc.Notify(ctx, alice.ID, "hello", "first"))
		require.NoError(t, svc.Notify(ctx, alice.ID, "hello", "second"))

		list, err := svc.ListNotifications(ctx, &alice)
		require.NoError(t, err)
		require.Len(t, list, 2)
		a, err := svc.GetAccount(ctx, alice.ID)
		require.NoError(t, err)
		require.EqualValues(t, 2, a.NotificationCount)

		id := list[0].ID
		require.ErrorIs(t, svc.SetNotificationRead(ctx, &bob, id, true), ErrPermissionDenied)
		require.NoError(t, svc.SetNotificationRead(ctx, &alice, id, true))
		require.NoError(t, svc.SetNotificationRead(ctx, &alice, id, true))
		a, err = svc.GetAccount(ctx, alice.ID)
		require.NoError(t, err)
		require.EqualValues(t, 1, a.NotificationCount)

		require.NoError(t, svc.SetNotificationRead(ctx, &alice, id, false))
		a, err = svc.GetAccount(ctx, alice.ID)
		require.NoError(t, err)
		require.EqualValues(t, 2, a.NotificationCount)

		require.NoError(t, svc.SetNotificationRead(ctx, &alice, id, true))
		require.NoError(t, svc.DeleteNotification(ctx, &alice, id))
		a, err = svc.GetAccount(ctx, alice.ID)
		require.NoError(t, err)
		require.EqualValues(t, 1, a.NotificationCount)

		require.NoError(t, svc.ClearNotifications(ctx, &alice))
		a, err = svc.GetAccount(ctx, alice.ID)
		require.NoError(t, err)
		require.Zero(t, a.NotificationCount)

		require.ErrorIs(t, svc.Notify(ctx, 999, "x", "y"), ErrNotFound)
	})
}

func TestModeration(t *testing.T) {
	svc := newTestService(t, cache.NoCache{})
	ctx := context.Background()
	alice := signup(t, svc, "alice")
	bob := signup(t, svc, "bob")
	helper := promote(t, svc, signup(t, svc, "helper"), rbac.PlatformDefault|rbac.ViewReports|rbac.ManageWarnings)
	admin := promote(t, svc, signup(t, svc, "root"), rbac.PlatformDefault|rbac.PlatformAdministrator)

	report, err := svc.CreateReport(ctx, &alice, bob.ID, store.AssetUser, "spam account")
	require.NoError(t, err)
	_, err = svc.CreateReport(ctx, &alice, 999, store.AssetPost, "spam post")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ListReports(ctx, &alice, 10, 0)
	require.ErrorIs(t, err, ErrPermissionDenied)
	reports, err := svc.ListReports(ctx, &helper, 10, 0)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.ErrorIs(t, svc.DeleteReport(ctx, &helper, report.ID), ErrPermissionDenied)
	require.NoError(t, svc.DeleteReport(ctx, &admin, report.ID))

	_, err = svc.WarnAccount(ctx, &alice, bob.ID, "be nice")
	require.ErrorIs(t, err, ErrPermissionDenied)
	warning, err := svc.WarnAccount(ctx, &helper, bob.ID, "be nice")
	require.NoError(t, err)
	require.Equal(t, 1, int(fresh(t, svc, bob.ID).NotificationCount))

	own, err := svc.ListWarnings(ctx, &bob, bob.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	_, err = svc.ListWarnings(ctx, &alice, bob.ID)
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.NoError(t, svc.DeleteWarning(ctx, &helper, warning.ID))

	_, err = svc.ListAuditLog(ctx, &helper, 10, 0)
	require.ErrorIs(t, err, ErrPermissionDenied)
	log, err := svc.ListAuditLog(ctx, &admin, 10, 0)
	require.NoError(t, err)
	require.Len(t, log, 3)
	require.NoError(t, svc.DeleteAuditLogEntry(ctx, &admin, log[0].ID))
}

func TestIPBan(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		alice := signup(t, svc, "alice")
		admin := promote(t, svc, signup(t, svc, "root"), rbac.PlatformDefault|rbac.PlatformAdministrator)

		banned, err := svc.IsIPBanned(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.False(t, banned)

		_, err = svc.BanIP(ctx, &alice, "10.0.0.1", "spam")
		require.ErrorIs(t, err, ErrPermissionDenied)
		_, err = svc.BanIP(ctx, &admin, "not an ip", "spam")
		require.ErrorIs(t, err, ErrValidation)
		_, err = svc.BanIP(ctx, &admin, "10.0.0.1", "spam")
		require.NoError(t, err)
		_, err = svc.BanIP(ctx, &admin, "10.0.0.1", "spam")
		require.ErrorIs(t, err, ErrValidation)

		banned, err = svc.IsIPBanned(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, banned)

		require.NoError(t, svc.UnbanIP(ctx, &admin, "10.0.0.1"))
		banned, err = svc.IsIPBanned(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.False(t, banned)
	})
}

func TestClearRequests(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		alice := signup(t, svc, "alice")
		bob := signup(t, svc, "bob")
		carol := signup(t, svc, "carol")
		settings := store.DefaultAccountSettings()
		settings.PrivateProfile = true
		require.NoError(t, svc.UpdateAccountSettings(ctx, &bob, bob.ID, settings))

		var asked []store.Question
		for _, content := range []string{"first?", "second?"} {
			q, err := svc.CreateQuestion(ctx, &alice, CreateQuestionInput{Content: content, Receiver: bob.ID}, "")
			require.NoError(t, err)
			asked = append(asked, q)
		}
		_, err := svc.Follow(ctx, &carol, bob.ID)
		require.NoError(t, err)
		_, err = svc.CreateQuestion(ctx, &bob, CreateQuestionInput{Content: "for carol", Receiver: carol.ID}, "")
		require.NoError(t, err)
		require.EqualValues(t, 3, fresh(t, svc, bob.ID).RequestCount)
		_, err = svc.GetQuestion(ctx, asked[0].ID)
		require.NoError(t, err)

		require.NoError(t, svc.ClearRequests(ctx, &bob))

		require.Zero(t, fresh(t, svc, bob.ID).RequestCount)
		pending, err := svc.ListRequests(ctx, &bob)
		require.NoError(t, err)
		require.Empty(t, pending)
		for _, q := range asked {
			_, err := svc.GetQuestion(ctx, q.ID)
			require.ErrorIs(t, err, ErrNotFound)
		}
		_, err = svc.GetRequestByOwnerLinkedAsset(ctx, bob.ID, store.ActionFollow, carol.ID)
		require.ErrorIs(t, err, ErrNotFound)
		following, err := svc.IsFollowing(ctx, carol.ID, bob.ID)
		require.NoError(t, err)
		require.False(t, following)

		require.EqualValues(t, 1, fresh(t, svc, carol.ID).RequestCount, "other owners keep their requests")
	})
}

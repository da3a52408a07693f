package app

import (
	"context"
	"fmt"
	"net"
	"strings"

	"atto/internal/rbac"
	"atto/internal/store"
	"atto/internal/util"
)

// BanIP bans an address platform-wide.
func (s *Service) BanIP(ctx context.Context, actor *store.Account, ip, reason string) (store.IPBan, error) {
	ip = strings.TrimSpace(ip)
	if net.ParseIP(ip) == nil {
		return store.IPBan{}, invalid("not an ip address", map[string]any{"ip": ip})
	}
	if err := checkLength("reason", reason, 0, 4096); err != nil {
		return store.IPBan{}, err
	}
	var ban store.IPBan
	err := s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		if err := w.require(ctx, me, rbac.ManageBans, "ban ip "+ip); err != nil {
			return err
		}
		ban = store.IPBan{IP: ip, Created: util.Now(), Reason: reason, Moderator: me.ID}
		if err := w.q.InsertIPBan(ctx, ban); err != nil {
			if store.IsUniqueViolation(err) {
				return invalid("ip is already banned", nil)
			}
			return storeError(entityIPBan, err)
		}
		w.stale(w.keys.Key(entityIPBan, ip))
		return nil
	})
	if err != nil {
		return store.IPBan{}, err
	}
	return ban, nil
}

func (s *Service) UnbanIP(ctx context.Context, actor *store.Account, ip string) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		if err := w.require(ctx, me, rbac.ManageBans, "unban ip "+ip); err != nil {
			return err
		}
		if err := w.q.DeleteIPBan(ctx, ip); err != nil {
			return storeError(entityIPBan, err)
		}
		w.stale(w.keys.Key(entityIPBan, ip))
		return nil
	})
}

func (s *Service) GetIPBan(ctx context.Context, ip string) (store.IPBan, error) {
	return fetchCached(ctx, s, s.keys.Key(entityIPBan, ip), entityIPBan, func(ctx context.Context, q *store.Queries) (store.IPBan, error) {
		return q.GetIPBan(ctx, ip)
	})
}

// IsIPBanned is consulted on every request, so it goes through the cache.
func (s *Service) IsIPBanned(ctx context.Context, ip string) (bool, error) {
	_, err := s.GetIPBan(ctx, ip)
	return exists(err)
}

// CreateReport files a report against an asset for moderators to review.
func (s *Service) CreateReport(ctx context.Context, actor *store.Account, asset uint64, kind store.AssetType, content string) (store.Report, error) {
	if err := checkLength("content", content, 2, 4096); err != nil {
		return store.Report{}, err
	}
	var report store.Report
	err := s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		if kind == store.AssetUser {
			if _, err := accounts.in(ctx, w, asset); err != nil {
				return err
			}
		} else if _, err := w.assetOwner(ctx, asset, kind); err != nil {
			return err
		}
		report = store.Report{
			ID:        s.ids.Next(),
			Created:   util.Now(),
			Owner:     me.ID,
			Content:   content,
			Asset:     asset,
			AssetType: kind,
		}
		if err := w.q.InsertReport(ctx, report); err != nil {
			return storeError(entityReport, err)
		}
		reports.stale(w, report)
		return nil
	})
	if err != nil {
		return store.Report{}, err
	}
	return report, nil
}

func (s *Service) ListReports(ctx context.Context, actor *store.Account, batch, number int) ([]store.Report, error) {
	if err := s.viewer(ctx, actor, rbac.ViewReports); err != nil {
		return nil, err
	}
	return read(ctx, s, entityReport, func(ctx context.Context, q *store.Queries) ([]store.Report, error) {
		return q.ListReports(ctx, batch, number)
	})
}

func (s *Service) DeleteReport(ctx context.Context, actor *store.Account, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		report, err := reports.in(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.require(ctx, me, rbac.ManageReports, fmt.Sprintf("delete report %d", report.ID)); err != nil {
			return err
		}
		if err := w.q.DeleteReport(ctx, report.ID); err != nil {
			return storeError(entityReport, err)
		}
		reports.stale(w, report)
		return nil
	})
}

// WarnAccount records a warning against receiver and notifies them.
func (s *Service) WarnAccount(ctx context.Context, actor *store.Account, receiver uint64, content string) (store.Warning, error) {
	if err := checkLength("content", content, 2, 4096); err != nil {
		return store.Warning{}, err
	}
	var warning store.Warning
	err := s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		target, err := accounts.in(ctx, w, receiver)
		if err != nil {
			return err
		}
		if err := w.require(ctx, me, rbac.ManageWarnings, fmt.Sprintf("warn user %d", target.ID)); err != nil {
			return err
		}
		warning = store.Warning{
			ID:        s.ids.Next(),
			Created:   util.Now(),
			Receiver:  target.ID,
			Moderator: me.ID,
			Content:   content,
		}
		if err := w.q.InsertWarning(ctx, warning); err != nil {
			return storeError(entityWarning, err)
		}
		warnings.stale(w, warning)
		return w.notify(ctx, target.ID, "You have received a new account warning",
			"A moderator has warned your account. Check your warnings for details.")
	})
	if err != nil {
		return store.Warning{}, err
	}
	return warning, nil
}

// ListWarnings shows an account its own warnings; moderators see anyone's.
func (s *Service) ListWarnings(ctx context.Context, actor *store.Account, receiver uint64) ([]store.Warning, error) {
	if actor == nil || actor.ID != receiver {
		if err := s.viewer(ctx, actor, rbac.ManageWarnings); err != nil {
			return nil, err
		}
	}
	return read(ctx, s, entityWarning, func(ctx context.Context, q *store.Queries) ([]store.Warning, error) {
		return q.ListWarningsByReceiver(ctx, receiver)
	})
}

func (s *Service) DeleteWarning(ctx context.Context, actor *store.Account, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		warning, err := warnings.in(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.require(ctx, me, rbac.ManageWarnings, fmt.Sprintf("delete warning %d", warning.ID)); err != nil {
			return err
		}
		if err := w.q.DeleteWarning(ctx, warning.ID); err != nil {
			return storeError(entityWarning, err)
		}
		warnings.stale(w, warning)
		return nil
	})
}

func (s *Service) ListAuditLog(ctx context.Context, actor *store.Account, batch, number int) ([]store.AuditLogEntry, error) {
	if err := s.viewer(ctx, actor, rbac.ViewAuditLog); err != nil {
		return nil, err
	}
	return read(ctx, s, entityAuditLog, func(ctx context.Context, q *store.Queries) ([]store.AuditLogEntry, error) {
		return q.ListAuditLog(ctx, batch, number)
	})
}

func (s *Service) DeleteAuditLogEntry(ctx context.Context, actor *store.Account, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		entry, err := auditLog.in(ctx, w, id)
		if err != nil {
			return err
		}
		if !me.Permissions.Check(rbac.ManageAuditLog) {
			return denied("not allowed to manage the audit log")
		}
		if err := w.q.DeleteAuditLogEntry(ctx, entry.ID); err != nil {
			return storeError(entityAuditLog, err)
		}
		auditLog.stale(w, entry)
		return nil
	})
}

// viewer checks a read-only platform permission against the stored
// account.
func (s *Service) viewer(ctx context.Context, actor *store.Account, perm rbac.Platform) error {
	if actor == nil || actor.ID == 0 {
		return denied("sign in required")
	}
	me, err := accounts.fresh(ctx, s, actor.ID)
	if err != nil {
		return err
	}
	if !me.Permissions.Check(perm) {
		return denied("not allowed to view this")
	}
	return nil
}

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

func validJournal(title, prompt string) error {
	if err := checkLength("title", title, 2, 32); err != nil {
		return err
	}
	return checkLength("prompt", prompt, 2, 2048)
}

func validJournalAccess(read store.JournalReadAccess, write store.JournalWriteAccess) error {
	switch read {
	case store.JournalReadEverybody, store.JournalReadUnlisted, store.JournalReadPrivate:
	default:
		return invalid("unknown read access", map[string]any{"value": read})
	}
	switch write {
	case store.JournalWriteEverybody, store.JournalWriteAuthenticated, store.JournalWriteOwner:
	default:
		return invalid("unknown write access", map[string]any{"value": write})
	}
	return nil
}

// CreateJournal creates a journal and the owner's administrator
// membership in it.
func (s *Service) CreateJournal(ctx context.Context, actor *store.Account, title, prompt string) (store.Journal, error) {
	title = strings.TrimSpace(title)
	if err := validJournal(title, prompt); err != nil {
		return store.Journal{}, err
	}
	var journal store.Journal
	err := s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		journal = store.Journal{
			ID:          s.ids.Next(),
			Created:     util.Now(),
			Title:       title,
			Prompt:      prompt,
			Owner:       me.ID,
			ReadAccess:  store.JournalReadEverybody,
			WriteAccess: store.JournalWriteOwner,
		}
		if err := w.q.InsertJournal(ctx, journal); err != nil {
			return storeError(entityJournal, err)
		}
		journals.stale(w, journal)
		_, err = w.addJournalMember(ctx, journal.ID, me.ID, rbac.JournalDefault|rbac.JournalMember|rbac.JournalAdministrator)
		return err
	})
	if err != nil {
		return store.Journal{}, err
	}
	return journal, nil
}

func (s *Service) GetJournal(ctx context.Context, id uint64) (store.Journal, error) {
	return journals.get(ctx, s, id)
}

// CanReadJournal applies the journal read access to viewer. Unlisted
// journals are readable by anyone who has the id.
func (s *Service) CanReadJournal(ctx context.Context, viewer *store.Account, journal store.Journal) (bool, error) {
	if journal.ReadAccess != store.JournalReadPrivate {
		return true, nil
	}
	if viewer == nil || viewer.ID == 0 {
		return false, nil
	}
	if viewer.ID == journal.Owner {
		return true, nil
	}
	me, err := accounts.fresh(ctx, s, viewer.ID)
	if err != nil {
		return false, err
	}
	if me.Permissions.Check(rbac.ManageJournals) {
		return true, nil
	}
	m, err := read(ctx, s, entityJournalRole, func(ctx context.Context, q *store.Queries) (store.JournalMembership, error) {
		return q.GetJournalMembershipByOwnerJournal(ctx, viewer.ID, journal.ID)
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.Role.IsMember(), nil
}

func (s *Service) ListJournals(ctx context.Context, owner uint64) ([]store.Journal, error) {
	return read(ctx, s, entityJournal, func(ctx context.Context, q *store.Queries) ([]store.Journal, error) {
		return q.ListJournalsByOwner(ctx, owner)
	})
}

func (w *work) authorizeJournalAdmin(ctx context.Context, actor store.Account, journal store.Journal, action string) error {
	return w.authorizeJournal(ctx, actor, grant{
		owner:    journal.Owner,
		scope:    journal.ID,
		journal:  rbac.JournalAdministrator,
		platform: rbac.ManageJournals,
		action:   fmt.Sprintf("%s journal %d", action, journal.ID),
	})
}

func (s *Service) UpdateJournal(ctx context.Context, actor *store.Account, id uint64, title, prompt string, readAccess store.JournalReadAccess, writeAccess store.JournalWriteAccess) error {
	title = strings.TrimSpace(title)
	if err := validJournal(title, prompt); err != nil {
		return err
	}
	if err := validJournalAccess(readAccess, writeAccess); err != nil {
		return err
	}
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		journal, err := journals.in(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.authorizeJournalAdmin(ctx, me, journal, "update"); err != nil {
			return err
		}
		journal.Title, journal.Prompt = title, prompt
		journal.ReadAccess, journal.WriteAccess = readAccess, writeAccess
		if err := w.q.UpdateJournal(ctx, journal); err != nil {
			return storeError(entityJournal, err)
		}
		journals.stale(w, journal)
		return nil
	})
}

func (s *Service) DeleteJournal(ctx context.Context, actor *store.Account, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		journal, err := journals.in(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.authorizeJournal(ctx, me, grant{
			owner:    journal.Owner,
			platform: rbac.ManageJournals,
			action:   fmt.Sprintf("delete journal %d", journal.ID),
		}); err != nil {
			return err
		}
		return w.removeJournal(ctx, journal)
	})
}

func (w *work) removeJournal(ctx context.Context, journal store.Journal) error {
	roles, err := w.q.ListJournalMemberships(ctx, journal.ID)
	if err != nil {
		return storeError(entityJournalRole, err)
	}
	for _, m := range roles {
		journalRoles.stale(w, m)
	}
	const batch = 100
	for number := 0; ; number++ {
		items, err := w.q.ListJournalEntries(ctx, journal.ID, batch, number)
		if err != nil {
			return storeError(entityEntry, err)
		}
		for _, e := range items {
			entries.stale(w, e)
		}
		if len(items) < batch {
			break
		}
	}
	if err := w.q.DeleteJournalContents(ctx, journal.ID); err != nil {
		return storeError(entityJournal, err)
	}
	if err := w.q.DeleteJournal(ctx, journal.ID); err != nil {
		return storeError(entityJournal, err)
	}
	journals.stale(w, journal)
	return nil
}

func (w *work) addJournalMember(ctx context.Context, journal, owner uint64, role rbac.Journal) (store.JournalMembership, error) {
	m := store.JournalMembership{
		ID:      w.s.ids.Next(),
		Created: util.Now(),
		Owner:   owner,
		Journal: journal,
		Role:    role,
	}
	if err := w.q.InsertJournalMembership(ctx, m); err != nil {
		if store.IsUniqueViolation(err) {
			return store.JournalMembership{}, invalid("already a member", nil)
		}
		return store.JournalMembership{}, storeError(entityJournalRole, err)
	}
	journalRoles.stale(w, m)
	return m, nil
}

// AddJournalMember lets account write to a journal with owner-only write
// access.
func (s *Service) AddJournalMember(ctx context.Context, actor *store.Account, journal, account uint64) (store.JournalMembership, error) {
	var m store.JournalMembership
	err := s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		target, err := journals.in(ctx, w, journal)
		if err != nil {
			return err
		}
		if err := w.authorizeJournalAdmin(ctx, me, target, "add member to"); err != nil {
			return err
		}
		member, err := accounts.in(ctx, w, account)
		if err != nil {
			return err
		}
		m, err = w.addJournalMember(ctx, target.ID, member.ID, rbac.JournalDefault|rbac.JournalMember)
		if err != nil {
			return err
		}
		return w.notify(ctx, member.ID, "You were added to a journal",
			fmt.Sprintf("@%s added you to the journal %q.", me.Username, target.Title))
	})
	if err != nil {
		return store.JournalMembership{}, err
	}
	return m, nil
}

func (s *Service) UpdateJournalMemberRole(ctx context.Context, actor *store.Account, id uint64, role rbac.Journal) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		m, err := journalRoles.in(ctx, w, id)
		if err != nil {
			return err
		}
		journal, err := journals.in(ctx, w, m.Journal)
		if err != nil {
			return err
		}
		if err := w.authorizeJournalAdmin(ctx, me, journal, "change a role in"); err != nil {
			return err
		}
		if m.Owner == journal.Owner {
			return invalid("cannot change the role of the journal owner", nil)
		}
		if err := w.q.UpdateJournalMembershipRole(ctx, m.ID, role); err != nil {
			return storeError(entityJournalRole, err)
		}
		journalRoles.stale(w, m)
		return nil
	})
}

// RemoveJournalMember removes a member; members may also remove themselves.
func (s *Service) RemoveJournalMember(ctx context.Context, actor *store.Account, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		m, err := journalRoles.in(ctx, w, id)
		if err != nil {
			return err
		}
		journal, err := journals.in(ctx, w, m.Journal)
		if err != nil {
			return err
		}
		if m.Owner == journal.Owner {
			return invalid("the owner cannot leave the journal", nil)
		}
		if m.Owner != me.ID {
			if err := w.authorizeJournalAdmin(ctx, me, journal, "remove a member from"); err != nil {
				return err
			}
		}
		if err := w.q.DeleteJournalMembership(ctx, m.ID); err != nil {
			return storeError(entityJournalRole, err)
		}
		journalRoles.stale(w, m)
		return nil
	})
}

func (s *Service) GetJournalMember(ctx context.Context, id uint64) (store.JournalMembership, error) {
	return journalRoles.get(ctx, s, id)
}

func (s *Service) ListJournalMembers(ctx context.Context, journal uint64) ([]store.JournalMembership, error) {
	return read(ctx, s, entityJournalRole, func(ctx context.Context, q *store.Queries) ([]store.JournalMembership, error) {
		return q.ListJournalMemberships(ctx, journal)
	})
}

// canWrite applies the journal write access. actor is nil when anonymous.
func (w *work) canWrite(ctx context.Context, journal store.Journal, actor *store.Account) (bool, error) {
	switch journal.WriteAccess {
	case store.JournalWriteEverybody:
		return true, nil
	case store.JournalWriteAuthenticated:
		return actor != nil, nil
	default:
		if actor == nil {
			return false, nil
		}
		if actor.ID == journal.Owner {
			return true, nil
		}
		m, found, err := optional(w.q.GetJournalMembershipByOwnerJournal(ctx, actor.ID, journal.ID))
		if err != nil {
			return false, storeError(entityJournalRole, err)
		}
		return found && m.Role.IsMember(), nil
	}
}

// CreateEntry writes to a journal under its write access. actor may be
// nil when the journal accepts anonymous entries.
func (s *Service) CreateEntry(ctx context.Context, actor *store.Account, journal uint64, content string) (store.JournalEntry, error) {
	if err := checkLength("content", content, 2, 4096); err != nil {
		return store.JournalEntry{}, err
	}
	var entry store.JournalEntry
	err := s.atomically(ctx, func(ctx context.Context, w *work) error {
		var me *store.Account
		if actor != nil && actor.ID != 0 {
			account, err := w.actor(ctx, actor)
			if err != nil {
				return err
			}
			me = &account
		}
		target, err := journals.in(ctx, w, journal)
		if err != nil {
			return err
		}
		ok, err := w.canWrite(ctx, target, me)
		if err != nil {
			return err
		}
		if !ok {
			return denied("not allowed to write to this journal")
		}
		entry = store.JournalEntry{
			ID:      s.ids.Next(),
			Created: util.Now(),
			Content: content,
			Journal: target.ID,
		}
		if me != nil {
			entry.Owner = me.ID
		}
		if err := w.q.InsertJournalEntry(ctx, entry); err != nil {
			return storeError(entityEntry, err)
		}
		entries.stale(w, entry)
		return nil
	})
	if err != nil {
		return store.JournalEntry{}, err
	}
	return entry, nil
}

func (s *Service) GetEntry(ctx context.Context, id uint64) (store.JournalEntry, error) {
	return entries.get(ctx, s, id)
}

func (s *Service) ListEntries(ctx context.Context, journal uint64, batch, number int) ([]store.JournalEntry, error) {
	return read(ctx, s, entityEntry, func(ctx context.Context, q *store.Queries) ([]store.JournalEntry, error) {
		return q.ListJournalEntries(ctx, journal, batch, number)
	})
}

// UpdateEntry edits an entry. Only its author may.
func (s *Service) UpdateEntry(ctx context.Context, actor *store.Account, id uint64, content string) error {
	if err := checkLength("content", content, 2, 4096); err != nil {
		return err
	}
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		entry, err := entries.in(ctx, w, id)
		if err != nil {
			return err
		}
		if entry.Owner != me.ID {
			return denied("only the author can edit an entry")
		}
		if err := w.q.UpdateJournalEntryContent(ctx, entry.ID, content); err != nil {
			return storeError(entityEntry, err)
		}
		entries.stale(w, entry)
		return nil
	})
}

// DeleteEntry removes an entry: its author, journal administrators and
// platform journal managers may.
func (s *Service) DeleteEntry(ctx context.Context, actor *store.Account, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		entry, err := entries.in(ctx, w, id)
		if err != nil {
			return err
		}
		if entry.Owner != me.ID {
			journal, err := journals.in(ctx, w, entry.Journal)
			if err != nil {
				return err
			}
			if err := w.authorizeJournalAdmin(ctx, me, journal, "delete an entry of"); err != nil {
				return err
			}
		}
		if err := w.q.DeleteJournalEntry(ctx, entry.ID); err != nil {
			return storeError(entityEntry, err)
		}
		entries.stale(w, entry)
		return nil
	})
}

package store

import (
	"context"
	"fmt"

	"atto/internal/rbac"
)

const journalColumns = `id, created, title, prompt, owner, read_access, write_access`

func scanJournal(r rowScanner) (Journal, error) {
	var item Journal
	err := r.Scan(&item.ID, &item.Created, &item.Title, &item.Prompt, &item.Owner, &item.ReadAccess, &item.WriteAccess)
	return item, err
}

func (q *Queries) GetJournal(ctx context.Context, id uint64) (Journal, error) {
	item, err := one(ctx, q, scanJournal, `SELECT `+journalColumns+` FROM journals WHERE id = ?`, id64(id))
	if err != nil {
		return Journal{}, fmt.Errorf("get journal: %w", err)
	}
	return item, nil
}

func (q *Queries) ListJournalsByOwner(ctx context.Context, owner uint64) ([]Journal, error) {
	items, err := list(ctx, q, scanJournal, `SELECT `+journalColumns+` FROM journals WHERE owner = ? ORDER BY created DESC`, id64(owner))
	if err != nil {
		return nil, fmt.Errorf("list journals: %w", err)
	}
	return items, nil
}

func (q *Queries) InsertJournal(ctx context.Context, item Journal) error {
	_, err := q.exec(ctx, `INSERT INTO journals (id, created, title, prompt, owner, read_access, write_access) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id64(item.ID), item.Created, item.Title, item.Prompt, id64(item.Owner), string(item.ReadAccess), string(item.WriteAccess))
	if err != nil {
		return fmt.Errorf("insert journal: %w", err)
	}
	return nil
}

func (q *Queries) UpdateJournal(ctx context.Context, item Journal) error {
	err := q.execOne(ctx, `UPDATE journals SET title = ?, prompt = ?, read_access = ?, write_access = ? WHERE id = ?`,
		item.Title, item.Prompt, string(item.ReadAccess), string(item.WriteAccess), id64(item.ID))
	if err != nil {
		return fmt.Errorf("update journal: %w", err)
	}
	return nil
}

func (q *Queries) DeleteJournal(ctx context.Context, id uint64) error {
	if err := q.execOne(ctx, `DELETE FROM journals WHERE id = ?`, id64(id)); err != nil {
		return fmt.Errorf("delete journal: %w", err)
	}
	return nil
}

const journalMembershipColumns = `id, created, owner, journal, role`

func scanJournalMembership(r rowScanner) (JournalMembership, error) {
	var (
		item JournalMembership
		role int64
	)
	if err := r.Scan(&item.ID, &item.Created, &item.Owner, &item.Journal, &role); err != nil {
		return JournalMembership{}, err
	}
	item.Role = rbac.JournalFrom(role)
	return item, nil
}

func (q *Queries) GetJournalMembership(ctx context.Context, id uint64) (JournalMembership, error) {
	item, err := one(ctx, q, scanJournalMembership, `SELECT `+journalMembershipColumns+` FROM journal_memberships WHERE id = ?`, id64(id))
	if err != nil {
		return JournalMembership{}, fmt.Errorf("get journal membership: %w", err)
	}
	return item, nil
}

func (q *Queries) GetJournalMembershipByOwnerJournal(ctx context.Context, owner, journal uint64) (JournalMembership, error) {
	item, err := one(ctx, q, scanJournalMembership,
		`SELECT `+journalMembershipColumns+` FROM journal_memberships WHERE owner = ? AND journal = ?`,
		id64(owner), id64(journal))
	if err != nil {
		return JournalMembership{}, fmt.Errorf("get journal membership by owner: %w", err)
	}
	return item, nil
}

func (q *Queries) ListJournalMemberships(ctx context.Context, journal uint64) ([]JournalMembership, error) {
	items, err := list(ctx, q, scanJournalMembership,
		`SELECT `+journalMembershipColumns+` FROM journal_memberships WHERE journal = ? ORDER BY created ASC`, id64(journal))
	if err != nil {
		return nil, fmt.Errorf("list journal memberships: %w", err)
	}
	return items, nil
}

func (q *Queries) ListJournalMembershipsByOwner(ctx context.Context, owner uint64) ([]JournalMembership, error) {
	items, err := list(ctx, q, scanJournalMembership,
		`SELECT `+journalMembershipColumns+` FROM journal_memberships WHERE owner = ? ORDER BY created ASC`, id64(owner))
	if err != nil {
		return nil, fmt.Errorf("list journal memberships by owner: %w", err)
	}
	return items, nil
}

func (q *Queries) InsertJournalMembership(ctx context.Context, item JournalMembership) error {
	_, err := q.exec(ctx, `INSERT INTO journal_memberships (id, created, owner, journal, role) VALUES (?, ?, ?, ?, ?)`,
		id64(item.ID), item.Created, id64(item.Owner), id64(item.Journal), int64(item.Role))
	if err != nil {
		return fmt.Errorf("insert journal membership: %w", err)
	}
	return nil
}

func (q *Queries) UpdateJournalMembershipRole(ctx context.Context, id uint64, role rbac.Journal) error {
	if err := q.execOne(ctx, `UPDATE journal_memberships SET role = ? WHERE id = ?`, int64(role), id64(id)); err != nil {
		return fmt.Errorf("update journal membership role: %w", err)
	}
	return nil
}

func (q *Queries) DeleteJournalMembership(ctx context.Context, id uint64) error {
	if err := q.execOne(ctx, `DELETE FROM journal_memberships WHERE id = ?`, id64(id)); err != nil {
		return fmt.Errorf("delete journal membership: %w", err)
	}
	return nil
}

func (q *Queries) DeleteJournalMembershipsByOwner(ctx context.Context, owner uint64) error {
	if _, err := q.exec(ctx, `DELETE FROM journal_memberships WHERE owner = ?`, id64(owner)); err != nil {
		return fmt.Errorf("delete journal memberships by owner: %w", err)
	}
	return nil
}

const entryColumns = `id, created, content, owner, journal`

func scanEntry(r rowScanner) (JournalEntry, error) {
	var item JournalEntry
	err := r.Scan(&item.ID, &item.Created, &item.Content, &item.Owner, &item.Journal)
	return item, err
}

func (q *Queries) GetJournalEntry(ctx context.Context, id uint64) (JournalEntry, error) {
	item, err := one(ctx, q, scanEntry, `SELECT `+entryColumns+` FROM journal_entries WHERE id = ?`, id64(id))
	if err != nil {
		return JournalEntry{}, fmt.Errorf("get journal entry: %w", err)
	}
	return item, nil
}

func (q *Queries) ListJournalEntries(ctx context.Context, journal uint64, batch, number int) ([]JournalEntry, error) {
	limit, offset := page(batch, number)
	items, err := list(ctx, q, scanEntry,
		`SELECT `+entryColumns+` FROM journal_entries WHERE journal = ? ORDER BY created DESC LIMIT ? OFFSET ?`,
		id64(journal), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	return items, nil
}

func (q *Queries) InsertJournalEntry(ctx context.Context, item JournalEntry) error {
	_, err := q.exec(ctx, `INSERT INTO journal_entries (id, created, content, owner, journal) VALUES (?, ?, ?, ?, ?)`,
		id64(item.ID), item.Created, item.Content, id64(item.Owner), id64(item.Journal))
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

func (q *Queries) UpdateJournalEntryContent(ctx context.Context, id uint64, content string) error {
	if err := q.execOne(ctx, `UPDATE journal_entries SET content = ? WHERE id = ?`, content, id64(id)); err != nil {
		return fmt.Errorf("update journal entry: %w", err)
	}
	return nil
}

func (q *Queries) DeleteJournalEntry(ctx context.Context, id uint64) error {
	if err := q.execOne(ctx, `DELETE FROM journal_entries WHERE id = ?`, id64(id)); err != nil {
		return fmt.Errorf("delete journal entry: %w", err)
	}
	return nil
}

func (q *Queries) DeleteJournalContents(ctx context.Context, journal uint64) error {
	if _, err := q.exec(ctx, `DELETE FROM journal_entries WHERE journal = ?`, id64(journal)); err != nil {
		return fmt.Errorf("delete journal entries: %w", err)
	}
	if _, err := q.exec(ctx, `DELETE FROM journal_memberships WHERE journal = ?`, id64(journal)); err != nil {
		return fmt.Errorf("delete journal memberships: %w", err)
	}
	return nil
}

package rbac

import "strconv"

// Journal is the role bitflag of a journal membership.
type Journal uint32

const (
	JournalDefault Journal = 1 << iota
	JournalAdministrator
	JournalMember
)

var journalNames = []named[Journal]{
	{JournalDefault, "DEFAULT"},
	{JournalAdministrator, "ADMINISTRATOR"},
	{JournalMember, "MEMBER"},
}

func (j Journal) Check(required Journal) bool {
	if contains(j, JournalAdministrator) {
		return true
	}
	return contains(j, required)
}

func (j Journal) IsMember() bool {
	return j.Check(JournalMember)
}

func (j Journal) String() string {
	return format(j, journalNames)
}

func (j Journal) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(j), 10)), nil
}

func (j *Journal) UnmarshalJSON(data []byte) error {
	v, err := decode(data)
	if err != nil {
		return err
	}
	*j = Journal(v)
	return nil
}

func JournalFrom(v int64) Journal {
	return Journal(uint32(v))
}

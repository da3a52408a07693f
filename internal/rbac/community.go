package rbac

import "strconv"

// Community is the role bitflag of a community membership.
type Community uint32

const (
	CommunityDefault Community = 1 << iota
	CommunityAdministrator
	CommunityMember
	CommunityManagePosts
	CommunityManageRoles
	CommunityBanned
	CommunityRequested
	CommunityManagePins
	CommunityManageQuestions
)

// DefaultMember is the role given to anyone joining an open community.
const DefaultMember = CommunityDefault | CommunityMember

// PendingMember is the role of a join request awaiting approval.
const PendingMember = CommunityDefault | CommunityRequested

var communityNames = []named[Community]{
	{CommunityDefault, "DEFAULT"},
	{CommunityAdministrator, "ADMINISTRATOR"},
	{CommunityMember, "MEMBER"},
	{CommunityManagePosts, "MANAGE_POSTS"},
	{CommunityManageRoles, "MANAGE_ROLES"},
	{CommunityBanned, "BANNED"},
	{CommunityRequested, "REQUESTED"},
	{CommunityManagePins, "MANAGE_PINS"},
	{CommunityManageQuestions, "MANAGE_QUESTIONS"},
}

// Check reports whether c grants every bit in required. Administrators
// pass; otherwise a banned role fails everything.
func (c Community) Check(required Community) bool {
	if contains(c, CommunityAdministrator) {
		return true
	}
	if contains(c, CommunityBanned) {
		return false
	}
	return contains(c, required)
}

func (c Community) IsMember() bool {
	return c.Check(CommunityMember)
}

func (c Community) IsModerator() bool {
	return c.Check(CommunityManagePosts)
}

// IsRequested is true for a join request that has not been accepted yet.
// Requested memberships are not counted in the community's member count.
func (c Community) IsRequested() bool {
	return contains(c, CommunityRequested)
}

func (c Community) String() string {
	return format(c, communityNames)
}

func (c Community) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(c), 10)), nil
}

func (c *Community) UnmarshalJSON(data []byte) error {
	v, err := decode(data)
	if err != nil {
		return err
	}
	*c = Community(v)
	return nil
}

func CommunityFrom(v int64) Community {
	return Community(uint32(v))
}

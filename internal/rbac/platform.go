package rbac

import "strconv"

// Platform is the set of rights an account holds across the whole site.
type Platform uint32

const (
	PlatformDefault Platform = 1 << iota
	PlatformAdministrator
	ManageCommunities
	ManagePosts
	ManagePostReplies
	ManageUsers
	ManageBans
	ManageWarnings
	ManageNotifications
	ViewReports
	ViewAuditLog
	ManageMemberships
	ManageReactions
	ManageFollows
	ManageVerified
	ManageAuditLog
	ManageReports
	PlatformBanned
	ManageQuestions
	ManageRequests
	ManageJournals
	InfiniteCommunities
)

var platformNames = []named[Platform]{
	{PlatformDefault, "DEFAULT"},
	{PlatformAdministrator, "ADMINISTRATOR"},
	{ManageCommunities, "MANAGE_COMMUNITIES"},
	{ManagePosts, "MANAGE_POSTS"},
	{ManagePostReplies, "MANAGE_POST_REPLIES"},
	{ManageUsers, "MANAGE_USERS"},
	{ManageBans, "MANAGE_BANS"},
	{ManageWarnings, "MANAGE_WARNINGS"},
	{ManageNotifications, "MANAGE_NOTIFICATIONS"},
	{ViewReports, "VIEW_REPORTS"},
	{ViewAuditLog, "VIEW_AUDIT_LOG"},
	{ManageMemberships, "MANAGE_MEMBERSHIPS"},
	{ManageReactions, "MANAGE_REACTIONS"},
	{ManageFollows, "MANAGE_FOLLOWS"},
	{ManageVerified, "MANAGE_VERIFIED"},
	{ManageAuditLog, "MANAGE_AUDITLOG"},
	{ManageReports, "MANAGE_REPORTS"},
	{PlatformBanned, "BANNED"},
	{ManageQuestions, "MANAGE_QUESTIONS"},
	{ManageRequests, "MANAGE_REQUESTS"},
	{ManageJournals, "MANAGE_JOURNALS"},
	{InfiniteCommunities, "INFINITE_COMMUNITIES"},
}

// helperBits is the minimum a moderator needs to hold.
const helperBits = ManageCommunities | ManagePosts | ManagePostReplies | ManageWarnings | ViewReports | ViewAuditLog

// Check reports whether p grants every bit in required. Administrators
// pass every check.
func (p Platform) Check(required Platform) bool {
	if contains(p, PlatformAdministrator) {
		return true
	}
	return contains(p, required)
}

func (p Platform) IsHelper() bool {
	return p.Check(helperBits)
}

func (p Platform) IsManager() bool {
	return p.IsHelper() && p.Check(ManageUsers)
}

func (p Platform) IsAdmin() bool {
	return p.IsManager() && contains(p, PlatformAdministrator)
}

// IsBanned looks at the raw bit. Platform bans do not short-circuit Check;
// the session resolver refuses banned accounts instead.
func (p Platform) IsBanned() bool {
	return contains(p, PlatformBanned)
}

// Outranks reports whether p holds strictly more bits than other.
func (p Platform) Outranks(other Platform) bool {
	return count(p) > count(other)
}

func (p Platform) String() string {
	return format(p, platformNames)
}

func (p Platform) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(p), 10)), nil
}

func (p *Platform) UnmarshalJSON(data []byte) error {
	v, err := decode(data)
	if err != nil {
		return err
	}
	*p = Platform(v)
	return nil
}

// PlatformFrom converts a stored column value, keeping unknown bits.
func PlatformFrom(v int64) Platform {
	return Platform(uint32(v))
}

package store

import "atto/internal/rbac"

// Times are unix milliseconds. Id 0 is the void sentinel: an anonymous
// owner, a missing parent or a deleted community.

type Token struct {
	IP      string `json:"ip"`
	Hash    string `json:"hash"`
	Created int64  `json:"created"`
}

type AccountSettings struct {
	DisplayName             string `json:"display_name"`
	Biography               string `json:"biography"`
	PrivateProfile          bool   `json:"private_profile"`
	EnableQuestions         bool   `json:"enable_questions"`
	AllowAnonymousQuestions bool   `json:"allow_anonymous_questions"`
	HasAvatar               bool   `json:"has_avatar"`
	HasBanner               bool   `json:"has_banner"`
}

func DefaultAccountSettings() AccountSettings {
	return AccountSettings{EnableQuestions: true}
}

// Account secrets are never serialized, so a cached account can be shown
// but never used to authenticate.
type Account struct {
	ID                uint64          `json:"id"`
	Created           int64           `json:"created"`
	Username          string          `json:"username"`
	Password          string          `json:"-"`
	Permissions       rbac.Platform   `json:"permissions"`
	Settings          AccountSettings `json:"settings"`
	Tokens            []Token         `json:"-"`
	FollowerCount     int64           `json:"follower_count"`
	FollowingCount    int64           `json:"following_count"`
	NotificationCount int64           `json:"notification_count"`
	RequestCount      int64           `json:"request_count"`
	PostCount         int64           `json:"post_count"`
	TOTP              string          `json:"-"`
	RecoveryCodes     []string        `json:"-"`
}

// DeletedAccount stands in for owners that no longer exist.
func DeletedAccount() Account {
	return Account{Username: "deleted", Permissions: rbac.PlatformDefault, Settings: DefaultAccountSettings()}
}

type ReadAccess string

const (
	ReadEverybody ReadAccess = "Everybody"
	ReadJoined    ReadAccess = "Joined"
)

type WriteAccess string

const (
	WriteEverybody WriteAccess = "Everybody"
	WriteJoined    WriteAccess = "Joined"
	WriteOwner     WriteAccess = "Owner"
)

type JoinAccess string

const (
	JoinEverybody JoinAccess = "Everybody"
	JoinRequest   JoinAccess = "Request"
	JoinNobody    JoinAccess = "Nobody"
)

type CommunityContext struct {
	DisplayName     string `json:"display_name"`
	Description     string `json:"description"`
	IsNSFW          bool   `json:"is_nsfw"`
	EnableQuestions bool   `json:"enable_questions"`
	HasAvatar       bool   `json:"has_avatar"`
	HasBanner       bool   `json:"has_banner"`
}

type Community struct {
	ID          uint64           `json:"id"`
	Created     int64            `json:"created"`
	Title       string           `json:"title"`
	Context     CommunityContext `json:"context"`
	Owner       uint64           `json:"owner"`
	ReadAccess  ReadAccess       `json:"read_access"`
	WriteAccess WriteAccess      `json:"write_access"`
	JoinAccess  JoinAccess       `json:"join_access"`
	Likes       int64            `json:"likes"`
	Dislikes    int64            `json:"dislikes"`
	MemberCount int64            `json:"member_count"`
}

// VoidCommunity is what a post sees when its community is gone. Nobody
// can write to it.
func VoidCommunity() Community {
	return Community{
		Title:       "void",
		ReadAccess:  ReadEverybody,
		WriteAccess: WriteOwner,
		JoinAccess:  JoinNobody,
	}
}

type Membership struct {
	ID        uint64         `json:"id"`
	Created   int64          `json:"created"`
	Owner     uint64         `json:"owner"`
	Community uint64         `json:"community"`
	Role      rbac.Community `json:"role"`
}

type JournalMembership struct {
	ID      uint64       `json:"id"`
	Created int64        `json:"created"`
	Owner   uint64       `json:"owner"`
	Journal uint64       `json:"journal"`
	Role    rbac.Journal `json:"role"`
}

type PostContext struct {
	CommentsEnabled bool   `json:"comments_enabled"`
	IsPinned        bool   `json:"is_pinned"`
	IsProfilePinned bool   `json:"is_profile_pinned"`
	IsNSFW          bool   `json:"is_nsfw"`
	Edited          int64  `json:"edited"`
	Reposting       uint64 `json:"reposting,omitempty"`
	Answering       uint64 `json:"answering,omitempty"`
}

func DefaultPostContext() PostContext {
	return PostContext{CommentsEnabled: true}
}

type Post struct {
	ID           uint64      `json:"id"`
	Created      int64       `json:"created"`
	Content      string      `json:"content"`
	Owner        uint64      `json:"owner"`
	Community    uint64      `json:"community"`
	ReplyingTo   uint64      `json:"replying_to"`
	Context      PostContext `json:"context"`
	Likes        int64       `json:"likes"`
	Dislikes     int64       `json:"dislikes"`
	CommentCount int64       `json:"comment_count"`
}

type Question struct {
	ID          uint64 `json:"id"`
	Created     int64  `json:"created"`
	Owner       uint64 `json:"owner"`
	Receiver    uint64 `json:"receiver"`
	Content     string `json:"content"`
	IsGlobal    bool   `json:"is_global"`
	Community   uint64 `json:"community"`
	Likes       int64  `json:"likes"`
	Dislikes    int64  `json:"dislikes"`
	AnswerCount int64  `json:"answer_count"`
	IP          string `json:"-"`
}

type ActionType string

const (
	ActionAnswer        ActionType = "Answer"
	ActionFollow        ActionType = "Follow"
	ActionCommunityJoin ActionType = "CommunityJoin"
)

// ActionRequest is a pending step of a workflow waiting on its owner.
type ActionRequest struct {
	ID          uint64     `json:"id"`
	Created     int64      `json:"created"`
	Owner       uint64     `json:"owner"`
	ActionType  ActionType `json:"action_type"`
	LinkedAsset uint64     `json:"linked_asset"`
}

type AssetType string

const (
	AssetCommunity AssetType = "Community"
	AssetPost      AssetType = "Post"
	AssetQuestion  AssetType = "Question"
	AssetUser      AssetType = "User"
)

type Reaction struct {
	ID        uint64    `json:"id"`
	Created   int64     `json:"created"`
	Owner     uint64    `json:"owner"`
	Asset     uint64    `json:"asset"`
	AssetType AssetType `json:"asset_type"`
	IsLike    bool      `json:"is_like"`
}

// Edge is a directed relation between two accounts: a follow or a block.
type Edge struct {
	ID        uint64 `json:"id"`
	Created   int64  `json:"created"`
	Initiator uint64 `json:"initiator"`
	Receiver  uint64 `json:"receiver"`
}

type IPBlock struct {
	ID        uint64 `json:"id"`
	Created   int64  `json:"created"`
	Initiator uint64 `json:"initiator"`
	Receiver  string `json:"receiver"`
}

type IPBan struct {
	IP        string `json:"ip"`
	Created   int64  `json:"created"`
	Reason    string `json:"reason"`
	Moderator uint64 `json:"moderator"`
}

type Notification struct {
	ID      uint64 `json:"id"`
	Created int64  `json:"created"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Owner   uint64 `json:"owner"`
	Read    bool   `json:"read"`
}

type Report struct {
	ID        uint64    `json:"id"`
	Created   int64     `json:"created"`
	Owner     uint64    `json:"owner"`
	Content   string    `json:"content"`
	Asset     uint64    `json:"asset"`
	AssetType AssetType `json:"asset_type"`
}

type Warning struct {
	ID        uint64 `json:"id"`
	Created   int64  `json:"created"`
	Receiver  uint64 `json:"receiver"`
	Moderator uint64 `json:"moderator"`
	Content   string `json:"content"`
}

type AuditLogEntry struct {
	ID        uint64 `json:"id"`
	Created   int64  `json:"created"`
	Moderator uint64 `json:"moderator"`
	Content   string `json:"content"`
}

type JournalReadAccess string

const (
	JournalReadEverybody JournalReadAccess = "Everybody"
	JournalReadUnlisted  JournalReadAccess = "Unlisted"
	JournalReadPrivate   JournalReadAccess = "Private"
)

type JournalWriteAccess string

const (
	JournalWriteEverybody     JournalWriteAccess = "Everybody"
	JournalWriteAuthenticated JournalWriteAccess = "Authenticated"
	JournalWriteOwner         JournalWriteAccess = "Owner"
)

type Journal struct {
	ID          uint64             `json:"id"`
	Created     int64              `json:"created"`
	Title       string             `json:"title"`
	Prompt      string             `json:"prompt"`
	Owner       uint64             `json:"owner"`
	ReadAccess  JournalReadAccess  `json:"read_access"`
	WriteAccess JournalWriteAccess `json:"write_access"`
}

type JournalEntry struct {
	ID      uint64 `json:"id"`
	Created int64  `json:"created"`
	Content string `json:"content"`
	Owner   uint64 `json:"owner"`
	Journal uint64 `json:"journal"`
}

package rbac

import (
	"encoding/json"
	"testing"
)

func TestPlatformAdministratorPassesEveryBit(t *testing.T) {
	admin := PlatformAdministrator
	for bit := 0; bit < 32; bit++ {
		required := Platform(1) << bit
		if !admin.Check(required) {
			t.Fatalf("administrator failed Check(%s)", required)
		}
	}
	if !admin.Check(Platform(0xffffffff)) {
		t.Fatal("administrator failed Check(all bits)")
	}
}

func TestPlatformCheck(t *testing.T) {
	cases := []struct {
		name     string
		held     Platform
		required Platform
		allow    bool
	}{
		{name: "default holds default", held: PlatformDefault, required: PlatformDefault, allow: true},
		{name: "default lacks manage posts", held: PlatformDefault, required: ManagePosts, allow: false},
		{name: "exact bit", held: PlatformDefault | ManagePosts, required: ManagePosts, allow: true},
		{name: "partial conjunction", held: ManagePosts, required: ManagePosts | ManageUsers, allow: false},
		{name: "banned bit does not override", held: PlatformBanned | ManagePosts, required: ManagePosts, allow: true},
		{name: "empty requirement", held: 0, required: 0, allow: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.held.Check(tc.required); got != tc.allow {
				t.Fatalf("%s.Check(%s) = %v, want %v", tc.held, tc.required, got, tc.allow)
			}
		})
	}
}

func TestPlatformTiers(t *testing.T) {
	helper := PlatformDefault | helperBits
	manager := helper | ManageUsers

	if !helper.IsHelper() || helper.IsManager() {
		t.Fatalf("helper tiers wrong for %s", helper)
	}
	if !manager.IsManager() || manager.IsAdmin() {
		t.Fatalf("manager tiers wrong for %s", manager)
	}
	if !PlatformAdministrator.IsAdmin() {
		t.Fatal("administrator should be admin")
	}
	if (helper &^ ViewAuditLog).IsHelper() {
		t.Fatal("missing one helper bit should fail IsHelper")
	}
	if !manager.Outranks(helper) || helper.Outranks(manager) {
		t.Fatal("Outranks ordering wrong")
	}
}

func TestCommunityBannedOverridesMember(t *testing.T) {
	cases := []struct {
		name  string
		role  Community
		allow bool
	}{
		{name: "member", role: DefaultMember, allow: true},
		{name: "banned member", role: DefaultMember | CommunityBanned, allow: false},
		{name: "banned moderator", role: DefaultMember | CommunityManagePosts | CommunityBanned, allow: false},
		{name: "banned administrator", role: CommunityAdministrator | CommunityBanned, allow: true},
		{name: "pending", role: PendingMember, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.role.Check(CommunityMember); got != tc.allow {
				t.Fatalf("%s.Check(MEMBER) = %v, want %v", tc.role, got, tc.allow)
			}
		})
	}
}

func TestCommunityHelpers(t *testing.T) {
	if !(DefaultMember | CommunityManagePosts).IsModerator() {
		t.Fatal("manage posts should be moderator")
	}
	if DefaultMember.IsModerator() {
		t.Fatal("plain member should not be moderator")
	}
	if !PendingMember.IsRequested() || DefaultMember.IsRequested() {
		t.Fatal("IsRequested wrong")
	}
}

func TestJournalCheck(t *testing.T) {
	if !JournalAdministrator.Check(JournalMember) {
		t.Fatal("journal administrator should pass")
	}
	if JournalDefault.IsMember() {
		t.Fatal("default should not be member")
	}
	if !(JournalDefault | JournalMember).IsMember() {
		t.Fatal("member should be member")
	}
}

func TestUnknownBitsAreRetained(t *testing.T) {
	var p Platform
	if err := json.Unmarshal([]byte(`2147483651`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if uint32(p) != 2147483651 {
		t.Fatalf("bits lost: %d", uint32(p))
	}
	if !p.Check(PlatformAdministrator) {
		t.Fatal("named bit should still be visible")
	}

	var c Community
	if err := json.Unmarshal([]byte(`"4096"`), &c); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if uint32(c) != 4096 {
		t.Fatalf("community bits = %d", uint32(c))
	}

	if got := CommunityFrom(int64(1)<<40 | 5); got != CommunityDefault|CommunityMember {
		t.Fatalf("CommunityFrom truncation = %s", got)
	}

	if err := json.Unmarshal([]byte(`"admin"`), &c); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
}

func TestRoundTripJSON(t *testing.T) {
	in := struct {
		Role Journal `json:"role"`
	}{Role: JournalAdministrator | JournalMember}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"role":6}` {
		t.Fatalf("unexpected json %s", data)
	}
}

func TestString(t *testing.T) {
	got := (CommunityDefault | CommunityMember | Community(1<<20)).String()
	if got != "DEFAULT|MEMBER|0x100000" {
		t.Fatalf("String() = %q", got)
	}
}

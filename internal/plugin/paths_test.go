package plugin

import "testing"

func TestInstallDir(t *testing.T) {
	tests := []struct {
		repo string
		want string
	}{
		{"https://github.com/owner/repo.git", "/data/repos/owner/repo"},
		{"https://www.github.com/owner/repo", "/data/repos/owner/repo"},
		{"https://gitlab.com/Group/Sub/Repo", "/data/repos/gitlab.com/group/sub/repo"},
		{"ssh://git@host.example/a b/c", "/data/repos/git_host.example/a_b/c"},
		{"https://github.com/", "/data/repos/_"},
	}
	for _, tt := range tests {
		if got := InstallDir("/data", tt.repo); got != tt.want {
			t.Errorf("InstallDir(%q) = %q, want %q", tt.repo, got, tt.want)
		}
	}
}

func TestJoinPath(t *testing.T) {
	if got := JoinPath("a/", "", `b\c`, "/d"); got != "a/b/c/d" {
		t.Errorf("JoinPath() = %q", got)
	}
}

func TestIsLocalPath(t *testing.T) {
	local := []string{"/x", "./x", "../x", `.\x`, `..\x`, ".", "..", "~", "~/x", `C:\x`, "c:/x", "file:///x"}
	for _, s := range local {
		if !IsLocalPath(s) {
			t.Errorf("IsLocalPath(%q) = false", s)
		}
	}
	remote := []string{"https://github.com/o/r", "o/r", "git@github.com:o/r"}
	for _, s := range remote {
		if IsLocalPath(s) {
			t.Errorf("IsLocalPath(%q) = true", s)
		}
	}
}

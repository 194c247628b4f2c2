package config

import "github.com/go-git/go-git/v5"

// HeadCommit returns the short HEAD commit hash of the script folder, if it
// is a git repository. Adapted from the teacher's
// workspace.Manager.HeadCommit — there it resolved a workspace's HEAD for
// the MCP commit-history tools; here it exists purely as a diagnostic: the
// Process Supervisor logs it once at startup (and ConfigWatcher logs it
// again on every scripts.yml change) so operators can correlate a change in
// script behavior with the commit that produced it. Never an error for a
// non-repository script folder — it's optional context, not a requirement.
func HeadCommit(scriptFolder string) (string, bool) {
	repo, err := git.PlainOpenWithOptions(scriptFolder, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", false
	}
	ref, err := repo.Head()
	if err != nil {
		return "", false
	}
	hash := ref.Hash().String()
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return hash, true
}

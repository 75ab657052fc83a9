package summary

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
)

// LookupOwner resolves the uid/gid of username. It returns nil when the
// process is not root, since handing files to another user needs privileges.
func LookupOwner(username string) (*Owner, error) {
	if username == "" || os.Geteuid() != 0 {
		return nil, nil
	}
	u, err := user.Lookup(username)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %s: %w", username, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, fmt.Errorf("invalid uid %q for %s: %w", u.Uid, username, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return nil, fmt.Errorf("invalid gid %q for %s: %w", u.Gid, username, err)
	}
	return &Owner{UID: uid, GID: gid}, nil
}

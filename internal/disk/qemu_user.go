package disk

import (
	"bufio"
	"os"
	"os/user"
	"strconv"
	"strings"
	"sync"
)

const (
	qemuConfPath = "/etc/libvirt/qemu.conf"

	// fallbackQEMUID is the Fedora/RHEL default qemu uid and gid.
	fallbackQEMUID = 107
)

var (
	qemuUID  int
	qemuGID  int
	qemuOnce sync.Once
)

// qemuOwner returns the uid and gid the QEMU process runs as.
// It tries, in order: the user/group in qemu.conf, the common
// "qemu" and "libvirt-qemu" accounts, and finally uid/gid 107.
// The result is cached after the first call.
func qemuOwner() (uid, gid int) {
	qemuOnce.Do(func() {
		qemuUID, qemuGID = resolveQEMUOwner(qemuConfPath)
	})
	return qemuUID, qemuGID
}

func resolveQEMUOwner(confPath string) (int, int) {
	username, groupname := parseQEMUConf(confPath)

	if username != "" {
		if u, err := user.Lookup(username); err == nil {
			gidStr := u.Gid
			if groupname != "" {
				if g, err := user.LookupGroup(groupname); err == nil {
					gidStr = g.Gid
				}
			}
			if uid, gid, ok := atoiPair(u.Uid, gidStr); ok {
				return uid, gid
			}
		}
	}

	for _, name := range []string{"qemu", "libvirt-qemu"} {
		if u, err := user.Lookup(name); err == nil {
			if uid, gid, ok := atoiPair(u.Uid, u.Gid); ok {
				return uid, gid
			}
		}
	}

	return fallbackQEMUID, fallbackQEMUID
}

// parseQEMUConf extracts the user and group settings from qemu.conf.
// Missing file or settings yield empty strings.
func parseQEMUConf(path string) (username, groupname string) {
	file, err := os.Open(path)
	if err != nil {
		return "", ""
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		switch strings.TrimSpace(key) {
		case "user":
			username = value
		case "group":
			groupname = value
		}
	}

	return username, groupname
}

func atoiPair(a, b string) (int, int, bool) {
	x, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, false
	}
	y, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, false
	}
	return x, y, true
}

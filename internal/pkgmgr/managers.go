package pkgmgr

import (
	"context"
	"strings"

	"github.com/csd-dev-tools/stonix/internal/cmdexec"
)

// Manager names.
const (
	AptGet  = "apt-get"
	Yum     = "yum"
	Dnf     = "dnf"
	Zypper  = "zypper"
	Portage = "portage"
	Pkg     = "pkg"
	PkgAdd  = "pkgadd"
)

const solarisSpool = "/var/spool/pkg"

func newAptGet() *manager {
	env := []string{"DEBIAN_FRONTEND=noninteractive"}
	return &manager{
		name: AptGet,
		path: "/usr/bin/apt-get",
		install: func(pkg string) cmdexec.Command {
			return cmdexec.Command{Name: "apt-get", Args: []string{"-y", "--assume-yes", "install", pkg}, Env: env}
		},
		remove: func(pkg string) cmdexec.Command {
			return cmdexec.Command{Name: "apt-get", Args: []string{"-y", "remove", pkg}, Env: env}
		},
		update: func(pkg string) cmdexec.Command {
			if pkg == "" {
				return cmdexec.Command{Name: "apt-get", Args: []string{"-y", "-u", "upgrade"}, Env: env}
			}
			return cmdexec.Command{Name: "apt-get", Args: []string{"-y", "--only-upgrade", "install", pkg}, Env: env}
		},
		check: func(ctx context.Context, m *manager, pkg string) bool {
			res, ok := m.run(ctx, cmdexec.Cmd("dpkg", "-l", pkg))
			if !ok {
				return false
			}
			for _, line := range strings.Split(res.Stdout, "\n") {
				f := strings.Fields(line)
				if len(f) >= 2 && f[0] == "ii" && (f[1] == pkg || strings.HasPrefix(f[1], pkg+":")) {
					return true
				}
			}
			return false
		},
		available: func(ctx context.Context, m *manager, pkg string) bool {
			res, ok := m.run(ctx, cmdexec.Cmd("apt-cache", "search", "--names-only", "^"+pkg+"$"))
			return ok && strings.TrimSpace(res.Stdout) != ""
		},
		checkUpdate: func(ctx context.Context, m *manager, pkg string) bool {
			res, ok := m.run(ctx, cmdexec.Cmd("apt-get", "-s", "-u", "upgrade"))
			if !ok {
				return false
			}
			for _, line := range strings.Split(res.Stdout, "\n") {
				f := strings.Fields(line)
				if len(f) >= 2 && f[0] == "Inst" && (pkg == "" || f[1] == pkg) {
					return true
				}
			}
			return false
		},
	}
}

func rpmQuery(pkg string) cmdexec.Command { return cmdexec.Cmd("rpm", "-q", pkg) }

func newYum() *manager {
	return &manager{
		name:        Yum,
		path:        "/usr/bin/yum",
		lockProcess: "yum",
		install:     func(pkg string) cmdexec.Command { return cmdexec.Cmd("yum", "install", "-y", pkg) },
		remove:      func(pkg string) cmdexec.Command { return cmdexec.Cmd("yum", "remove", "-y", pkg) },
		update: func(pkg string) cmdexec.Command {
			return cmdexec.Cmd("yum", withPkg(pkg, "update", "-y", "--obsoletes")...)
		},
		check: exitZero(rpmQuery),
		available: exitZero(func(pkg string) cmdexec.Command {
			return cmdexec.Cmd("yum", "list", "available", pkg)
		}),
		checkUpdate: exitCode(100, func(pkg string) cmdexec.Command {
			return cmdexec.Cmd("yum", withPkg(pkg, "check-update", "-q")...)
		}),
	}
}

func newDnf() *manager {
	return &manager{
		name:        Dnf,
		path:        "/usr/bin/dnf",
		lockProcess: "dnf",
		install:     func(pkg string) cmdexec.Command { return cmdexec.Cmd("dnf", "install", "-yq", pkg) },
		remove:      func(pkg string) cmdexec.Command { return cmdexec.Cmd("dnf", "remove", "-yq", pkg) },
		update: func(pkg string) cmdexec.Command {
			return cmdexec.Cmd("dnf", withPkg(pkg, "-yq", "upgrade")...)
		},
		check: exitZero(rpmQuery),
		available: exitZero(func(pkg string) cmdexec.Command {
			return cmdexec.Cmd("dnf", "list", "--available", pkg)
		}),
		checkUpdate: exitCode(100, func(pkg string) cmdexec.Command {
			return cmdexec.Cmd("dnf", withPkg(pkg, "check-update", "-q")...)
		}),
	}
}

func newZypper() *manager {
	return &manager{
		name:        Zypper,
		path:        "/usr/bin/zypper",
		lockProcess: "zypper",
		install: func(pkg string) cmdexec.Command {
			return cmdexec.Cmd("zypper", "--non-interactive", "--quiet", "install", pkg)
		},
		remove: func(pkg string) cmdexec.Command {
			return cmdexec.Cmd("zypper", "--non-interactive", "remove", pkg)
		},
		update: func(pkg string) cmdexec.Command {
			return cmdexec.Cmd("zypper", withPkg(pkg, "--non-interactive", "update")...)
		},
		check: exitZero(rpmQuery),
		available: exitZero(func(pkg string) cmdexec.Command {
			return cmdexec.Cmd("zypper", "--non-interactive", "search", "--match-exact", "-u", pkg)
		}),
		checkUpdate: func(ctx context.Context, m *manager, pkg string) bool {
			res, ok := m.run(ctx, cmdexec.Cmd("zypper", "--non-interactive", "list-updates"))
			if !ok {
				return false
			}
			for _, line := range strings.Split(res.Stdout, "\n") {
				cols := strings.Split(line, "|")
				if len(cols) < 3 || strings.TrimSpace(cols[0]) != "v" {
					continue
				}
				if pkg == "" || strings.TrimSpace(cols[2]) == pkg {
					return true
				}
			}
			return false
		},
	}
}

func newPortage() *manager {
	return &manager{
		name:    Portage,
		path:    "/usr/bin/emerge",
		install: func(pkg string) cmdexec.Command { return cmdexec.Cmd("emerge", "--quiet", pkg) },
		remove:  func(pkg string) cmdexec.Command { return cmdexec.Cmd("emerge", "--unmerge", pkg) },
		update: func(pkg string) cmdexec.Command {
			return cmdexec.Cmd("emerge", "--update", "--quiet", worldOr(pkg))
		},
		check: func(ctx context.Context, m *manager, pkg string) bool {
			res, ok := m.run(ctx, cmdexec.Cmd("qlist", "-I", pkg))
			return ok && strings.TrimSpace(res.Stdout) != ""
		},
		available: exitZero(func(pkg string) cmdexec.Command {
			return cmdexec.Cmd("emerge", "--pretend", "--quiet", pkg)
		}),
		checkUpdate: func(ctx context.Context, m *manager, pkg string) bool {
			res, ok := m.run(ctx, cmdexec.Cmd("emerge", "--pretend", "--update", worldOr(pkg)))
			return ok && strings.Contains(res.Stdout, "[ebuild")
		},
	}
}

func worldOr(pkg string) string {
	if pkg == "" {
		return "@world"
	}
	return pkg
}

func newPkg() *manager {
	return &manager{
		name:    Pkg,
		path:    "/usr/sbin/pkg",
		install: func(pkg string) cmdexec.Command { return cmdexec.Cmd("pkg", "install", "-y", pkg) },
		remove:  func(pkg string) cmdexec.Command { return cmdexec.Cmd("pkg", "delete", "-y", pkg) },
		update: func(pkg string) cmdexec.Command {
			return cmdexec.Cmd("pkg", withPkg(pkg, "upgrade", "-y")...)
		},
		check: exitZero(func(pkg string) cmdexec.Command { return cmdexec.Cmd("pkg", "info", "-e", pkg) }),
		available: func(ctx context.Context, m *manager, pkg string) bool {
			res, ok := m.run(ctx, cmdexec.Cmd("pkg", "rquery", "%n", pkg))
			return ok && strings.TrimSpace(res.Stdout) == pkg
		},
		checkUpdate: func(ctx context.Context, m *manager, pkg string) bool {
			res, ok := m.run(ctx, cmdexec.Cmd("pkg", "version", "-vRL="))
			if !ok {
				return false
			}
			for _, line := range strings.Split(res.Stdout, "\n") {
				f := strings.Fields(line)
				if len(f) == 0 {
					continue
				}
				name := f[0]
				if i := strings.LastIndexByte(name, '-'); i > 0 {
					name = name[:i]
				}
				if pkg == "" || name == pkg {
					return true
				}
			}
			return false
		},
	}
}

func newPkgAdd() *manager {
	return &manager{
		name: PkgAdd,
		path: "/usr/sbin/pkgadd",
		install: func(pkg string) cmdexec.Command {
			return cmdexec.Cmd("pkgadd", "-n", "-d", solarisSpool, pkg)
		},
		remove:    func(pkg string) cmdexec.Command { return cmdexec.Cmd("pkgrm", "-n", pkg) },
		check:     exitZero(func(pkg string) cmdexec.Command { return cmdexec.Cmd("pkginfo", "-q", pkg) }),
		available: exitZero(func(pkg string) cmdexec.Command { return cmdexec.Cmd("pkginfo", "-q", "-d", solarisSpool, pkg) }),
	}
}

// constructors in probe preference order.
var constructors = []func() *manager{
	newAptGet, newDnf, newYum, newZypper, newPortage, newPkg, newPkgAdd,
}

// osManagers maps a lowercase OS type fragment to a manager name.
var osManagers = []struct {
	fragment string
	manager  string
}{
	{"ubuntu", AptGet},
	{"debian", AptGet},
	{"mint", AptGet},
	{"red hat", Yum},
	{"centos", Yum},
	{"fedora", Dnf},
	{"opensuse", Zypper},
	{"suse", Zypper},
	{"gentoo", Portage},
	{"freebsd", Pkg},
	{"solaris", PkgAdd},
}

package sshserver

import "pkt.systems/forgecode/schema"

// Config defines SSH server settings.
type Config struct {
	Addr        string
	HostKeyPath string
	Theme       schema.ThemeName
}

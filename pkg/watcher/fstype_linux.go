//go:build linux

package watcher

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Magic numbers from statfs(2).
const (
	nfsSuperMagic     = 0x6969
	smbSuperMagic     = 0x517B
	cifsMagicNumber   = 0xFF534D42
	smb2MagicNumber   = 0xFE534D42
	fuseSuperMagic    = 0x65735546
	overlayfsMagic    = 0x794C7630
	unknownSuperMagic = 0
)

// DetectFilesystemType classifies the filesystem holding path. A path that
// does not exist yet is classified by its nearest existing ancestor.
func DetectFilesystemType(path string) FilesystemType {
	p := path
	for {
		if _, err := os.Stat(p); err == nil {
			break
		}
		parent := filepath.Dir(p)
		if parent == p {
			return FSTypeUnknown
		}
		p = parent
	}

	var st unix.Statfs_t
	if err := unix.Statfs(p, &st); err != nil {
		return FSTypeUnknown
	}

	switch uint64(st.Type) {
	case nfsSuperMagic:
		return FSTypeNFS
	case smbSuperMagic, cifsMagicNumber, smb2MagicNumber:
		return FSTypeSMB
	case fuseSuperMagic:
		return FSTypeFUSE
	case overlayfsMagic:
		return FSTypeOverlay
	case unknownSuperMagic:
		return FSTypeUnknown
	default:
		return FSTypeLocal
	}
}

// Package platform wraps the raw filesystem primitives the copy engine is
// built on: locked descriptors, single-syscall reads and writes, and errno
// classification.
package platform

// CopyMethod identifies which strategy produced the destination.
type CopyMethod int

const (
	NoCopy   CopyMethod = iota
	Symlink             // symlink(2) pointing at the resolved source target
	Hardlink            // link(2) to the source inode
	ReadWrite           // chunked read(2)/write(2) byte copy
)

func (m CopyMethod) String() string {
	switch m {
	case NoCopy:
		return "none"
	case Symlink:
		return "symlink"
	case Hardlink:
		return "hardlink"
	case ReadWrite:
		return "read_write"
	default:
		return "unknown"
	}
}

// CopyResult reports the outcome of a copy operation.
type CopyResult struct {
	BytesWritten int64
	Method       CopyMethod
}

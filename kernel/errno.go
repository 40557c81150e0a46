package kernel

import (
	"errors"
	"strconv"
)

// Errno is a kernel error number. Syscalls report failures as -Errno in the
// return slot; the Context stubs turn them back into Errno values.
type Errno int

const (
	EPERM        Errno = 1
	ENOENT       Errno = 2
	ESRCH        Errno = 3
	EINTR        Errno = 4
	EIO          Errno = 5
	ENXIO        Errno = 6
	EBADF        Errno = 9
	EAGAIN       Errno = 11
	ENOMEM       Errno = 12
	EBUSY        Errno = 16
	EEXIST       Errno = 17
	EINVAL       Errno = 22
	EMFILE       Errno = 24
	ENOTTY       Errno = 25
	ESPIPE       Errno = 29
	EDEADLK      Errno = 35
	ENAMETOOLONG Errno = 36
	ENOSYS       Errno = 38
	EMSGSIZE     Errno = 90
	ETIMEDOUT    Errno = 110
)

func (e Errno) Error() string { return e.String() }

func (e Errno) String() string {
	switch e {
	case EPERM:
		return "operation not permitted"
	case ENOENT:
		return "no such file or directory"
	case ESRCH:
		return "no such thread"
	case EINTR:
		return "interrupted"
	case EIO:
		return "i/o error"
	case ENXIO:
		return "no such device"
	case EBADF:
		return "bad file descriptor"
	case EAGAIN:
		return "resource temporarily unavailable"
	case ENOMEM:
		return "out of memory"
	case EBUSY:
		return "resource busy"
	case EEXIST:
		return "already exists"
	case EINVAL:
		return "invalid argument"
	case EMFILE:
		return "too many open files"
	case ENOTTY:
		return "inappropriate ioctl"
	case ESPIPE:
		return "illegal seek"
	case EDEADLK:
		return "deadlock would occur"
	case ENAMETOOLONG:
		return "name too long"
	case ENOSYS:
		return "function not implemented"
	case EMSGSIZE:
		return "message too long"
	case ETIMEDOUT:
		return "timed out"
	default:
		return "errno " + strconv.Itoa(int(e))
	}
}

// ErrRestart is returned by a File operation that blocked the caller on a
// wait queue. The syscall is retried once the caller is woken.
var ErrRestart = errors.New("kernel: restart syscall")

// errnoOf maps an error returned by a collaborator onto an Errno.
func errnoOf(err error) Errno {
	if err == nil {
		return 0
	}
	var e Errno
	if errors.As(err, &e) {
		return e
	}
	return EIO
}

// result converts a syscall return slot into an error.
func result(ret int) error {
	if ret < 0 {
		return Errno(-ret)
	}
	return nil
}

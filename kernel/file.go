package kernel

import "errors"

// Open flags.
const (
	O_RDONLY   = 0x0
	O_WRONLY   = 0x1
	O_RDWR     = 0x2
	O_ACCMODE  = 0x3
	O_CREAT    = 0x40
	O_EXCL     = 0x80
	O_NONBLOCK = 0x800
)

// Seek whence values.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// FileMode describes the kind of a file object.
type FileMode uint8

const (
	ModeRegular FileMode = iota
	ModeChar
	ModeFifo
	ModeDir
)

func (m FileMode) String() string {
	switch m {
	case ModeRegular:
		return "file"
	case ModeChar:
		return "char"
	case ModeFifo:
		return "fifo"
	case ModeDir:
		return "dir"
	default:
		return "unknown"
	}
}

// FileInfo is the result of fstat.
type FileInfo struct {
	Name string
	Size int64
	Mode FileMode
}

// File is a kernel file object: a pipe, a device driver or a filesystem
// node. Methods run with interrupts masked on behalf of the thread
// described by op. Errors are Errno values; ErrRestart (returned by
// op.Block) retries the call once the caller is woken.
type File interface {
	Read(op *FileOp, p []byte, off int64) (int, error)
	Write(op *FileOp, p []byte, off int64) (int, error)
	Ioctl(op *FileOp, cmd uint32, arg uintptr) error
}

// Opener is implemented by files that track opens.
type Opener interface {
	Open(op *FileOp) error
}

// Seeker is implemented by seekable files.
type Seeker interface {
	Seek(op *FileOp, off int64, whence int) (int64, error)
}

// Stater is implemented by files that report metadata.
type Stater interface {
	Stat() FileInfo
}

// Poller is implemented by files that can report readiness to poll.
type Poller interface {
	Poll(events PollEvents) PollEvents
}

// FileOp is the calling context handed to File methods.
type FileOp struct {
	k     *Kernel
	t     *Thread
	flags int
}

// NonBlocking reports whether the descriptor was opened with O_NONBLOCK.
func (op *FileOp) NonBlocking() bool { return op.flags&O_NONBLOCK != 0 }

// Flags returns the descriptor's open flags.
func (op *FileOp) Flags() int { return op.flags }

// Retrying reports whether this invocation retries a blocked call.
func (op *FileOp) Retrying() bool { return op.t.syscallPending }

// SetRequest records the size the caller is waiting for.
func (op *FileOp) SetRequest(n int) { op.t.fileRequest = n }

// Block parks the caller on q and returns ErrRestart.
func (op *FileOp) Block(q *WaitQueue) error {
	op.k.block(q, op.t, Wait)
	return ErrRestart
}

// WakeHighest readies the highest-priority waiter of q whose recorded
// request satisfies fits. A nil fits accepts every waiter.
func (op *FileOp) WakeHighest(q *WaitQueue, fits func(request int) bool) {
	op.k.wakeHighestFunc(q, requestFits(fits))
}

// WakeAll readies every waiter of q.
func (op *FileOp) WakeAll(q *WaitQueue) { op.k.wakeAll(q) }

// NotifyPollers wakes threads blocked in poll so they rescan.
func (op *FileOp) NotifyPollers() { op.k.pollNotify() }

func requestFits(fits func(int) bool) func(*Thread) bool {
	if fits == nil {
		return nil
	}
	return func(t *Thread) bool { return fits(t.fileRequest) }
}

type fileDesc struct {
	used  bool
	file  File
	flags int
	off   int64
}

func (task *Task) allocFD(f File, flags int) (int, error) {
	for i := range task.files {
		if !task.files[i].used {
			task.files[i] = fileDesc{used: true, file: f, flags: flags}
			return i, nil
		}
	}
	return -1, EMFILE
}

func (task *Task) fd(n int) *fileDesc {
	if n < 0 || n >= len(task.files) || !task.files[n].used {
		return nil
	}
	return &task.files[n]
}

func (k *Kernel) fileOp(t *Thread, d *fileDesc) *FileOp {
	return &FileOp{k: k, t: t, flags: d.flags}
}

// fileResult maps a File method result onto a handler outcome.
func fileResult(n int, err error) Poll {
	switch {
	case err == nil:
		return Done(n)
	case errors.Is(err, ErrRestart):
		return Pending()
	default:
		return Fail(errnoOf(err))
	}
}

// sysOpen: a0 path string, a1 flags int.
func sysOpen(k *Kernel, t *Thread, a *Args) Poll {
	path := arg[string](a, 0)
	flags := arg[int](a, 1)
	if len(path) > MaxPathLen {
		return Fail(ENAMETOOLONG)
	}
	f, err := k.fs.Lookup(path)
	if err != nil {
		return Fail(errnoOf(err))
	}
	d := fileDesc{file: f, flags: flags}
	if o, ok := f.(Opener); ok {
		if err := o.Open(k.fileOp(t, &d)); err != nil {
			return fileResult(0, err)
		}
	}
	fd, err := t.task.allocFD(f, flags)
	if err != nil {
		return Fail(errnoOf(err))
	}
	return Done(fd)
}

// sysClose: a0 fd int.
func sysClose(k *Kernel, t *Thread, a *Args) Poll {
	d := t.task.fd(arg[int](a, 0))
	if d == nil {
		return Fail(EBADF)
	}
	*d = fileDesc{}
	return Done(0)
}

// sysRead: a0 fd int, a1 []byte.
func sysRead(k *Kernel, t *Thread, a *Args) Poll {
	d := t.task.fd(arg[int](a, 0))
	if d == nil || d.flags&O_ACCMODE == O_WRONLY {
		return Fail(EBADF)
	}
	n, err := d.file.Read(k.fileOp(t, d), arg[[]byte](a, 1), d.off)
	if err == nil {
		d.off += int64(n)
	}
	return fileResult(n, err)
}

// sysWrite: a0 fd int, a1 []byte.
func sysWrite(k *Kernel, t *Thread, a *Args) Poll {
	d := t.task.fd(arg[int](a, 0))
	if d == nil || d.flags&O_ACCMODE == O_RDONLY {
		return Fail(EBADF)
	}
	n, err := d.file.Write(k.fileOp(t, d), arg[[]byte](a, 1), d.off)
	if err == nil {
		d.off += int64(n)
	}
	return fileResult(n, err)
}

// sysIoctl: a0 fd int, a1 cmd uint32, a2 arg uintptr.
func sysIoctl(k *Kernel, t *Thread, a *Args) Poll {
	d := t.task.fd(arg[int](a, 0))
	if d == nil {
		return Fail(EBADF)
	}
	return fileResult(0, d.file.Ioctl(k.fileOp(t, d), arg[uint32](a, 1), arg[uintptr](a, 2)))
}

// sysLseek: a0 fd int, a1 offset int64, a2 whence int.
func sysLseek(k *Kernel, t *Thread, a *Args) Poll {
	d := t.task.fd(arg[int](a, 0))
	if d == nil {
		return Fail(EBADF)
	}
	s, ok := d.file.(Seeker)
	if !ok {
		return Fail(ESPIPE)
	}
	off, err := s.Seek(k.fileOp(t, d), arg[int64](a, 1), arg[int](a, 2))
	if err != nil {
		return fileResult(0, err)
	}
	d.off = off
	return Done(int(off))
}

// sysFstat: a0 fd int, a1 *FileInfo.
func sysFstat(k *Kernel, t *Thread, a *Args) Poll {
	d := t.task.fd(arg[int](a, 0))
	if d == nil {
		return Fail(EBADF)
	}
	out := arg[*FileInfo](a, 1)
	if out == nil {
		return Fail(EINVAL)
	}
	s, ok := d.file.(Stater)
	if !ok {
		return Fail(ENOSYS)
	}
	*out = s.Stat()
	return Done(0)
}

// sysPipe: a0 *[2]int receiving the read and write descriptors.
func sysPipe(k *Kernel, t *Thread, a *Args) Poll {
	out := arg[*[2]int](a, 0)
	if out == nil {
		return Fail(EINVAL)
	}
	p := NewPipe(k.cfg.PipeDepth)
	rfd, err := t.task.allocFD(p, O_RDONLY)
	if err != nil {
		return Fail(errnoOf(err))
	}
	wfd, err := t.task.allocFD(p, O_WRONLY)
	if err != nil {
		t.task.files[rfd] = fileDesc{}
		return Fail(errnoOf(err))
	}
	out[0], out[1] = rfd, wfd
	return Done(0)
}

// sysMkfifo: a0 path string.
func sysMkfifo(k *Kernel, t *Thread, a *Args) Poll {
	path := arg[string](a, 0)
	if len(path) > MaxPathLen {
		return Fail(ENAMETOOLONG)
	}
	p := NewPipe(k.cfg.PipeDepth)
	p.name = baseName(path)
	if err := k.fs.Mknod(path, p); err != nil {
		return Fail(errnoOf(err))
	}
	return Done(0)
}

// sysReadDir: a0 path string, a1 *[]DirEntry.
func sysReadDir(k *Kernel, t *Thread, a *Args) Poll {
	out := arg[*[]DirEntry](a, 1)
	if out == nil {
		return Fail(EINVAL)
	}
	ents, err := k.fs.ReadDir(arg[string](a, 0))
	if err != nil {
		return Fail(errnoOf(err))
	}
	*out = ents
	return Done(len(ents))
}

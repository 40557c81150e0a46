package kernel

// Pipe is a byte FIFO file. A blocking read of n bytes waits until n bytes
// are buffered and then returns exactly n; a blocking write waits for room
// for the whole request. Non-blocking descriptors transfer what they can.
type Pipe struct {
	name   string
	buf    fifo[byte]
	readQ  WaitQueue
	writeQ WaitQueue
}

// NewPipe returns an empty pipe holding up to depth bytes.
func NewPipe(depth int) *Pipe {
	return &Pipe{buf: newFifo[byte](depth)}
}

// Len returns the number of buffered bytes.
func (p *Pipe) Len() int { return p.buf.len() }

func (p *Pipe) Read(op *FileOp, b []byte, _ int64) (int, error) {
	n := len(b)
	if n > p.buf.cap() {
		return 0, EINVAL
	}
	if n > p.buf.len() {
		if op.NonBlocking() {
			if p.buf.len() == 0 {
				return 0, EAGAIN
			}
			n = p.buf.len()
		} else {
			op.SetRequest(n)
			return 0, op.Block(&p.readQ)
		}
	}
	p.buf.read(b[:n])

	avail := p.buf.avail()
	op.WakeHighest(&p.writeQ, func(req int) bool { return req <= avail })
	op.NotifyPollers()
	return n, nil
}

func (p *Pipe) Write(op *FileOp, b []byte, _ int64) (int, error) {
	n := len(b)
	if n > p.buf.cap() {
		return 0, EINVAL
	}
	if n > p.buf.avail() {
		if op.NonBlocking() {
			if p.buf.avail() == 0 {
				return 0, EAGAIN
			}
			n = p.buf.avail()
		} else {
			op.SetRequest(n)
			return 0, op.Block(&p.writeQ)
		}
	}
	p.buf.write(b[:n])

	buffered := p.buf.len()
	op.WakeHighest(&p.readQ, func(req int) bool { return req <= buffered })
	op.NotifyPollers()
	return n, nil
}

func (p *Pipe) Ioctl(op *FileOp, cmd uint32, arg uintptr) error {
	return ENOTTY
}

func (p *Pipe) Poll(events PollEvents) PollEvents {
	var r PollEvents
	if p.buf.len() > 0 {
		r |= PollIn
	}
	if p.buf.avail() > 0 {
		r |= PollOut
	}
	return r & events
}

func (p *Pipe) Stat() FileInfo {
	return FileInfo{Name: p.name, Size: int64(p.buf.len()), Mode: ModeFifo}
}

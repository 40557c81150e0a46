package kernel

const (
	MQDefaultMaxMsg  = 16
	MQDefaultMsgSize = 50
	// MQPrioMax bounds message priorities. Priorities are recorded but
	// delivery stays FIFO.
	MQPrioMax = 32
)

// MQAttr are message queue attributes.
type MQAttr struct {
	Flags   int
	MaxMsg  int
	MsgSize int
	CurMsgs int
}

type mqRecord struct {
	data []byte
	prio uint
}

// MQueue is a named queue of fixed-size records.
type MQueue struct {
	name     string
	maxMsg   int
	msgSize  int
	msgs     fifo[mqRecord]
	sendQ    WaitQueue
	recvQ    WaitQueue
	refs     int
	unlinked bool
}

type mqDesc struct {
	used  bool
	mq    *MQueue
	flags int
}

func (task *Task) mqd(n int) *mqDesc {
	if n < 0 || n >= len(task.mqds) || !task.mqds[n].used {
		return nil
	}
	return &task.mqds[n]
}

// mqRelease drops one reference; an unlinked queue is freed with its last.
func (k *Kernel) mqRelease(mq *MQueue) {
	mq.refs--
	if mq.refs <= 0 && mq.unlinked {
		k.mqCount--
	}
}

// sysMqOpen: a0 name string, a1 flags int, a2 *MQAttr (nil for defaults).
func sysMqOpen(k *Kernel, t *Thread, a *Args) Poll {
	name := arg[string](a, 0)
	flags := arg[int](a, 1)
	if name == "" {
		return Fail(EINVAL)
	}
	if len(name) > MaxPathLen {
		return Fail(ENAMETOOLONG)
	}

	slot := -1
	for i := range t.task.mqds {
		if !t.task.mqds[i].used {
			slot = i
			break
		}
	}
	if slot < 0 {
		return Fail(EMFILE)
	}

	mq, ok := k.mqueues[name]
	switch {
	case ok && flags&(O_CREAT|O_EXCL) == O_CREAT|O_EXCL:
		return Fail(EEXIST)
	case !ok && flags&O_CREAT == 0:
		return Fail(ENOENT)
	case !ok:
		attr := MQAttr{MaxMsg: MQDefaultMaxMsg, MsgSize: MQDefaultMsgSize}
		if p := arg[*MQAttr](a, 2); p != nil {
			attr = *p
		}
		if attr.MaxMsg <= 0 || attr.MsgSize <= 0 {
			return Fail(EINVAL)
		}
		if k.mqCount >= k.cfg.MaxMQueues {
			return Fail(ENOMEM)
		}
		mq = &MQueue{
			name:    name,
			maxMsg:  attr.MaxMsg,
			msgSize: attr.MsgSize,
			msgs:    newFifo[mqRecord](attr.MaxMsg),
		}
		k.mqueues[name] = mq
		k.mqCount++
	}

	t.task.mqds[slot] = mqDesc{used: true, mq: mq, flags: flags &^ (O_CREAT | O_EXCL)}
	mq.refs++
	return Done(slot)
}

// sysMqClose: a0 mqd int.
func sysMqClose(k *Kernel, t *Thread, a *Args) Poll {
	d := t.task.mqd(arg[int](a, 0))
	if d == nil {
		return Fail(EBADF)
	}
	k.mqRelease(d.mq)
	*d = mqDesc{}
	return Done(0)
}

// sysMqUnlink: a0 name string. Open descriptors keep working until closed.
func sysMqUnlink(k *Kernel, t *Thread, a *Args) Poll {
	name := arg[string](a, 0)
	mq, ok := k.mqueues[name]
	if !ok {
		return Fail(ENOENT)
	}
	delete(k.mqueues, name)
	mq.unlinked = true
	if mq.refs <= 0 {
		k.mqCount--
	}
	return Done(0)
}

// sysMqSend: a0 mqd int, a1 []byte, a2 priority uint.
func sysMqSend(k *Kernel, t *Thread, a *Args) Poll {
	d := t.task.mqd(arg[int](a, 0))
	if d == nil || d.flags&O_ACCMODE == O_RDONLY {
		return Fail(EBADF)
	}
	msg := arg[[]byte](a, 1)
	prio := arg[uint](a, 2)
	mq := d.mq
	if len(msg) > mq.msgSize {
		return Fail(EMSGSIZE)
	}
	if prio > MQPrioMax {
		return Fail(EINVAL)
	}
	if mq.msgs.avail() == 0 {
		if d.flags&O_NONBLOCK != 0 {
			return Fail(EAGAIN)
		}
		k.block(&mq.sendQ, t, Wait)
		return Pending()
	}
	mq.msgs.push(mqRecord{data: append([]byte(nil), msg...), prio: prio})
	k.wakeHighest(&mq.recvQ)
	k.pollNotify()
	return Done(0)
}

// sysMqReceive: a0 mqd int, a1 []byte, a2 *uint receiving the priority.
func sysMqReceive(k *Kernel, t *Thread, a *Args) Poll {
	d := t.task.mqd(arg[int](a, 0))
	if d == nil || d.flags&O_ACCMODE == O_WRONLY {
		return Fail(EBADF)
	}
	buf := arg[[]byte](a, 1)
	mq := d.mq
	if len(buf) < mq.msgSize {
		return Fail(EMSGSIZE)
	}
	rec, ok := mq.msgs.pop()
	if !ok {
		if d.flags&O_NONBLOCK != 0 {
			return Fail(EAGAIN)
		}
		k.block(&mq.recvQ, t, Wait)
		return Pending()
	}
	n := copy(buf, rec.data)
	if p := arg[*uint](a, 2); p != nil {
		*p = rec.prio
	}
	k.wakeHighest(&mq.sendQ)
	k.pollNotify()
	return Done(n)
}

// sysMqGetattr: a0 mqd int, a1 *MQAttr.
func sysMqGetattr(k *Kernel, t *Thread, a *Args) Poll {
	d := t.task.mqd(arg[int](a, 0))
	if d == nil {
		return Fail(EBADF)
	}
	out := arg[*MQAttr](a, 1)
	if out == nil {
		return Fail(EINVAL)
	}
	*out = d.attr()
	return Done(0)
}

// sysMqSetattr: a0 mqd int, a1 *MQAttr, a2 *MQAttr for the previous
// attributes. Only O_NONBLOCK can change.
func sysMqSetattr(k *Kernel, t *Thread, a *Args) Poll {
	d := t.task.mqd(arg[int](a, 0))
	if d == nil {
		return Fail(EBADF)
	}
	in := arg[*MQAttr](a, 1)
	if in == nil {
		return Fail(EINVAL)
	}
	if old := arg[*MQAttr](a, 2); old != nil {
		*old = d.attr()
	}
	d.flags = d.flags&^O_NONBLOCK | in.Flags&O_NONBLOCK
	return Done(0)
}

func (d *mqDesc) attr() MQAttr {
	return MQAttr{
		Flags:   d.flags & O_NONBLOCK,
		MaxMsg:  d.mq.maxMsg,
		MsgSize: d.mq.msgSize,
		CurMsgs: d.mq.msgs.len(),
	}
}

package kernel

// TaskID identifies a task.
type TaskID uint32

// TaskFunc is the body of a task's main thread. Returning from it exits the
// whole task.
type TaskFunc func(c *Context)

// Task groups threads that share a file table and message queue
// descriptors.
type Task struct {
	id      TaskID
	name    string
	kernel  bool
	threads []*Thread
	main    *Thread

	files []fileDesc
	mqds  []mqDesc
}

func (task *Task) live() int {
	n := 0
	for _, t := range task.threads {
		if t.status != Terminated {
			n++
		}
	}
	return n
}

func (task *Task) dropThread(t *Thread) {
	for i, th := range task.threads {
		if th == t {
			task.threads = append(task.threads[:i], task.threads[i+1:]...)
			return
		}
	}
}

// CreateTask spawns a user task whose main thread runs fn at prio.
func (k *Kernel) CreateTask(name string, fn TaskFunc, prio int) (TaskID, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	task, err := k.spawn(name, fn, prio, false)
	if err != nil {
		return 0, err
	}
	return task.id, nil
}

// CreateKernelTask spawns a privileged task. Kernel threads may use the
// reserved priorities above the user maximum and cannot be signalled,
// cancelled or reprioritised from user threads.
func (k *Kernel) CreateKernelTask(name string, fn TaskFunc, prio int) (TaskID, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	task, err := k.spawn(name, fn, prio, true)
	if err != nil {
		return 0, err
	}
	return task.id, nil
}

func (k *Kernel) spawn(name string, fn TaskFunc, prio int, privileged bool) (*Task, error) {
	if fn == nil {
		return nil, EINVAL
	}
	if !k.validPriority(prio, privileged) {
		return nil, EINVAL
	}
	task := &Task{
		name:   name,
		kernel: privileged,
		files:  make([]fileDesc, k.cfg.MaxFiles),
		mqds:   make([]mqDesc, k.cfg.MaxFiles),
	}
	id, ok := k.tasks.alloc(task)
	if !ok {
		return nil, EAGAIN
	}
	task.id = TaskID(id)
	main, err := k.newThread(task, name, func(c *Context) { fn(c) }, prio, 0, false)
	if err != nil {
		k.tasks.free(id)
		return nil, err
	}
	task.main = main
	return task, nil
}

// exitTask terminates every thread of task. code becomes the main thread's
// return value.
func (k *Kernel) exitTask(task *Task, code int) {
	k.log.Debug().
		Uint32("pid", uint32(task.id)).
		Str("name", task.name).
		Int("code", code).
		Msg("task exit")
	for _, t := range append([]*Thread(nil), task.threads...) {
		if t == task.main {
			continue
		}
		k.exitThread(t, Canceled)
	}
	if task.main != nil {
		k.exitThread(task.main, code)
	}
	if k.tasks.get(uint32(task.id)) == task {
		k.releaseTask(task)
	}
}

// releaseTask frees the task slot once no thread of it is alive. Zombies
// are reaped since nobody outside the task can join them.
func (k *Kernel) releaseTask(task *Task) {
	if k.tasks.get(uint32(task.id)) != task {
		return
	}
	for _, t := range append([]*Thread(nil), task.threads...) {
		k.reapThread(t)
	}
	for i := range task.files {
		task.files[i] = fileDesc{}
	}
	for i := range task.mqds {
		if d := &task.mqds[i]; d.used {
			k.mqRelease(d.mq)
			*d = mqDesc{}
		}
	}
	k.tasks.free(uint32(task.id))
}

func (k *Kernel) task(pid TaskID) *Task {
	return k.tasks.get(uint32(pid))
}

func (k *Kernel) thread(tid ThreadID) *Thread {
	return k.threads.get(uint32(tid))
}

package app

import (
	"fmt"
	"io"
	"sort"
	"time"

	"ember/kernel"
)

const (
	demoFifoPath  = "/fifo_test"
	demoFifoMsg   = "[fifo example] hello world\n"
	demoQueueName = "/my_message"
	demoBufSize   = 10
)

// demo spawns the tasks of one example workload. Output goes to the
// console device at path.
type demo func(k *kernel.Kernel, path string) error

var demos = map[string]demo{
	"mutex":     mutexDemo,
	"semaphore": semaphoreDemo,
	"fifo":      fifoDemo,
	"mqueue":    mqueueDemo,
	"signal":    signalDemo,
	"timer":     timerDemo,
	"pthread":   pthreadDemo,
	"poll":      pollDemo,
	"priority":  priorityDemo,
}

// DemoNames lists the demos Boot can start.
func DemoNames() []string {
	names := make([]string, 0, len(demos))
	for name := range demos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func startDemos(k *kernel.Kernel, path string, names []string) error {
	for _, name := range names {
		d, ok := demos[name]
		if !ok {
			return fmt.Errorf("unknown demo %q", name)
		}
		if err := d(k, path); err != nil {
			return fmt.Errorf("demo %s: %w", name, err)
		}
	}
	return nil
}

// fdWriter writes to a descriptor, retrying short writes.
type fdWriter struct {
	c  *kernel.Context
	fd int
}

func (w fdWriter) Write(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		m, err := w.c.Write(w.fd, p[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// openConsole opens path for writing. Output is discarded when it cannot be
// opened.
func openConsole(c *kernel.Context, path string) io.Writer {
	fd, err := c.Open(path, kernel.O_WRONLY)
	if err != nil {
		return io.Discard
	}
	return fdWriter{c: c, fd: fd}
}

// threadWriter rebinds w to thread c. Descriptors belong to the task, but
// each thread must trap through its own Context.
func threadWriter(w io.Writer, c *kernel.Context) io.Writer {
	if fw, ok := w.(fdWriter); ok {
		fw.c = c
		return fw
	}
	return w
}

func forever(c *kernel.Context) {
	for {
		c.Sleep(time.Second)
	}
}

func mutexDemo(k *kernel.Kernel, path string) error {
	var (
		mu       kernel.Mutex
		notFull  kernel.Cond
		notEmpty kernel.Cond
		buf      [demoBufSize]int
		count    int
	)
	producer := func(c *kernel.Context) {
		_ = c.SetProgName("mutex-ex-1")
		out := openConsole(c, path)
		for item := 1; ; item++ {
			_ = c.Lock(&mu)
			for count == demoBufSize {
				fmt.Fprintf(out, "[mutex task 1] buffer is full, wait for consumer\n")
				_ = c.Wait(&notFull, &mu)
			}
			buf[count] = item
			count++
			fmt.Fprintf(out, "[mutex task 1] produced item %d\n", item)
			_ = c.Signal(&notEmpty)
			_ = c.Unlock(&mu)
			c.Sleep(time.Second)
		}
	}
	consumer := func(c *kernel.Context) {
		_ = c.SetProgName("mutex-ex-2")
		out := openConsole(c, path)
		for {
			_ = c.Lock(&mu)
			for count == 0 {
				fmt.Fprintf(out, "[mutex task 2] buffer is empty, wait for producer\n")
				_ = c.Wait(&notEmpty, &mu)
			}
			count--
			fmt.Fprintf(out, "[mutex task 2] consumed item %d\n", buf[count])
			_ = c.Signal(&notFull)
			_ = c.Unlock(&mu)
			c.Sleep(100 * time.Millisecond)
		}
	}
	return spawnAll(k, []taskSpec{{"mutex-ex-1", producer, 1}, {"mutex-ex-2", consumer, 1}})
}

func semaphoreDemo(k *kernel.Kernel, path string) error {
	var sem kernel.Semaphore
	poster := func(c *kernel.Context) {
		out := openConsole(c, path)
		for {
			c.Sleep(time.Second)
			_ = c.Post(&sem)
			fmt.Fprintf(out, "[semaphore 1] posted semaphore.\n")
		}
	}
	waiter := func(c *kernel.Context) {
		out := openConsole(c, path)
		for {
			if err := c.SemWait(&sem); err != nil {
				return
			}
			fmt.Fprintf(out, "[semaphore 2] received semaphore.\n")
		}
	}
	return spawnAll(k, []taskSpec{{"semaphore-1", poster, 1}, {"semaphore-2", waiter, 1}})
}

func fifoDemo(k *kernel.Kernel, path string) error {
	var ready kernel.Semaphore
	writer := func(c *kernel.Context) {
		if err := c.Mkfifo(demoFifoPath); err != nil {
			c.Exit(1)
		}
		_ = c.Post(&ready)
		fd, err := c.Open(demoFifoPath, kernel.O_RDWR)
		if err != nil {
			c.Exit(1)
		}
		for {
			_, _ = c.Write(fd, []byte(demoFifoMsg))
			c.Sleep(time.Second)
		}
	}
	reader := func(c *kernel.Context) {
		_ = c.SemWait(&ready)
		fd, err := c.Open(demoFifoPath, kernel.O_RDONLY)
		if err != nil {
			c.Exit(1)
		}
		out := openConsole(c, path)
		data := make([]byte, len(demoFifoMsg))
		for {
			n, err := c.Read(fd, data)
			if err != nil {
				c.Exit(1)
			}
			_, _ = out.Write(data[:n])
		}
	}
	return spawnAll(k, []taskSpec{{"fifo-ex-1", writer, 1}, {"fifo-ex-2", reader, 1}})
}

func mqueueDemo(k *kernel.Kernel, path string) error {
	attr := &kernel.MQAttr{MaxMsg: 100, MsgSize: 25}
	sender := func(c *kernel.Context) {
		mqd, err := c.MqOpen(demoQueueName, kernel.O_CREAT|kernel.O_WRONLY, attr)
		if err != nil {
			c.Exit(1)
		}
		for {
			_ = c.MqSend(mqd, []byte("greeting!"), 3)
			c.Sleep(time.Second)
		}
	}
	receiver := func(c *kernel.Context) {
		mqd, err := c.MqOpen(demoQueueName, kernel.O_CREAT|kernel.O_RDONLY, attr)
		if err != nil {
			c.Exit(1)
		}
		out := openConsole(c, path)
		msg := make([]byte, attr.MsgSize)
		for {
			n, prio, err := c.MqReceive(mqd, msg)
			if err != nil {
				c.Exit(1)
			}
			fmt.Fprintf(out, "[mqueue example] received %q with priority %d\n", msg[:n], prio)
		}
	}
	return spawnAll(k, []taskSpec{{"mqueue-ex-1", sender, 1}, {"mqueue-ex-2", receiver, 1}})
}

func signalDemo(k *kernel.Kernel, path string) error {
	catcher := func(c *kernel.Context) {
		out := openConsole(c, path)
		_, _ = c.Sigaction(kernel.SIGUSR1, &kernel.Sigaction{Handler: func(sig kernel.Signal) {
			fmt.Fprintf(out, "[SIGUSR1 handler] signal number is %d\n", int(sig))
		}})
		sig, err := c.Sigwait(kernel.SigSet(0).Add(kernel.SIGUSR1))
		if err == nil {
			fmt.Fprintf(out, "[signal example] signal %d is captured\n", int(sig))
		}
		forever(c)
	}
	pid, err := k.CreateTask("signal-ex-1", catcher, 1)
	if err != nil {
		return err
	}
	_, err = k.CreateTask("signal-ex-2", func(c *kernel.Context) {
		c.Sleep(time.Second)
		_ = c.KillTask(pid, kernel.SIGUSR1)
		forever(c)
	}, 1)
	return err
}

func timerDemo(k *kernel.Kernel, path string) error {
	_, err := k.CreateTask("timer-ex", func(c *kernel.Context) {
		out := openConsole(c, path)
		id, err := c.TimerCreate(&kernel.SigEvent{
			Notify: kernel.SigevSignal,
			Func:   func(any) { fmt.Fprintf(out, "timer: time's up.\n") },
		})
		if err != nil {
			fmt.Fprintf(out, "failed to create timer.\n")
			c.Exit(1)
		}
		spec := kernel.ItimerSpec{Value: 2 * time.Second, Interval: 2 * time.Second}
		if _, err := c.TimerSettime(id, spec); err != nil {
			fmt.Fprintf(out, "failed to set the timer.\n")
		}
		forever(c)
	}, 1)
	return err
}

func pthreadDemo(k *kernel.Kernel, path string) error {
	_, err := k.CreateTask("pthread-ex", func(c *kernel.Context) {
		out := openConsole(c, path)
		fmt.Fprintf(out, "[pthread example] a new thread will be created and joined after 10 seconds\n")
		tid, err := c.ThreadCreate(func(c *kernel.Context, _ any) any {
			out := threadWriter(out, c)
			for i := 0; i < 10; i++ {
				fmt.Fprintf(out, "[pthread example] printing from the new thread\n")
				c.Sleep(time.Second)
			}
			return nil
		}, nil, &kernel.ThreadAttr{Priority: 1, StackSize: 1024})
		if err != nil {
			c.Exit(1)
		}
		_, _ = c.Join(tid)
		fmt.Fprintf(out, "[pthread example] thread joined\n")
		forever(c)
	}, 1)
	return err
}

func pollDemo(k *kernel.Kernel, path string) error {
	_, err := k.CreateTask("poll", func(c *kernel.Context) {
		out := openConsole(c, path)
		in, err := c.Open(path, kernel.O_RDONLY|kernel.O_NONBLOCK)
		if err != nil {
			c.Exit(1)
		}
		fds := []kernel.PollFd{{Fd: in, Events: kernel.PollIn}}
		buf := make([]byte, 99)
		for {
			if _, err := c.Poll(fds, -1); err != nil {
				c.Exit(1)
			}
			if fds[0].Revents&kernel.PollIn != 0 {
				n, _ := c.Read(in, buf)
				fmt.Fprintf(out, "received %d bytes\n", n)
			}
		}
	}, 1)
	return err
}

// priorityDemo shows unbounded priority inversion: the median task holds
// the CPU while the low task owns the mutex the high task wants.
func priorityDemo(k *kernel.Kernel, path string) error {
	var mu kernel.Mutex
	high := func(c *kernel.Context) {
		out := openConsole(c, path)
		fmt.Fprintf(out, "[mutex high] attempt to lock the mutex in 5 seconds.\n")
		c.Sleep(5 * time.Second)
		for {
			_ = c.Lock(&mu)
			fmt.Fprintf(out, "[mutex high] highest-priority thread locked the mutex successfully.\n")
			_ = c.Unlock(&mu)
			c.Sleep(2 * time.Second)
		}
	}
	median := func(c *kernel.Context) {
		out := openConsole(c, path)
		fmt.Fprintf(out, "[mutex median] block the lowest-priority thread in 3 seconds.\n")
		c.Sleep(3 * time.Second)
		fmt.Fprintf(out, "[mutex median] block the lowest-priority thread for 10 seconds.\n")
		start := c.Now()
		for c.Now()-start <= 10*time.Second {
		}
		forever(c)
	}
	low := func(c *kernel.Context) {
		out := openConsole(c, path)
		for {
			_ = c.Lock(&mu)
			fmt.Fprintf(out, "[mutex low] lowest-priority thread locked the mutex successfully.\n")
			c.Sleep(2 * time.Second)
			_ = c.Unlock(&mu)
		}
	}
	return spawnAll(k, []taskSpec{
		{"pri-inv-high", high, 3},
		{"pri-inv-median", median, 2},
		{"pri-inv-low", low, 1},
	})
}

type taskSpec struct {
	name string
	fn   kernel.TaskFunc
	prio int
}

func spawnAll(k *kernel.Kernel, specs []taskSpec) error {
	for _, s := range specs {
		if _, err := k.CreateTask(s.name, s.fn, s.prio); err != nil {
			return err
		}
	}
	return nil
}

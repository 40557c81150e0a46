package kernel

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeBlockingReadWaitsForFullRequest(t *testing.T) {
	k := newTestKernel(t, Config{})
	require.NoError(t, k.RegisterDevice("/dev/p", NewPipe(16)))
	var tr trace

	spawn(t, k, "reader", 2, func(c *Context) {
		fd, err := c.Open("/dev/p", O_RDONLY)
		if err != nil {
			tr.add("open: %v", err)
			return
		}
		buf := make([]byte, 6)
		n, err := c.Read(fd, buf)
		tr.add("read %d %s %v", n, buf[:n], err)
	})
	spawn(t, k, "writer", 1, func(c *Context) {
		fd, err := c.Open("/dev/p", O_WRONLY)
		if err != nil {
			tr.add("open: %v", err)
			return
		}
		for _, chunk := range []string{"abc", "def"} {
			n, _ := c.Write(fd, []byte(chunk))
			tr.add("wrote %d", n)
		}
	})

	runUntilIdle(t, k)

	want := []string{"wrote 3", "read 6 abcdef <nil>", "wrote 3"}
	if diff := cmp.Diff(want, tr.events); diff != "" {
		t.Fatalf("pipe trace mismatch (-want +got):\n%s", diff)
	}
}

func TestPipeBlockedWriterWaitsForRoom(t *testing.T) {
	k := newTestKernel(t, Config{})
	p := NewPipe(8)
	require.NoError(t, k.RegisterDevice("/dev/p", p))
	var tr trace

	spawn(t, k, "writer", 2, func(c *Context) {
		fd, _ := c.Open("/dev/p", O_WRONLY)
		_, _ = c.Write(fd, []byte("01234567"))
		tr.add("full")
		n, err := c.Write(fd, []byte("89ab"))
		tr.add("wrote %d %v", n, err)
	})
	spawn(t, k, "reader", 1, func(c *Context) {
		fd, _ := c.Open("/dev/p", O_RDONLY)
		buf := make([]byte, 2)
		for i := 0; i < 2; i++ {
			n, _ := c.Read(fd, buf)
			tr.add("read %s", buf[:n])
		}
	})

	runUntilIdle(t, k)

	want := []string{"full", "read 01", "wrote 4 <nil>", "read 23"}
	if diff := cmp.Diff(want, tr.events); diff != "" {
		t.Fatalf("pipe trace mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 8, p.Len())
}

func TestPipeNonBlockingTransfersWhatFits(t *testing.T) {
	k := newTestKernel(t, Config{})
	require.NoError(t, k.RegisterDevice("/dev/p", NewPipe(8)))

	type result struct {
		N   int
		Err error
	}
	var got []result
	record := func(n int, err error) { got = append(got, result{n, err}) }

	spawn(t, k, "a", 2, func(c *Context) {
		fd, err := c.Open("/dev/p", O_RDWR|O_NONBLOCK)
		if err != nil {
			record(-1, err)
			return
		}
		buf := make([]byte, 8)
		record(c.Read(fd, buf[:1]))
		record(c.Write(fd, make([]byte, 10)))
		record(c.Write(fd, []byte("hello")))
		record(c.Write(fd, []byte("world")))
		record(c.Write(fd, []byte("!")))
		record(c.Read(fd, buf[:4]))
		record(c.Read(fd, buf))
		record(c.Read(fd, buf[:1]))

		blocking, _ := c.Open("/dev/p", O_RDWR)
		record(c.Read(blocking, make([]byte, 9)))
	})

	runUntilIdle(t, k)

	want := []result{
		{0, EAGAIN},
		{0, EINVAL},
		{5, nil},
		{3, nil},
		{0, EAGAIN},
		{4, nil},
		{4, nil},
		{0, EAGAIN},
		{0, EINVAL},
	}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b error) bool { return a == b })); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestPipeDescriptorsWithinTask(t *testing.T) {
	k := newTestKernel(t, Config{})
	var (
		tr   trace
		errs []error
		info FileInfo
	)

	spawn(t, k, "main", 2, func(c *Context) {
		r, w, err := c.Pipe()
		if err != nil {
			tr.add("pipe: %v", err)
			return
		}
		tid, _ := c.ThreadCreate(func(c *Context, arg any) any {
			_, _ = c.Write(w, []byte("ping"))
			return nil
		}, nil, &ThreadAttr{Priority: 1})

		buf := make([]byte, 4)
		n, _ := c.Read(r, buf)
		tr.add("%s", buf[:n])
		_, _ = c.Join(tid)

		info, _ = c.Fstat(r)
		_, err = c.Write(r, buf)
		errs = append(errs, err)
		_, err = c.Read(w, buf)
		errs = append(errs, err)
		_, err = c.Lseek(r, 0, SeekSet)
		errs = append(errs, err)
		errs = append(errs, c.Ioctl(r, 0, 0))
		errs = append(errs, c.Close(r))
		_, err = c.Read(r, buf)
		errs = append(errs, err)
	})

	runUntilIdle(t, k)

	assert.Equal(t, []string{"ping"}, tr.events)
	assert.Equal(t, ModeFifo, info.Mode)
	assert.Equal(t, []error{EBADF, EBADF, ESPIPE, ENOTTY, nil, EBADF}, errs)
}

func TestMkfifoSharesPipeAcrossTasks(t *testing.T) {
	k := newTestKernel(t, Config{})
	var (
		tr   trace
		errs []error
		ents []DirEntry
	)

	spawn(t, k, "maker", 3, func(c *Context) {
		errs = append(errs, c.Mkfifo("/tmp/chan"))
		errs = append(errs, c.Mkfifo("/tmp/chan"))
		ents, _ = c.ReadDir("/tmp")
	})
	spawn(t, k, "reader", 2, func(c *Context) {
		fd, err := c.Open("/tmp/chan", O_RDONLY)
		if err != nil {
			tr.add("open: %v", err)
			return
		}
		buf := make([]byte, 2)
		n, _ := c.Read(fd, buf)
		tr.add("got %s", buf[:n])
	})
	spawn(t, k, "writer", 1, func(c *Context) {
		fd, _ := c.Open("/tmp/chan", O_WRONLY)
		_, _ = c.Write(fd, []byte("hi"))
	})

	runUntilIdle(t, k)

	require.Equal(t, []error{nil, EEXIST}, errs)
	require.Equal(t, []DirEntry{{Name: "chan", Mode: ModeFifo}}, ents)
	require.Equal(t, []string{"got hi"}, tr.events)
}

package kernel

import (
	"sort"
	"strings"
)

const (
	// MaxPathLen bounds a path passed to open, mkfifo or mq_open.
	MaxPathLen = 64
	// MaxNameLen bounds task names.
	MaxNameLen = 32
)

// DirEntry is one readdir result.
type DirEntry struct {
	Name string
	Mode FileMode
}

// FileSystem is the namespace collaborator: it maps paths onto file
// objects. It is called with interrupts masked.
type FileSystem interface {
	Lookup(path string) (File, error)
	Mknod(path string, f File) error
	ReadDir(path string) ([]DirEntry, error)
}

// DevFS is a flat in-memory namespace. Directories are implied by path
// prefixes.
type DevFS struct {
	nodes map[string]File
}

// NewDevFS returns an empty namespace.
func NewDevFS() *DevFS {
	return &DevFS{nodes: make(map[string]File)}
}

func cleanPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}
	return p
}

func baseName(p string) string {
	p = cleanPath(p)
	return p[strings.LastIndexByte(p, '/')+1:]
}

// Lookup returns the node registered at path.
func (fs *DevFS) Lookup(path string) (File, error) {
	f, ok := fs.nodes[cleanPath(path)]
	if !ok {
		return nil, ENOENT
	}
	return f, nil
}

// Mknod registers f at path.
func (fs *DevFS) Mknod(path string, f File) error {
	if len(path) > MaxPathLen {
		return ENAMETOOLONG
	}
	p := cleanPath(path)
	if p == "/" || f == nil {
		return EINVAL
	}
	if _, ok := fs.nodes[p]; ok {
		return EEXIST
	}
	fs.nodes[p] = f
	return nil
}

// ReadDir lists the entries directly below path, sorted by name.
func (fs *DevFS) ReadDir(path string) ([]DirEntry, error) {
	dir := cleanPath(path)
	prefix := dir + "/"
	if dir == "/" {
		prefix = "/"
	}
	seen := map[string]DirEntry{}
	for p, f := range fs.nodes {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			seen[rest[:i]] = DirEntry{Name: rest[:i], Mode: ModeDir}
			continue
		}
		ent := DirEntry{Name: rest, Mode: ModeRegular}
		if s, ok := f.(Stater); ok {
			ent.Mode = s.Stat().Mode
		}
		seen[rest] = ent
	}
	if len(seen) == 0 {
		if _, ok := fs.nodes[dir]; ok {
			return nil, EINVAL
		}
		if dir != "/" {
			return nil, ENOENT
		}
	}
	out := make([]DirEntry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// RegisterDevice adds a driver to the kernel namespace, typically under
// /dev. It takes the interrupt mask.
func (k *Kernel) RegisterDevice(path string, f File) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.fs.Mknod(path, f)
}

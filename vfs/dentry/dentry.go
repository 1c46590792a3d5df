// Package dentry implements C10: the dentry tree and path-indexed dentry
// cache that sit above an Inode. A Dentry is a (name, path, inode, parent,
// children) node; lookups consult the in-memory tree and the cache before
// falling back to a filesystem's on-media lookup. Grounded on
// _examples/original_source/os/src/fs/ext4/ext4_dentry.rs (the richest
// concrete Dentry trait implementation in the retrieval pack — its
// look_up/create/unlink/rename/symbol_link/load_child bodies) and
// simplefs/simple_dentry.rs, since the pack's own dentry.rs trait
// definition was not captured. The path_to_dentry orchestration function
// (spec.md §4.8's "Lookup contract" paragraph) has no original_source
// counterpart in the retrieval pack at all and is authored directly from
// that prose.
package dentry

import (
	"path"
	"strings"

	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/kernel/ksync"
	"github.com/LittleLucifer1/duck-os/vfs/inode"
)

const errModule = "dentry"

// Sentinel errors surfaced by dentry operations (spec.md §4.8).
var (
	ErrNotFound = kernel.New(errModule, kernel.KindNOENT, "no such file or directory")
	ErrExist    = kernel.New(errModule, kernel.KindEXIST, "name already exists")
	ErrNotEmpty = kernel.New(errModule, kernel.KindNOTEMPTY, "directory not empty")
	ErrNoFS     = kernel.New(errModule, kernel.KindPERM, "directory has no backing filesystem")
	ErrXDev     = kernel.New(errModule, kernel.KindPERM, "operation requires the same filesystem")
)

// ChildInfo describes one directory entry a filesystem's LoadChildren
// returns so its Inode can be wrapped by a freshly materialized Dentry.
type ChildInfo struct {
	Name  string
	Inode *inode.Inode
	Mode  inode.Mode
}

// MediaOps is the on-media fallback a Dentry calls into when its in-memory
// child map and the process-wide cache both miss — one per mounted
// filesystem instance. Disk filesystems (ext4shim) implement this against a
// real backing library; pseudo filesystems (devfs, procfs, tmpfs) implement
// it against an in-memory table populated at mount time.
type MediaOps interface {
	// LookupChild resolves name within parent's directory on media.
	// Returns ErrNotFound (not a generic error) when the name genuinely
	// does not exist, mirroring original_source's look_up returning None
	// rather than propagating a disk error for a plain miss.
	LookupChild(parent *Dentry, name string) (*inode.Inode, inode.Mode, error)
	// LoadChildren returns every entry of parent's directory.
	LoadChildren(parent *Dentry) ([]ChildInfo, error)
	CreateChild(parent *Dentry, name string, mode inode.Mode) (*inode.Inode, error)
	// Remove physically deletes the object d names (rmfile/rmdir).
	Remove(d *Dentry) error
	Move(oldPath, newPath string, mode inode.Mode) error
	Symlink(parent *Dentry, name, target string) (*inode.Inode, error)
	ReadSymlink(d *Dentry, buf []byte) (int, error)
	Link(existingPath, newPath string) error
}

// Dentry is one node of the path tree: a name within a parent directory,
// bound to an Inode, with its own child map (spec.md §3).
type Dentry struct {
	lock ksync.Spinlock

	name     string
	path     string
	inode    *inode.Inode
	parent   *Dentry
	children map[string]*Dentry
	fs       MediaOps
}

// New builds a detached Dentry. Most callers should go through LookUp,
// Create, Symlink or Link instead, which also wire the cache and parent's
// child map; New is exported for filesystem packages constructing a mount
// point's root dentry.
func New(name, path string, in *inode.Inode, parent *Dentry, fs MediaOps) *Dentry {
	return &Dentry{name: name, path: path, inode: in, parent: parent, fs: fs, children: make(map[string]*Dentry)}
}

// NewRoot builds the root dentry ("/") of a freshly mounted filesystem.
func NewRoot(in *inode.Inode, fs MediaOps) *Dentry {
	return New("/", "/", in, nil, fs)
}

func (d *Dentry) Name() string {
	d.lock.Acquire()
	defer d.lock.Release()
	return d.name
}

func (d *Dentry) Path() string {
	d.lock.Acquire()
	defer d.lock.Release()
	return d.path
}

func (d *Dentry) Inode() *inode.Inode { return d.inode }

func (d *Dentry) Parent() *Dentry {
	d.lock.Acquire()
	defer d.lock.Release()
	return d.parent
}

// Children returns a snapshot of this dentry's currently materialized
// children (not necessarily every on-media entry; see LoadChildren).
func (d *Dentry) Children() []*Dentry {
	d.lock.Acquire()
	defer d.lock.Release()
	out := make([]*Dentry, 0, len(d.children))
	for _, c := range d.children {
		out = append(out, c)
	}
	return out
}

func joinPath(parent, name string) string {
	return path.Join(parent, name)
}

// splitComponents breaks an absolute path into its non-empty components.
func splitComponents(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" && part != "." {
			out = append(out, part)
		}
	}
	return out
}

// Cache is the process-wide path -> dentry map (spec.md §3's DentryCache).
// LookUp consults it before any on-media fallback.
type Cache struct {
	lock   ksync.Spinlock
	byPath map[string]*Dentry
}

// NewCache returns an empty dentry cache.
func NewCache() *Cache {
	return &Cache{byPath: make(map[string]*Dentry)}
}

func (c *Cache) Get(path string) (*Dentry, bool) {
	c.lock.Acquire()
	defer c.lock.Release()
	d, ok := c.byPath[path]
	return d, ok
}

func (c *Cache) Put(path string, d *Dentry) {
	c.lock.Acquire()
	defer c.lock.Release()
	c.byPath[path] = d
}

func (c *Cache) Remove(path string) {
	c.lock.Acquire()
	defer c.lock.Release()
	delete(c.byPath, path)
}

// LookUp resolves name as a direct child of d: first its own child map,
// then the cache, then the filesystem's on-media lookup — materializing
// and registering a new Dentry on the last path (spec.md §4.8's "Lookup
// contract").
func (d *Dentry) LookUp(cache *Cache, name string) (*Dentry, error) {
	d.lock.Acquire()
	if child, ok := d.children[name]; ok {
		d.lock.Release()
		return child, nil
	}
	parentPath := d.path
	d.lock.Release()

	childPath := joinPath(parentPath, name)
	if cached, ok := cache.Get(childPath); ok {
		d.lock.Acquire()
		d.children[name] = cached
		d.lock.Release()
		return cached, nil
	}

	if d.fs == nil {
		return nil, ErrNotFound
	}
	in, _, err := d.fs.LookupChild(d, name)
	if err != nil {
		return nil, err
	}

	child := New(name, childPath, in, d, d.fs)
	d.lock.Acquire()
	d.children[name] = child
	d.lock.Release()
	cache.Put(childPath, child)
	return child, nil
}

// PathToDentry resolves an absolute path from root, walking one component
// at a time through LookUp. There is no original_source function captured
// in the retrieval pack for this orchestration (the file that would define
// it, path_to_dentry's own module, is absent); it is written directly from
// spec.md §4.8.
func PathToDentry(cache *Cache, root *Dentry, p string) (*Dentry, error) {
	if p == "" || p[0] != '/' {
		return nil, kernel.New(errModule, kernel.KindINVAL, "path must be absolute")
	}
	cur := root
	for _, comp := range splitComponents(p) {
		if comp == ".." {
			if parent := cur.Parent(); parent != nil {
				cur = parent
			}
			continue
		}
		next, err := cur.LookUp(cache, comp)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// LoadChildren populates every on-media directory entry of d into its
// child map and the cache in one pass (original_source's load_child,
// despite the singular name, loads the whole directory listing).
func (d *Dentry) LoadChildren(cache *Cache) error {
	if d.inode.Mode() != inode.ModeDirectory || d.fs == nil {
		return nil
	}
	infos, err := d.fs.LoadChildren(d)
	if err != nil {
		return err
	}

	d.lock.Acquire()
	defer d.lock.Release()
	for _, info := range infos {
		childPath := joinPath(d.path, info.Name)
		child := New(info.Name, childPath, info.Inode, d, d.fs)
		d.children[info.Name] = child
		cache.Put(childPath, child)
	}
	return nil
}

// LoadAllChildren recursively loads every directory reachable from d.
func (d *Dentry) LoadAllChildren(cache *Cache) error {
	if d.inode.Mode() != inode.ModeDirectory {
		return nil
	}
	if err := d.LoadChildren(cache); err != nil {
		return err
	}
	for _, child := range d.Children() {
		if err := child.LoadAllChildren(cache); err != nil {
			return err
		}
	}
	return nil
}

// Create makes a new child of d with the given name and mode, materializing
// a Dentry for it (spec.md §4.8).
func (d *Dentry) Create(cache *Cache, name string, mode inode.Mode) (*Dentry, error) {
	d.lock.Acquire()
	if _, exists := d.children[name]; exists {
		d.lock.Release()
		return nil, ErrExist
	}
	parentPath := d.path
	d.lock.Release()

	if d.fs == nil {
		return nil, ErrNoFS
	}
	in, err := d.fs.CreateChild(d, name, mode)
	if err != nil {
		return nil, err
	}

	childPath := joinPath(parentPath, name)
	child := New(name, childPath, in, d, d.fs)
	d.lock.Acquire()
	d.children[name] = child
	d.lock.Release()
	cache.Put(childPath, child)
	return child, nil
}

// DetachChild removes name from d's child map and the cache without
// touching any on-media data — used to unmount a filesystem whose root was
// grafted onto d, where the mounted tree's own data must survive the
// detach (spec.md §4.8's unmount, which only edits the parent's child map
// and DentryCache).
func (d *Dentry) DetachChild(cache *Cache, name string) {
	d.lock.Acquire()
	child, ok := d.children[name]
	if ok {
		delete(d.children, name)
	}
	d.lock.Release()
	if ok {
		cache.Remove(child.Path())
	}
}

// remove physically deletes child's on-media object via d's filesystem.
func (d *Dentry) remove(child *Dentry) error {
	if d.fs == nil {
		return nil
	}
	return d.fs.Remove(child)
}

// Unlink removes child from d's child map and the cache, physically
// deleting its on-media object once no link or open reference remains
// (spec.md §4.8's unlink semantics: regular files drop the link count;
// empty directories are removed outright; a non-empty directory refuses
// with ENOTEMPTY).
func (d *Dentry) Unlink(cache *Cache, child *Dentry) error {
	child.lock.Acquire()
	name, childPath, in := child.name, child.path, child.inode
	hasChildren := len(child.children) > 0
	child.lock.Release()

	switch in.Mode() {
	case inode.ModeDirectory:
		if hasChildren {
			return ErrNotEmpty
		}
		if err := d.remove(child); err != nil {
			return err
		}
	default:
		if orphaned := in.DecLink(); orphaned {
			if err := d.remove(child); err != nil {
				return err
			}
		}
	}

	d.lock.Acquire()
	delete(d.children, name)
	d.lock.Release()
	cache.Remove(childPath)

	child.lock.Acquire()
	child.parent = nil
	child.lock.Release()
	return nil
}

// Link adds newName under parent pointing at d's inode, incrementing its
// link count (spec.md §4.8's link(parent, new_name), called on the
// existing dentry being linked from).
func (d *Dentry) Link(cache *Cache, parent *Dentry, newName string) (*Dentry, error) {
	if d.fs != parent.fs {
		return nil, ErrXDev
	}
	if d.fs == nil {
		return nil, ErrNoFS
	}
	newPath := joinPath(parent.Path(), newName)
	if err := d.fs.Link(d.Path(), newPath); err != nil {
		return nil, err
	}
	d.inode.IncLink()

	child := New(newName, newPath, d.inode, parent, d.fs)
	parent.lock.Acquire()
	parent.children[newName] = child
	parent.lock.Release()
	cache.Put(newPath, child)
	return child, nil
}

// Rename moves d's child named oldName to be newParent's child newName,
// requiring both dentries share a filesystem (spec.md §4.8's rename). If
// newName already exists, it is unlinked first unless it is a non-empty
// directory, which fails the whole rename with ENOTEMPTY.
func (d *Dentry) Rename(cache *Cache, oldName string, newParent *Dentry, newName string) error {
	if d.fs != newParent.fs {
		return ErrXDev
	}

	d.lock.Acquire()
	child, ok := d.children[oldName]
	d.lock.Release()
	if !ok {
		return ErrNotFound
	}

	newParent.lock.Acquire()
	existing, exists := newParent.children[newName]
	newParent.lock.Release()
	if exists {
		existing.lock.Acquire()
		existingHasChildren := len(existing.children) > 0
		existingMode := existing.inode.Mode()
		existing.lock.Release()
		if existingMode == inode.ModeDirectory && existingHasChildren {
			return ErrNotEmpty
		}
		if err := newParent.Unlink(cache, existing); err != nil {
			return err
		}
	}

	oldPath := child.Path()
	newPath := joinPath(newParent.Path(), newName)

	if d.fs != nil {
		if err := d.fs.Move(oldPath, newPath, child.inode.Mode()); err != nil {
			return err
		}
	}

	d.lock.Acquire()
	delete(d.children, oldName)
	d.lock.Release()

	child.lock.Acquire()
	child.name, child.path, child.parent = newName, newPath, newParent
	child.lock.Release()

	newParent.lock.Acquire()
	newParent.children[newName] = child
	newParent.lock.Release()

	cache.Remove(oldPath)
	cache.Put(newPath, child)
	return nil
}

// Symlink creates a symbolic link named name under d pointing at target
// (spec.md §4.8's symlink(name, target), called on the parent directory).
func (d *Dentry) Symlink(cache *Cache, name, target string) (*Dentry, error) {
	if d.fs == nil {
		return nil, ErrNoFS
	}
	in, err := d.fs.Symlink(d, name, target)
	if err != nil {
		return nil, err
	}
	childPath := joinPath(d.Path(), name)
	child := New(name, childPath, in, d, d.fs)
	d.lock.Acquire()
	d.children[name] = child
	d.lock.Release()
	cache.Put(childPath, child)
	return child, nil
}

// ReadSymlink reads this symlink's target into buf.
func (d *Dentry) ReadSymlink(buf []byte) (int, error) {
	if d.fs == nil {
		return 0, ErrNoFS
	}
	return d.fs.ReadSymlink(d, buf)
}

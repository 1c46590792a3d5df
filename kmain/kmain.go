// Package kmain sequences this kernel's boot: frame allocator, kernel
// address space, root filesystem, the rest of the mount table, and
// process 0. It plays the role gopher-os's kernel/kmain plays for that
// teacher's rt0 assembly entry point — the one place that sequences
// Init() calls and is allowed to treat a failure as fatal — adapted from
// a bare-metal rt0 callee into a hosted Config-driven entry point, since
// this module simulates its hardware (frame arena, block device) rather
// than owning real ones.
package kmain

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/LittleLucifer1/duck-os/devfs"
	"github.com/LittleLucifer1/duck-os/ext4shim"
	"github.com/LittleLucifer1/duck-os/kernel/klog"
	"github.com/LittleLucifer1/duck-os/mm/pmm"
	"github.com/LittleLucifer1/duck-os/mm/sv39"
	"github.com/LittleLucifer1/duck-os/mm/vmm"
	"github.com/LittleLucifer1/duck-os/procfs"
	"github.com/LittleLucifer1/duck-os/process"
	"github.com/LittleLucifer1/duck-os/randgen"
	"github.com/LittleLucifer1/duck-os/sysnum"
	"github.com/LittleLucifer1/duck-os/tmpfs"
	"github.com/LittleLucifer1/duck-os/vfs/dentry"
	"github.com/LittleLucifer1/duck-os/vfs/fdtable"
	"github.com/LittleLucifer1/duck-os/vfs/fs"
)

const errModule = "kmain"

// Config is everything a hosted boot needs that a real boot would instead
// discover from hardware: how many frames the simulated physical arena
// holds, an optional root block device, and a fixed RNG seed for
// reproducible test boots.
type Config struct {
	FrameBase  pmm.Frame
	FrameCount uint32

	// RootDevice is the external ext4 driver backing "/". Left nil, "/"
	// mounts the VFAT-tag EmptyFileSystem shortcut fs.Manager.Mount
	// already implements, the same degenerate root original_source's own
	// mount path falls back to when given no device.
	RootDevice ext4shim.Device

	MemInfo procfs.MemInfo

	// RNGSeed seeds a deterministic Source when non-zero; zero selects
	// SyncSource's own unseeded default, matching randgen's own New()
	// convention.
	RNGSeed uint32
}

// Kernel holds everything Init assembles: the kernel address space every
// user address space's template is captured from, the shared filesystem
// registry, and process 0 — the first Process other components attach
// further processes to (spec.md's Non-goals exclude a scheduler, so
// process 0 is also the only process this boot path itself constructs).
type Kernel struct {
	Allocator   *pmm.Allocator
	AddrSpace   *vmm.AddressSpace
	FSManager   *fs.Manager
	DentryCache *dentry.Cache
	RNG         *randgen.SyncSource
	Proc0       *process.Process
}

// Init sequences the boot order spec.md §2 fixes: frame allocator →
// kernel address space → block device → filesystem registry → process 0.
// An errgroup runs the filesystem-registry mounts concurrently once the
// root mount has succeeded, since /dev, /tmp and /proc have no ordering
// dependency on one another — only on "/" already existing to be mounted
// under.
func Init(ctx context.Context, cfg Config) (*Kernel, error) {
	log := klog.Module(errModule)

	alloc := pmm.NewAllocator(cfg.FrameBase, cfg.FrameCount)
	log.Info("frame allocator ready", "frames", cfg.FrameCount)

	kernelTable, err := sv39.NewTable(alloc)
	if err != nil {
		return nil, err
	}
	template := kernelTable.Capture()

	addrSpace, err := vmm.NewAddressSpace(alloc, template)
	if err != nil {
		return nil, err
	}
	log.Info("kernel address space ready")

	rng := randgen.NewSync()
	if cfg.RNGSeed != 0 {
		rng = randgen.NewSyncSeeded(cfg.RNGSeed)
	}

	cache := dentry.NewCache()
	mgr := fs.NewManager(cache)

	if err := mountRoot(mgr, cfg.RootDevice); err != nil {
		return nil, err
	}
	log.Info("root filesystem mounted")

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { return mountDevFS(mgr, rng) })
	g.Go(func() error { return mountTmpFS(mgr) })
	g.Go(func() error { return mountProcFS(mgr, cfg.MemInfo) })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Info("pseudo-filesystems mounted")

	proc0, err := process.New(fdtable.New(), mgr, cache, rng)
	if err != nil {
		return nil, err
	}
	proc0.SetAllocator(alloc)
	log.Info("process 0 ready")

	return &Kernel{
		Allocator:   alloc,
		AddrSpace:   addrSpace,
		FSManager:   mgr,
		DentryCache: cache,
		RNG:         rng,
		Proc0:       proc0,
	}, nil
}

func mountRoot(mgr *fs.Manager, dev ext4shim.Device) error {
	if dev == nil {
		return mgr.Mount("/", fs.VFAT, 0, nil)
	}
	return mgr.Mount("/", fs.EXT4, 0, func() (fs.FileSystem, error) {
		return ext4shim.Mount(dev)
	})
}

func mountDevFS(mgr *fs.Manager, rng *randgen.SyncSource) error {
	return mgr.Mount("/dev", fs.DevFs, 0, func() (fs.FileSystem, error) {
		return devfs.New(rng)
	})
}

func mountTmpFS(mgr *fs.Manager) error {
	return mgr.Mount("/tmp", fs.TmpFs, 0, func() (fs.FileSystem, error) {
		return tmpfs.New(), nil
	})
}

func mountProcFS(mgr *fs.Manager, info procfs.MemInfo) error {
	return mgr.Mount("/proc", fs.ProcFs, sysnum.MSNoatime, func() (fs.FileSystem, error) {
		return procfs.New(info, mgr)
	})
}

// Run is the hosted equivalent of the teacher's Kmain entry point: it
// boots, then blocks until ctx is cancelled. Init failing is the one
// invariant violation reaching this top-level function, and Run panics on
// it rather than returning the error.
func Run(ctx context.Context, cfg Config) (*Kernel, error) {
	k, err := Init(ctx, cfg)
	if err != nil {
		panic(err)
	}
	<-ctx.Done()
	return k, nil
}

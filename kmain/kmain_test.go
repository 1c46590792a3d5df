package kmain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LittleLucifer1/duck-os/mm/pmm"
	"github.com/LittleLucifer1/duck-os/procfs"
	"github.com/LittleLucifer1/duck-os/vfs/fs"
)

func testConfig() Config {
	return Config{
		FrameBase:  pmm.Frame(0),
		FrameCount: 4096,
		RootDevice: nil, // exercises the VFAT-no-device shortcut
		MemInfo:    procfs.MemInfo{TotalMem: 16 << 20, FreeMem: 16 << 20},
		RNGSeed:    0xC0FFEE,
	}
}

func TestInitBootsWithNoRootDevice(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	k, err := Init(ctx, testConfig())
	require.NoError(t, err)
	require.NotNil(t, k.Allocator)
	require.NotNil(t, k.AddrSpace)
	require.NotNil(t, k.FSManager)
	require.NotNil(t, k.DentryCache)
	require.NotNil(t, k.RNG)
	require.NotNil(t, k.Proc0)

	mounts := k.FSManager.Mounts()
	seen := map[fs.Type]bool{}
	for _, m := range mounts {
		seen[m.Type] = true
	}
	require.True(t, seen[fs.VFAT], "root should have mounted the VFAT-no-device shortcut")
	require.True(t, seen[fs.DevFs])
	require.True(t, seen[fs.TmpFs])
	require.True(t, seen[fs.ProcFs])
}

func TestInitIsDeterministicForAFixedSeed(t *testing.T) {
	ctx := context.Background()

	k1, err := Init(ctx, testConfig())
	require.NoError(t, err)
	k2, err := Init(ctx, testConfig())
	require.NoError(t, err)

	b1 := make([]byte, 32)
	b2 := make([]byte, 32)
	_, err = k1.RNG.Read(b1)
	require.NoError(t, err)
	_, err = k2.RNG.Read(b2)
	require.NoError(t, err)
	require.Equal(t, b1, b2, "the same RNGSeed should reproduce the same byte stream across boots")
}

func TestRunPanicsWhenInitFails(t *testing.T) {
	cfg := testConfig()
	cfg.FrameCount = 0 // too small for the kernel page table to allocate from

	require.Panics(t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, _ = Run(ctx, cfg)
	})
}

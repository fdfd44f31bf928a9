package security

import (
	"regexp"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexFingerprint = regexp.MustCompile(`^[0-9a-f]{32}$`)

func fixedFacts() HostFacts {
	return HostFacts{
		Hostname:  "bay-terminal",
		Platform:  "linux",
		Arch:      "amd64",
		CPUModels: []string{"Intel(R) Core(TM) i5", "Intel(R) Core(TM) i5"},
		MACs:      []string{"0a:1b:2c:3d:4e:5f"},
	}
}

func TestComputeFingerprintDeterministic(t *testing.T) {
	first := ComputeFingerprint(fixedFacts())
	second := ComputeFingerprint(fixedFacts())

	assert.Equal(t, first, second)
	assert.Regexp(t, hexFingerprint, first)
}

func TestComputeFingerprintSensitiveToEveryFact(t *testing.T) {
	base := ComputeFingerprint(fixedFacts())

	mutations := map[string]func(*HostFacts){
		"hostname": func(f *HostFacts) { f.Hostname = "front-desk" },
		"platform": func(f *HostFacts) { f.Platform = "windows" },
		"arch":     func(f *HostFacts) { f.Arch = "arm64" },
		"cpu":      func(f *HostFacts) { f.CPUModels = f.CPUModels[:1] },
		"mac":      func(f *HostFacts) { f.MACs = []string{"0a:1b:2c:3d:4e:60"} },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			facts := fixedFacts()
			mutate(&facts)
			assert.NotEqual(t, base, ComputeFingerprint(facts))
		})
	}
}

func TestComputeFingerprintWithoutInterfaces(t *testing.T) {
	facts := fixedFacts()
	facts.MACs = nil

	fp := ComputeFingerprint(facts)
	assert.Regexp(t, hexFingerprint, fp)
	assert.Equal(t, fp, ComputeFingerprint(facts))
}

func TestFingerprintManagerCaches(t *testing.T) {
	var calls int32
	fm := NewFingerprintManagerWithCollector(func() HostFacts {
		atomic.AddInt32(&calls, 1)
		return fixedFacts()
	}, nil)

	first := fm.Fingerprint()
	second := fm.Fingerprint()
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	fm.ClearCache()
	assert.Equal(t, first, fm.Fingerprint())
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFingerprintManagerReturnsCopies(t *testing.T) {
	fm := NewFingerprintManagerWithCollector(fixedFacts, nil)

	fp := fm.Generate()
	fp.Fingerprint = "tampered"

	assert.NotEqual(t, "tampered", fm.Generate().Fingerprint)
}

func TestLocalFingerprintDeterministic(t *testing.T) {
	first := ComputeFingerprint(CollectHostFacts())
	second := ComputeFingerprint(CollectHostFacts())

	assert.Equal(t, first, second)
	assert.Regexp(t, hexFingerprint, first)
}

func TestCollectHostFacts(t *testing.T) {
	facts := CollectHostFacts()

	assert.Equal(t, runtime.GOOS, facts.Platform)
	assert.Equal(t, runtime.GOARCH, facts.Arch)
	assert.NotEmpty(t, facts.CPUModels)
	assert.IsNonDecreasing(t, facts.MACs)
	for _, mac := range facts.MACs {
		assert.NotEqual(t, zeroMAC, mac)
	}
}

func TestParseCPUInfo(t *testing.T) {
	data := []byte(`processor	: 0
model name	: AMD Ryzen 5 5600X
flags		: fpu vme

processor	: 1
model name	: AMD Ryzen 5 5600X
`)

	models := parseCPUInfo(data)
	require.Len(t, models, 2)
	assert.Equal(t, "AMD Ryzen 5 5600X", models[0])
	assert.Empty(t, parseCPUInfo([]byte("garbage")))
}

func TestDeviceFingerprintString(t *testing.T) {
	fm := NewFingerprintManagerWithCollector(fixedFacts, nil)
	s := fm.Generate().String()
	assert.Contains(t, s, "linux/amd64")
	assert.NotContains(t, s, "0a:1b")
}

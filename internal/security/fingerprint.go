package security

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// FingerprintLength is the number of hex characters kept from the digest.
const FingerprintLength = 32

const zeroMAC = "00:00:00:00:00:00"

// HostFacts are the local OS and hardware facts a fingerprint is derived from.
type HostFacts struct {
	Hostname  string   `json:"hostname"`
	Platform  string   `json:"platform"`
	Arch      string   `json:"arch"`
	CPUModels []string `json:"cpu_models"`
	MACs      []string `json:"macs"`
}

// DeviceFingerprint is a generated fingerprint with the facts behind it.
type DeviceFingerprint struct {
	Fingerprint string    `json:"fingerprint"`
	Facts       HostFacts `json:"facts"`
	GeneratedAt time.Time `json:"generated_at"`
}

// FactCollector reads HostFacts from the running machine.
type FactCollector func() HostFacts

// FingerprintManager generates and caches the machine fingerprint.
type FingerprintManager struct {
	collect FactCollector
	logger  *slog.Logger

	cacheMutex    sync.RWMutex
	cache         *DeviceFingerprint
	cacheExpiry   time.Time
	cacheDuration time.Duration
}

// NewFingerprintManager creates a fingerprint manager reading the local host.
func NewFingerprintManager(logger *slog.Logger) *FingerprintManager {
	return NewFingerprintManagerWithCollector(CollectHostFacts, logger)
}

// NewFingerprintManagerWithCollector uses collect instead of the OS.
func NewFingerprintManagerWithCollector(collect FactCollector, logger *slog.Logger) *FingerprintManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &FingerprintManager{
		collect:       collect,
		logger:        logger.With("component", "fingerprint"),
		cacheDuration: time.Hour,
	}
}

// Fingerprint returns the fingerprint string. It never fails: facts that
// cannot be read contribute an empty value.
func (fm *FingerprintManager) Fingerprint() string {
	return fm.Generate().Fingerprint
}

// Generate returns the current fingerprint, reusing a cached one for up to
// an hour.
func (fm *FingerprintManager) Generate() *DeviceFingerprint {
	fm.cacheMutex.RLock()
	if fm.cache != nil && time.Now().Before(fm.cacheExpiry) {
		cached := *fm.cache
		fm.cacheMutex.RUnlock()
		return &cached
	}
	fm.cacheMutex.RUnlock()

	start := time.Now()
	facts := fm.collect()
	fp := &DeviceFingerprint{
		Fingerprint: ComputeFingerprint(facts),
		Facts:       facts,
		GeneratedAt: time.Now(),
	}

	fm.cacheMutex.Lock()
	fm.cache = fp
	fm.cacheExpiry = time.Now().Add(fm.cacheDuration)
	fm.cacheMutex.Unlock()

	if len(facts.MACs) == 0 {
		fm.logger.Warn("No usable network interface for fingerprint")
	}
	fm.logger.Debug("Device fingerprint generated",
		slog.String("fingerprint", fp.Fingerprint),
		slog.String("hostname", facts.Hostname),
		slog.Int("cpu_count", len(facts.CPUModels)),
		slog.Int("mac_count", len(facts.MACs)),
		slog.Duration("generation_time", time.Since(start)),
	)

	out := *fp
	return &out
}

// ClearCache clears the cached fingerprint
func (fm *FingerprintManager) ClearCache() {
	fm.cacheMutex.Lock()
	defer fm.cacheMutex.Unlock()

	fm.cache = nil
	fm.cacheExpiry = time.Time{}
}

// ComputeFingerprint hashes facts with SHA-256 and keeps the first
// FingerprintLength hex characters.
func ComputeFingerprint(facts HostFacts) string {
	factors := []string{
		facts.Hostname,
		facts.Platform,
		facts.Arch,
		strings.Join(facts.CPUModels, ","),
		strings.Join(facts.MACs, ","),
	}

	hash := sha256.Sum256([]byte(strings.Join(factors, "|")))
	return hex.EncodeToString(hash[:])[:FingerprintLength]
}

// CollectHostFacts reads the facts of the local machine.
func CollectHostFacts() HostFacts {
	return HostFacts{
		Hostname:  Hostname(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
		CPUModels: cpuModels(),
		MACs:      macAddresses(),
	}
}

// Hostname returns the lowercased host name, or "" when unavailable.
func Hostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(hostname))
}

// macAddresses returns the sorted hardware addresses of non-loopback
// interfaces. Sorting keeps the result independent of enumeration order.
func macAddresses() []string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var macs []string
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		mac := strings.ToLower(iface.HardwareAddr.String())
		if mac == "" || mac == zeroMAC {
			continue
		}
		if _, dup := seen[mac]; dup {
			continue
		}
		seen[mac] = struct{}{}
		macs = append(macs, mac)
	}
	sort.Strings(macs)
	return macs
}

// cpuModels lists one model string per logical CPU.
func cpuModels() []string {
	if runtime.GOOS == "linux" {
		if data, err := os.ReadFile("/proc/cpuinfo"); err == nil {
			if models := parseCPUInfo(data); len(models) > 0 {
				return models
			}
		}
	}

	model := runtime.GOARCH
	if id := os.Getenv("PROCESSOR_IDENTIFIER"); runtime.GOOS == "windows" && id != "" {
		model = id
	}

	models := make([]string, runtime.NumCPU())
	for i := range models {
		models[i] = model
	}
	return models
}

func parseCPUInfo(data []byte) []string {
	var models []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "model name", "Model", "cpu model":
			models = append(models, strings.TrimSpace(value))
		}
	}
	return models
}

// String implements fmt.Stringer without exposing the raw facts.
func (d *DeviceFingerprint) String() string {
	return fmt.Sprintf("%s (%s/%s)", d.Fingerprint, d.Facts.Platform, d.Facts.Arch)
}

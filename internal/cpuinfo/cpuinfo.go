// Package cpuinfo detects the vector instruction set of the host and derives
// the lane-group width used by the parallel row scanner.
//
// Detection runs once at init. ROWQUANT_SIMD overrides the choice when the
// named ISA is actually available.
package cpuinfo

import (
	"os"
	"runtime"
	"strings"
)

// EnvOverride names the environment variable that forces an ISA.
const EnvOverride = "ROWQUANT_SIMD"

// ISA represents a SIMD instruction set architecture.
type ISA uint8

const (
	// Generic is the portable fallback.
	Generic ISA = iota
	// NEON is ARM64 Advanced SIMD (128-bit).
	NEON
	// SVE2 is ARM64 scalable vectors.
	SVE2
	// AVX2 is x86-64 AVX2 with FMA (256-bit).
	AVX2
	// AVX512 is x86-64 AVX-512 F+BW (512-bit).
	AVX512
)

func (i ISA) String() string {
	switch i {
	case Generic:
		return "generic"
	case NEON:
		return "neon"
	case SVE2:
		return "sve2"
	case AVX2:
		return "avx2"
	case AVX512:
		return "avx512"
	default:
		return "unknown"
	}
}

// ParseISA parses a case-insensitive ISA name.
func ParseISA(s string) (ISA, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generic":
		return Generic, true
	case "neon":
		return NEON, true
	case "sve2":
		return SVE2, true
	case "avx2":
		return AVX2, true
	case "avx512":
		return AVX512, true
	default:
		return Generic, false
	}
}

// VectorBytes returns the register width of the ISA in bytes.
func (i ISA) VectorBytes() int {
	switch i {
	case AVX512:
		return 64
	case AVX2:
		return 32
	case NEON, SVE2:
		// SVE2 is scalable; 128 bits is the architectural minimum.
		return 16
	default:
		return 16
	}
}

// Float32Lanes returns how many float32 values fit one register.
func (i ISA) Float32Lanes() int {
	return i.VectorBytes() / 4
}

// MaxGroupWidth bounds lane groups regardless of ISA.
const MaxGroupWidth = 64

// GroupWidth returns the default lane-group width: two registers' worth of
// float32 lanes so the min and max chains can interleave.
func (i ISA) GroupWidth() int {
	return min(2*i.Float32Lanes(), MaxGroupWidth)
}

var (
	activeISA   ISA
	hasOverride bool

	hasASIMD    bool
	hasSVE2     bool
	hasAVX2     bool
	hasAVX512F  bool
	hasAVX512BW bool
)

// initCapabilities runs after the platform init has filled the feature flags.
func initCapabilities() {
	if override := os.Getenv(EnvOverride); override != "" {
		if isa, ok := ParseISA(override); ok && Available(isa) {
			hasOverride = true
			activeISA = isa
			return
		}
	}
	activeISA = best()
}

// Available reports whether isa can run on this CPU.
func Available(isa ISA) bool {
	switch isa {
	case Generic:
		return true
	case NEON:
		return hasASIMD
	case SVE2:
		return hasSVE2
	case AVX2:
		return hasAVX2
	case AVX512:
		return hasAVX512F && hasAVX512BW
	default:
		return false
	}
}

func best() ISA {
	switch runtime.GOARCH {
	case "arm64":
		// Apple silicon has no native SVE2.
		if hasSVE2 && runtime.GOOS != "darwin" {
			return SVE2
		}
		if hasASIMD {
			return NEON
		}
	case "amd64":
		if hasAVX512F && hasAVX512BW {
			return AVX512
		}
		if hasAVX2 {
			return AVX2
		}
	}
	return Generic
}

// Active returns the selected ISA.
func Active() ISA {
	return activeISA
}

// IsOverridden reports whether ROWQUANT_SIMD selected the active ISA.
func IsOverridden() bool {
	return hasOverride
}

package sampler

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// RandomSource fills u with independent uniform draws in [0,1).
// The sampler never owns a concrete generator; tests substitute fixed sequences.
type RandomSource func(u []float64)

// UniformSource adapts a *rand.Rand into a RandomSource.
func UniformSource(rng *rand.Rand) RandomSource {
	return func(u []float64) {
		for i := range u {
			u[i] = rng.Float64()
		}
	}
}

// === SimulationKey ===

// SimulationKey identifies a reproducible sampling run. Two runs with the
// same key, configuration and integrand produce bit-for-bit identical state.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemSampler is the stream feeding a single-process sampler.
	// Uses the master seed directly so --seed reproduces the stream as given.
	SubsystemSampler = "sampler"

	// SubsystemCheck is the stream of the driver's internal generator check.
	SubsystemCheck = "check"

	// SubsystemFixed supplies the fixed coordinates of the internal check.
	SubsystemFixed = "fixed"
)

// SubsystemWorker returns the subsystem name for pool worker N.
func SubsystemWorker(id int) string {
	return fmt.Sprintf("worker_%d", id)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem,
// so parallel workers draw independent streams derived from one key.
//
// Derivation formula:
//   - For SubsystemSampler: uses masterSeed directly
//   - For all other subsystems: masterSeed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. Derive every stream before fanning out.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same name always returns the same cached *rand.Rand. Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	derivedSeed := int64(p.key)
	if name != SubsystemSampler {
		derivedSeed ^= fnv1a64(name)
	}

	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// Source returns the named subsystem's stream as a RandomSource.
func (p *PartitionedRNG) Source(name string) RandomSource {
	return UniformSource(p.ForSubsystem(name))
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

package sampler

import (
	"math"
	"math/rand"
	"testing"
)

// === SimulationKey Tests ===

func TestSimulationKey_Creation(t *testing.T) {
	tests := []struct {
		name string
		seed int64
	}{
		{"positive seed", 42},
		{"zero seed", 0},
		{"negative seed", -1},
		{"max int64", math.MaxInt64},
		{"min int64", math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewSimulationKey(tt.seed)
			if int64(key) != tt.seed {
				t.Errorf("NewSimulationKey(%d) = %d, want %d", tt.seed, key, tt.seed)
			}
		})
	}
}

// === PartitionedRNG Tests ===

func TestPartitionedRNG_DeterministicDerivation(t *testing.T) {
	// Same key+name produces same sequence
	rng1 := NewPartitionedRNG(NewSimulationKey(42))
	rng2 := NewPartitionedRNG(NewSimulationKey(42))

	for i := 0; i < 3; i++ {
		v1 := rng1.ForSubsystem(SubsystemWorker(1)).Float64()
		v2 := rng2.ForSubsystem(SubsystemWorker(1)).Float64()
		if v1 != v2 {
			t.Errorf("Value %d: got %v and %v, want identical", i, v1, v2)
		}
	}
}

func TestPartitionedRNG_WorkerIsolation(t *testing.T) {
	// Drawing from worker 0 doesn't affect worker 1
	rngA := NewPartitionedRNG(NewSimulationKey(42))
	rngB := NewPartitionedRNG(NewSimulationKey(42))

	for i := 0; i < 10; i++ {
		rngA.ForSubsystem(SubsystemWorker(0)).Float64()
	}
	aFirst := rngA.ForSubsystem(SubsystemWorker(1)).Float64()
	bFirst := rngB.ForSubsystem(SubsystemWorker(1)).Float64()

	if aFirst != bFirst {
		t.Errorf("worker 1 first value = %v, want %v (isolation broken)", aFirst, bFirst)
	}
}

func TestPartitionedRNG_DistinctWorkerStreams(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(42))
	seen := make(map[float64]int)
	for id := 0; id < 16; id++ {
		v := rng.ForSubsystem(SubsystemWorker(id)).Float64()
		if prev, ok := seen[v]; ok {
			t.Errorf("workers %d and %d start with the same value %v", prev, id, v)
		}
		seen[v] = id
	}
}

func TestPartitionedRNG_SamplerUsesMasterSeed(t *testing.T) {
	// "sampler" subsystem uses the master seed directly
	seed := int64(42)
	rng := NewPartitionedRNG(NewSimulationKey(seed))
	samplerRNG := rng.ForSubsystem(SubsystemSampler)
	directRNG := rand.New(rand.NewSource(seed))

	for i := 0; i < 10; i++ {
		got := samplerRNG.Float64()
		want := directRNG.Float64()
		if got != want {
			t.Errorf("Value %d: sampler RNG = %v, direct RNG = %v", i, got, want)
		}
	}
}

func TestPartitionedRNG_CachesInstance(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(42))

	if rng.ForSubsystem(SubsystemCheck) != rng.ForSubsystem(SubsystemCheck) {
		t.Error("ForSubsystem returned different instances for same name")
	}
}

func TestPartitionedRNG_Key(t *testing.T) {
	seed := int64(12345)
	rng := NewPartitionedRNG(NewSimulationKey(seed))

	if rng.Key() != SimulationKey(seed) {
		t.Errorf("Key() = %v, want %v", rng.Key(), seed)
	}
}

func TestPartitionedRNG_LazyInitialization(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(42))

	if len(rng.subsystems) != 0 {
		t.Errorf("New PartitionedRNG has %d subsystems, want 0", len(rng.subsystems))
	}
	rng.Source(SubsystemSampler)
	if len(rng.subsystems) != 1 {
		t.Errorf("After Source: %d subsystems, want 1", len(rng.subsystems))
	}
}

func TestUniformSource_FillsUnitInterval(t *testing.T) {
	src := UniformSource(rand.New(rand.NewSource(7)))
	u := make([]float64, 1000)
	src(u)
	for i, v := range u {
		if v < 0 || v >= 1 {
			t.Fatalf("u[%d] = %v, want [0, 1)", i, v)
		}
	}
}

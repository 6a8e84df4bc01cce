package bytecode

import "github.com/skink-lang/skink/liveness"

// ExecutableCode is the linked view of a code block needed to compute
// liveness: instruction access plus the identity link back to the
// unlinked block it was created from.
type ExecutableCode interface {
	liveness.Target

	// Unlinked returns the unlinked code block this executable was
	// linked from.
	Unlinked() *Code
}

// LivenessAnalysis returns the liveness analysis for this block,
// computing it on first use. exec must be linked from this block; any
// other executable panics. Every caller receives the same pointer.
func (c *Code) LivenessAnalysis(exec ExecutableCode) *liveness.Analysis {
	if a := c.livenessResult.Load(); a != nil {
		return a
	}
	return c.livenessAnalysisSlow(exec)
}

func (c *Code) livenessAnalysisSlow(exec ExecutableCode) *liveness.Analysis {
	if exec.Unlinked() != c {
		panic("bytecode: Code.LivenessAnalysis: executable code is not linked to this code block")
	}

	c.livenessMu.Lock()
	defer c.livenessMu.Unlock()

	if a := c.livenessResult.Load(); a != nil {
		return a
	}
	a := liveness.Compute(exec)
	c.livenessResult.Store(a)
	return a
}

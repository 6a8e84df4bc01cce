// Package bytecode provides immutable representations of compiled Skink code.
//
// This package defines the output of the bytecode generator: unlinked code
// blocks, function templates, and their associated lookup tables. These
// types are created once during compilation and shared safely across
// goroutines and any number of linked instantiations.
//
// # Key Types
//
//   - [Code]: An unlinked code block (program, module, eval or function body)
//   - [FunctionTemplate]: An immutable function template with a shared body
//   - [HandlerInfo]: Describes one exception handler range (value type)
//   - [ExpressionInfo]: Maps an instruction offset to a source range
//   - [Builder]: The generator-facing constructor for code blocks
//
// # Immutability Guarantees
//
// A Code and its tables never change after construction. The only mutable
// state is internally synchronized bookkeeping: the lazily-computed liveness
// analysis, the collection age counter, and the optimization tri-state. In
// particular:
//
//   - No mutation methods exist on any table
//   - All fields are unexported
//   - Constructors copy input slices to prevent caller mutation
//   - Accessors return values, copies, or immutable pointers
//
// Index-based access is used for all collections:
//
//	// Correct: index-based access
//	code.ConstantAt(i)
//	code.ExceptionHandlerAt(j)
//	code.ExpressionInfoAt(k)
//
// # Lookup Semantics
//
// Out-of-range instruction offsets and missing out-of-line jump entries are
// caller bugs and panic. Lookups with a defined empty answer return it
// explicitly: an empty expression table yields the zero [ExpressionRange],
// and a block without handlers yields (zero, false) from HandlerForOffset.
//
// # Package Dependencies
//
// This package depends on [github.com/skink-lang/skink/op] for instruction
// encoding, [github.com/skink-lang/skink/liveness] for the analysis it
// caches, and [github.com/skink-lang/skink/heap] for the collector
// visitation contract. Constants are stored as []any and converted to
// runtime values at link time.
//
// # Usage
//
// The bytecode generator produces a Code through a Builder:
//
//	b := bytecode.NewBuilder(bytecode.BuilderParams{
//	    Name: "main",
//	    Kind: bytecode.GlobalCode,
//	})
//	local := b.AddLocal("x")
//	b.Emit(op.Nil)
//	b.Emit(op.StoreFast, op.Code(local))
//	b.Emit(op.ReturnValue)
//	code, err := b.Finish()
//	if err != nil {
//	    return err
//	}
//
// The resulting block can be linked for execution, serialized for caching,
// or inspected for debugging and analysis.
package bytecode

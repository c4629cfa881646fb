// Package inject turns source text into machine code fixed to one load
// address, writes it into a target and calls it.
//
// # Pipeline
//
// Every build follows the same steps inside a toolchain.Workspace:
//
//  1. Render the source frame (templates/assembly.s.tmpl or
//     templates/expression.cpp.tmpl) and the link layout for the address
//  2. Run the compiler driver to assemble or compile and link
//  3. Run objcopy to extract the flat binary
//  4. Decode the binary to little-endian words
//  5. Poke the words in ascending address order
//
// Steps 1 to 4 must all succeed before step 5 begins, so a toolchain failure
// never leaves partially written code on the target. A poke failure during
// step 5 is not rolled back.
//
// The linked image is valid only at the address it was built for.
//
// # Calling convention
//
// Injected code receives one word in r0 and returns one word in r0. Thumb
// code is entered with the low bit of the branch address set.
//
// # Example
//
//	inj := inject.New(toolchain.DefaultConfig(), nil, logger)
//	v, err := inj.Evaluate(ctx, dev, "multiply(arg, 5)",
//	    3, "int multiply(int a, int b) { return a * b; }",
//	    inject.DefaultScratchAddress)
package inject

// Package toolchain drives the external GNU Arm Embedded toolchain.
//
// It owns the three concerns every code-generation step shares:
//
//   - Config: executable paths and architecture flags, built once and passed
//     to every component
//   - Workspace: uniquely named temporary artifacts for one operation, removed
//     on every exit path unless retention is requested
//   - Invoker: runs a tool as a subprocess and reports failures as typed
//     errors (PrerequisiteError, ExecutionError)
//
// It also synthesizes the link layout that pins an image to one absolute
// load address:
//
//	MEMORY {
//	    PATCH (rx) : ORIGIN = 0x01fffda0, LENGTH = 0x200000
//	}
//
//	SECTIONS {
//	    .text : {
//	        *(.first) *(.text) *(.rodata)
//	        . = ALIGN(4);
//	    } > PATCH
//	}
//
// Typical use:
//
//	ws := toolchain.NewWorkspace(config, logger, ".s", ".o", ".bin", ".ld")
//	defer ws.Release()
//	if err := toolchain.AssemblyLayout(addr).WriteFile(ws.Path(3)); err != nil {
//	    return err
//	}
//	_, err := toolchain.NewInvoker(logger).Run(ctx, config.CC, "-nostdlib", ...)
//
// Nothing here imposes a timeout; callers bound subprocesses through ctx.
package toolchain

package gdb

import (
	"context"
	"fmt"

	"github.com/muurk/coastermelt/internal/gdb/scripts"
	"github.com/muurk/coastermelt/internal/target"
	"go.uber.org/zap"
)

// Target drives a JTAG-attached device through GDB and OpenOCD. Each
// operation is one GDB session, so operations on one Target are strictly
// sequential in call order.
type Target struct {
	executor *Executor
	logger   *zap.Logger
}

var _ target.Device = (*Target)(nil)

// NewTarget creates a JTAG target.
func NewTarget(config Config, logger *zap.Logger) *Target {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Target{
		executor: NewExecutor(config, logger),
		logger:   logger,
	}
}

func (t *Target) run(ctx context.Context, address uint32, script scripts.Script) (*scripts.Result, error) {
	result, err := t.executor.Execute(ctx, script)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		opErr := &OperationError{
			Script:  script.Name(),
			Address: address,
			Output:  result.RawOutput,
			Steps:   result.Steps,
			Err:     result.Error,
		}
		if result.FailedSteps() == 0 && result.Error != nil {
			opErr.Steps = scripts.MarkStopped(result.Steps, result.Error.Error())
		}
		return nil, opErr
	}
	return result, nil
}

// Poke implements target.Target. The word is read back and compared.
func (t *Target) Poke(ctx context.Context, address, word uint32) error {
	cfg := t.executor.Config()
	_, err := t.run(ctx, address, scripts.NewPokeWordScript(cfg.OpenOCDHost, cfg.OpenOCDPort, address, word))
	if err != nil {
		return err
	}
	t.logger.Debug("poke",
		zap.String("address", fmt.Sprintf("0x%08x", address)),
		zap.String("word", fmt.Sprintf("0x%08x", word)),
	)
	return nil
}

// Blx implements target.Target. address is passed to GDB unchanged, so its
// low bit selects the instruction set.
func (t *Target) Blx(ctx context.Context, address, arg uint32) (uint32, error) {
	cfg := t.executor.Config()
	result, err := t.run(ctx, address, scripts.NewCallFunctionScript(cfg.OpenOCDHost, cfg.OpenOCDPort, address, arg))
	if err != nil {
		return 0, err
	}
	t.logger.Debug("blx",
		zap.String("address", fmt.Sprintf("0x%08x", address)),
		zap.Uint32("arg", arg),
		zap.Uint32("result", result.Word),
		zap.Duration("duration", result.Duration),
	)
	return result.Word, nil
}

// ReadBlock implements target.Reader.
func (t *Target) ReadBlock(ctx context.Context, address uint32, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("negative read size %d", size)
	}
	cfg := t.executor.Config()
	result, err := t.run(ctx, address, scripts.NewReadMemoryScript(cfg.OpenOCDHost, cfg.OpenOCDPort, address, size))
	if err != nil {
		return nil, err
	}
	return result.Bytes, nil
}

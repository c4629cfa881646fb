package sim

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrUndefinedInstruction is returned for encodings the interpreter does
// not implement.
var ErrUndefinedInstruction = errors.New("sim: undefined or unsupported thumb instruction")

// thumbCPU interprets the ARMv4T Thumb instruction set: the sixteen-bit
// formats 1 through 19 minus software interrupts. Memory accesses go straight
// to the owning Device, whose lock is held for the duration of a call.
type thumbCPU struct {
	dev *Device
	r   [16]uint32
	pc  uint32 // address of the executing instruction

	n, z, c, v bool
}

func (c *thumbCPU) step() error {
	c.pc = c.r[15]
	op := c.dev.read16(c.pc)
	c.r[15] = c.pc + 2

	switch {
	case op&0xf800 == 0x1800:
		c.addSubtract(op)
	case op&0xe000 == 0x0000:
		c.shiftImmediate(op)
	case op&0xe000 == 0x2000:
		c.immediate(op)
	case op&0xfc00 == 0x4000:
		c.alu(op)
	case op&0xfc00 == 0x4400:
		return c.hiRegister(op)
	case op&0xf800 == 0x4800:
		rd := (op >> 8) & 7
		c.r[rd] = c.dev.read32(c.literalBase() + uint32(op&0xff)*4)
	case op&0xf200 == 0x5000:
		c.loadStoreRegister(op)
	case op&0xf200 == 0x5200:
		c.loadStoreSigned(op)
	case op&0xe000 == 0x6000:
		c.loadStoreImmediate(op)
	case op&0xf000 == 0x8000:
		rb, rd := (op>>3)&7, op&7
		addr := c.r[rb] + uint32((op>>6)&0x1f)*2
		if op&0x0800 != 0 {
			c.r[rd] = uint32(c.dev.read16(addr))
		} else {
			c.dev.write16(addr, uint16(c.r[rd]))
		}
	case op&0xf000 == 0x9000:
		rd := (op >> 8) & 7
		addr := c.r[13] + uint32(op&0xff)*4
		if op&0x0800 != 0 {
			c.r[rd] = c.dev.read32(addr)
		} else {
			c.dev.write32(addr, c.r[rd])
		}
	case op&0xf000 == 0xa000:
		rd := (op >> 8) & 7
		base := c.literalBase()
		if op&0x0800 != 0 {
			base = c.r[13]
		}
		c.r[rd] = base + uint32(op&0xff)*4
	case op&0xff00 == 0xb000:
		imm := uint32(op&0x7f) * 4
		if op&0x80 != 0 {
			c.r[13] -= imm
		} else {
			c.r[13] += imm
		}
	case op&0xf600 == 0xb400:
		c.pushPop(op)
	case op == 0xbf00:
		// nop
	case op&0xf000 == 0xd000:
		cond := (op >> 8) & 0xf
		if cond >= 0xe {
			return fmt.Errorf("0x%04x at 0x%08x: %w", op, c.pc, ErrUndefinedInstruction)
		}
		if c.condition(cond) {
			c.r[15] = c.pc + 4 + uint32(int32(int8(op&0xff))*2)
		}
	case op&0xf800 == 0xe000:
		off := int32(uint32(op&0x7ff)<<21) >> 20
		c.r[15] = c.pc + 4 + uint32(off)
	case op&0xf800 == 0xf000:
		off := int32(uint32(op&0x7ff)<<21) >> 9
		c.r[14] = c.pc + 4 + uint32(off)
	case op&0xf800 == 0xf800:
		next := c.pc + 2
		c.r[15] = c.r[14] + uint32(op&0x7ff)<<1
		c.r[14] = next | 1
	default:
		return fmt.Errorf("0x%04x at 0x%08x: %w", op, c.pc, ErrUndefinedInstruction)
	}
	return nil
}

// reg reads a register as an instruction sees it; r15 reads as the
// instruction address plus four.
func (c *thumbCPU) reg(i uint16) uint32 {
	if i == 15 {
		return c.pc + 4
	}
	return c.r[i]
}

func (c *thumbCPU) literalBase() uint32 {
	return (c.pc + 4) &^ 3
}

func (c *thumbCPU) setNZ(v uint32) {
	c.n = v>>31 != 0
	c.z = v == 0
}

func (c *thumbCPU) addWithCarry(a, b, carry uint32) uint32 {
	sum := uint64(a) + uint64(b) + uint64(carry)
	res := uint32(sum)
	c.c = sum>>32 != 0
	c.v = (^(a^b)&(a^res))>>31 != 0
	c.setNZ(res)
	return res
}

func (c *thumbCPU) sub(a, b uint32) uint32 {
	return c.addWithCarry(a, ^b, 1)
}

func (c *thumbCPU) carryIn() uint32 {
	if c.c {
		return 1
	}
	return 0
}

func (c *thumbCPU) condition(cond uint16) bool {
	switch cond {
	case 0x0:
		return c.z
	case 0x1:
		return !c.z
	case 0x2:
		return c.c
	case 0x3:
		return !c.c
	case 0x4:
		return c.n
	case 0x5:
		return !c.n
	case 0x6:
		return c.v
	case 0x7:
		return !c.v
	case 0x8:
		return c.c && !c.z
	case 0x9:
		return !c.c || c.z
	case 0xa:
		return c.n == c.v
	case 0xb:
		return c.n != c.v
	case 0xc:
		return !c.z && c.n == c.v
	case 0xd:
		return c.z || c.n != c.v
	}
	return true
}

// format 1
func (c *thumbCPU) shiftImmediate(op uint16) {
	amount := uint32((op >> 6) & 0x1f)
	rs, rd := (op>>3)&7, op&7
	v := c.r[rs]

	switch (op >> 11) & 3 {
	case 0:
		v = c.shiftLeft(v, amount)
	case 1:
		if amount == 0 {
			amount = 32
		}
		v = c.shiftRight(v, amount)
	case 2:
		if amount == 0 {
			amount = 32
		}
		v = c.shiftArith(v, amount)
	}
	c.r[rd] = v
	c.setNZ(v)
}

// format 2
func (c *thumbCPU) addSubtract(op uint16) {
	field := (op >> 6) & 7
	rs, rd := (op>>3)&7, op&7
	operand := c.r[field]
	if op&0x0400 != 0 {
		operand = uint32(field)
	}
	if op&0x0200 != 0 {
		c.r[rd] = c.sub(c.r[rs], operand)
	} else {
		c.r[rd] = c.addWithCarry(c.r[rs], operand, 0)
	}
}

// format 3
func (c *thumbCPU) immediate(op uint16) {
	rd := (op >> 8) & 7
	imm := uint32(op & 0xff)

	switch (op >> 11) & 3 {
	case 0:
		c.r[rd] = imm
		c.setNZ(imm)
	case 1:
		c.sub(c.r[rd], imm)
	case 2:
		c.r[rd] = c.addWithCarry(c.r[rd], imm, 0)
	case 3:
		c.r[rd] = c.sub(c.r[rd], imm)
	}
}

// format 4
func (c *thumbCPU) alu(op uint16) {
	rs, rd := (op>>3)&7, op&7
	a, b := c.r[rd], c.r[rs]

	switch (op >> 6) & 0xf {
	case 0x0:
		c.r[rd] = a & b
		c.setNZ(c.r[rd])
	case 0x1:
		c.r[rd] = a ^ b
		c.setNZ(c.r[rd])
	case 0x2:
		c.r[rd] = c.shiftLeft(a, b&0xff)
		c.setNZ(c.r[rd])
	case 0x3:
		c.r[rd] = c.shiftRight(a, b&0xff)
		c.setNZ(c.r[rd])
	case 0x4:
		c.r[rd] = c.shiftArith(a, b&0xff)
		c.setNZ(c.r[rd])
	case 0x5:
		c.r[rd] = c.addWithCarry(a, b, c.carryIn())
	case 0x6:
		c.r[rd] = c.addWithCarry(a, ^b, c.carryIn())
	case 0x7:
		amount := b & 0xff
		if amount != 0 {
			a = bits.RotateLeft32(a, -int(amount&31))
			c.c = a>>31 != 0
		}
		c.r[rd] = a
		c.setNZ(a)
	case 0x8:
		c.setNZ(a & b)
	case 0x9:
		c.r[rd] = c.sub(0, b)
	case 0xa:
		c.sub(a, b)
	case 0xb:
		c.addWithCarry(a, b, 0)
	case 0xc:
		c.r[rd] = a | b
		c.setNZ(c.r[rd])
	case 0xd:
		c.r[rd] = a * b
		c.setNZ(c.r[rd])
	case 0xe:
		c.r[rd] = a &^ b
		c.setNZ(c.r[rd])
	case 0xf:
		c.r[rd] = ^b
		c.setNZ(c.r[rd])
	}
}

// format 5
func (c *thumbCPU) hiRegister(op uint16) error {
	rs := (op>>3)&7 | (op>>3)&8
	rd := op&7 | (op>>4)&8

	switch (op >> 8) & 3 {
	case 0:
		c.writeReg(rd, c.reg(rd)+c.reg(rs))
	case 1:
		c.sub(c.reg(rd), c.reg(rs))
	case 2:
		c.writeReg(rd, c.reg(rs))
	case 3:
		dest := c.reg(rs)
		if dest&1 == 0 {
			return fmt.Errorf("bx to 0x%08x: %w", dest, ErrModeNotSimulated)
		}
		c.r[15] = dest &^ 1
	}
	return nil
}

func (c *thumbCPU) writeReg(rd uint16, v uint32) {
	if rd == 15 {
		v &^= 1
	}
	c.r[rd] = v
}

// format 7
func (c *thumbCPU) loadStoreRegister(op uint16) {
	ro, rb, rd := (op>>6)&7, (op>>3)&7, op&7
	addr := c.r[rb] + c.r[ro]

	switch (op >> 10) & 3 {
	case 0:
		c.dev.write32(addr, c.r[rd])
	case 1:
		c.dev.write8(addr, uint8(c.r[rd]))
	case 2:
		c.r[rd] = c.dev.read32(addr)
	case 3:
		c.r[rd] = uint32(c.dev.read8(addr))
	}
}

// format 8
func (c *thumbCPU) loadStoreSigned(op uint16) {
	ro, rb, rd := (op>>6)&7, (op>>3)&7, op&7
	addr := c.r[rb] + c.r[ro]

	switch (op >> 10) & 3 {
	case 0:
		c.dev.write16(addr, uint16(c.r[rd]))
	case 1:
		c.r[rd] = uint32(int32(int8(c.dev.read8(addr))))
	case 2:
		c.r[rd] = uint32(c.dev.read16(addr))
	case 3:
		c.r[rd] = uint32(int32(int16(c.dev.read16(addr))))
	}
}

// format 9
func (c *thumbCPU) loadStoreImmediate(op uint16) {
	off := uint32((op >> 6) & 0x1f)
	rb, rd := (op>>3)&7, op&7
	byteAccess := op&0x1000 != 0
	load := op&0x0800 != 0

	if !byteAccess {
		off *= 4
	}
	addr := c.r[rb] + off

	switch {
	case load && byteAccess:
		c.r[rd] = uint32(c.dev.read8(addr))
	case load:
		c.r[rd] = c.dev.read32(addr)
	case byteAccess:
		c.dev.write8(addr, uint8(c.r[rd]))
	default:
		c.dev.write32(addr, c.r[rd])
	}
}

// format 14
func (c *thumbCPU) pushPop(op uint16) {
	list := op & 0xff
	extra := op&0x0100 != 0

	if op&0x0800 == 0 {
		count := uint32(bits.OnesCount16(list))
		if extra {
			count++
		}
		c.r[13] -= 4 * count
		addr := c.r[13]
		for i := uint16(0); i < 8; i++ {
			if list&(1<<i) != 0 {
				c.dev.write32(addr, c.r[i])
				addr += 4
			}
		}
		if extra {
			c.dev.write32(addr, c.r[14])
		}
		return
	}

	addr := c.r[13]
	for i := uint16(0); i < 8; i++ {
		if list&(1<<i) != 0 {
			c.r[i] = c.dev.read32(addr)
			addr += 4
		}
	}
	if extra {
		c.r[15] = c.dev.read32(addr) &^ 1
		addr += 4
	}
	c.r[13] = addr
}

func (c *thumbCPU) shiftLeft(v, amount uint32) uint32 {
	switch {
	case amount == 0:
		return v
	case amount < 32:
		c.c = (v>>(32-amount))&1 != 0
		return v << amount
	case amount == 32:
		c.c = v&1 != 0
		return 0
	default:
		c.c = false
		return 0
	}
}

func (c *thumbCPU) shiftRight(v, amount uint32) uint32 {
	switch {
	case amount == 0:
		return v
	case amount < 32:
		c.c = (v>>(amount-1))&1 != 0
		return v >> amount
	case amount == 32:
		c.c = v>>31 != 0
		return 0
	default:
		c.c = false
		return 0
	}
}

func (c *thumbCPU) shiftArith(v, amount uint32) uint32 {
	switch {
	case amount == 0:
		return v
	case amount < 32:
		c.c = (v>>(amount-1))&1 != 0
		return uint32(int32(v) >> amount)
	default:
		c.c = v>>31 != 0
		return uint32(int32(v) >> 31)
	}
}

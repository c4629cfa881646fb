package disasm

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Entry is one decoded instruction.
type Entry struct {
	Address uint32
	Text    string
}

// Listing is a disassembly in ascending address order.
type Listing []Entry

// String renders one "<address>\t<text>" line per entry, address as eight
// lowercase hex digits.
func (l Listing) String() string {
	var sb strings.Builder
	for i, e := range l {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%08x\t%s", e.Address, e.Text)
	}
	return sb.String()
}

// ParseObjdump extracts a listing from objdump --prefix-addresses output.
//
// Line grammar:
//
//	instruction := "0x" hex-address sep remainder
//	hex-address := 1*hexdigit          (objdump prints 8 or 16 digits)
//	sep         := 1*(" " | "\t")
//	remainder   := anything up to end of line (symbol, opcode bytes, mnemonic)
//
// Lines that do not begin with "0x" followed by a valid hex address
// (file headers, section banners, symbol labels) are discarded. Entries are
// returned in the order objdump printed them.
func ParseObjdump(output string) Listing {
	var listing Listing
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "0x") {
			continue
		}

		rest := line[2:]
		end := strings.IndexAny(rest, " \t")
		token := rest
		remainder := ""
		if end >= 0 {
			token = rest[:end]
			remainder = rest[end:]
		}

		address, err := strconv.ParseUint(token, 16, 64)
		if err != nil {
			continue
		}

		listing = append(listing, Entry{
			Address: uint32(address),
			Text:    strings.TrimSpace(remainder),
		})
	}
	return listing
}

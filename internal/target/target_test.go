package target

import "testing"

func TestMode_BranchAddress(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		address uint32
		want    uint32
	}{
		{"thumb sets low bit", Thumb, 0x1fffda0, 0x1fffda1},
		{"thumb already odd", Thumb, 0x1fffda1, 0x1fffda1},
		{"arm bare address", ARM, 0x1fffda0, 0x1fffda0},
		{"arm clears stray bit", ARM, 0x1fffda1, 0x1fffda0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mode.BranchAddress(tt.address); got != tt.want {
				t.Errorf("BranchAddress(0x%08x) = 0x%08x, want 0x%08x", tt.address, got, tt.want)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"thumb", Thumb, false},
		{"THUMB", Thumb, false},
		{" arm ", ARM, false},
		{"a", ARM, false},
		{"mips", Thumb, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestMode_String(t *testing.T) {
	if Thumb.String() != "thumb" {
		t.Errorf("Thumb.String() = %q", Thumb.String())
	}
	if ARM.String() != "arm" {
		t.Errorf("ARM.String() = %q", ARM.String())
	}
	if Mode(7).String() != "mode(7)" {
		t.Errorf("Mode(7).String() = %q", Mode(7).String())
	}
}

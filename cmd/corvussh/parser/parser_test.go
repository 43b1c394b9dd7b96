package parser

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCmd  string
		wantArgs []string
		wantErr  bool
	}{
		{name: "simple command", input: ".help", wantCmd: ".help", wantArgs: []string{}},
		{name: "command with arg", input: ".use people", wantCmd: ".use", wantArgs: []string{"people"}},
		{
			name:     "command with multiple args",
			input:    `.createindex name age unique`,
			wantCmd:  ".createindex",
			wantArgs: []string{"name", "age", "unique"},
		},
		{name: "missing dot prefix", input: "help", wantErr: true},
		{name: "empty command", input: "", wantErr: true},
		{name: "blank command", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) should error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if cmd.Name != tt.wantCmd {
				t.Errorf("Name = %q, want %q", cmd.Name, tt.wantCmd)
			}
			if len(cmd.Args) != len(tt.wantArgs) {
				t.Fatalf("Args = %v, want %v", cmd.Args, tt.wantArgs)
			}
			for i := range tt.wantArgs {
				if cmd.Args[i] != tt.wantArgs[i] {
					t.Errorf("Args[%d] = %q, want %q", i, cmd.Args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestValidateArgs(t *testing.T) {
	cmd := &Command{Name: ".test", Args: []string{"a", "b"}}

	if err := ValidateArgs(cmd, 2); err != nil {
		t.Errorf("ValidateArgs(2) should not error, got %v", err)
	}
	if err := ValidateArgs(cmd, 3); err == nil {
		t.Error("ValidateArgs(3) should error")
	}
}

func TestParseUint64(t *testing.T) {
	tests := []struct {
		input   string
		want    uint64
		wantErr bool
	}{
		{"0", 0, false},
		{"123", 123, false},
		{"18446744073709551615", 18446744073709551615, false},
		{"-1", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseUint64(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseUint64(%q) should error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseUint64(%q) unexpected error: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseUint64(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

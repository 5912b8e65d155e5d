package solana

import "strings"

const instructionPrefix = "Program log: Instruction: "

// Instruction is one program instruction reported in transaction logs.
type Instruction struct {
	Program string // program id that was executing, if known
	Name    string
}

// ParseInstructions extracts "Program log: Instruction: <Name>" entries,
// attributing each to the innermost program invoked at that point.
func ParseInstructions(logs []string) []Instruction {
	var stack []string
	var out []Instruction

	for _, line := range logs {
		switch {
		case strings.HasPrefix(line, instructionPrefix):
			name := strings.TrimSpace(strings.TrimPrefix(line, instructionPrefix))
			if name == "" {
				continue
			}
			ins := Instruction{Name: name}
			if len(stack) > 0 {
				ins.Program = stack[len(stack)-1]
			}
			out = append(out, ins)

		case strings.HasPrefix(line, "Program "):
			fields := strings.Fields(line)
			if len(fields) < 3 {
				continue
			}
			switch {
			case fields[2] == "invoke":
				stack = append(stack, fields[1])
			case fields[2] == "success" || fields[2] == "failed:":
				if len(stack) > 0 && stack[len(stack)-1] == fields[1] {
					stack = stack[:len(stack)-1]
				}
			}
		}
	}
	return out
}

// InstructionsOf keeps only the instructions executed by program.
func InstructionsOf(program string, ins []Instruction) []Instruction {
	var out []Instruction
	for _, i := range ins {
		if i.Program == program {
			out = append(out, i)
		}
	}
	return out
}

// Package programlog extracts emitted event data from transaction log
// messages.
package programlog

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aurora-is-near/stream-events/types"
)

const (
	dataPrefix    = "Program data: "
	programPrefix = "Program "
)

var ErrNoInvocation = errors.New("data logged outside of a program invocation")

// Emitted is one "Program data:" line attributed to the program that was
// executing when it was logged.
type Emitted struct {
	ProgramID types.Pubkey
	// Depth is the invoke depth, 1 for top-level instructions.
	Depth int
	// Line is the index into the log slice.
	Line int
	Data []byte
}

// ParseDataLine returns the bytes of a "Program data: <base64>..." line.
// Several space-separated chunks are concatenated. ok is false for any other
// kind of line.
func ParseDataLine(line string) (data []byte, ok bool, err error) {
	rest, found := strings.CutPrefix(line, dataPrefix)
	if !found {
		return nil, false, nil
	}
	for _, chunk := range strings.Fields(rest) {
		b, err := base64.StdEncoding.DecodeString(chunk)
		if err != nil {
			return nil, true, fmt.Errorf("unable to decode program data: %w", err)
		}
		data = append(data, b...)
	}
	return data, true, nil
}

type invocation struct {
	programID types.Pubkey
	depth     int
}

// ParseLogs walks the log messages of one transaction, tracking the invoke
// stack so each data line is attributed to the program that logged it.
func ParseLogs(logs []string) ([]Emitted, error) {
	var (
		stack   []invocation
		emitted []Emitted
	)

	for i, line := range logs {
		data, isData, err := ParseDataLine(line)
		if isData {
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i, err)
			}
			if len(stack) == 0 {
				return nil, fmt.Errorf("line %d: %w", i, ErrNoInvocation)
			}
			top := stack[len(stack)-1]
			emitted = append(emitted, Emitted{
				ProgramID: top.programID,
				Depth:     top.depth,
				Line:      i,
				Data:      data,
			})
			continue
		}

		rest, ok := strings.CutPrefix(line, programPrefix)
		if !ok {
			continue
		}
		parts := strings.Fields(rest)
		if len(parts) < 2 {
			continue
		}
		switch {
		case parts[1] == "invoke":
			programID, err := types.ParsePubkey(parts[0])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i, err)
			}
			stack = append(stack, invocation{programID: programID, depth: len(stack) + 1})
		case parts[1] == "success" || strings.HasPrefix(parts[1], "failed"):
			// "Program log: success" and friends are not frame exits
			if len(stack) > 0 && stack[len(stack)-1].programID.String() == parts[0] {
				stack = stack[:len(stack)-1]
			}
		}
	}

	return emitted, nil
}

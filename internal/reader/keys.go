// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package reader

import (
	"bytes"

	"github.com/taibuivan/lectern/internal/viewer"
)

const (
	keyEscape    = 0x1b
	keyInterrupt = 0x03
	keyEndOfText = 0x04
)

// keyEvent is one decoded key press.
type keyEvent struct {
	key   viewer.Key
	retry bool
	quit  bool
}

// escapeSequences are the terminal sequences that follow ESC.
var escapeSequences = []struct {
	sequence []byte
	key      viewer.Key
}{
	{[]byte("[D"), viewer.KeyLeft},
	{[]byte("[C"), viewer.KeyRight},
	{[]byte("[5~"), viewer.KeyPageUp},
	{[]byte("[6~"), viewer.KeyPageDown},
	{[]byte("[H"), viewer.KeyHome},
	{[]byte("[1~"), viewer.KeyHome},
	{[]byte("OH"), viewer.KeyHome},
	{[]byte("[F"), viewer.KeyEnd},
	{[]byte("[4~"), viewer.KeyEnd},
	{[]byte("OF"), viewer.KeyEnd},
}

// parseKeys decodes raw terminal input. Unknown keys and escape sequences
// are skipped.
func parseKeys(input []byte) []keyEvent {
	var events []keyEvent

	for i := 0; i < len(input); {
		b := input[i]
		i++

		switch b {
		case keyEscape:
			consumed, key := parseEscape(input[i:])
			i += consumed
			if key != viewer.KeyNone {
				events = append(events, keyEvent{key: key})
			}
		case '+':
			events = append(events, keyEvent{key: viewer.KeyPlus})
		case '=':
			events = append(events, keyEvent{key: viewer.KeyEquals})
		case '-', '_':
			events = append(events, keyEvent{key: viewer.KeyMinus})
		case ' ':
			events = append(events, keyEvent{key: viewer.KeyPageDown})
		case 'f', 'F':
			events = append(events, keyEvent{key: viewer.KeyFullscreen})
		case 'r', 'R':
			events = append(events, keyEvent{retry: true})
		case 'q', 'Q', keyInterrupt, keyEndOfText:
			events = append(events, keyEvent{quit: true})
		}
	}

	return events
}

// parseEscape decodes the bytes after ESC. A lone ESC is the Escape key.
func parseEscape(rest []byte) (consumed int, key viewer.Key) {
	for _, candidate := range escapeSequences {
		if bytes.HasPrefix(rest, candidate.sequence) {
			return len(candidate.sequence), candidate.key
		}
	}

	if len(rest) == 0 || (rest[0] != '[' && rest[0] != 'O') {
		return 0, viewer.KeyEscape
	}

	// Skip an unrecognised sequence up to its final byte
	for n := 1; n < len(rest); n++ {
		if rest[n] >= 0x40 && rest[n] <= 0x7e {
			return n + 1, viewer.KeyNone
		}
	}
	return len(rest), viewer.KeyNone
}

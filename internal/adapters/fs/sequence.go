package fs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const sequenceFileName = "sequence.json"

const sequenceDateLayout = "20060102"

// sequence tracks the last issued sample id. It is persisted atomically
// before the entry it names is committed, so a restart can never re-issue
// an id that may already be known to the receiver. The counter resets at
// UTC date rollover.
type sequence struct {
	Date    string `json:"date"`
	Counter uint64 `json:"counter"`
}

// id formats a sample id: <deviceID>-<YYYYMMDD>-<counter>.
// Lexicographic order of ids equals capture order for a fixed device.
func (s sequence) id(deviceID string) string {
	return fmt.Sprintf("%s-%s-%08d", deviceID, s.Date, s.Counter)
}

// loadSequence reads the persisted sequence, returning a zero value when
// none exists yet.
func loadSequence(path string) (sequence, error) {
	var seq sequence
	if err := readJSON(path, &seq); err != nil {
		if os.IsNotExist(err) {
			return sequence{}, nil
		}
		return sequence{}, err
	}
	return seq, nil
}

// next advances the sequence for the given instant.
func (s sequence) next(now time.Time) sequence {
	today := now.UTC().Format(sequenceDateLayout)
	if s.Date != today {
		return sequence{Date: today, Counter: 1}
	}
	return sequence{Date: s.Date, Counter: s.Counter + 1}
}

// parseIDCounter extracts the date and counter from a sample id issued by
// this device, for sequence recovery when the sequence file is missing.
func parseIDCounter(id, deviceID string) (date string, counter uint64, ok bool) {
	rest, found := strings.CutPrefix(id, deviceID+"-")
	if !found {
		return "", 0, false
	}
	parts := strings.SplitN(rest, "-", 2)
	if len(parts) != 2 {
		return "", 0, false
	}
	n, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return parts[0], n, true
}

package badger

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Key prefixes for different data types
const (
	runRecordPrefix   = "runrec"
	runStartPrefix    = "runrecs"
	epochRecordPrefix = "runep"
)

// makeRunKey generates a key for a run record by ID.
func makeRunKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", runRecordPrefix, id))
}

// makeRunStartKey generates a composite key for the start-time index.
// Format: prefix:timestamp:id
func makeRunStartKey(startedAt time.Time, id string) []byte {
	prefix := []byte(runStartPrefix + ":")
	buf := make([]byte, len(prefix)+8+len(id))
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(startedAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// makeEpochPrefix generates the key prefix shared by every epoch of a run.
// Format: prefix:runID:
func makeEpochPrefix(runID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", epochRecordPrefix, runID))
}

// makeEpochKey generates a composite key for an epoch record.
// Format: prefix:runID:phase:epoch:classifier
func makeEpochKey(runID, phase string, epoch int, classifier string) []byte {
	prefix := makeEpochPrefix(runID)
	buf := make([]byte, 0, len(prefix)+len(phase)+1+4+1+len(classifier))
	buf = append(buf, prefix...)
	buf = append(buf, phase...)
	buf = append(buf, ':')
	// BigEndian keeps epochs in numeric order
	buf = binary.BigEndian.AppendUint32(buf, uint32(epoch))
	buf = append(buf, ':')
	buf = append(buf, classifier...)
	return buf
}

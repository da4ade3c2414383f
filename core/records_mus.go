package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for run-log records. Timestamps are stored as Unix
// microseconds; the zero time is stored as 0.
var (
	IDMUS          = idMUS{}
	MetricsMUS     = metricsMUS{}
	EpochRecordMUS = epochRecordMUS{}
	RunMUS         = runMUS{}
)

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) int {
	return varint.Uint64.Size(uint64(v))
}

type metricsMUS struct{}

func (metricsMUS) Marshal(v Metrics, bs []byte) (n int) {
	n = raw.Float64.Marshal(v.Loss, bs)
	n += raw.Float64.Marshal(v.Accuracy, bs[n:])
	n += varint.Int.Marshal(v.Correct, bs[n:])
	n += varint.Int.Marshal(v.Total, bs[n:])
	n += varint.Int.Marshal(v.SkippedBatches, bs[n:])
	return n
}

func (metricsMUS) Unmarshal(bs []byte) (v Metrics, n int, err error) {
	var n1 int
	v.Loss, n, err = raw.Float64.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Accuracy, n1, err = raw.Float64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Correct, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Total, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SkippedBatches, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	return
}

func (metricsMUS) Size(v Metrics) (size int) {
	size = raw.Float64.Size(v.Loss)
	size += raw.Float64.Size(v.Accuracy)
	size += varint.Int.Size(v.Correct)
	size += varint.Int.Size(v.Total)
	return size + varint.Int.Size(v.SkippedBatches)
}

type epochRecordMUS struct{}

func (epochRecordMUS) Marshal(v EpochRecord, bs []byte) (n int) {
	n = ord.String.Marshal(v.RunID, bs)
	n += ord.String.Marshal(v.Phase, bs[n:])
	n += ord.String.Marshal(v.Classifier, bs[n:])
	n += varint.Int.Marshal(v.Epoch, bs[n:])
	n += MetricsMUS.Marshal(v.Train, bs[n:])
	n += MetricsMUS.Marshal(v.Val, bs[n:])
	n += marshalTime(v.RecordedAt, bs[n:])
	return n
}

func (epochRecordMUS) Unmarshal(bs []byte) (v EpochRecord, n int, err error) {
	var n1 int
	v.RunID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Phase, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Classifier, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Epoch, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Train, n1, err = MetricsMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Val, n1, err = MetricsMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.RecordedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (epochRecordMUS) Size(v EpochRecord) (size int) {
	size = ord.String.Size(v.RunID)
	size += ord.String.Size(v.Phase)
	size += ord.String.Size(v.Classifier)
	size += varint.Int.Size(v.Epoch)
	size += MetricsMUS.Size(v.Train)
	size += MetricsMUS.Size(v.Val)
	return size + sizeTime(v.RecordedAt)
}

type runMUS struct{}

func (runMUS) Marshal(v Run, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.State, bs[n:])
	n += ord.String.Marshal(string(v.Status), bs[n:])
	n += ord.String.Marshal(v.Error, bs[n:])
	n += ord.String.Marshal(v.Architecture, bs[n:])
	n += marshalTime(v.StartedAt, bs[n:])
	n += marshalTime(v.FinishedAt, bs[n:])
	n += varint.Int.Marshal(v.TrainSize, bs[n:])
	n += varint.Int.Marshal(v.ValSize, bs[n:])
	n += varint.Int.Marshal(v.TestSize, bs[n:])
	n += varint.Int.Marshal(v.UnlabeledTotal, bs[n:])
	n += varint.Int.Marshal(v.PseudoLabeled, bs[n:])
	n += MetricsMUS.Marshal(v.Test, bs[n:])
	n += ord.String.Marshal(v.ArtifactPath, bs[n:])
	n += ord.String.Marshal(v.Checksum, bs[n:])
	return n
}

func (runMUS) Unmarshal(bs []byte) (v Run, n int, err error) {
	var (
		n1     int
		status string
	)
	strs := []*string{&v.ID, &v.State, &status, &v.Error, &v.Architecture}
	for _, s := range strs {
		*s, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	v.Status = RunStatus(status)
	v.StartedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.FinishedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	ints := []*int{&v.TrainSize, &v.ValSize, &v.TestSize, &v.UnlabeledTotal, &v.PseudoLabeled}
	for _, i := range ints {
		*i, n1, err = varint.Int.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	v.Test, n1, err = MetricsMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ArtifactPath, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Checksum, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (runMUS) Size(v Run) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.State)
	size += ord.String.Size(string(v.Status))
	size += ord.String.Size(v.Error)
	size += ord.String.Size(v.Architecture)
	size += sizeTime(v.StartedAt)
	size += sizeTime(v.FinishedAt)
	size += varint.Int.Size(v.TrainSize)
	size += varint.Int.Size(v.ValSize)
	size += varint.Int.Size(v.TestSize)
	size += varint.Int.Size(v.UnlabeledTotal)
	size += varint.Int.Size(v.PseudoLabeled)
	size += MetricsMUS.Size(v.Test)
	size += ord.String.Size(v.ArtifactPath)
	return size + ord.String.Size(v.Checksum)
}

func timeMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(timeMicros(t), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || us == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(timeMicros(t))
}

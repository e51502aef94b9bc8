package rpc

import (
	"github.com/emptyOVO/peakhour/purchase"
	"google.golang.org/protobuf/encoding/protowire"
)

type Empty struct{}

func (*Empty) appendWire(b []byte) []byte { return b }

func (*Empty) readWire(b []byte) error {
	return walkFields(b, func(field) error { return nil })
}

type Result struct {
	Result bool
}

func (m *Result) appendWire(b []byte) []byte {
	return appendBool(b, 1, m.Result)
}

func (m *Result) readWire(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num == 1 {
			if err := wantType(f, protowire.VarintType); err != nil {
				return err
			}
			m.Result = f.flag()
		}
		return nil
	})
}

type WorkerInfo struct {
	Uuid string
	Ip   string
}

func (m *WorkerInfo) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Uuid)
	return appendString(b, 2, m.Ip)
}

func (m *WorkerInfo) readWire(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Uuid = f.str()
		case 2:
			m.Ip = f.str()
		default:
			return nil
		}
		return wantType(f, protowire.BytesType)
	})
}

type RegisterResult struct {
	Result bool
	Id     int32
}

func (m *RegisterResult) appendWire(b []byte) []byte {
	b = appendBool(b, 1, m.Result)
	return appendInt64(b, 2, int64(m.Id))
}

func (m *RegisterResult) readWire(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Result = f.flag()
		case 2:
			m.Id = f.i32()
		default:
			return nil
		}
		return wantType(f, protowire.VarintType)
	})
}

// MapFileInfo is a newline-aligned byte range [From, To) of one input file.
type MapFileInfo struct {
	FileName string
	From     int64
	To       int64
}

func (m *MapFileInfo) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.FileName)
	b = appendInt64(b, 2, m.From)
	return appendInt64(b, 3, m.To)
}

func (m *MapFileInfo) readWire(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.FileName = f.str()
			return wantType(f, protowire.BytesType)
		case 2:
			m.From = f.i64()
		case 3:
			m.To = f.i64()
		default:
			return nil
		}
		return wantType(f, protowire.VarintType)
	})
}

type MapInfo struct {
	TaskId  int32
	NReduce int32
	Files   []*MapFileInfo
}

func (m *MapInfo) appendWire(b []byte) []byte {
	b = appendInt64(b, 1, int64(m.TaskId))
	b = appendInt64(b, 2, int64(m.NReduce))
	for _, fi := range m.Files {
		b = appendMessage(b, 3, fi)
	}
	return b
}

func (m *MapInfo) readWire(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.TaskId = f.i32()
		case 2:
			m.NReduce = f.i32()
		case 3:
			if err := wantType(f, protowire.BytesType); err != nil {
				return err
			}
			fi := new(MapFileInfo)
			if err := fi.readWire(f.bytes); err != nil {
				return err
			}
			m.Files = append(m.Files, fi)
			return nil
		default:
			return nil
		}
		return wantType(f, protowire.VarintType)
	})
}

// IMDInfo reports the intermediate files of one map task, indexed by
// reducer partition.
type IMDInfo struct {
	Uuid      string
	TaskId    int32
	Filenames []string
	Stats     purchase.Stats
}

func (m *IMDInfo) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Uuid)
	b = appendInt64(b, 2, int64(m.TaskId))
	b = appendRepeatedString(b, 3, m.Filenames)
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	return protowire.AppendBytes(b, appendStats(nil, m.Stats))
}

func (m *IMDInfo) readWire(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Uuid = f.str()
		case 2:
			m.TaskId = f.i32()
			return wantType(f, protowire.VarintType)
		case 3:
			m.Filenames = append(m.Filenames, f.str())
		case 4:
			if err := wantType(f, protowire.BytesType); err != nil {
				return err
			}
			return readStats(f.bytes, &m.Stats)
		default:
			return nil
		}
		return wantType(f, protowire.BytesType)
	})
}

func appendStats(b []byte, s purchase.Stats) []byte {
	b = appendInt64(b, 1, s.Lines)
	b = appendInt64(b, 2, s.Valid)
	b = appendInt64(b, 3, s.EmptyLines)
	b = appendInt64(b, 4, s.MalformedRecords)
	return appendInt64(b, 5, s.MalformedTimestamps)
}

func readStats(b []byte, s *purchase.Stats) error {
	return walkFields(b, func(f field) error {
		var dst *int64
		switch f.num {
		case 1:
			dst = &s.Lines
		case 2:
			dst = &s.Valid
		case 3:
			dst = &s.EmptyLines
		case 4:
			dst = &s.MalformedRecords
		case 5:
			dst = &s.MalformedTimestamps
		default:
			return nil
		}
		if err := wantType(f, protowire.VarintType); err != nil {
			return err
		}
		*dst = f.i64()
		return nil
	})
}

type IMDLoc struct {
	Filename string
}

func (m *IMDLoc) appendWire(b []byte) []byte {
	return appendString(b, 1, m.Filename)
}

func (m *IMDLoc) readWire(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		m.Filename = f.str()
		return wantType(f, protowire.BytesType)
	})
}

// IMDData carries protowire-encoded aggregated counts.
type IMDData struct {
	Records []byte
}

func (m *IMDData) appendWire(b []byte) []byte {
	return appendBytes(b, 1, m.Records)
}

func (m *IMDData) readWire(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		// the transport may reuse the receive buffer
		m.Records = append([]byte(nil), f.bytes...)
		return wantType(f, protowire.BytesType)
	})
}

type ReduceFileInfo struct {
	Ip       string
	Filename string
}

func (m *ReduceFileInfo) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Ip)
	return appendString(b, 2, m.Filename)
}

func (m *ReduceFileInfo) readWire(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Ip = f.str()
		case 2:
			m.Filename = f.str()
		default:
			return nil
		}
		return wantType(f, protowire.BytesType)
	})
}

type ReduceInfo struct {
	TaskId     int32
	Files      []*ReduceFileInfo
	OutputFile string
	TieBreak   string
}

func (m *ReduceInfo) appendWire(b []byte) []byte {
	b = appendInt64(b, 1, int64(m.TaskId))
	for _, fi := range m.Files {
		b = appendMessage(b, 2, fi)
	}
	b = appendString(b, 3, m.OutputFile)
	return appendString(b, 4, m.TieBreak)
}

func (m *ReduceInfo) readWire(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.TaskId = f.i32()
			return wantType(f, protowire.VarintType)
		case 2:
			if err := wantType(f, protowire.BytesType); err != nil {
				return err
			}
			fi := new(ReduceFileInfo)
			if err := fi.readWire(f.bytes); err != nil {
				return err
			}
			m.Files = append(m.Files, fi)
			return nil
		case 3:
			m.OutputFile = f.str()
		case 4:
			m.TieBreak = f.str()
		default:
			return nil
		}
		return wantType(f, protowire.BytesType)
	})
}

type ReduceResult struct {
	Result     bool
	Categories int64
	Keys       int64
	Purchases  int64
}

func (m *ReduceResult) appendWire(b []byte) []byte {
	b = appendBool(b, 1, m.Result)
	b = appendInt64(b, 2, m.Categories)
	b = appendInt64(b, 3, m.Keys)
	return appendInt64(b, 4, m.Purchases)
}

func (m *ReduceResult) readWire(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Result = f.flag()
		case 2:
			m.Categories = f.i64()
		case 3:
			m.Keys = f.i64()
		case 4:
			m.Purchases = f.i64()
		default:
			return nil
		}
		return wantType(f, protowire.VarintType)
	})
}

type WorkerStatus int32

const (
	WorkerIdle WorkerStatus = iota
	WorkerBusy
)

func (s WorkerStatus) String() string {
	if s == WorkerBusy {
		return "BUSY"
	}
	return "IDLE"
}

type WorkerState struct {
	State WorkerStatus
}

func (m *WorkerState) appendWire(b []byte) []byte {
	return appendInt64(b, 1, int64(m.State))
}

func (m *WorkerState) readWire(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		m.State = WorkerStatus(f.i32())
		return wantType(f, protowire.VarintType)
	})
}

// Package msgs defines the diagnostic messages decoded from the parameter
// table and the protocol counters.
package msgs

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/bldc.go/pkg/l0/comm"
	"github.com/robotalks/bldc.go/pkg/l0/params"
	"github.com/robotalks/bldc.go/pkg/motor/pid"
)

// Status is the snapshot of the parameter table.
type Status struct {
	Running          bool          `protobuf:"varint,1,opt,name=running,proto3" json:"running,omitempty"`
	DirectionCcw     bool          `protobuf:"varint,2,opt,name=direction_ccw,proto3" json:"direction_ccw,omitempty"`
	MotorCurrent     int32         `protobuf:"varint,3,opt,name=motor_current,proto3" json:"motor_current,omitempty"`
	Position         int32         `protobuf:"varint,4,opt,name=position,proto3" json:"position,omitempty"`
	Faults           uint32        `protobuf:"varint,5,opt,name=faults,proto3" json:"faults,omitempty"`
	Control          uint32        `protobuf:"varint,6,opt,name=control,proto3" json:"control,omitempty"`
	PositionRequired int32         `protobuf:"varint,7,opt,name=position_required,proto3" json:"position_required,omitempty"`
	PositionStep     int32         `protobuf:"varint,8,opt,name=position_step,proto3" json:"position_step,omitempty"`
	Precision        uint32        `protobuf:"varint,9,opt,name=precision,proto3" json:"precision,omitempty"`
	MaxMotorCurrent  uint32        `protobuf:"varint,10,opt,name=max_motor_current,proto3" json:"max_motor_current,omitempty"`
	CurrentScale     uint32        `protobuf:"varint,11,opt,name=current_scale,proto3" json:"current_scale,omitempty"`
	CurrentPid       *Coefficients `protobuf:"bytes,12,opt,name=current_pid,proto3" json:"current_pid,omitempty"`
	PositionPid      *Coefficients `protobuf:"bytes,13,opt,name=position_pid,proto3" json:"position_pid,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Status) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Status) Reset() { *m = Status{} }

// String implements proto.Message.
func (m *Status) String() string { return proto.CompactTextString(m) }

// FaultList names the fault bits.
func (m *Status) FaultList() string { return params.Faults(m.Faults).String() }

// Coefficients is a PID gain set.
type Coefficients struct {
	Kp int32 `protobuf:"varint,1,opt,name=kp,proto3" json:"kp,omitempty"`
	Ki int32 `protobuf:"varint,2,opt,name=ki,proto3" json:"ki,omitempty"`
	Kd int32 `protobuf:"varint,3,opt,name=kd,proto3" json:"kd,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Coefficients) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Coefficients) Reset() { *m = Coefficients{} }

// String implements proto.Message.
func (m *Coefficients) String() string { return proto.CompactTextString(m) }

// PID converts to the regulator type.
func (m *Coefficients) PID() pid.Coefficients {
	return pid.Coefficients{Kp: int16(m.Kp), Ki: int16(m.Ki), Kd: int16(m.Kd)}
}

// LinkStats are the protocol counters of a node.
type LinkStats struct {
	Ok        uint32 `protobuf:"varint,1,opt,name=ok,proto3" json:"ok,omitempty"`
	BadHeader uint32 `protobuf:"varint,2,opt,name=bad_header,proto3" json:"bad_header,omitempty"`
	BadFrame  uint32 `protobuf:"varint,3,opt,name=bad_frame,proto3" json:"bad_frame,omitempty"`
	Timeouts  uint32 `protobuf:"varint,4,opt,name=timeouts,proto3" json:"timeouts,omitempty"`
	Overflows uint32 `protobuf:"varint,5,opt,name=overflows,proto3" json:"overflows,omitempty"`
	Dropped   uint32 `protobuf:"varint,6,opt,name=dropped,proto3" json:"dropped,omitempty"`
	Skipped   uint32 `protobuf:"varint,7,opt,name=skipped,proto3" json:"skipped,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *LinkStats) ProtoMessage() {}

// Reset implements proto.Message.
func (m *LinkStats) Reset() { *m = LinkStats{} }

// String implements proto.Message.
func (m *LinkStats) String() string { return proto.CompactTextString(m) }

// NewLinkStats converts node counters.
func NewLinkStats(s comm.Stats) *LinkStats {
	return &LinkStats{
		Ok:        s.OK,
		BadHeader: s.BadHeader,
		BadFrame:  s.BadFrame,
		Timeouts:  s.Timeouts,
		Overflows: s.Overflows,
		Dropped:   s.Dropped,
		Skipped:   s.Skipped,
	}
}

// DecodeStatus decodes the table bytes starting at address 0. data must
// cover the whole defined span.
func DecodeStatus(data []byte) (*Status, error) {
	if len(data) < params.AddrLast {
		return nil, fmt.Errorf("status needs %d bytes, got %d", params.AddrLast, len(data))
	}
	u16 := func(addr int) uint16 { return binary.LittleEndian.Uint16(data[addr:]) }
	u32 := func(addr int) uint32 { return binary.LittleEndian.Uint32(data[addr:]) }
	coefficients := func(addr int) *Coefficients {
		return &Coefficients{
			Kp: int32(int16(u16(addr))),
			Ki: int32(int16(u16(addr + 2))),
			Kd: int32(int16(u16(addr + 4))),
		}
	}
	status := params.StatusFlags(u16(params.AddrStatus))
	return &Status{
		Running:          status.Running(),
		DirectionCcw:     status.CCW(),
		MotorCurrent:     int32(int16(u16(params.AddrMotorCurrent))),
		Position:         int32(u32(params.AddrPosition)),
		Faults:           uint32(u16(params.AddrErrors)),
		Control:          uint32(u16(params.AddrControl)),
		PositionRequired: int32(u32(params.AddrPositionRequired)),
		PositionStep:     int32(int16(u16(params.AddrPositionStep))),
		Precision:        uint32(u16(params.AddrPrecision)),
		MaxMotorCurrent:  uint32(u16(params.AddrMaxMotorCurrent)),
		CurrentScale:     uint32(u16(params.AddrCurrentScale)),
		CurrentPid:       coefficients(params.AddrCurrentCoefficients),
		PositionPid:      coefficients(params.AddrPositionCoefficients),
	}, nil
}

// StatusOf snapshots a live table.
func StatusOf(tbl *params.Table) *Status {
	status, _ := DecodeStatus(tbl.Snapshot())
	return status
}

package packetio

import "github.com/Antcating/das-concat/internal/model"

// Reader opens a Descriptor and returns the packet it describes, or
// fails with a CorruptInput-categorized error (spec §4.2, §7).
type Reader interface {
	Read(d *Descriptor) (*model.Packet, error)
}

// NewReader returns the Reader variant appropriate for kind.
func NewReader(kind model.SystemKind) Reader {
	switch kind {
	case model.SegY:
		return &SegYReader{}
	default:
		return &ColumnarReader{}
	}
}

package packets

import (
	"bytes"
	"fmt"
)

//Packet is implemented by all packet types that can be decoded from the network
type Packet interface {
	CID() [16]byte
	Bytes() []byte
}

//DecodeErrorKind classifies why a datagram could not be decoded
type DecodeErrorKind int

const (
	//Truncated means the datagram is shorter than the layers it declares
	Truncated DecodeErrorKind = iota + 1
	//UnknownVector means a layer carries a vector this package does not know
	UnknownVector
	//LengthMismatch means the declared lengths of the layers are not consistent
	LengthMismatch
)

func (k DecodeErrorKind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case UnknownVector:
		return "unknown_vector"
	case LengthMismatch:
		return "length_mismatch"
	}
	return fmt.Sprintf("DecodeErrorKind(%d)", int(k))
}

//DecodeError is returned by Decode. Use errors.Is with ErrTruncated, ErrUnknownVector
//or ErrLengthMismatch to check the kind.
type DecodeError struct {
	Kind   DecodeErrorKind
	Layer  string
	Offset int
	Msg    string
}

//Sentinels for errors.Is comparisons against the kind of a DecodeError
var (
	ErrTruncated      = &DecodeError{Kind: Truncated}
	ErrUnknownVector  = &DecodeError{Kind: UnknownVector}
	ErrLengthMismatch = &DecodeError{Kind: LengthMismatch}
)

func (e *DecodeError) Error() string {
	return fmt.Sprintf("sacn: %v in %v layer at offset %v: %v", e.Kind, e.Layer, e.Offset, e.Msg)
}

//Is reports whether target is a DecodeError of the same kind
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	return ok && t.Kind == e.Kind
}

func decodeErr(kind DecodeErrorKind, layer string, offset int, format string, a ...interface{}) error {
	return &DecodeError{Kind: kind, Layer: layer, Offset: offset, Msg: fmt.Sprintf(format, a...)}
}

//Decode parses the raw bytes of a datagram. The returned packet is one of
//*DataPacket, *UniverseDiscoveryPacket or *SyncPacket and does not reference raw.
//Bytes after the end of the root layer are ignored.
func Decode(raw []byte) (Packet, error) {
	if len(raw) < rootLayerLength {
		return nil, decodeErr(Truncated, "root", len(raw), "need %v bytes, got %v", rootLayerLength, len(raw))
	}
	if !bytes.Equal(raw[:16], constHeader) {
		return nil, decodeErr(UnknownVector, "root", 0, "not an ACN packet identifier")
	}
	rootLength := falLength(raw[16:18])
	if 16+rootLength > len(raw) {
		return nil, decodeErr(Truncated, "root", len(raw), "declared length %v exceeds %v remaining bytes",
			rootLength, len(raw)-16)
	}
	if rootLength < rootLayerLength-16 {
		return nil, decodeErr(LengthMismatch, "root", 16, "declared length %v is too short", rootLength)
	}
	raw = raw[:16+rootLength]

	switch vector := getAsUint32(raw[18:22]); vector {
	case vectorRootE131Data:
		return decodeData(raw)
	case vectorRootE131Extended:
		if len(raw) < 44 {
			return nil, decodeErr(LengthMismatch, "framing", len(raw), "no room for the framing vector")
		}
		switch framingVector := getAsUint32(raw[40:44]); framingVector {
		case vectorE131Sync:
			return decodeSync(raw)
		case vectorE131Discovery:
			return decodeDiscovery(raw)
		default:
			return nil, decodeErr(UnknownVector, "framing", 40, "vector %#x", framingVector)
		}
	default:
		return nil, decodeErr(UnknownVector, "root", 18, "vector %#x", vector)
	}
}

//checkLayer verifies that the layer at offset has at least minLength bytes and
//extends exactly to the end of raw
func checkLayer(raw []byte, offset, minLength int, layer string) error {
	if len(raw) < offset+minLength {
		return decodeErr(LengthMismatch, layer, offset, "need %v bytes, parent layer leaves %v",
			minLength, len(raw)-offset)
	}
	length := falLength(raw[offset : offset+2])
	if length < minLength || offset+length != len(raw) {
		return decodeErr(LengthMismatch, layer, offset, "declared length %v, parent layer leaves %v",
			length, len(raw)-offset)
	}
	return nil
}

func decodeData(raw []byte) (Packet, error) {
	if err := checkLayer(raw, rootLayerLength, dataFramingLayerLength+dmpLayerHeaderLength+1,
		"framing"); err != nil {
		return nil, err
	}
	if vector := getAsUint32(raw[40:44]); vector != vectorE131DataPacket {
		return nil, decodeErr(UnknownVector, "framing", 40, "vector %#x", vector)
	}
	if err := checkLayer(raw, 115, dmpLayerHeaderLength+1, "dmp"); err != nil {
		return nil, err
	}
	if raw[117] != vectorDmpSetProperty {
		return nil, decodeErr(UnknownVector, "dmp", 117, "vector %#x", raw[117])
	}
	if raw[118] != dmpAddressAndDataType {
		return nil, decodeErr(UnknownVector, "dmp", 118, "address and data type %#x", raw[118])
	}
	if len(raw) > dataPacketMaxLength {
		return nil, decodeErr(LengthMismatch, "dmp", dataHeaderLength, "%v channels exceed %v",
			len(raw)-dataHeaderLength, MaxChannels)
	}
	if count := int(getAsUint32(raw[123:125])); count != len(raw)-125 {
		return nil, decodeErr(LengthMismatch, "dmp", 123, "property value count %v does not match %v bytes",
			count, len(raw)-125)
	}
	p := NewDataPacket()
	copy(p.data, raw)
	p.length = len(raw)
	return p, nil
}

func decodeDiscovery(raw []byte) (Packet, error) {
	if err := checkLayer(raw, rootLayerLength, discoveryFramingLength+discoveryLayerHeader,
		"framing"); err != nil {
		return nil, err
	}
	if err := checkLayer(raw, 112, discoveryLayerHeader, "discovery"); err != nil {
		return nil, err
	}
	if vector := getAsUint32(raw[114:118]); vector != vectorUniverseDiscovery {
		return nil, decodeErr(UnknownVector, "discovery", 114, "vector %#x", vector)
	}
	listLength := len(raw) - discoveryHeaderLength
	if listLength%2 != 0 || listLength > 2*UniversesPerPage {
		return nil, decodeErr(LengthMismatch, "discovery", discoveryHeaderLength,
			"universe list of %v bytes", listLength)
	}
	p := &UniverseDiscoveryPacket{buffer{data: make([]byte, discoveryPacketMaxLength)}}
	copy(p.data, raw)
	p.length = len(raw)
	return p, nil
}

func decodeSync(raw []byte) (Packet, error) {
	if err := checkLayer(raw, rootLayerLength, syncFramingLength, "framing"); err != nil {
		return nil, err
	}
	if len(raw) != syncPacketLength {
		return nil, decodeErr(LengthMismatch, "framing", rootLayerLength, "sync packet has %v bytes", len(raw))
	}
	p := &SyncPacket{buffer{data: make([]byte, syncPacketLength)}}
	copy(p.data, raw)
	p.length = len(raw)
	return p, nil
}

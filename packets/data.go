package packets

import (
	"fmt"
)

const (
	vectorRootE131Data       = 0x4 //VECTOR_ROOT_E131_DATA
	vectorRootE131Extended   = 0x8 //VECTOR_ROOT_E131_EXTENDED
	vectorE131DataPacket     = 0x2 //VECTOR_E131_DATA_PACKET
	vectorE131Sync           = 0x1 //VECTOR_E131_EXTENDED_SYNCHRONIZATION
	vectorE131Discovery      = 0x2 //VECTOR_E131_EXTENDED_DISCOVERY
	vectorDmpSetProperty     = 0x2 //VECTOR_DMP_SET_PROPERTY
	vectorUniverseDiscovery  = 0x1 //VECTOR_UNIVERSE_DISCOVERY_UNIVERSE_LIST
	dmpAddressAndDataType    = 0xa1
	dataHeaderLength         = 126
	dataPacketMaxLength      = dataHeaderLength + MaxChannels
	rootLayerLength          = 38
	dataFramingLayerLength   = 77
	dmpLayerHeaderLength     = 10
	defaultPriority          = 100
	maxPriority              = 200
	optionPreviewData        = 7
	optionStreamTerminated   = 6
	optionForceSynchronation = 5
)

//MaxChannels is the maximum number of DMX channels in one universe
const MaxChannels = 512

var constHeader = []byte{0, 0x10, 0, 0, 0x41, 0x53,
	0x43, 0x2d, 0x45, 0x31, 0x2e, 0x31, 0x37, 0x00, 0x00, 0x00}

//DataPacket is a sACN data packet with root, framing and DMP layer.
//It holds up to 512 channels of DMX data for one universe.
type DataPacket struct {
	buffer
}

//NewDataPacket creates a new DataPacket without channel data and default priority
func NewDataPacket() *DataPacket {
	p := &DataPacket{newRootBuffer(dataPacketMaxLength, vectorRootE131Data)}
	//Set vectors:
	p.replace(40, getAsBytes32(vectorE131DataPacket))
	p.data[117] = vectorDmpSetProperty
	//set address and data type
	p.data[118] = dmpAddressAndDataType
	//set address increment
	p.data[122] = 0x1
	p.SetPriority(defaultPriority)
	p.setLength(dataHeaderLength)
	return p
}

//setLength sets all FAL values and the property value count according to the
//length of the whole message.
func (d *DataPacket) setLength(length int) {
	d.length = length
	d.setFal(16)
	d.setFal(38)
	d.setFal(115)
	//property value count includes the start code
	d.replace(123, getAsBytes16(uint16(length-125)))
}

//Copy returns a deep copy of the DataPacket
func (d *DataPacket) Copy() *DataPacket {
	return &DataPacket{d.copyBuffer()}
}

//SetSourceName sets the source name field to the given string values.
//Note that only the first 63 characters are used!
func (d *DataPacket) SetSourceName(s string) {
	d.setSourceName(44, s)
}

//SourceName returns the stored source name. Note that the source name max length is 64!
func (d *DataPacket) SourceName() string {
	return d.sourceName(44)
}

//SetPriority sets the priority field for the packet. Value must be [0-200]!
func (d *DataPacket) SetPriority(prio byte) error {
	if prio > maxPriority {
		return fmt.Errorf("the priority was %v and therefore is not in range [0-200]", prio)
	}
	d.data[108] = prio
	return nil
}

//Priority returns the byte value of the priorty field of the packet. Value range: [0-200]
func (d *DataPacket) Priority() byte {
	return d.data[108]
}

//SetSyncAddress sets the synchronization universe for the given packet
func (d *DataPacket) SetSyncAddress(sync uint16) {
	d.replace(109, getAsBytes16(sync))
}

//SyncAddress returns the sync universe of the given packet
func (d *DataPacket) SyncAddress() uint16 {
	return uint16(getAsUint32(d.data[109:111]))
}

//SetSequence sets the sequence number of the packet
func (d *DataPacket) SetSequence(sequ byte) {
	d.data[111] = sequ
}

//Sequence returns the sequence number of the packet
func (d *DataPacket) Sequence() byte {
	return d.data[111]
}

//SetPreviewData sets the preview_data flag in this packet to the given value
func (d *DataPacket) SetPreviewData(value bool) {
	d.setOptionsBit(optionPreviewData, value)
}

//PreviewData returns wether this packet has the preview flag set
func (d *DataPacket) PreviewData() bool {
	return d.getOptionsBit(optionPreviewData)
}

//SetStreamTerminated sets the stream_termination flag on or off
func (d *DataPacket) SetStreamTerminated(value bool) {
	d.setOptionsBit(optionStreamTerminated, value)
}

//StreamTerminated returns the state of the stream_termination flag
func (d *DataPacket) StreamTerminated() bool {
	return d.getOptionsBit(optionStreamTerminated)
}

//SetForceSync sets the force_synchronization bit flag
func (d *DataPacket) SetForceSync(value bool) {
	d.setOptionsBit(optionForceSynchronation, value)
}

//ForceSync returns the state of the force_synchronization flag
func (d *DataPacket) ForceSync() bool {
	return d.getOptionsBit(optionForceSynchronation)
}

func (d *DataPacket) setOptionsBit(bit byte, value bool) {
	if value {
		d.data[112] |= 1 << bit
	} else {
		d.data[112] &^= 1 << bit
	}
}

func (d *DataPacket) getOptionsBit(bit byte) bool {
	return d.data[112]&(1<<bit) != 0
}

//SetUniverse sets the universe value of the packet
func (d *DataPacket) SetUniverse(universe uint16) {
	d.replace(113, getAsBytes16(universe))
}

//Universe returns the universe value of the packet
func (d *DataPacket) Universe() uint16 {
	return uint16(getAsUint32(d.data[113:115]))
}

//SetDmxStartCode sets the DMX start code that is transmitted together with the DMX data
func (d *DataPacket) SetDmxStartCode(startCode byte) {
	d.data[125] = startCode
}

//DmxStartCode return the start code of the given packet
func (d *DataPacket) DmxStartCode() byte {
	return d.data[125]
}

//SetData sets the dmx data for the given DataPacket. Everything after 512 bytes is cut off.
func (d *DataPacket) SetData(data []byte) {
	if len(data) > MaxChannels {
		data = data[:MaxChannels]
	}
	//clear the old data in case the new data is shorter
	for i := dataHeaderLength; i < d.length; i++ {
		d.data[i] = 0
	}
	d.replace(dataHeaderLength, data)
	d.setLength(dataHeaderLength + len(data))
}

//Data returns the DMX data that is set for this DataPacket. Length: [0-512]
func (d *DataPacket) Data() []byte {
	return d.data[dataHeaderLength:d.length]
}

package packets

const (
	syncPacketLength  = 49
	syncFramingLength = 11
)

//SyncPacket is used by sources to tell receivers to apply buffered data of all universes
//that have the sync address set.
type SyncPacket struct {
	buffer
}

//NewSyncPacket creates a synchronization packet for the given sync universe
func NewSyncPacket(cid [16]byte, sequence byte, syncAddress uint16) *SyncPacket {
	p := &SyncPacket{newRootBuffer(syncPacketLength, vectorRootE131Extended)}
	p.length = syncPacketLength
	p.SetCID(cid)
	p.replace(40, getAsBytes32(vectorE131Sync))
	p.data[44] = sequence
	p.replace(45, getAsBytes16(syncAddress))
	p.setFal(16)
	p.setFal(38)
	return p
}

//Sequence returns the sequence number of the sync packet
func (s *SyncPacket) Sequence() byte {
	return s.data[44]
}

//SyncAddress returns the universe that is synchronized
func (s *SyncPacket) SyncAddress() uint16 {
	return uint16(getAsUint32(s.data[45:47]))
}

package packets

//calculateFal calculates the two bytes of a FlagsAndLength field of a sACN layer.
//The length is the number of bytes from the start of the field to the end of the layer.
func calculateFal(length uint16) [2]byte {
	return [2]byte{
		byte(0x70) + byte((length>>8)&0x0F),
		byte(0xFF & length)}
}

//falLength extracts the 12-bit length part of a FlagsAndLength field
func falLength(fal []byte) int {
	return int(fal[0]&0x0F)<<8 | int(fal[1])
}

func getAsBytes32(i uint32) []byte {
	return []byte{byte(i >> 24), byte(i >> 16), byte(i >> 8), byte(i & 0xFF)}
}

func getAsBytes16(i uint16) []byte {
	return []byte{byte(i >> 8), byte(i & 0xFF)}
}

//getAsUint32 interprets up to four big endian bytes as unsigned number
func getAsUint32(arr []byte) uint32 {
	value := uint32(0)
	for _, b := range arr {
		value = value<<8 | uint32(b)
	}
	return value
}

//buffer is a fixed size byte slice with a used length. All packet types embed it.
type buffer struct {
	data   []byte
	length int
}

//replace overwrites the bytes starting at startIndex with the given replacement
func (b *buffer) replace(startIndex int, replacement []byte) {
	copy(b.data[startIndex:], replacement)
}

//setFal writes a FlagsAndLength field at the given offset covering everything up to b.length
func (b *buffer) setFal(offset int) {
	fal := calculateFal(uint16(b.length - offset))
	b.replace(offset, fal[:])
}

func (b *buffer) copyBuffer() buffer {
	c := make([]byte, len(b.data))
	copy(c, b.data)
	return buffer{data: c, length: b.length}
}

//Bytes returns the raw bytes of the packet as they are sent over the network.
//The returned slice must not be modified.
func (b *buffer) Bytes() []byte {
	return b.data[:b.length]
}

//CID returns the cid that is set for this packet
func (b *buffer) CID() [16]byte {
	tmpArray := [16]byte{}
	copy(tmpArray[:], b.data[22:38])
	return tmpArray
}

//SetCID sets the CID unique identifier
func (b *buffer) SetCID(cid [16]byte) {
	b.replace(22, cid[:])
}

func (b *buffer) setSourceName(offset int, s string) {
	n := [64]byte{}
	copy(n[:63], []byte(s)) //the last byte has to stay 0 to terminate the string
	b.replace(offset, n[:])
}

func (b *buffer) sourceName(offset int) string {
	i := offset //the ending index for the string, because it is 0 terminated
	for i < offset+64 && b.data[i] != 0 {
		i++
	}
	return string(b.data[offset:i])
}

//newRootBuffer returns a buffer of the given capacity with the root layer constants set
func newRootBuffer(capacity int, rootVector uint32) buffer {
	b := buffer{data: make([]byte, capacity)}
	b.replace(0, constHeader)
	b.replace(18, getAsBytes32(rootVector))
	return b
}

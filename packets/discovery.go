package packets

import (
	"sort"
)

const (
	discoveryHeaderLength = 120
	//UniversesPerPage is the maximum number of universes that fit into one discovery packet
	UniversesPerPage         = 512
	discoveryPacketMaxLength = discoveryHeaderLength + 2*UniversesPerPage
	discoveryFramingLength   = 74
	discoveryLayerHeader     = 8
)

//UniverseDiscoveryPacket advertises the universes a source is transmitting on.
//If a source has more than 512 universes, the list is split across several pages.
type UniverseDiscoveryPacket struct {
	buffer
}

//NewUniverseDiscoveryPacket creates a single discovery page. Only the first 512 universes are used.
func NewUniverseDiscoveryPacket(cid [16]byte, sourceName string, page, lastPage byte,
	universes []uint16) *UniverseDiscoveryPacket {
	p := &UniverseDiscoveryPacket{newRootBuffer(discoveryPacketMaxLength, vectorRootE131Extended)}
	p.SetCID(cid)
	p.replace(40, getAsBytes32(vectorE131Discovery))
	p.setSourceName(44, sourceName)
	p.replace(114, getAsBytes32(vectorUniverseDiscovery))
	p.data[118] = page
	p.data[119] = lastPage
	p.setUniverses(universes)
	return p
}

//NewUniverseDiscoveryPackets creates all pages that are needed to advertise the given universes.
//The universes are sorted ascending, as required by E1.31. No packets are returned for an empty list.
func NewUniverseDiscoveryPackets(cid [16]byte, sourceName string,
	universes []uint16) []*UniverseDiscoveryPacket {
	sorted := append([]uint16(nil), universes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	numPages := (len(sorted) + UniversesPerPage - 1) / UniversesPerPage
	list := make([]*UniverseDiscoveryPacket, 0, numPages)
	for i := 0; i < numPages; i++ {
		end := (i + 1) * UniversesPerPage
		if end > len(sorted) {
			end = len(sorted)
		}
		list = append(list, NewUniverseDiscoveryPacket(cid, sourceName, byte(i), byte(numPages-1),
			sorted[i*UniversesPerPage:end]))
	}
	return list
}

func (d *UniverseDiscoveryPacket) setUniverses(universes []uint16) {
	if len(universes) > UniversesPerPage {
		universes = universes[:UniversesPerPage]
	}
	for i, u := range universes {
		d.replace(discoveryHeaderLength+2*i, getAsBytes16(u))
	}
	d.length = discoveryHeaderLength + 2*len(universes)
	d.setFal(16)
	d.setFal(38)
	d.setFal(112)
}

//SourceName returns the source name of the advertising source
func (d *UniverseDiscoveryPacket) SourceName() string {
	return d.sourceName(44)
}

//Page returns the page number of this packet, starting at 0
func (d *UniverseDiscoveryPacket) Page() byte {
	return d.data[118]
}

//LastPage returns the number of the last page the source sends out
func (d *UniverseDiscoveryPacket) LastPage() byte {
	return d.data[119]
}

//Universes returns the universes that are listed on this page
func (d *UniverseDiscoveryPacket) Universes() []uint16 {
	n := (d.length - discoveryHeaderLength) / 2
	list := make([]uint16, n)
	for i := range list {
		offset := discoveryHeaderLength + 2*i
		list[i] = uint16(getAsUint32(d.data[offset : offset+2]))
	}
	return list
}

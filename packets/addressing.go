package packets

import (
	"net"
)

const (
	//DefaultPort is the UDP port for sACN data and discovery packets (ACN_SDT_MULTICAST_PORT)
	DefaultPort = 5568
	//DiscoveryUniverse is the universe on which universe discovery packets are multicasted
	DiscoveryUniverse = 64214
	//MinUniverse is the lowest universe that may carry DMX data
	MinUniverse = 1
	//MaxUniverse is the highest universe that may carry DMX data
	MaxUniverse = 63999
)

//MulticastAddr returns the multicast group of the universe: 239.255.<high byte>.<low byte>
func MulticastAddr(universe uint16) net.IP {
	byt := getAsBytes16(universe)
	return net.IPv4(239, 255, byt[0], byt[1])
}

//MulticastUDPAddr returns the multicast group of the universe together with the sACN port
func MulticastUDPAddr(universe uint16) *net.UDPAddr {
	return &net.UDPAddr{IP: MulticastAddr(universe), Port: DefaultPort}
}

//ValidUniverse reports whether the universe is in the range that may carry DMX data
func ValidUniverse(universe uint16) bool {
	return universe >= MinUniverse && universe <= MaxUniverse
}

//CheckSequence reports whether a packet with sequence number new should be processed after
//a packet with sequence number old. Packets that are up to 19 behind are out of order.
func CheckSequence(old, new byte) bool {
	//calculate in int8 to handle the wrap around
	tmp := int8(new - old)
	if tmp <= 0 && tmp > -20 {
		return false
	}
	return true
}

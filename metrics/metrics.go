//Package metrics holds the prometheus counters of the sACN transmitter and receiver.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	packetsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sacn",
			Subsystem: "sender",
			Name:      "packets_total",
			Help:      "Packets handed to the socket, by destination kind.",
		},
		[]string{"kind"},
	)
	sendErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sacn",
			Subsystem: "sender",
			Name:      "errors_total",
			Help:      "Packets the socket refused to send, by destination kind.",
		},
		[]string{"kind"},
	)
	packetsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sacn",
			Subsystem: "receiver",
			Name:      "packets_total",
			Help:      "Datagrams read from the socket.",
		},
	)
	receiveErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sacn",
			Subsystem: "receiver",
			Name:      "errors_total",
			Help:      "Errors reported by the socket while receiving.",
		},
	)
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sacn",
			Subsystem: "receiver",
			Name:      "decode_errors_total",
			Help:      "Datagrams that were discarded because they could not be decoded.",
		},
		[]string{"kind"},
	)
)

//Destination kinds used as label values.
const (
	KindUnicast   = "unicast"
	KindMulticast = "multicast"
	KindBroadcast = "broadcast"
)

//Register adds all counters to the default prometheus registry. It is safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(packetsSent, sendErrors, packetsReceived, receiveErrors, decodeErrors)
	})
}

//RecordSend counts a packet handed to the socket, or a send error if err is not nil.
func RecordSend(kind string, err error) {
	if err != nil {
		sendErrors.WithLabelValues(kind).Inc()
		return
	}
	packetsSent.WithLabelValues(kind).Inc()
}

//RecordReceive counts a datagram read from the socket.
func RecordReceive() {
	packetsReceived.Inc()
}

//RecordReceiveError counts an error of the receiving socket.
func RecordReceiveError() {
	receiveErrors.Inc()
}

//RecordDecodeError counts a datagram that could not be decoded. kind names the decode error.
func RecordDecodeError(kind string) {
	decodeErrors.WithLabelValues(kind).Inc()
}

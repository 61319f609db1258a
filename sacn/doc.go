/*Package sacn is a sACN (ANSI E1.31) implementation. The standard can be obtained here: http://tsp.esta.org/tsp/documents/docs/E1-31-2016.pdf

The wire format lives in the packets package, the sockets and their concurrency models in the
transport package. This package puts both together.

Transmitting

To transmitt DMX data, you have to initialize a `Transmitter` object. This handles all the protocol
specific actions. You can activate universes, if you wish to send out data.
Every frame (default 30 per second) the transmitter sends all universes whose data changed and
every universe that was not sent for one second. Identical data does not cause a send.
Every 10 seconds a universe discovery packet with all activated universes is broadcasted.

There are three different types of addressing the receiver: multicast, unicast and broadcast.
When using multicast, note that you have to provide a bind address on some operating systems
(eg Windows). Multicast has precedence over a unicast destination. A universe without both
is broadcasted.

Receiving

The simplest way to receive sACN packets is to use `sacn.NewReceiverSocket`.

The receiver checks for out-of-order packets (inspecting the sequence number) and sorts for priority.
Merging of multiple sources must be implemented in the callers program.

This `sacn.ReceiverSocket` can use multicast groups to receive its data. Unicast packets that are received
are also processed. Depending on your operating system, you might can
provide `nil` as an interface, sometimes you have to use a dedicated interface, to get multicast working.
Windows needs an interface and Linux generally not.

Note that the network infrastructure has to be multicast ready and that on some networks the delay of
packets will increase. Also the packet loss can be higher if multicast is chosen
(This is often a problem when WLAN is used). This can cause unintentional timeouts, if the sources
are only transmitting every 2 seconds (like grandMA2 consoles).

Example

	package main

	import (
		"log"
		"math/rand"
		"time"

		"github.com/Hundemeier/go-sacn/sacn"
	)

	func main() {
		trans := sacn.NewTransmitter([16]byte{1, 2, 3}, "test", sacn.WithBind("", 0))
		if err := trans.Start(); err != nil {
			log.Fatal(err)
		}
		defer trans.Stop()

		//activates the first universe and sends it via multicast
		if err := trans.Activate(1, sacn.OutputOptions{Multicast: true}); err != nil {
			log.Fatal(err)
		}
		//deactivate the universe on exit
		defer trans.Deactivate(1)

		//send some random data for 10 seconds
		for i := 0; i < 20; i++ {
			trans.Update(1, []byte{byte(rand.Int()), byte(i & 0xFF)})
			time.Sleep(500 * time.Millisecond)
		}
	}*/
package sacn

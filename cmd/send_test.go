package cmd

import (
	"bytes"
	"testing"

	"github.com/Hundemeier/go-sacn/internal/config"
	"github.com/Hundemeier/go-sacn/packets"
)

func TestSendOutputs(t *testing.T) {
	conf = config.Default()
	conf.Universes[2] = config.Universe{Destination: "10.0.0.1"}
	sendUniverses = []int{1}
	sendData = []int{255, 0, 7}
	sendMulticast = true
	defer func() {
		sendUniverses, sendData, sendMulticast = nil, nil, false
	}()

	outputs, err := sendOutputs()
	if err != nil {
		t.Fatal(err)
	}
	if len(outputs) != 2 || outputs[2].Destination != "10.0.0.1" {
		t.Errorf("The universes of the config should be kept: %+v", outputs)
	}
	if !outputs[1].Multicast || !bytes.Equal(outputs[1].Data, []byte{255, 0, 7}) {
		t.Errorf("Wrong output for universe 1: %+v", outputs[1])
	}

	sendData = []int{256}
	if _, err := sendOutputs(); err == nil {
		t.Error("Channel values above 255 should be rejected")
	}
	sendData = nil
	for _, univ := range []int{0, 64000, packets.DiscoveryUniverse, -1, 70000} {
		sendUniverses = []int{univ}
		if _, err := sendOutputs(); err == nil {
			t.Errorf("Universe %v should be rejected", univ)
		}
	}
	sendUniverses = nil
	conf = config.Default()
	if _, err := sendOutputs(); err == nil {
		t.Error("Without universes there is nothing to send")
	}
}

func TestParseUniverse(t *testing.T) {
	for _, univ := range []int{1, 63999} {
		if u, err := parseUniverse(univ, false); err != nil || int(u) != univ {
			t.Errorf("Universe %v should be accepted, got %v %v", univ, u, err)
		}
	}
	for _, univ := range []int{-1, 0, 64000, packets.DiscoveryUniverse, 0x10000} {
		if _, err := parseUniverse(univ, false); err == nil {
			t.Errorf("Universe %v should be rejected", univ)
		}
	}
	if u, err := parseUniverse(packets.DiscoveryUniverse, true); err != nil || u != packets.DiscoveryUniverse {
		t.Errorf("The discovery universe should be accepted for receiving, got %v %v", u, err)
	}
	if _, err := parseUniverse(64000, true); err == nil {
		t.Error("Universe 64000 should be rejected for receiving")
	}
}

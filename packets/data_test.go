package packets

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestReplace(t *testing.T) {
	p := NewDataPacket()
	r := []byte{1, 2, 3, 4, 5, 6}
	p.replace(0, r)
	if !bytes.Equal(p.data[0:6], r) {
		t.Errorf("Wrong output! Was: %v; Should've been: %v", p.data[0:6], r)
	}
}

func TestNewDataPacket(t *testing.T) {
	p := NewDataPacket()
	if len(p.Bytes()) != 126 {
		t.Errorf("Empty packet should be 126 bytes long, was %v", len(p.Bytes()))
	}
	if !bytes.Equal(p.data[0:16], constHeader) {
		t.Errorf("Wrong preamble! Was: %v", p.data[0:16])
	}
	if !bytes.Equal(p.data[16:18], []byte{0x70, 110}) {
		t.Errorf("Wrong root FAL! Was: %v", p.data[16:18])
	}
	if !bytes.Equal(p.data[38:40], []byte{0x70, 88}) {
		t.Errorf("Wrong framing FAL! Was: %v", p.data[38:40])
	}
	if !bytes.Equal(p.data[115:117], []byte{0x70, 11}) {
		t.Errorf("Wrong DMP FAL! Was: %v", p.data[115:117])
	}
	if p.Priority() != 100 {
		t.Errorf("Default priority should be 100, was %v", p.Priority())
	}
}

func TestSetCID(t *testing.T) {
	p := NewDataPacket()
	r := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	p.SetCID(r)
	if !bytes.Equal(p.data[22:38], r[:]) {
		t.Errorf("Wrong output! Was: %v; Should've been: %v", p.data[22:38], r)
	}
}

func TestCID(t *testing.T) {
	p := NewDataPacket()
	r := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	p.SetCID(r)
	o := p.CID()
	if !bytes.Equal(o[:], r[:]) {
		t.Errorf("Wrong output! Was: %v; Should've been: %v", o, r)
	}
}

func TestSetSourceName(t *testing.T) {
	p := NewDataPacket()
	s := "this is a test!"
	p.SetSourceName(s)
	o := p.data[44:108]
	r := [64]byte{}
	copy(r[:], []byte(s))
	if !bytes.Equal(o, r[:]) {
		t.Errorf("Wrong output! Was: %v; Should've been: %v", o, r)
	}
	p = NewDataPacket()
	s = "this is a test!"
	p.SetSourceName(s)
	s = "this should be different!"
	o = p.data[44:108]
	r = [64]byte{}
	copy(r[:], []byte(s))
	if bytes.Equal(o, r[:]) {
		t.Errorf("Wrong output! Was: %v; Should've been different!: %v", o, r)
	}
}

func TestSourceName(t *testing.T) {
	p := NewDataPacket()
	s := "Test source name!"
	p.SetSourceName(s)
	o := p.SourceName()
	if s != o {
		t.Errorf("Wrong output! Was: %v; Should've been: %v", o, s)
	}
	long := string(bytes.Repeat([]byte{'a'}, 80))
	p.SetSourceName(long)
	if len(p.SourceName()) != 63 {
		t.Errorf("Source name should be cut to 63 characters, was %v", len(p.SourceName()))
	}
}

func TestSetPriority(t *testing.T) {
	p := NewDataPacket()
	prio := byte(150)
	p.SetPriority(prio)
	o := p.data[108]
	if o != prio {
		t.Errorf("Wrong output! Was: %v; Should've been: %v", o, prio)
	}
	err := p.SetPriority(210)
	if err == nil {
		t.Error("Err was nil! Should have been an error!")
	}
	if p.Priority() != prio {
		t.Errorf("Priority changed after invalid value! Was: %v", p.Priority())
	}
}

func TestSetSyncAddress(t *testing.T) {
	p := NewDataPacket()
	sync := uint16(0x1234)
	p.SetSyncAddress(sync)
	o := p.data[109:111]
	if !bytes.Equal([]byte{0x12, 0x34}, o) {
		t.Errorf("Wrong output! Was: %v; Should've been: %v", o, sync)
	}
	if p.SyncAddress() != sync {
		t.Errorf("Wrong output! Was: %v; Should've been: %v", p.SyncAddress(), sync)
	}
}

func TestOptions(t *testing.T) {
	p := NewDataPacket()
	p.SetPreviewData(true)
	if !p.PreviewData() || p.data[112] != 0x80 {
		t.Error("Preview data should have been true")
	}
	p.SetStreamTerminated(true)
	if !p.StreamTerminated() || p.data[112] != 0xC0 {
		t.Error("Stream terminated should have been true")
	}
	p.SetForceSync(true)
	if !p.ForceSync() || p.data[112] != 0xE0 {
		t.Error("Force sync should have been true")
	}
	p.SetPreviewData(false)
	if p.PreviewData() || !p.StreamTerminated() {
		t.Error("Only preview data should have been cleared")
	}
	p.SetPreviewData(false)
	if p.PreviewData() {
		t.Error("Preview data should have been false")
	}
}

func TestUniverseAndSequence(t *testing.T) {
	p := NewDataPacket()
	p.SetUniverse(0x0102)
	p.SetSequence(254)
	if p.Universe() != 0x0102 || !bytes.Equal(p.data[113:115], []byte{1, 2}) {
		t.Errorf("Wrong universe! Was: %v", p.Universe())
	}
	if p.Sequence() != 254 {
		t.Errorf("Wrong sequence! Was: %v", p.Sequence())
	}
}

func TestSetData(t *testing.T) {
	p := NewDataPacket()
	i := []byte{1, 2, 3, 4}
	p.SetData(i)
	if !bytes.Equal(i, p.Data()) {
		t.Error("DMX data was not set or getted properly!")
	}
	if !bytes.Equal(p.data[123:125], []byte{0, 5}) {
		t.Errorf("Property value count should be 5, was %v", p.data[123:125])
	}
	i = make([]byte, 600)
	for j := range i {
		i[j] = byte(rand.Uint32())
	}
	p.SetData(i)
	if !bytes.Equal(i[0:512], p.Data()) {
		t.Errorf("DMX data was not set or getted properly! Was: %v \nShouldbe: %v", p.Data(), i)
	}
	if len(p.Bytes()) != 638 {
		t.Errorf("Full packet should be 638 bytes long, was %v", len(p.Bytes()))
	}
	p.SetData([]byte{9})
	if !bytes.Equal(p.Data(), []byte{9}) || p.data[127] != 0 {
		t.Errorf("Old data was not cleared! Was: %v", p.data[126:130])
	}
}

func TestCopy(t *testing.T) {
	p := NewDataPacket()
	p.SetData([]byte{1, 2, 3})
	c := p.Copy()
	p.SetData([]byte{4, 5, 6})
	if !bytes.Equal(c.Data(), []byte{1, 2, 3}) {
		t.Errorf("Copy should not change with the original! Was: %v", c.Data())
	}
}

func TestSyncPacket(t *testing.T) {
	p := NewSyncPacket([16]byte{7}, 12, 0x0203)
	if len(p.Bytes()) != 49 {
		t.Errorf("Sync packet should be 49 bytes long, was %v", len(p.Bytes()))
	}
	if p.Sequence() != 12 || p.SyncAddress() != 0x0203 || p.CID() != [16]byte{7} {
		t.Errorf("Wrong fields! Sequence: %v SyncAddress: %v", p.Sequence(), p.SyncAddress())
	}
	if !bytes.Equal(p.data[16:18], []byte{0x70, 33}) || !bytes.Equal(p.data[38:40], []byte{0x70, 11}) {
		t.Errorf("Wrong FAL values! Root: %v Framing: %v", p.data[16:18], p.data[38:40])
	}
}

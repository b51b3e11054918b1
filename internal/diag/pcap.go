// Package diag implements the offline wire-capture diagnostic
// (SPEC_FULL §10.7): it wraps every encapsulation frame the listener
// reads or writes in a synthetic Ethernet/IPv4/TCP frame and appends it to
// a pcap file, using gopacket/pcapgo so no libpcap dependency or live
// interface capture is required.
package diag

import (
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Direction distinguishes client-to-server from server-to-client frames
// in the synthetic TCP stream.
type Direction int

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

// Writer appends synthetic frames to a pcap file.
type Writer struct {
	file       *os.File
	pcap       *pcapgo.Writer
	serverIP   net.IP
	serverPort uint16
}

// NewWriter creates (truncating) path and writes the pcap file header.
func NewWriter(path string, serverIP net.IP, serverPort uint16) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, err
	}
	return &Writer{file: f, pcap: w, serverIP: serverIP, serverPort: serverPort}, nil
}

// Close closes the underlying pcap file.
func (w *Writer) Close() error {
	return w.file.Close()
}

// WriteFrame wraps data (one encapsulation frame) in a synthetic
// Ethernet/IPv4/TCP packet between the server and remoteAddr and appends
// it to the pcap file.
func (w *Writer) WriteFrame(dir Direction, remoteAddr *net.TCPAddr, data []byte) error {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}

	srcIP, dstIP := w.serverIP, remoteAddr.IP
	srcPort, dstPort := layers.TCPPort(w.serverPort), layers.TCPPort(remoteAddr.Port)
	if dir == DirectionInbound {
		srcIP, dstIP = remoteAddr.IP, w.serverIP
		srcPort, dstPort = layers.TCPPort(remoteAddr.Port), layers.TCPPort(w.serverPort)
	}

	ip4 := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    srcIP.To4(),
		DstIP:    dstIP.To4(),
	}
	tcp := &layers.TCP{
		SrcPort: srcPort,
		DstPort: dstPort,
		PSH:     true,
		ACK:     true,
		Window:  8192,
	}
	tcp.SetNetworkLayerForChecksum(ip4)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip4, tcp, gopacket.Payload(data)); err != nil {
		return err
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(buf.Bytes()),
		Length:        len(buf.Bytes()),
	}
	return w.pcap.WritePacket(ci, buf.Bytes())
}

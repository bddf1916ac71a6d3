// Package pcap provides PCAP file reading and network packet feature extraction.
package pcap

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	goio "github.com/hed1ad/goanomaly/pkg/io"
)

// Reader reads packets from classic PCAP or PCAPNG captures. Each packet
// becomes one JSON object record.
type Reader struct {
	source    *gopacket.PacketSource
	extractor *FeatureExtractor
}

var (
	_ goio.Reader       = (*Reader)(nil)
	_ goio.FeatureNamer = (*Reader)(nil)
)

// NewReader creates a reader for a classic PCAP stream.
func NewReader(r io.Reader) (*Reader, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, err
	}
	return newReader(pr, pr.LinkType()), nil
}

// NewNgReader creates a reader for a PCAPNG stream.
func NewNgReader(r io.Reader) (*Reader, error) {
	nr, err := pcapgo.NewNgReader(r, pcapgo.DefaultNgReaderOptions)
	if err != nil {
		return nil, err
	}
	return newReader(nr, nr.LinkType()), nil
}

func newReader(src gopacket.PacketDataSource, linkType layers.LinkType) *Reader {
	ps := gopacket.NewPacketSource(src, linkType)
	return &Reader{
		source:    ps,
		extractor: NewFeatureExtractor(),
	}
}

// Read returns every packet as a record of extracted features.
func (r *Reader) Read() ([]goio.Record, error) {
	records := []goio.Record{}

	for {
		packet, err := r.source.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("packet %d: %w", len(records), err)
		}

		rec, err := goio.Object(r.extractor.Extract(packet).Fields()...)
		if err != nil {
			return nil, fmt.Errorf("packet %d: %w", len(records), err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// FeatureNames implements io.FeatureNamer.
func (r *Reader) FeatureNames() []string {
	fields := PacketFeatures{}.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// Transport protocol names.
const (
	ProtocolTCP   = "tcp"
	ProtocolUDP   = "udp"
	ProtocolICMP  = "icmp"
	ProtocolOther = "other"
)

// PacketFeatures describes one captured packet.
type PacketFeatures struct {
	Size int
	// InterArrival is the gap to the previous packet in seconds.
	InterArrival float64
	Protocol     string
	SrcPort      int
	DstPort      int
	TCPFlags     []string
	TTL          int
	PayloadSize  int
}

// Fields returns the features in record order.
func (p PacketFeatures) Fields() []goio.Field {
	flags := p.TCPFlags
	if flags == nil {
		flags = []string{}
	}
	return []goio.Field{
		{Name: "packet_size", Value: p.Size},
		{Name: "inter_arrival_time", Value: p.InterArrival},
		{Name: "protocol", Value: p.Protocol},
		{Name: "src_port", Value: p.SrcPort},
		{Name: "dst_port", Value: p.DstPort},
		{Name: "tcp_flags", Value: flags},
		{Name: "ip_ttl", Value: p.TTL},
		{Name: "payload_size", Value: p.PayloadSize},
	}
}

// FeatureExtractor derives PacketFeatures from decoded packets. It keeps the
// previous timestamp, so one extractor serves one capture.
type FeatureExtractor struct {
	lastTimestamp time.Time
}

// NewFeatureExtractor creates a new packet feature extractor.
func NewFeatureExtractor() *FeatureExtractor {
	return &FeatureExtractor{}
}

// Extract describes a packet.
func (e *FeatureExtractor) Extract(packet gopacket.Packet) PacketFeatures {
	pf := PacketFeatures{
		Size:     len(packet.Data()),
		Protocol: ProtocolOther,
	}

	if md := packet.Metadata(); md != nil && !md.Timestamp.IsZero() {
		if !e.lastTimestamp.IsZero() {
			pf.InterArrival = md.Timestamp.Sub(e.lastTimestamp).Seconds()
		}
		e.lastTimestamp = md.Timestamp
	}

	if tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		pf.Protocol = ProtocolTCP
		pf.SrcPort, pf.DstPort = int(tcp.SrcPort), int(tcp.DstPort)
		pf.TCPFlags = tcpFlagNames(tcp)
	} else if udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		pf.Protocol = ProtocolUDP
		pf.SrcPort, pf.DstPort = int(udp.SrcPort), int(udp.DstPort)
	} else if packet.Layer(layers.LayerTypeICMPv4) != nil || packet.Layer(layers.LayerTypeICMPv6) != nil {
		pf.Protocol = ProtocolICMP
	}

	if ip4, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		pf.TTL = int(ip4.TTL)
	} else if ip6, ok := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6); ok {
		pf.TTL = int(ip6.HopLimit)
	}

	if app := packet.ApplicationLayer(); app != nil {
		pf.PayloadSize = len(app.Payload())
	}

	return pf
}

// tcpFlagNames lists the set flags in header order.
func tcpFlagNames(tcp *layers.TCP) []string {
	set := []struct {
		name string
		on   bool
	}{
		{"FIN", tcp.FIN}, {"SYN", tcp.SYN}, {"RST", tcp.RST}, {"PSH", tcp.PSH},
		{"ACK", tcp.ACK}, {"URG", tcp.URG}, {"ECE", tcp.ECE}, {"CWR", tcp.CWR},
	}
	names := []string{}
	for _, f := range set {
		if f.on {
			names = append(names, f.name)
		}
	}
	return names
}

// ms-flood is a synthetic VXLAN traffic generator for load-testing ms-probe.
// It fans packets across a configurable number of distinct flows so the flow
// table, sampling and ranking paths all see realistic cardinality.
package main

import (
	"flag"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	target   = flag.String("target", "127.0.0.1:4789", "Probe address to flood")
	threads  = flag.Int("threads", 4, "Sender goroutines")
	duration = flag.Duration("duration", 10*time.Second, "How long to send")
	pktSize  = flag.Int("size", 128, "Inner payload size in bytes")
	numFlows = flag.Int("flows", 100000, "Distinct flows to spread packets across")
)

func main() {
	flag.Parse()

	addr, err := net.ResolveUDPAddr("udp4", *target)
	if err != nil {
		log.Fatalf("Failed to resolve target %s: %v", *target, err)
	}

	// Pre-build one datagram per flow; the send loops just cycle through.
	log.Printf("Building %d flow datagrams...", *numFlows)
	packets := make([][]byte, *numFlows)
	for i := range packets {
		packets[i] = buildDatagram(i, *pktSize)
	}

	var sent, sendErrs atomic.Int64
	deadline := time.Now().Add(*duration)

	log.Printf("Flooding %s with %d goroutines for %s...", *target, *threads, *duration)
	var wg sync.WaitGroup
	for t := 0; t < *threads; t++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			conn, err := net.DialUDP("udp4", nil, addr)
			if err != nil {
				log.Printf("sender %d: dial failed: %v", id, err)
				return
			}
			defer conn.Close()

			for i := id; time.Now().Before(deadline); i += *threads {
				if _, err := conn.Write(packets[i%len(packets)]); err != nil {
					sendErrs.Add(1)
					continue
				}
				sent.Add(1)
			}
		}(t)
	}

	progress := time.NewTicker(time.Second)
	defer progress.Stop()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	start := time.Now()
	last := int64(0)
	for {
		select {
		case <-progress.C:
			now := sent.Load()
			log.Printf("sent=%d rate=%d pps errors=%d", now, now-last, sendErrs.Load())
			last = now
		case <-done:
			elapsed := time.Since(start).Seconds()
			log.Printf("Done: %d packets in %.1fs (%.0f pps), %d send errors",
				sent.Load(), elapsed, float64(sent.Load())/elapsed, sendErrs.Load())
			return
		}
	}
}

// buildDatagram serializes a VXLAN-encapsulated inner frame for flow id.
// Addresses spread across 10.0.0.0/8 -> 172.16.0.0/12 and every third flow
// is UDP, mirroring the traffic mix of a busy VPC.
func buildDatagram(flowID, payloadSize int) []byte {
	srcIP := net.IP{10, byte(flowID >> 16), byte(flowID >> 8), byte(flowID) | 1}
	dstIP := net.IP{172, byte(16 + (flowID>>16)&0x0f), byte(flowID >> 8), byte(flowID) | 1}
	srcPort := 1024 + flowID%60000
	dstPort := 80 + flowID%1000

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version: 4,
		TTL:     64,
		SrcIP:   srcIP,
		DstIP:   dstIP,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	payload := gopacket.Payload(make([]byte, payloadSize))

	var err error
	if flowID%3 == 0 {
		ip.Protocol = layers.IPProtocolUDP
		udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
		udp.SetNetworkLayerForChecksum(ip)
		err = gopacket.SerializeLayers(buf, opts, eth, ip, udp, payload)
	} else {
		ip.Protocol = layers.IPProtocolTCP
		tcp := &layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort), Window: 14600}
		tcp.SetNetworkLayerForChecksum(ip)
		err = gopacket.SerializeLayers(buf, opts, eth, ip, tcp, payload)
	}
	if err != nil {
		log.Fatalf("Failed to serialize flow %d: %v", flowID, err)
	}

	vxlan := []byte{0x08, 0x00, 0x00, 0x00, 0x00, 0x30, 0x39, 0x00} // VNI 12345
	return append(vxlan, buf.Bytes()...)
}

package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	hcversion "github.com/hashicorp/go-version"
	"github.com/pion/rtp"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// Status TLV tag numbers, the subset this port needs, taken from
// ka9q-radio's status.h enum (module L, grounded on radiod_status.go).
const (
	tagOutputSSRC = 18
	tagLNAGain    = 30
	tagMixerGain  = 31
	tagIFGain     = 32
	tagIFPower    = 47
	tagRFAtten    = 96
	tagRFGain     = 97
	tagRFAGC      = 98
	tagADOver     = 103
	tagEOL        = 0
)

// FrontendStatus is the decoded content of a radiod STATUS packet,
// mirroring radiod_status.go's FrontendStatus.
type FrontendStatus struct {
	SSRC         uint32
	LNAGain      int32
	MixerGain    int32
	IFGain       int32
	RFGain       float32
	RFAtten      float32
	RFAGC        bool
	IFPower      float32
	ADOverranges int64
	LastUpdate   time.Time
}

// MulticastConfig configures a MulticastSource against a ka9q-radio-style
// RTP/UDP multicast IQ feed plus its companion STATUS group.
type MulticastConfig struct {
	DataAddr   string // e.g. "239.1.2.3:5004", IQ RTP stream
	StatusAddr string // e.g. "239.1.2.3:5005", STATUS packets
	Interface  string // network interface name, "" = default
	SSRC       uint32 // channel SSRC to accept; 0 = accept first seen
}

// MulticastSource is a live-hardware Source backed by a ka9q-radio-style
// RTP multicast IQ feed, grounded on the teacher's radiod.go (multicast
// join, command encoder) and radiod_status.go (STATUS listener,
// SO_REUSEPORT, TLV decode).
type MulticastSource struct {
	cfg   MulticastConfig
	iface *net.Interface

	dataConn   *net.UDPConn
	statusConn *net.UDPConn

	sessionID uuid.UUID
	apiVer    *hcversion.Version

	mu         sync.Mutex
	status     map[uint32]*FrontendStatus
	cancelled  bool
	started    bool
	ssrc       uint32
	lastRead   time.Time
	samples    chan Sample
	readErr    error
	info       Info

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewMulticastSource joins the data and status multicast groups and
// prepares (but does not start) packet processing.
func NewMulticastSource(cfg MulticastConfig) (*MulticastSource, error) {
	var iface *net.Interface
	if cfg.Interface != "" {
		var err error
		iface, err = net.InterfaceByName(cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("source: resolve interface %s: %w", cfg.Interface, err)
		}
	}

	apiVer, err := hcversion.NewVersion("1.0.0")
	if err != nil {
		return nil, fmt.Errorf("source: parse capability version: %w", err)
	}

	ms := &MulticastSource{
		cfg:       cfg,
		iface:     iface,
		sessionID: uuid.New(),
		apiVer:    apiVer,
		status:    make(map[uint32]*FrontendStatus),
		ssrc:      cfg.SSRC,
		samples:   make(chan Sample, 1<<16),
		stop:      make(chan struct{}),
		info: Info{
			Permissions: PermSetFreq | PermSetGain | PermSetBandwidth | PermSetPPM | PermSetAGC,
			MTU:         4096,
			RealTime:    true,
			APIVersion:  apiVer.String(),
		},
	}

	dataAddr, err := net.ResolveUDPAddr("udp4", cfg.DataAddr)
	if err != nil {
		return nil, fmt.Errorf("source: resolve data multicast addr: %w", err)
	}
	ms.dataConn, err = joinMulticast(dataAddr, iface)
	if err != nil {
		return nil, fmt.Errorf("source: join data multicast group: %w", err)
	}

	if cfg.StatusAddr != "" {
		statusAddr, err := net.ResolveUDPAddr("udp4", cfg.StatusAddr)
		if err != nil {
			ms.dataConn.Close()
			return nil, fmt.Errorf("source: resolve status multicast addr: %w", err)
		}
		ms.statusConn, err = joinMulticast(statusAddr, iface)
		if err != nil {
			ms.dataConn.Close()
			return nil, fmt.Errorf("source: join status multicast group: %w", err)
		}
	}

	log.Printf("MulticastSource: session %s joined data=%s status=%s (api %s)",
		ms.sessionID, cfg.DataAddr, cfg.StatusAddr, apiVer)

	return ms, nil
}

// joinMulticast opens a UDP socket with SO_REUSEPORT/SO_REUSEADDR (so
// multiple analyzer instances can share a multicast feed, exactly the
// teacher's StartStatusListener rationale) and joins the given group.
func joinMulticast(addr *net.UDPAddr, iface *net.Interface) (*net.UDPConn, error) {
	var controlErr error
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
					controlErr = fmt.Errorf("SO_REUSEADDR: %w", err)
					return
				}
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
					controlErr = fmt.Errorf("SO_REUSEPORT: %w", err)
					return
				}
			})
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", addr.String())
	if err != nil {
		return nil, err
	}
	if controlErr != nil {
		pc.Close()
		return nil, controlErr
	}

	conn := pc.(*net.UDPConn)
	p := ipv4.NewPacketConn(conn)
	if err := p.JoinGroup(iface, addr); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join group: %w", err)
	}

	return conn, nil
}

// Start launches the RTP IQ reader and, if configured, the STATUS
// listener goroutines.
func (ms *MulticastSource) Start(ctx context.Context) error {
	ms.mu.Lock()
	if ms.started {
		ms.mu.Unlock()
		return nil
	}
	ms.started = true
	ms.mu.Unlock()

	ms.wg.Add(1)
	go ms.readDataLoop()

	if ms.statusConn != nil {
		ms.wg.Add(1)
		go ms.readStatusLoop()
	}

	return nil
}

func (ms *MulticastSource) readDataLoop() {
	defer ms.wg.Done()

	buf := make([]byte, 65536)
	for {
		select {
		case <-ms.stop:
			return
		default:
		}

		ms.dataConn.SetReadDeadline(time.Now().Add(time.Second))
		n, err := ms.dataConn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			ms.mu.Lock()
			ms.readErr = fmt.Errorf("source: read multicast data: %w", err)
			ms.mu.Unlock()
			continue
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}

		ms.mu.Lock()
		if ms.ssrc == 0 {
			ms.ssrc = pkt.SSRC
		}
		accept := pkt.SSRC == ms.ssrc
		ms.mu.Unlock()
		if !accept {
			continue
		}

		payload := pkt.Payload
		for i := 0; i+8 <= len(payload); i += 8 {
			re := math.Float32frombits(binary.BigEndian.Uint32(payload[i:]))
			im := math.Float32frombits(binary.BigEndian.Uint32(payload[i+4:]))
			select {
			case ms.samples <- complex(float64(re), float64(im)):
			case <-ms.stop:
				return
			}
		}

		ms.mu.Lock()
		ms.lastRead = time.Now()
		ms.mu.Unlock()
	}
}

func (ms *MulticastSource) readStatusLoop() {
	defer ms.wg.Done()

	buf := make([]byte, 9000)
	for {
		select {
		case <-ms.stop:
			return
		default:
		}

		ms.statusConn.SetReadDeadline(time.Now().Add(time.Second))
		n, err := ms.statusConn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			continue
		}
		if n < 2 || buf[0] != 0 {
			continue
		}
		ms.parseStatus(buf[1:n])
	}
}

func (ms *MulticastSource) parseStatus(data []byte) {
	st := &FrontendStatus{LastUpdate: time.Now()}

	offset := 0
	for offset < len(data) {
		if offset+1 >= len(data) {
			break
		}
		tag := data[offset]
		offset++
		if tag == tagEOL {
			break
		}
		length := int(data[offset])
		offset++
		if offset+length > len(data) {
			break
		}
		value := data[offset : offset+length]
		switch tag {
		case tagOutputSSRC:
			st.SSRC = decodeU32(value)
		case tagLNAGain:
			st.LNAGain = int32(decodeU32(value))
		case tagMixerGain:
			st.MixerGain = int32(decodeU32(value))
		case tagIFGain:
			st.IFGain = int32(decodeU32(value))
		case tagRFGain:
			st.RFGain = decodeF32(value)
		case tagRFAtten:
			st.RFAtten = decodeF32(value)
		case tagRFAGC:
			st.RFAGC = decodeU32(value) != 0
		case tagIFPower:
			st.IFPower = decodeF32(value)
		case tagADOver:
			st.ADOverranges = int64(decodeU32(value))
		}
		offset += length
	}

	if st.SSRC != 0 {
		ms.mu.Lock()
		ms.status[st.SSRC] = st
		ms.mu.Unlock()
	}
}

func decodeU32(data []byte) uint32 {
	var v uint32
	for _, b := range data {
		v = (v << 8) | uint32(b)
	}
	return v
}

func decodeF32(data []byte) float32 {
	bits := decodeU32(data)
	if len(data) < 4 {
		bits <<= uint((4 - len(data)) * 8)
	}
	return math.Float32frombits(bits)
}

// FrontendStatus returns the last known status for the accepted SSRC,
// or nil if none has arrived yet.
func (ms *MulticastSource) FrontendStatus() *FrontendStatus {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	st, ok := ms.status[ms.ssrc]
	if !ok {
		return nil
	}
	cp := *st
	return &cp
}

// Cancel sets the force-EOS flag and stops the reader goroutines.
func (ms *MulticastSource) Cancel() {
	ms.mu.Lock()
	if ms.cancelled {
		ms.mu.Unlock()
		return
	}
	ms.cancelled = true
	ms.mu.Unlock()
	close(ms.stop)
	ms.wg.Wait()
}

// Read drains decoded IQ samples from the internal channel, blocking up
// to a short interval (the live-radio equivalent of internal retry on
// timeout/underflow, spec.md §4.E).
func (ms *MulticastSource) Read(buf []Sample) ReadResult {
	ms.mu.Lock()
	if ms.cancelled && len(ms.samples) == 0 {
		ms.mu.Unlock()
		return ReadResult{Kind: ReadEOS}
	}
	if err := ms.readErr; err != nil {
		ms.readErr = nil
		ms.mu.Unlock()
		return ReadResult{Kind: ReadError, Err: err}
	}
	ms.mu.Unlock()

	n := 0
	deadline := time.After(200 * time.Millisecond)
	for n < len(buf) {
		select {
		case s := <-ms.samples:
			buf[n] = s
			n++
		case <-deadline:
			if n == 0 {
				return ReadResult{Kind: ReadTimeout}
			}
			return ReadResult{Kind: ReadOK, Count: n}
		}
	}
	return ReadResult{Kind: ReadOK, Count: n}
}

// GetTime reports the wall-clock time of the most recently received
// RTP packet.
func (ms *MulticastSource) GetTime() time.Time {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.lastRead
}

// Info returns the source's capability snapshot, enriched with the
// frontend's reported gain state when available.
func (ms *MulticastSource) Info() Info {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	info := ms.info
	if st, ok := ms.status[ms.ssrc]; ok && st.RFAGC {
		info.Permissions &^= PermSetGain
	}
	return info
}

// The mutators below build and send a radiod-style tag-length-value
// command on the data socket, reusing the wire format radiod.go's
// buildCommand/encodeXxx helpers define, since the multicast source
// shares its control channel with the original radiod tool.

func (ms *MulticastSource) sendTLVCommand(tag byte, payload []byte) error {
	cmd := make([]byte, 0, len(payload)+8)
	cmd = append(cmd, 1) // pktTypeCmd
	ssrcBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(ssrcBytes, ms.ssrc)
	cmd = append(cmd, tagOutputSSRC, 4)
	cmd = append(cmd, ssrcBytes...)
	cmd = append(cmd, tag, byte(len(payload)))
	cmd = append(cmd, payload...)
	cmd = append(cmd, tagEOL)

	if _, err := ms.dataConn.Write(cmd); err != nil {
		return fmt.Errorf("source: send control command: %w", err)
	}
	return nil
}

func float64Bytes(v float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	return b
}

func (ms *MulticastSource) SetFrequency(hz float64) error {
	if ms.info.Permissions&PermSetFreq == 0 {
		return ErrUnsupported
	}
	return ms.sendTLVCommand(1, float64Bytes(hz))
}

func (ms *MulticastSource) SetGain(name string, val float64) error {
	if ms.info.Permissions&PermSetGain == 0 {
		return ErrUnsupported
	}
	return ms.sendTLVCommand(tagIFGain, float64Bytes(val))
}

func (ms *MulticastSource) SetAntenna(name string) error {
	return fmt.Errorf("source: %w: multicast source has no antenna selector", ErrUnsupported)
}

func (ms *MulticastSource) SetBandwidth(hz float64) error {
	if ms.info.Permissions&PermSetBandwidth == 0 {
		return ErrUnsupported
	}
	return ms.sendTLVCommand(2, float64Bytes(hz))
}

func (ms *MulticastSource) SetPPM(ppm float64) error {
	if ms.info.Permissions&PermSetPPM == 0 {
		return ErrUnsupported
	}
	return ms.sendTLVCommand(3, float64Bytes(ppm))
}

func (ms *MulticastSource) SetDCRemove(enabled bool) error {
	return fmt.Errorf("source: %w: radiod frontends perform DC removal upstream", ErrUnsupported)
}

func (ms *MulticastSource) SetAGC(enabled bool) error {
	if ms.info.Permissions&PermSetAGC == 0 {
		return ErrUnsupported
	}
	v := byte(0)
	if enabled {
		v = 1
	}
	return ms.sendTLVCommand(tagRFAGC, []byte{v})
}

// Close stops all reader goroutines and releases the multicast sockets.
func (ms *MulticastSource) Close() error {
	ms.Cancel()

	if err := ms.dataConn.Close(); err != nil {
		return fmt.Errorf("source: close data socket: %w", err)
	}
	if ms.statusConn != nil {
		if err := ms.statusConn.Close(); err != nil {
			return fmt.Errorf("source: close status socket: %w", err)
		}
	}
	return nil
}

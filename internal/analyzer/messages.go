// Package analyzer implements the Local Analyzer (spec.md §4.J): the
// concurrent orchestration engine that couples the sample source, the
// spectral tuner, the channel detector, the inspector scheduler and the
// slow-control path under a single message-driven state machine.
//
// Grounded on the teacher's goroutine-plus-channel orchestration idiom
// (spectrum.go's stopChan/wg pattern, radiod_status.go's listener
// goroutine), generalized from "one fixed event loop" to "a control
// thread multiplexing a typed mq.Queue against capture events", since
// spec.md §4.J specifies exactly that shape and no single teacher file
// already does it.
package analyzer

import (
	"time"

	"github.com/cwsl/sdranalyzer/internal/detector"
	"github.com/cwsl/sdranalyzer/internal/mq"
	"github.com/cwsl/sdranalyzer/internal/source"
)

// Input message kinds, accepted on the analyzer's input queue (In()).
const (
	KindHalt mq.Kind = iota + 2000
	KindInspector
	KindEOS
	KindChannel
	KindThrottle
	KindParams
)

// Output message kinds, emitted on the analyzer's output queue (Out()).
const (
	KindSourceInit mq.Kind = iota + 3000
	KindOutEOS
	KindOutChannel
	KindPSD
	KindOutInspector
	KindOutHalt
	// KindOutBaud carries an autocorrelation-mode detector's baud
	// estimate; spec.md §6 enumerates the wire kinds for spectrum-mode
	// output (PSD/CHANNEL) but the detector's other mode (spec.md
	// §4.F) needs a home too.
	KindOutBaud
)

// SourceInitStatus reports whether source capture started successfully
// (spec.md §6: "SOURCE_INIT {status, detail}").
type SourceInitStatus int

const (
	SourceInitOK SourceInitStatus = iota
	SourceInitFailed
)

// SourceInitPayload is the KindSourceInit output message payload.
type SourceInitPayload struct {
	Status SourceInitStatus
	Detail string
}

// ChannelListPayload is the KindOutChannel output message payload.
type ChannelListPayload struct {
	Channels []detector.Channel
}

// PSDPayload is the KindPSD output message payload.
type PSDPayload struct {
	Frame *detector.PSDFrame
}

// BaudPayload is the KindOutBaud output message payload.
type BaudPayload struct {
	Estimate *detector.BaudEstimate
}

// ThrottlePayload is the KindThrottle input message payload. SampRate
// of 0 means "reset to source rate" (spec.md §4.J step 3, THROTTLE).
type ThrottlePayload struct {
	SampRate float64
}

// ParamsPayload is the KindParams input message payload: detector
// reconfiguration plus cadence updates (spec.md §4.J step 3, PARAMS).
type ParamsPayload struct {
	WindowSize       int
	Mode             detector.Mode
	Fc               float64
	IntervalPSD      time.Duration
	IntervalChannels time.Duration
	MinSNRdB         float64
	MaxChannels      int
}

// InspectorCmdKind selects an inspector-message operation (spec.md
// §4.J step 3, INSPECTOR: "parser takes ownership of payload").
type InspectorCmdKind int

const (
	InspectorOpen InspectorCmdKind = iota
	InspectorClose
	InspectorSetFrequency
	InspectorSetBandwidth
	InspectorSetConfig
)

// InspectorCmd is the KindInspector input message payload.
type InspectorCmd struct {
	Cmd     InspectorCmdKind
	Handle  int      // valid for Close/SetFrequency/SetBandwidth/SetConfig
	Factory InspFactory // valid for Open
	Fc      float64
	BW      float64
	Guard   float64
	Precise bool
	Config  map[string]float64

	// ReplyTo, if non-nil, receives the result of this command. Open
	// replies with OpenResult; the rest reply with error (nil on
	// success).
	ReplyTo chan any
}

// OpenResult is the reply for an InspectorOpen command.
type OpenResult struct {
	Handle int
	Err    error
}

// InspOutputPayload wraps an inspector's Feed result for emission on
// the output queue as an INSPECTOR message (spec.md §6).
type InspOutputPayload struct {
	Handle  int
	Payload any
}

// defaultReadSize is the minimum read-buffer size absent any
// source-reported MTU, the Go analog of SUSCAN_ANALYZER_READ_SIZE
// (spec.md §4.J step 1).
const defaultReadSize = 1 << 15

func readSizeFor(info source.Info) int {
	if info.MTU > defaultReadSize {
		return info.MTU
	}
	return defaultReadSize
}

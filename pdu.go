package csmaca

// pdu.go holds the MAC-layer protocol data units and the air frame that
// carries them.  PDUs are immutable once constructed; a retransmission
// builds a fresh DataPDU around the same network packet rather than
// mutating the one already sent, so in-flight bookkeeping keyed by PDU
// identity stays collision-free.

import "fmt"

// PDUKind discriminates the two MAC frame bodies
type PDUKind int

const (
	DataPDUKind PDUKind = iota
	AckPDUKind
)

// PDU is a MAC protocol data unit.  Size is in bits.
type PDU interface {
	Size() int
	Kind() PDUKind
	SenderAddr() int
	ReceiverAddr() int
}

// DataPDU carries one network packet between interface addresses
type DataPDU struct {
	packet     *NetworkPacket
	headerSize int
	seqn       int
	numRetries int
	sender     int
	receiver   int
}

// createDataPDU is a constructor.  headerSize covers PHY plus MAC headers.
func createDataPDU(packet *NetworkPacket, headerSize, seqn, numRetries,
	sender, receiver int) *DataPDU {

	return &DataPDU{
		packet:     packet,
		headerSize: headerSize,
		seqn:       seqn,
		numRetries: numRetries,
		sender:     sender,
		receiver:   receiver,
	}
}

func (pdu *DataPDU) Size() int         { return pdu.headerSize + pdu.packet.Size() }
func (pdu *DataPDU) Kind() PDUKind     { return DataPDUKind }
func (pdu *DataPDU) SenderAddr() int   { return pdu.sender }
func (pdu *DataPDU) ReceiverAddr() int { return pdu.receiver }

// Packet gives the network packet the PDU encapsulates
func (pdu *DataPDU) Packet() *NetworkPacket { return pdu.packet }

// Seqn gives the transmitter-local sequence number
func (pdu *DataPDU) Seqn() int { return pdu.seqn }

// NumRetries gives the attempt count of this copy, 1 for the first try
func (pdu *DataPDU) NumRetries() int { return pdu.numRetries }

func (pdu *DataPDU) String() string {
	return fmt.Sprintf("PDU{%d=>%d, seqn:%d, %db}",
		pdu.sender, pdu.receiver, pdu.seqn, pdu.Size())
}

// AckPDU acknowledges one DataPDU.  Its header is the PHY header only.
type AckPDU struct {
	headerSize int
	ackSize    int
	sender     int
	receiver   int
}

// createAckPDU is a constructor
func createAckPDU(headerSize, ackSize, sender, receiver int) *AckPDU {
	return &AckPDU{
		headerSize: headerSize,
		ackSize:    ackSize,
		sender:     sender,
		receiver:   receiver,
	}
}

func (ack *AckPDU) Size() int         { return ack.headerSize + ack.ackSize }
func (ack *AckPDU) Kind() PDUKind     { return AckPDUKind }
func (ack *AckPDU) SenderAddr() int   { return ack.sender }
func (ack *AckPDU) ReceiverAddr() int { return ack.receiver }

func (ack *AckPDU) String() string {
	return fmt.Sprintf("ACK{%d=>%d, %db}", ack.sender, ack.receiver, ack.Size())
}

// AirFrame wraps a PDU for its passage over the medium.  The frame exists
// from the moment the sending radio starts transmitting until each
// receiving radio consumes it at frame end.
type AirFrame struct {
	pdu      PDU
	preamble float64
	bitrate  float64
}

// createAirFrame is a constructor
func createAirFrame(pdu PDU, preamble, bitrate float64) *AirFrame {
	return &AirFrame{pdu: pdu, preamble: preamble, bitrate: bitrate}
}

// PDU gives the frame body
func (frame *AirFrame) PDU() PDU { return frame.pdu }

// Duration gives the on-air time of the frame in seconds
func (frame *AirFrame) Duration() float64 {
	return float64(frame.pdu.Size())/frame.bitrate + frame.preamble
}

func (frame *AirFrame) String() string {
	return fmt.Sprintf("Frame[%.6fs with %v]", frame.Duration(), frame.pdu)
}

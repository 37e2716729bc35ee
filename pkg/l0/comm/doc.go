// Package comm provides the framed protocol between a host and the drive.
package comm

// Frames are exchanged over a half-duplex byte stream (RS485 at 125 kbaud
// on the hardware). Each frame carries an 8 byte header protected by its
// own CRC byte, followed by an optional payload protected by a 16 bit
// trailer:
//
//   0x55 | cmd | receiver | sender | dataBytes | frameNumber | 0 | hcrc
//   payload[dataBytes] | crc lo | crc hi
//
// Both checks use the CRC-32 generator in 32 bit word mode and keep the low
// bits of the result. There are no retransmissions: a corrupted frame is
// dropped and the host times out.
//
// Node is the device side: it owns a Parser, maps commands onto the
// parameter table and answers through a Transport.
// Client is the host side: it runs a Link and matches responses to
// requests by frame number.

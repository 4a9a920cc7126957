package fixture

import (
	"bytes"
	"encoding/binary"
)

const (
	wavSampleRate = 8000
	wavMaxMs      = 10_000
)

// silentWAV returns a mono 16-bit PCM WAV of silence lasting ms (capped at
// ten seconds, at least one sample).
func silentWAV(ms float64) []byte {
	if ms > wavMaxMs {
		ms = wavMaxMs
	}
	samples := int(ms * wavSampleRate / 1000)
	if samples < 1 {
		samples = 1
	}
	dataLen := uint32(samples * 2)

	var buf bytes.Buffer
	buf.Grow(44 + int(dataLen))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(wavSampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(wavSampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}

// wavDurationSeconds reads the duration from a canonical PCM WAV header and
// returns 0 for anything else.
func wavDurationSeconds(data []byte) float64 {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0
	}
	byteRate := binary.LittleEndian.Uint32(data[28:32])
	if byteRate == 0 || string(data[36:40]) != "data" {
		return 0
	}
	dataLen := binary.LittleEndian.Uint32(data[40:44])
	return float64(dataLen) / float64(byteRate)
}

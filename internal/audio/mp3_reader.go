package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// mp3Reader decodes an entire MP3 file into mono float32 samples at the
// file's native sample rate. go-mp3 has no seek support, so Replay reads the
// whole file up front rather than streaming it incrementally.
type mp3Reader struct {
	decoder    *mp3.Decoder
	file       *os.File
	sampleRate int
	length     int64 // PCM byte length, 16-bit stereo
}

func newMP3Reader(path string) (*mp3Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mp3: %w", err)
	}
	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	return &mp3Reader{
		decoder:    decoder,
		file:       file,
		sampleRate: decoder.SampleRate(),
		length:     decoder.Length(),
	}, nil
}

func (r *mp3Reader) Close() error { return r.file.Close() }

// readAllMono decodes the full file to mono float32 samples; go-mp3 always
// decodes to 16-bit stereo PCM, so stereo is averaged down to mono here.
func (r *mp3Reader) readAllMono() ([]float32, int, error) {
	pcm := make([]byte, r.length)
	n, err := io.ReadFull(r.decoder, pcm)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, 0, fmt.Errorf("read mp3 pcm: %w", err)
	}
	pcm = pcm[:n]

	numSamples := n / 4 // 2 bytes/sample * 2 channels
	mono := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		left := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		right := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		mono[i] = (float32(left) + float32(right)) / 2 / 32768.0
	}
	return mono, r.sampleRate, nil
}

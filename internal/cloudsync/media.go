package cloudsync

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"

	"malsori/internal/model"
)

// ContainerFormat is the result of sniffing a media payload's leading bytes.
type ContainerFormat string

const (
	FormatWAV     ContainerFormat = "wav"
	FormatWebM    ContainerFormat = "webm"
	FormatUnknown ContainerFormat = "unknown"
)

// defaultSampleRate is assumed for raw PCM when neither the record nor the
// mime string carries a rate.
const defaultSampleRate = 16000

// webmMagic is the EBML header that opens every WebM/Matroska stream.
var webmMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// SniffContainerFormat classifies a payload by its magic number. Mime-type
// hints on chunks can be wrong for mislabeled or partially written streams;
// the byte signature is what decides.
func SniffContainerFormat(data []byte) ContainerFormat {
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		return FormatWAV
	}
	if len(data) >= 4 && bytes.Equal(data[0:4], webmMagic) {
		return FormatWebM
	}
	return FormatUnknown
}

// MediaArtifact is one assembled uploadable media file.
type MediaArtifact struct {
	Name     string
	MimeType string
	Data     []byte
}

// AssembleAudio builds the single uploadable audio file for a record from its
// stored chunks. Source-file chunks are excluded; capture chunks and legacy
// chunks with no role tag participate. Returns nil when there is no audio.
func AssembleAudio(rec *model.Transcription, chunks []model.AudioChunk) *MediaArtifact {
	var capture []model.AudioChunk
	for _, c := range chunks {
		if c.Role == model.RoleSourceFile {
			continue
		}
		capture = append(capture, c)
	}
	if len(capture) == 0 {
		return nil
	}
	sortChunksByIndex(capture)

	mime := ""
	for _, c := range capture {
		if c.MimeType != "" {
			mime = c.MimeType
			break
		}
	}

	// The mime hint only counts when the first chunk's bytes agree with it.
	// A container claim over non-container bytes falls through to PCM.
	first := capture[0].Data
	switch {
	case strings.Contains(mime, "wav") && SniffContainerFormat(first) == FormatWAV:
		return &MediaArtifact{Name: "audio.wav", MimeType: "audio/wav", Data: concatAudio(capture)}
	case strings.Contains(mime, "webm") && SniffContainerFormat(first) == FormatWebM:
		return &MediaArtifact{Name: "audio.webm", MimeType: "audio/webm", Data: concatAudio(capture)}
	}

	rate := rec.SampleRate
	if rate <= 0 {
		rate = parseMimeRate(mime)
	}
	if rate <= 0 {
		rate = defaultSampleRate
	}
	channels := rec.ChannelCount
	if channels < 1 {
		channels = 1
	}

	return &MediaArtifact{
		Name:     "audio.wav",
		MimeType: "audio/wav",
		Data:     BuildWAV(concatAudio(capture), rate, channels),
	}
}

// AssembleVideo concatenates a record's video chunks verbatim. Returns nil
// when there is no video.
func AssembleVideo(chunks []model.VideoChunk) *MediaArtifact {
	if len(chunks) == 0 {
		return nil
	}
	sorted := make([]model.VideoChunk, len(chunks))
	copy(sorted, chunks)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].ChunkIndex < sorted[j-1].ChunkIndex; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	mime := ""
	var data []byte
	for _, c := range sorted {
		if mime == "" && c.MimeType != "" {
			mime = c.MimeType
		}
		data = append(data, c.Data...)
	}

	name := "video.webm"
	outMime := "video/webm"
	if strings.Contains(mime, "mp4") {
		name = "video.mp4"
		outMime = "video/mp4"
	}
	return &MediaArtifact{Name: name, MimeType: outMime, Data: data}
}

// BuildWAV wraps raw 16-bit little-endian PCM samples in a canonical WAV
// container. The result is always 44 bytes of header plus the payload.
func BuildWAV(pcm []byte, sampleRate, channels int) []byte {
	const (
		bitsPerSample = 16
		headerSize    = 44
	)
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// parseMimeRate extracts a rate=<n> parameter from a mime string such as
// "audio/pcm;rate=48000". Returns 0 when absent or invalid.
func parseMimeRate(mime string) int {
	for _, part := range strings.Split(mime, ";") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "rate="); ok {
			rate, err := strconv.Atoi(v)
			if err == nil && rate > 0 {
				return rate
			}
		}
	}
	return 0
}

func sortChunksByIndex(chunks []model.AudioChunk) {
	for i := 1; i < len(chunks); i++ {
		for j := i; j > 0 && chunks[j].ChunkIndex < chunks[j-1].ChunkIndex; j-- {
			chunks[j], chunks[j-1] = chunks[j-1], chunks[j]
		}
	}
}

func concatAudio(chunks []model.AudioChunk) []byte {
	var data []byte
	for _, c := range chunks {
		data = append(data, c.Data...)
	}
	return data
}

// ABOUTME: Abstract frame source the decoder worker pulls from
// ABOUTME: Codec/demuxer decoding of file formats is a collaborator's concern, never this package's
package decoder

// FrameSource is the abstract decoder the spec treats as an external
// collaborator: given a start frame position, it produces interleaved
// float32 frames in the device's channel layout and sample rate.
// Concrete implementations (raw PCM, MP3, Opus, FLAC, test tones) live
// in pkg/source and never appear here.
type FrameSource interface {
	// Channels reports the interleaved channel count this source
	// produces.
	Channels() int

	// Seek repositions the source's logical cursor to the given frame
	// index. Implementations that are asked to seek past their own
	// length should make the next Fill report eof immediately rather
	// than clamp to their duration — that clamping decision belongs
	// to the source, not the decoder worker.
	Seek(frame int64) error

	// Fill writes up to len(dst)/Channels() frames into dst and
	// returns the number of frames actually written. eof is true once
	// the source has no more frames to produce, even if n > 0 on the
	// same call (a final short chunk may carry both).
	Fill(dst []float32) (n int, eof bool, err error)

	// Close releases source resources.
	Close() error
}

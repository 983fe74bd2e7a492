package ffmpeg

// Params represents all parameters needed to generate the HLS packaging command.
type Params struct {
	// Binary is the ffmpeg executable (default "ffmpeg").
	Binary string

	// Input
	InputURL string
	Options  []OptionType // behavior flags applied around the input

	// HLS muxer
	HLSTime     int    // target segment duration in seconds
	HLSListSize int    // playlist entries kept
	HLSFlags    string // e.g. delete_segments
	OutputPath  string // absolute playlist path

	// ExtraArgs are inserted after the codec selection and before the muxer.
	ExtraArgs []string

	// ProgressSocket enables -progress reporting to a unix socket.
	ProgressSocket string
}

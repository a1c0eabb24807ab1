package clip

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// remuxArgs repackages the concatenated MPEG-TS bytes into a fragmented MP4
// without re-encoding. aac_adtstoasc rewrites the audio bitstream for the MP4
// container; frag_keyframe+empty_moov lets ffmpeg write to a non-seekable pipe.
var remuxArgs = []string{
	"-hide_banner", "-loglevel", "error",
	"-i", "pipe:0",
	"-c:v", "copy",
	"-c:a", "copy",
	"-bsf:a", "aac_adtstoasc",
	"-movflags", "frag_keyframe+empty_moov",
	"-f", "mp4",
	"pipe:1",
}

// Remux pipes the transport-stream bytes from in through ffmpeg and writes the
// resulting MP4 to out. The ffmpeg process is killed when ctx is canceled.
func Remux(ctx context.Context, ffmpegPath string, in io.Reader, out io.Writer) error {
	cmd := exec.CommandContext(ctx, ffmpegPath, remuxArgs...)
	cmd.Stdin = in
	cmd.Stdout = out
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[:512]
		}
		if msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

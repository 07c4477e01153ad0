package session

import (
	"context"
	"time"
)

// runIngest pulls audio frames from the client and forwards them until the
// stream ends. It reports whether any audio was received and the first send
// failure, if one occurred.
//
// The stream ends when:
//   - the client sends an empty frame (explicit end-of-audio signal),
//   - no frame arrives within timeout after audio has started,
//   - the frames channel closes (transport disconnect),
//   - or ctx is cancelled.
//
// A timeout before the first frame keeps waiting: the client may still be
// acquiring its microphone. Only the session deadline on ctx bounds that
// wait.
func runIngest(ctx context.Context, frames <-chan []byte, timeout time.Duration, send func([]byte) error) (audioReceived bool, err error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return audioReceived, nil
		case frame, ok := <-frames:
			if !ok || len(frame) == 0 {
				return audioReceived, nil
			}
			audioReceived = true
			if err := send(frame); err != nil {
				return audioReceived, err
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(timeout)
		case <-timer.C:
			if audioReceived {
				return audioReceived, nil
			}
			timer.Reset(timeout)
		}
	}
}

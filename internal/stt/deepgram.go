package stt

import (
	"context"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// InitProvider initializes the Deepgram client library. Call once at startup.
func InitProvider() {
	client.Init(client.InitLib{LogLevel: client.LogLevelDefault})
}

// DeepgramFactory returns a ConnFactory that opens a Deepgram live
// transcription connection with the fixed recognition parameters this
// service streams with: linear 16-bit PCM, mono, 16kHz, interim results,
// silence-based utterance endpointing.
func DeepgramFactory(apiKey string) ConnFactory {
	return func(ctx context.Context, cb api.LiveMessageCallback) (Conn, error) {
		cOptions := &interfaces.ClientOptions{EnableKeepAlive: true}
		tOptions := &interfaces.LiveTranscriptionOptions{
			Model:          "nova-2",
			Language:       "en-US",
			Punctuate:      true,
			SmartFormat:    true,
			Encoding:       "linear16",
			Channels:       1,
			SampleRate:     16000,
			InterimResults: true,
			UtteranceEndMs: "1000",
			VadEvents:      true,
		}

		dg, err := client.NewWSUsingCallback(ctx, apiKey, cOptions, tOptions, cb)
		if err != nil {
			return nil, err
		}
		return dg, nil
	}
}

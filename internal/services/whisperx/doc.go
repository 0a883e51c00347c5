// Package whisperx transcribes audio with WhisperX launched through uvx.
//
// Service satisfies the scene detector's Transcriber capability: Available
// checks that uvx is on PATH and Transcribe returns sentence-level
// utterances parsed from the WhisperX JSON output. Model, device, VAD method
// and language come from Config.
package whisperx

package transport

import "errors"

var errMissingAudioFrame = errors.New("push_audio envelope missing audio_frame")

package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeController struct {
	startErr error
	sessions map[string]bool
}

func newFakeController() *fakeController {
	return &fakeController{sessions: make(map[string]bool)}
}

func (f *fakeController) StartSession(cfg SessionConfig) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.sessions["sess-1"] = true
	return "sess-1", nil
}

func (f *fakeController) Pause(sessionID string) error {
	if !f.sessions[sessionID] {
		return errors.New("unknown session")
	}
	return nil
}

func (f *fakeController) Resume(sessionID string) error { return f.Pause(sessionID) }
func (f *fakeController) Stop(sessionID string) error   { return f.Pause(sessionID) }

func (f *fakeController) PushAudio(sessionID string, frame AudioFrame) error {
	return f.Pause(sessionID)
}

func (f *fakeController) Metrics(sessionID string) (MetricsSnapshot, error) {
	if !f.sessions[sessionID] {
		return MetricsSnapshot{}, errors.New("unknown session")
	}
	return MetricsSnapshot{QueueDepth: 3}, nil
}

type fakeClient struct {
	sent []ControlEnvelope
}

func (f *fakeClient) Send(env ControlEnvelope) error {
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeClient) Close() error { return nil }

func TestDispatchStartSessionRepliesWithSessionID(t *testing.T) {
	h := NewHub(newFakeController())
	c := &fakeClient{}
	h.dispatch(c, ControlEnvelope{Type: TypeStartSession, StartConfig: &SessionConfig{DeviceID: "mic0"}})

	require.Len(t, c.sent, 1)
	require.Equal(t, TypeSessionStarted, c.sent[0].Type)
	require.Equal(t, "sess-1", c.sent[0].SessionID)
}

func TestDispatchPushAudioRequiresFrame(t *testing.T) {
	h := NewHub(newFakeController())
	c := &fakeClient{}
	h.dispatch(c, ControlEnvelope{Type: TypePushAudio, SessionID: "sess-1"})

	require.Len(t, c.sent, 1)
	require.NotEmpty(t, c.sent[0].Error)
}

func TestDispatchGetMetricsReturnsSnapshot(t *testing.T) {
	ctrl := newFakeController()
	h := NewHub(ctrl)
	c := &fakeClient{}
	h.dispatch(c, ControlEnvelope{Type: TypeStartSession, StartConfig: &SessionConfig{}})
	h.dispatch(c, ControlEnvelope{Type: TypeGetMetrics, SessionID: "sess-1"})

	require.Len(t, c.sent, 2)
	require.Equal(t, TypeMetrics, c.sent[1].Type)
	require.Equal(t, 3, c.sent[1].Metrics.QueueDepth)
}

func TestBroadcastFansOutToAllClients(t *testing.T) {
	h := NewHub(newFakeController())
	a, b := &fakeClient{}, &fakeClient{}
	h.addClient(a)
	h.addClient(b)

	h.EmitWarning("sess-1", WarningEvent{Code: "vad_flush", Detail: "buffer flushed on pause"})

	require.Len(t, a.sent, 1)
	require.Len(t, b.sent, 1)
	require.Equal(t, TypeWarning, a.sent[0].Type)
}

func TestDispatchUnknownTypeReturnsError(t *testing.T) {
	h := NewHub(newFakeController())
	c := &fakeClient{}
	h.dispatch(c, ControlEnvelope{Type: "not_a_real_op"})

	require.Len(t, c.sent, 1)
	require.NotEmpty(t, c.sent[0].Error)
}

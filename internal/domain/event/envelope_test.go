package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	env, err := Decode(TopicTask, []byte(`{"event_type":"task_updated","task_id":"t1","priority":3}`))
	require.NoError(t, err)

	assert.Equal(t, TopicTask, env.Topic)
	assert.Equal(t, TypeTaskUpdated, env.EventType)
	assert.NotContains(t, env.Payload, "event_type")

	v, ok := env.Payload.String("priority")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{`not json`, `null`, `[]`, `{}`, `{"event_type":""}`, `{"event_type":7}`} {
		_, err := Decode(TopicProject, []byte(raw))
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
}

func TestPayloadID(t *testing.T) {
	p := Payload{
		"ok":      "6f1c1f0e-2a39-4d55-9a8e-0d5b1f2f3a4b",
		"empty":   "",
		"bad":     "42",
		"numeric": 42.0,
	}

	_, present, err := p.ID("ok")
	assert.True(t, present)
	assert.NoError(t, err)

	_, present, err = p.ID("missing")
	assert.False(t, present)
	assert.NoError(t, err)

	_, present, err = p.ID("empty")
	assert.False(t, present)
	assert.NoError(t, err)

	_, _, err = p.ID("bad")
	assert.ErrorIs(t, err, ErrMalformed)

	_, _, err = p.ID("numeric")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFieldsRestoresEventType(t *testing.T) {
	env := Envelope{EventType: TypeCommentAdded, Payload: Payload{"task_id": "t1"}}

	f := env.Fields()
	assert.Equal(t, TypeCommentAdded, f["event_type"])
	assert.Equal(t, "t1", f["task_id"])
	assert.NotContains(t, env.Payload, "event_type", "Fields must not mutate the payload")
}

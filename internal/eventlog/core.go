package eventlog

import (
	"context"
	"time"

	"readly/internal/util"

	"go.uber.org/zap/zapcore"
)

const appendTimeout = 2 * time.Second

// core is a zapcore.Core that turns log entries into Events.
type core struct {
	zapcore.LevelEnabler
	store  Store
	fields []zapcore.Field
}

// NewCore returns a zapcore.Core that appends every entry enabled by level
// to store. Tee it with the regular output core.
func NewCore(store Store, level zapcore.LevelEnabler) zapcore.Core {
	return &core{LevelEnabler: level, store: store}
}

func (c *core) With(fields []zapcore.Field) zapcore.Core {
	clone := &core{
		LevelEnabler: c.LevelEnabler,
		store:        c.store,
		fields:       make([]zapcore.Field, 0, len(c.fields)+len(fields)),
	}
	clone.fields = append(clone.fields, c.fields...)
	clone.fields = append(clone.fields, fields...)
	return clone
}

func (c *core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	return c.store.Append(ctx, newEvent(ent, enc.Fields))
}

func (c *core) Sync() error {
	return nil
}

// newEvent lifts well-known fields out of the encoded map; the rest are
// kept verbatim in Event.Fields.
func newEvent(ent zapcore.Entry, fields map[string]interface{}) Event {
	ev := Event{
		ID:      util.NewULID(),
		Time:    ent.Time,
		Level:   ent.Level.String(),
		Message: ent.Message,
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	for k, v := range fields {
		switch k {
		case FieldCategory:
			ev.Category = asString(v)
		case FieldMethod:
			ev.Method = asString(v)
		case FieldPath:
			ev.Path = asString(v)
		case FieldRequestID:
			ev.RequestID = asString(v)
		case FieldError:
			ev.Error = asString(v)
		case FieldStatus:
			if n, ok := asInt(v); ok {
				ev.Status = n
			}
		case FieldQuestionIndex:
			if n, ok := asInt(v); ok {
				ev.QuestionIndex = &n
			}
		default:
			if ev.Fields == nil {
				ev.Fields = make(map[string]interface{})
			}
			ev.Fields[k] = v
		}
	}
	return ev
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}

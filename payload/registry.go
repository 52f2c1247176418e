package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/xraph/vigil"
)

// Decoder turns raw payload bytes into a value.
type Decoder func(data []byte) (any, error)

// Rendering is the display form of one payload.
type Rendering struct {
	// Class is the payload class name as stored by the backend.
	Class string `json:"class"`

	// Fields holds display values when the payload is introspectable.
	Fields map[string]any `json:"fields,omitempty"`

	// Placeholder is set instead of Fields for opaque payloads.
	Placeholder string `json:"placeholder,omitempty"`

	// JSON is an indented JSON rendering of Fields or Placeholder.
	JSON string `json:"json,omitempty"`
}

// Registry maps payload class names to decoders. It is safe for concurrent
// use.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
	codec    Codec
	fallback bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithCodec sets the codec used by the fallback decoder.
func WithCodec(c Codec) Option {
	return func(r *Registry) { r.codec = c }
}

// WithFallback controls whether payloads of unregistered classes are
// decoded into a generic field map. Enabled by default.
func WithFallback(enabled bool) Option {
	return func(r *Registry) { r.fallback = enabled }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		decoders: make(map[string]Decoder),
		codec:    JSONCodec{},
		fallback: true,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register associates a payload class with type T decoded by codec. The
// decoded value is a *T so pointer-receiver Fields methods are honored.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func Register[T any](r *Registry, class string, codec Codec) {
	r.RegisterDecoder(class, func(data []byte) (any, error) {
		v := new(T)
		if err := codec.Unmarshal(data, v); err != nil {
			return nil, err
		}
		return v, nil
	})
}

// RegisterDecoder associates a payload class with a decoder.
func (r *Registry) RegisterDecoder(class string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[class] = d
}

// Classes returns the registered class names.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.decoders))
	for name := range r.decoders {
		names = append(names, name)
	}
	return names
}

func (r *Registry) decoder(class string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[class]
	return d, ok
}

// Render decodes and renders a payload. Any failure, including a panic in a
// decoder or Fields method, is reported as an error matching
// vigil.ErrPayloadIntrospection.
func (r *Registry) Render(class string, data []byte) (out *Rendering, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = fmt.Errorf("%w: class %q: panic: %v", vigil.ErrPayloadIntrospection, class, p)
		}
	}()

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: class %q: empty payload", vigil.ErrPayloadIntrospection, class)
	}

	value, err := r.decode(class, data)
	if err != nil {
		return nil, fmt.Errorf("%w: class %q: %w", vigil.ErrPayloadIntrospection, class, err)
	}

	out = &Rendering{Class: class}
	var shown any
	if in, ok := value.(Introspectable); ok {
		fields := in.Fields()
		out.Fields = make(map[string]any, len(fields))
		for k, v := range fields {
			out.Fields[k] = DisplayValue(v)
		}
		shown = out.Fields
	} else {
		out.Placeholder = TypePlaceholder(value)
		shown = out.Placeholder
	}

	pretty, err := json.MarshalIndent(shown, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("%w: class %q: %w", vigil.ErrPayloadIntrospection, class, err)
	}
	out.JSON = string(pretty)
	return out, nil
}

var errNoDecoder = errors.New("no decoder registered")

func (r *Registry) decode(class string, data []byte) (any, error) {
	if d, ok := r.decoder(class); ok {
		return d(data)
	}
	if !r.fallback {
		return nil, errNoDecoder
	}
	var m map[string]any
	if err := r.codec.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return Fields(m), nil
}

package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
)

// Param is a single query parameter of an upstream API call.
type Param struct {
	Key   string
	Value interface{}
}

// Params is an ordered key/value set. Order matters twice: the dispatched
// query string and the logged JSON block must list parameters exactly as the
// caller built them, and log tooling parses the block back expecting the same
// order. A plain map would lose it.
type Params []Param

func P(key string, value interface{}) Param {
	return Param{Key: key, Value: value}
}

// Get returns the value for key, or nil if absent.
func (p Params) Get(key string) interface{} {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value
		}
	}
	return nil
}

// Encode builds the URL query string in parameter order. url.Values.Encode
// sorts keys, so the escaping is done by hand here.
func (p Params) Encode() string {
	var b bytes.Buffer
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(fmt.Sprint(kv.Value)))
	}
	return b.String()
}

// MarshalJSON emits a JSON object with keys in insertion order.
func (p Params) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, kv := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON reads a JSON object preserving key order.
func (p *Params) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("params: expected JSON object, got %v", tok)
	}
	out := Params{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("params: expected string key, got %v", keyTok)
		}
		var val interface{}
		if err := dec.Decode(&val); err != nil {
			return err
		}
		out = append(out, Param{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

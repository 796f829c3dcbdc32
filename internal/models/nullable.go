package models

import (
	"bytes"
	"encoding/json"
)

// Nullable поле частичного обновления. Set отличает отсутствующее в JSON поле
// от явного null: Set=true и Value=nil означает «очистить».
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// SetTo возвращает поле, заданное значением v.
func SetTo[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

// SetNull возвращает поле, которое нужно очистить.
func SetNull[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}
